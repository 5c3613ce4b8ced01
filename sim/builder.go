package sim

import (
	"github.com/sirupsen/logrus"
)

// Builder can be used to build a Simulator.
type Builder struct {
	logger      logrus.FieldLogger
	startTime   VTimeInSec
	idGenerator IDGenerator
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		logger: logrus.StandardLogger(),
	}
}

// WithLogger sets the logger the simulator reports process lifecycle to.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithStartTime sets the initial value of the clock.
func (b Builder) WithStartTime(t VTimeInSec) Builder {
	b.startTime = t
	return b
}

// WithIDGenerator sets the generator of event, trap and process IDs.
func (b Builder) WithIDGenerator(g IDGenerator) Builder {
	b.idGenerator = g
	return b
}

// Build creates the Simulator.
func (b Builder) Build() *Simulator {
	ids := b.idGenerator
	if ids == nil {
		ids = NewSequentialIDGenerator()
	}

	return &Simulator{
		HookableBase: NewHookableBase(),
		logger:       b.logger,
		ids:          ids,
		now:          b.startTime,
		events:       NewEventList(),
		state:        SimIdle,
	}
}

// NewSimulator creates a Simulator with the default configuration.
func NewSimulator() *Simulator {
	return MakeBuilder().Build()
}
