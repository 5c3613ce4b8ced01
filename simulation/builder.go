package simulation

import (
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/simkernel/datarecording"
	"github.com/sarchlab/simkernel/monitoring"
	"github.com/sarchlab/simkernel/sim"
	"github.com/sarchlab/simkernel/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	logger         logrus.FieldLogger
	startTime      sim.VTimeInSec
	logEvents      bool
	recordOn       bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		logger:    logrus.StandardLogger(),
		recordOn:  true,
		monitorOn: true,
	}
}

// WithLogger sets the logger shared by the simulator and the monitor.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithStartTime sets the initial simulated time.
func (b Builder) WithStartTime(t sim.VTimeInSec) Builder {
	b.startTime = t
	return b
}

// WithEventLogging logs every dispatched event.
func (b Builder) WithEventLogging() Builder {
	b.logEvents = true
	return b
}

// WithoutRecording sets the simulation to not write a trace database.
func (b Builder) WithoutRecording() Builder {
	b.recordOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithOpenBrowser opens the monitor page once the server listens.
func (b Builder) WithOpenBrowser() Builder {
	b.openBrowser = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && (b.monitorPort != 0 || b.openBrowser) {
		panic("monitor options cannot be set when monitoring is disabled")
	}

	if !b.recordOn && b.outputFileName != "" {
		panic("output file cannot be set when recording is disabled")
	}
}

// Build builds the simulation. The monitor, if enabled, is created but not
// served; see Simulation.Serve.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:     xid.New().String(),
		logger: b.logger,
	}

	s.simulator = sim.MakeBuilder().
		WithLogger(b.logger).
		WithStartTime(b.startTime).
		Build()

	s.lifetimes = tracing.NewAverageTimeTracer(s.simulator, nil)
	tracing.CollectTrace(s.simulator, s.lifetimes)

	if b.recordOn {
		b.buildRecording(s)
	}

	if b.logEvents {
		s.simulator.AcceptHook(sim.NewEventLogger(b.logger))
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().
			WithLogger(b.logger).
			WithPortNumber(b.monitorPort).
			WithOpenBrowser(b.openBrowser)
		s.monitor.RegisterSimulator(s.simulator)
	}

	return s
}

func (b Builder) buildRecording(s *Simulation) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "simkernel_sim_" + s.id
	}

	s.outputPath = outputPath + ".sqlite3"
	s.dataRecorder = datarecording.New(outputPath)

	s.execRecorder = datarecording.NewExecRecorder(s.dataRecorder)
	s.execRecorder.Start()

	s.visTracer = tracing.NewDBTracer(s.simulator, s.dataRecorder)
	tracing.CollectTrace(s.simulator, s.visTracer)

	s.eventTracer = tracing.NewEventTracer(s.dataRecorder)
	s.simulator.AcceptHook(s.eventTracer)
}
