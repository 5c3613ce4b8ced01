// Package scenarios provides small ready-made simulations that show how the
// kernel is used.
package scenarios

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/simkernel/sim"
)

// A Scenario schedules its events and processes onto a simulator.
type Scenario struct {
	Name        string
	Description string

	// Horizon is the time the scenario is meant to be run until.
	Horizon sim.VTimeInSec

	Setup func(s *sim.Simulator, logger logrus.FieldLogger) error
}

var registry = make(map[string]Scenario)

// Register adds a scenario. It panics if the name is already taken.
func Register(sc Scenario) {
	if sc.Name == "" || sc.Setup == nil {
		panic("scenario must have a name and a setup function")
	}

	if _, found := registry[sc.Name]; found {
		panic(fmt.Sprintf("scenario %s already registered", sc.Name))
	}

	registry[sc.Name] = sc
}

// Get returns the scenario with the given name.
func Get(name string) (Scenario, error) {
	sc, found := registry[name]
	if !found {
		return Scenario{}, fmt.Errorf("unknown scenario %q", name)
	}

	return sc, nil
}

// All returns the registered scenarios sorted by name.
func All() []Scenario {
	all := make([]Scenario, 0, len(registry))
	for _, sc := range registry {
		all = append(all, sc)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})

	return all
}

func report(logger logrus.FieldLogger, now sim.VTimeInSec, msg string) {
	logger.WithField("time", float64(now)).Info(msg)
}

func init() {
	Register(Professor)
	Register(Clock)
	Register(Cancel)
	Register(Race)
	Register(FIFO)
}
