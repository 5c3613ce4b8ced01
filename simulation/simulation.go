// Package simulation assembles a simulator with the services that observe it.
package simulation

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/simkernel/datarecording"
	"github.com/sarchlab/simkernel/monitoring"
	"github.com/sarchlab/simkernel/sim"
	"github.com/sarchlab/simkernel/tracing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id         string
	logger     logrus.FieldLogger
	simulator  *sim.Simulator
	outputPath string

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	visTracer    *tracing.DBTracer
	eventTracer  *tracing.EventTracer
	lifetimes    *tracing.AverageTimeTracer
	monitor      *monitoring.Monitor

	terminateOnce sync.Once
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Simulator returns the simulator to schedule events and processes on.
func (s *Simulation) Simulator() *sim.Simulator {
	return s.simulator
}

// OutputPath returns the file the trace is written to, or an empty string if
// recording is disabled.
func (s *Simulation) OutputPath() string {
	return s.outputPath
}

// GetDataRecorder returns the data recorder used in the simulation.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetVisTracer returns the tracer used in the simulation.
func (s *Simulation) GetVisTracer() *tracing.DBTracer {
	return s.visTracer
}

// GetEventTracer returns the tracer that records every dispatched event.
func (s *Simulation) GetEventTracer() *tracing.EventTracer {
	return s.eventTracer
}

// ProcessLifetimes returns the statistics of the lifetimes of the processes
// that have terminated.
func (s *Simulation) ProcessLifetimes() *tracing.AverageTimeTracer {
	return s.lifetimes
}

// Serve serves the monitor until ctx is done. It returns immediately if
// monitoring is disabled.
func (s *Simulation) Serve(ctx context.Context) error {
	if s.monitor == nil {
		return nil
	}

	return s.monitor.Serve(ctx)
}

// Run runs the simulation until the horizon. With a monitor, the run is
// registered with it so that step and run requests are refused meanwhile.
func (s *Simulation) Run(until sim.VTimeInSec) error {
	if s.monitor != nil {
		return s.monitor.Run(until)
	}

	return s.simulator.Run(until)
}

// Terminate stops a run started from the monitor, kills the remaining
// processes, writes the pending records and closes the trace database. It is
// safe to call more than once, but not from an event callback or a process
// body.
func (s *Simulation) Terminate() {
	s.terminateOnce.Do(s.terminate)
}

func (s *Simulation) terminate() {
	s.simulator.Close()

	if s.monitor != nil {
		// The run itself logs its failure.
		_ = s.monitor.WaitRun()
	}

	s.logger.WithFields(logrus.Fields{
		"now":           float64(s.simulator.Now()),
		"processes":     s.lifetimes.TotalCount(),
		"mean_lifetime": float64(s.lifetimes.AverageTime()),
	}).Info("simulation terminated")

	if s.dataRecorder == nil {
		return
	}

	s.visTracer.Terminate()
	s.execRecorder.End(float64(s.simulator.Now()))

	if err := s.dataRecorder.Close(); err != nil {
		s.logger.WithError(err).Error("cannot close the trace database")
	}
}
