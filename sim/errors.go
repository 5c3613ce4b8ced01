package sim

import (
	"fmt"
	"math"
)

// A PastEventError is returned when an event is inserted or rescheduled to a
// time earlier than the time of the most recently dispatched event.
type PastEventError struct {
	Op    string
	Event string
	Time  VTimeInSec
	Last  VTimeInSec
}

func (e *PastEventError) Error() string {
	return fmt.Sprintf("%s(%s): past event @ %g (last=%g)",
		e.Op, e.Event, e.Time, e.Last)
}

// An EmptyListError is returned when peeking or popping an empty event list.
type EmptyListError struct {
	Op string
}

func (e *EmptyListError) Error() string {
	return fmt.Sprintf("%s: empty event list", e.Op)
}

// A NotFoundError is returned when an operation refers to an event that is no
// longer pending, or to a process that is no longer alive.
type NotFoundError struct {
	Op   string
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s(%s): not found", e.Op, e.What)
}

// A DoubleSpringError reports an attempt to resolve a trap that has already
// been sprung or canceled. It indicates kernel state corruption and is raised
// with panic rather than returned.
type DoubleSpringError struct {
	Trap  string
	State TrapState
}

func (e *DoubleSpringError) Error() string {
	return fmt.Sprintf("trap %s already %s", e.Trap, e.State)
}

// An InvalidHorizonError is returned by Run when the horizon is NaN or lies
// before the current simulation time.
type InvalidHorizonError struct {
	Until VTimeInSec
	Now   VTimeInSec
}

func (e *InvalidHorizonError) Error() string {
	if math.IsNaN(float64(e.Until)) {
		return "run until NaN: horizon is not a number"
	}

	return fmt.Sprintf("run until %g: horizon before current time %g",
		e.Until, e.Now)
}

// An InvalidArgumentError is returned for malformed scheduling options.
type InvalidArgumentError struct {
	Op     string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
