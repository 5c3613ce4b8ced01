package sim

import (
	"fmt"
	"math"
)

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// The two extremes of simulation time.
var (
	InfiniteTime      = VTimeInSec(math.Inf(1))
	MinusInfiniteTime = VTimeInSec(math.Inf(-1))
)

func isNaN(t VTimeInSec) bool {
	return math.IsNaN(float64(t))
}

// An Event is something going to happen in the future. Events can be waited
// on while they are pending in an EventList.
type Event interface {
	Trappable

	// ID returns the unique ID of the event.
	ID() string

	// Time returns the time that the event should happen.
	Time() VTimeInSec

	// Name returns the label of the event.
	Name() string

	base() *EventBase
}

// EventBase provides the basic fields and getters for the event types.
type EventBase struct {
	id   string
	time VTimeInSec
	name string

	// trap is created the first time someone waits on the pending event and
	// dropped once the event is dispatched, canceled or renewed.
	trap *Trap

	// list is the event list the event was last inserted into.
	list *EventList
}

func newEventBase(id string, t VTimeInSec, name string) EventBase {
	return EventBase{id: id, time: t, name: name}
}

// ID returns the ID of the event.
func (e *EventBase) ID() string {
	return e.id
}

// Time returns the time that the event is going to happen.
func (e *EventBase) Time() VTimeInSec {
	return e.time
}

// Name returns the label given at schedule time, or the ID if none was given.
func (e *EventBase) Name() string {
	if e.name == "" {
		return e.id
	}

	return e.name
}

func (e *EventBase) base() *EventBase {
	return e
}

// TryWait registers w on the trap of the event. If the event is no longer
// pending, it is considered to have happened already.
func (e *EventBase) TryWait(w Waiter) bool {
	if e.list == nil || !e.list.contains(e) {
		return false
	}

	if e.trap == nil {
		e.trap = newOwnedTrap(e.id, e.Name())
	}

	return e.trap.TryWait(w)
}

// CancelWait retracts w from the trap of the event.
func (e *EventBase) CancelWait(w Waiter) {
	if e.trap == nil {
		return
	}

	e.trap.CancelWait(w)
}

func (e *EventBase) detachTrap() *Trap {
	t := e.trap
	e.trap = nil

	return t
}

// DirectFunc is the callback of a DirectEvent. It runs on the driver and must
// not block.
type DirectFunc func(evt *DirectEvent)

// A DirectEvent invokes a callback when it is dispatched.
type DirectEvent struct {
	EventBase

	Func   DirectFunc
	Args   []any
	KwArgs map[string]any

	// RepeatInterval, when positive, makes the event fire again
	// RepeatInterval seconds after each dispatch.
	RepeatInterval VTimeInSec
}

// NewDirectEvent creates a DirectEvent.
func NewDirectEvent(
	id string,
	t VTimeInSec,
	name string,
	fn DirectFunc,
) *DirectEvent {
	return &DirectEvent{
		EventBase: newEventBase(id, t, name),
		Func:      fn,
	}
}

// Arg returns the i-th positional argument, or nil if there is none.
func (e *DirectEvent) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}

	return e.Args[i]
}

// KwArg returns the keyword argument named key, or nil if there is none.
func (e *DirectEvent) KwArg(key string) any {
	return e.KwArgs[key]
}

// IsRepeating tells if the event renews itself after dispatch.
func (e *DirectEvent) IsRepeating() bool {
	return e.RepeatInterval > 0
}

// TrueTrappable returns the live trap, or the event itself.
func (e *DirectEvent) TrueTrappable() Trappable {
	if e.trap != nil {
		return e.trap
	}

	return e
}

// renew moves a dispatched repeating event to its next firing time. The old
// trap has already been sprung and cannot be reused.
func (e *DirectEvent) renew() {
	e.time += e.RepeatInterval
	e.trap = nil
}

func (e *DirectEvent) String() string {
	s := fmt.Sprintf("%g: dir_evt=%s", e.time, e.Name())
	if e.IsRepeating() {
		s += fmt.Sprintf(" (repeat=%g)", e.RepeatInterval)
	}

	return s
}

// A ProcessEvent resumes a process when it is dispatched.
type ProcessEvent struct {
	EventBase

	proc    *Process
	outcome WaitOutcome
}

func newProcessEvent(
	id string,
	t VTimeInSec,
	p *Process,
	outcome WaitOutcome,
) *ProcessEvent {
	return &ProcessEvent{
		EventBase: newEventBase(id, t, p.Name()),
		proc:      p,
		outcome:   outcome,
	}
}

// Process returns the process that the event resumes.
func (e *ProcessEvent) Process() *Process {
	return e.proc
}

// Outcome returns what the process is told when it resumes.
func (e *ProcessEvent) Outcome() WaitOutcome {
	return e.outcome
}

// TrueTrappable returns the live trap, or the event itself.
func (e *ProcessEvent) TrueTrappable() Trappable {
	if e.trap != nil {
		return e.trap
	}

	return e
}

func (e *ProcessEvent) String() string {
	return fmt.Sprintf("%g: prc_evt=%s", e.time, e.Name())
}
