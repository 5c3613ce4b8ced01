package sim

import "fmt"

// TrapState is the lifecycle state of a Trap.
type TrapState int

// A trap starts armed and is resolved exactly once, either sprung or canceled.
const (
	TrapArmed TrapState = iota
	TrapSprung
	TrapCanceled
)

func (s TrapState) String() string {
	switch s {
	case TrapArmed:
		return "armed"
	case TrapSprung:
		return "sprung"
	case TrapCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// WaitOutcome tells a waiter why it was released.
type WaitOutcome int

// Possible outcomes of a sleep or a wait.
const (
	WaitFired WaitOutcome = iota + 1
	WaitCanceled
	WaitTimedOut
)

func (o WaitOutcome) String() string {
	switch o {
	case WaitFired:
		return "fired"
	case WaitCanceled:
		return "canceled"
	case WaitTimedOut:
		return "timed out"
	default:
		return "none"
	}
}

// A Waiter is anything that can be registered on a Trap. Processes are the
// only waiters in a running simulation.
type Waiter interface {
	// Notify is called once when the trap the waiter is registered on is
	// sprung or canceled.
	Notify(trap *Trap, outcome WaitOutcome)
}

// Trappable is the capability of being waited on.
type Trappable interface {
	// TryWait registers w on the trap guarding the condition. It returns
	// false, without registering, if the condition has already been resolved
	// and w should proceed immediately.
	TryWait(w Waiter) bool

	// CancelWait retracts the registration of w without resolving the
	// condition.
	CancelWait(w Waiter)

	// TrueTrappable returns the live trap guarding the condition, or the
	// trappable itself if there is none.
	TrueTrappable() Trappable
}

// A Trap is a single-use synchronization object. Waiters block on it until it
// is sprung or canceled; both transitions happen at most once.
type Trap struct {
	id      string
	name    string
	state   TrapState
	waiters []Waiter

	// owned traps guard events and process completion. Only the simulator
	// resolves them.
	owned bool
}

// NewTrap creates an armed trap.
func NewTrap(id, name string) *Trap {
	return &Trap{id: id, name: name}
}

func newOwnedTrap(id, name string) *Trap {
	return &Trap{id: id, name: name, owned: true}
}

// ID returns the ID of the trap.
func (t *Trap) ID() string {
	return t.id
}

// Name returns the name of the trap, or its ID if it is not named.
func (t *Trap) Name() string {
	if t.name == "" {
		return "trap-" + t.id
	}

	return t.name
}

// State returns the current state of the trap.
func (t *Trap) State() TrapState {
	return t.state
}

// NumWaiters returns how many waiters are currently registered.
func (t *Trap) NumWaiters() int {
	return len(t.waiters)
}

// TryWait registers w if the trap is still armed.
func (t *Trap) TryWait(w Waiter) bool {
	if t.state != TrapArmed {
		return false
	}

	for _, existing := range t.waiters {
		if existing == w {
			return true
		}
	}

	t.waiters = append(t.waiters, w)

	return true
}

// CancelWait removes w from the waiter set. Removing a waiter that is not
// registered is a no-op.
func (t *Trap) CancelWait(w Waiter) {
	for i, existing := range t.waiters {
		if existing == w {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}

// TrueTrappable returns the trap itself.
func (t *Trap) TrueTrappable() Trappable {
	return t
}

// Trigger springs the trap and releases every waiter with WaitFired. It
// panics on the trap of an event or a process, which the simulator resolves
// when the event is dispatched or canceled or the process terminates.
func (t *Trap) Trigger() {
	t.mustNotBeOwned("Trigger")
	t.spring()
}

// Cancel cancels the trap and releases every waiter with WaitCanceled. Like
// Trigger, it panics on traps owned by the simulator.
func (t *Trap) Cancel() {
	t.mustNotBeOwned("Cancel")
	t.abort()
}

// Owned tells if the trap is resolved by the simulator only.
func (t *Trap) Owned() bool {
	return t.owned
}

func (t *Trap) mustNotBeOwned(op string) {
	if t.owned {
		panic(fmt.Sprintf("Trap.%s: %s is resolved by the simulator", op, t.Name()))
	}
}

func (t *Trap) spring() {
	t.resolve(TrapSprung, WaitFired)
}

func (t *Trap) abort() {
	t.resolve(TrapCanceled, WaitCanceled)
}

func (t *Trap) resolve(to TrapState, outcome WaitOutcome) {
	if t.state != TrapArmed {
		panic(&DoubleSpringError{Trap: t.Name(), State: t.state})
	}

	t.state = to

	// Waiters may retract registrations on other traps while being notified,
	// so the set is detached before iterating.
	waiters := t.waiters
	t.waiters = nil

	for _, w := range waiters {
		w.Notify(t, outcome)
	}
}
