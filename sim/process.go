package sim

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// ProcessState is the lifecycle state of a Process.
type ProcessState int

// A process is ready until first dispatched, then alternates between running
// and suspended until its body returns.
const (
	ProcessReady ProcessState = iota
	ProcessRunning
	ProcessSuspended
	ProcessTerminated
)

func (s ProcessState) String() string {
	switch s {
	case ProcessReady:
		return "ready"
	case ProcessRunning:
		return "running"
	case ProcessSuspended:
		return "suspended"
	case ProcessTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ProcessFunc is the body of a process.
type ProcessFunc func(p *Process)

type resumeSignal struct {
	outcome WaitOutcome
	kill    bool
}

type yieldKind int

const (
	yieldSuspended yieldKind = iota
	yieldExited
	yieldKilled
	yieldPanicked
)

type yieldSignal struct {
	kind       yieldKind
	panicValue any
	stack      []byte
}

// waitState tracks one call to WaitAny while the process is suspended.
type waitState struct {
	// traps holds what each target resolved to at registration time; it is
	// what a notifying trap is matched against.
	traps    []Trappable
	resolved bool
	winner   int
	outcome  WaitOutcome
}

// A Process is a cooperative unit of simulated execution. Its body runs on a
// dedicated goroutine, but only while the driver has handed control to it;
// the body gives control back whenever it sleeps or waits, and when it
// returns.
type Process struct {
	id   string
	name string
	sim  *Simulator
	fn   ProcessFunc

	// Args are the arguments given at creation time.
	Args []any

	state  ProcessState
	killed bool

	resumeCh chan resumeSignal
	yieldCh  chan yieldSignal

	governing *ProcessEvent
	waiting   *waitState
	doneTrap  *Trap

	startTime VTimeInSec
	endTime   VTimeInSec
}

func newProcess(s *Simulator, id, name string, fn ProcessFunc) *Process {
	return &Process{
		id:        id,
		name:      name,
		sim:       s,
		fn:        fn,
		resumeCh:  make(chan resumeSignal),
		yieldCh:   make(chan yieldSignal),
		startTime: InfiniteTime,
		endTime:   InfiniteTime,
	}
}

// ID returns the ID of the process.
func (p *Process) ID() string {
	return p.id
}

// Name returns the name of the process.
func (p *Process) Name() string {
	if p.name == "" {
		return "proc-" + p.id
	}

	return p.name
}

// State returns the lifecycle state of the process.
func (p *Process) State() ProcessState {
	return p.state
}

// Killed tells if the process was terminated by Kill rather than by returning
// from its body.
func (p *Process) Killed() bool {
	return p.killed
}

// StartTime returns the time the process first ran, or InfiniteTime.
func (p *Process) StartTime() VTimeInSec {
	return p.startTime
}

// EndTime returns the time the process terminated, or InfiniteTime.
func (p *Process) EndTime() VTimeInSec {
	return p.endTime
}

// Simulator returns the simulator that owns the process.
func (p *Process) Simulator() *Simulator {
	return p.sim
}

// PendingEvent returns the event that will resume the process next, or nil
// if the process only waits on traps. Canceling that event wakes the process
// immediately with WaitCanceled.
func (p *Process) PendingEvent() Event {
	if p.governing == nil {
		return nil
	}

	return p.governing
}

func (p *Process) String() string {
	return fmt.Sprintf("proc=%s (%s)", p.Name(), p.state)
}

// Now returns the current simulation time.
func (p *Process) Now() VTimeInSec {
	return p.sim.Now()
}

// Sleep suspends the process for d seconds of simulated time.
func (p *Process) Sleep(d VTimeInSec) (WaitOutcome, error) {
	p.mustBeCurrent("Process.Sleep")

	return p.sleepUntil("Process.Sleep", p.sim.Now()+d)
}

// SleepUntil suspends the process until the absolute time t.
func (p *Process) SleepUntil(t VTimeInSec) (WaitOutcome, error) {
	p.mustBeCurrent("Process.SleepUntil")

	return p.sleepUntil("Process.SleepUntil", t)
}

func (p *Process) sleepUntil(op string, t VTimeInSec) (WaitOutcome, error) {
	if isNaN(t) {
		return 0, &InvalidArgumentError{Op: op, Reason: "time is NaN"}
	}

	now := p.sim.Now()
	if t < now {
		return 0, &PastEventError{Op: op, Event: p.Name(), Time: t, Last: now}
	}

	evt := p.sim.newProcessEvent(t, p, WaitFired)
	if err := p.sim.events.Insert(evt); err != nil {
		return 0, err
	}

	p.governing = evt

	return p.suspend(), nil
}

// WaitOption configures Wait and WaitAny.
type WaitOption func(*waitOptions)

type waitOptions struct {
	timeout    VTimeInSec
	hasTimeout bool
}

// WithTimeout bounds a wait to d seconds of simulated time.
func WithTimeout(d VTimeInSec) WaitOption {
	return func(o *waitOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}

// Wait suspends the process until t is resolved, or until the timeout given
// with WithTimeout expires.
func (p *Process) Wait(t Trappable, opts ...WaitOption) (WaitOutcome, error) {
	p.mustBeCurrent("Process.Wait")

	_, outcome, err := p.waitAny("Process.Wait", []Trappable{t}, opts)

	return outcome, err
}

// WaitAny suspends the process until the first of targets is resolved. It
// returns the index of that target, or -1 if the wait ended because of the
// timeout or because the governing event was canceled.
func (p *Process) WaitAny(
	targets []Trappable,
	opts ...WaitOption,
) (int, WaitOutcome, error) {
	p.mustBeCurrent("Process.WaitAny")

	return p.waitAny("Process.WaitAny", targets, opts)
}

func (p *Process) waitAny(
	op string,
	targets []Trappable,
	opts []WaitOption,
) (int, WaitOutcome, error) {
	o := waitOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if len(targets) == 0 {
		return -1, 0, &InvalidArgumentError{Op: op, Reason: "nothing to wait on"}
	}

	if o.hasTimeout && isNaN(o.timeout) {
		return -1, 0, &InvalidArgumentError{Op: op, Reason: "timeout is NaN"}
	}

	if o.hasTimeout && o.timeout < 0 {
		return -1, 0, &InvalidArgumentError{Op: op, Reason: "negative timeout"}
	}

	ws := &waitState{traps: make([]Trappable, len(targets)), winner: -1}
	for i, t := range targets {
		if !t.TryWait(p) {
			for j := 0; j < i; j++ {
				ws.traps[j].CancelWait(p)
			}

			return i, resolvedOutcome(t), nil
		}

		ws.traps[i] = t.TrueTrappable()
	}

	if o.hasTimeout {
		timer := p.sim.newProcessEvent(p.sim.Now()+o.timeout, p, WaitTimedOut)
		if err := p.sim.events.Insert(timer); err != nil {
			ws.cancelAll(p)
			return -1, 0, err
		}

		p.governing = timer
	}

	p.waiting = ws
	outcome := p.suspend()
	p.waiting = nil

	if ws.resolved {
		return ws.winner, ws.outcome, nil
	}

	ws.cancelAll(p)

	return -1, outcome, nil
}

func (ws *waitState) cancelAll(p *Process) {
	for _, t := range ws.traps {
		if t != nil {
			t.CancelWait(p)
		}
	}
}

// resolvedOutcome reports how an already resolved trappable ended.
func resolvedOutcome(t Trappable) WaitOutcome {
	switch v := t.TrueTrappable().(type) {
	case *Trap:
		if v.state == TrapCanceled {
			return WaitCanceled
		}
	case *Process:
		if v.killed {
			return WaitCanceled
		}
	}

	return WaitFired
}

// Notify is called by a trap the process waits on. Only the first trap to
// resolve wins; the registrations on the other targets are retracted.
func (p *Process) Notify(trap *Trap, outcome WaitOutcome) {
	ws := p.waiting
	if ws == nil || ws.resolved {
		return
	}

	winner := -1
	for i, t := range ws.traps {
		if t == Trappable(trap) {
			winner = i
			break
		}
	}

	if winner < 0 {
		return
	}

	ws.resolved = true
	ws.winner = winner
	ws.outcome = outcome

	for i, t := range ws.traps {
		if i != winner {
			t.CancelWait(p)
		}
	}

	if p.governing != nil {
		p.sim.withdraw(p.governing)
		p.governing = nil
	}

	p.sim.wake(p, outcome)
}

// TryWait registers w to be notified when the process terminates.
func (p *Process) TryWait(w Waiter) bool {
	if p.state == ProcessTerminated {
		return false
	}

	if p.doneTrap == nil {
		p.doneTrap = newOwnedTrap(p.sim.ids.Generate(), p.Name()+".done")
	}

	return p.doneTrap.TryWait(w)
}

// CancelWait retracts w from the completion trap of the process.
func (p *Process) CancelWait(w Waiter) {
	if p.doneTrap == nil {
		return
	}

	p.doneTrap.CancelWait(w)
}

// TrueTrappable returns the completion trap, or the process itself.
func (p *Process) TrueTrappable() Trappable {
	if p.doneTrap != nil {
		return p.doneTrap
	}

	return p
}

func (p *Process) mustBeCurrent(op string) {
	if p.sim.current != p {
		panic(fmt.Sprintf("%s called outside the body of %s", op, p.Name()))
	}
}

// suspend hands control back to the driver and blocks until the driver
// resumes the process.
func (p *Process) suspend() WaitOutcome {
	p.state = ProcessSuspended
	p.yieldCh <- yieldSignal{kind: yieldSuspended}

	sig := <-p.resumeCh
	if sig.kill {
		runtime.Goexit()
	}

	return sig.outcome
}

func (p *Process) body() {
	returned := false

	defer func() {
		if returned {
			p.yieldCh <- yieldSignal{kind: yieldExited}
			return
		}

		if r := recover(); r != nil {
			p.yieldCh <- yieldSignal{
				kind:       yieldPanicked,
				panicValue: r,
				stack:      debug.Stack(),
			}

			return
		}

		p.yieldCh <- yieldSignal{kind: yieldKilled}
	}()

	p.fn(p)
	returned = true
}
