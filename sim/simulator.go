package sim

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// SimState is the state of the driver loop.
type SimState int

// A simulator is idle until run, running while dispatching and finished when
// a run stops at its horizon or runs out of events.
const (
	SimIdle SimState = iota
	SimRunning
	SimFinished
)

func (s SimState) String() string {
	switch s {
	case SimIdle:
		return "idle"
	case SimRunning:
		return "running"
	case SimFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// A Simulator owns the event list and the clock. It advances the clock from
// event to event, calling direct event callbacks and resuming processes.
//
// All methods except Now, CurrentTime, Pause, Continue and Inspect must be
// called either before Run, from inside event callbacks and process bodies,
// or from one goroutine that serializes them with Run.
type Simulator struct {
	*HookableBase

	logger logrus.FieldLogger
	ids    IDGenerator

	timeLock sync.RWMutex
	now      VTimeInSec

	events *EventList
	state  SimState

	processes []*Process
	current   *Process

	isPaused      bool
	isPausedLock  sync.Mutex
	pauseLock     sync.Mutex
	stepLock      sync.Mutex
	singleRunLock sync.Mutex
	closing       atomic.Bool
}

// Now returns the current simulation time.
func (s *Simulator) Now() VTimeInSec {
	return s.readNow()
}

// CurrentTime returns the current simulation time.
func (s *Simulator) CurrentTime() VTimeInSec {
	return s.readNow()
}

func (s *Simulator) readNow() VTimeInSec {
	s.timeLock.RLock()
	t := s.now
	s.timeLock.RUnlock()

	return t
}

func (s *Simulator) writeNow(t VTimeInSec) {
	s.timeLock.Lock()
	s.now = t
	s.timeLock.Unlock()
}

// State returns the state of the driver loop.
func (s *Simulator) State() SimState {
	return s.state
}

// EventList returns the event list of the simulator.
func (s *Simulator) EventList() *EventList {
	return s.events
}

// CurrentProcess returns the process that is running, or nil when the driver
// itself is running.
func (s *Simulator) CurrentProcess() *Process {
	return s.current
}

// Processes returns the processes that have not terminated, in creation
// order.
func (s *Simulator) Processes() []*Process {
	procs := make([]*Process, len(s.processes))
	copy(procs, s.processes)

	return procs
}

// PendingEvents returns the pending events in dispatch order.
func (s *Simulator) PendingEvents() []Event {
	return s.events.Events()
}

// Peek returns the time of the next event, or InfiniteTime if there is none.
func (s *Simulator) Peek() VTimeInSec {
	t, err := s.events.GetMin()
	if err != nil {
		return InfiniteTime
	}

	return t
}

// Inspect runs fn between two dispatch steps, so that fn observes a
// consistent simulator even while another goroutine is running it.
func (s *Simulator) Inspect(fn func()) {
	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	fn()
}

// NewTrap creates a trap processes can wait on and other code can trigger.
func (s *Simulator) NewTrap(name string) *Trap {
	return NewTrap(s.ids.Generate(), name)
}

// Schedule registers a direct event whose callback runs at the scheduled
// time.
func (s *Simulator) Schedule(
	fn DirectFunc,
	opts ...ScheduleOption,
) (*DirectEvent, error) {
	const op = "Simulator.Schedule"

	if fn == nil {
		return nil, &InvalidArgumentError{Op: op, Reason: "nil callback"}
	}

	o := applyScheduleOptions(opts)
	if o.hasRepeat && !(o.repeat > 0) {
		return nil, &InvalidArgumentError{
			Op:     op,
			Reason: fmt.Sprintf("repeat interval %g is not positive", o.repeat),
		}
	}

	now := s.readNow()
	t := o.time(now)
	if isNaN(t) {
		return nil, &InvalidArgumentError{Op: op, Reason: "time is NaN"}
	}

	if t < now {
		return nil, &PastEventError{Op: op, Event: o.name, Time: t, Last: now}
	}

	evt := NewDirectEvent(s.ids.Generate(), t, o.name, fn)
	evt.Args = o.args
	evt.KwArgs = o.kwargs
	evt.RepeatInterval = o.repeat

	if err := s.events.Insert(evt); err != nil {
		return nil, err
	}

	return evt, nil
}

// Process creates a process whose body starts running at the scheduled time.
func (s *Simulator) Process(
	fn ProcessFunc,
	opts ...ScheduleOption,
) (*Process, error) {
	const op = "Simulator.Process"

	if fn == nil {
		return nil, &InvalidArgumentError{Op: op, Reason: "nil process body"}
	}

	o := applyScheduleOptions(opts)
	if o.hasRepeat || o.kwargs != nil {
		return nil, &InvalidArgumentError{
			Op:     op,
			Reason: "processes take neither repeat intervals nor keyword arguments",
		}
	}

	now := s.readNow()
	t := o.time(now)
	if isNaN(t) {
		return nil, &InvalidArgumentError{Op: op, Reason: "time is NaN"}
	}

	if t < now {
		return nil, &PastEventError{Op: op, Event: o.name, Time: t, Last: now}
	}

	p := newProcess(s, s.ids.Generate(), o.name, fn)
	p.Args = o.args

	start := s.newProcessEvent(t, p, WaitFired)
	if err := s.events.Insert(start); err != nil {
		return nil, err
	}

	p.governing = start
	s.processes = append(s.processes, p)

	return p, nil
}

func (s *Simulator) newProcessEvent(
	t VTimeInSec,
	p *Process,
	outcome WaitOutcome,
) *ProcessEvent {
	return newProcessEvent(s.ids.Generate(), t, p, outcome)
}

// Cancel removes a pending event. Processes waiting on the event are released
// with WaitCanceled. If the event is the one a suspended process sleeps on,
// the process resumes at the current time with WaitCanceled; if it is the
// start event of a process that never ran, the process terminates.
func (s *Simulator) Cancel(evt Event) error {
	if err := s.events.Cancel(evt); err != nil {
		return err
	}

	if trap := evt.base().detachTrap(); trap != nil {
		trap.abort()
	}

	pe, ok := evt.(*ProcessEvent)
	if !ok || pe.proc.governing != pe {
		return nil
	}

	p := pe.proc
	p.governing = nil

	if p.state == ProcessReady {
		s.terminate(p, WaitCanceled)
		return nil
	}

	s.wake(p, WaitCanceled)

	return nil
}

// Reschedule moves a pending event to time t. The event keeps its identity,
// so processes waiting on it keep waiting.
func (s *Simulator) Reschedule(evt Event, t VTimeInSec) error {
	if isNaN(t) {
		return &InvalidArgumentError{Op: "Simulator.Reschedule", Reason: "time is NaN"}
	}

	now := s.readNow()
	if t < now {
		return &PastEventError{
			Op:    "Simulator.Reschedule",
			Event: evt.Name(),
			Time:  t,
			Last:  now,
		}
	}

	return s.events.Update(evt, t)
}

// Kill terminates a process that is not running. Its pending event and wait
// registrations are withdrawn and processes waiting for its completion are
// released with WaitCanceled.
func (s *Simulator) Kill(p *Process) error {
	if p.state == ProcessTerminated {
		return &NotFoundError{Op: "Simulator.Kill", What: p.Name()}
	}

	if p == s.current {
		return &InvalidArgumentError{
			Op:     "Simulator.Kill",
			Reason: "a process cannot kill itself; return from its body instead",
		}
	}

	if p.governing != nil {
		s.withdraw(p.governing)
		p.governing = nil
	}

	if ws := p.waiting; ws != nil {
		ws.cancelAll(p)
		p.waiting = nil
	}

	if p.state == ProcessSuspended {
		p.resumeCh <- resumeSignal{kill: true}
		<-p.yieldCh
	}

	s.logger.WithField("process", p.Name()).Debug("process killed")
	s.terminate(p, WaitCanceled)

	return nil
}

// Close stops a run in progress and kills every process that has not
// terminated so that no process goroutine outlives the simulator. It waits for
// Run or Step on other goroutines to return, so it must not be called from an
// event callback or a process body.
func (s *Simulator) Close() {
	s.closing.Store(true)
	s.Continue()

	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	for _, p := range s.Processes() {
		if p == s.current {
			continue
		}

		_ = s.Kill(p)
	}

	s.state = SimFinished
}

// withdraw removes an event on behalf of the kernel. Unlike Cancel, it does
// not wake the process the event belongs to.
func (s *Simulator) withdraw(evt Event) {
	if err := s.events.Cancel(evt); err != nil {
		return
	}

	if trap := evt.base().detachTrap(); trap != nil {
		trap.abort()
	}
}

// wake schedules p to resume at the current time.
func (s *Simulator) wake(p *Process, outcome WaitOutcome) {
	evt := s.newProcessEvent(s.readNow(), p, outcome)
	if err := s.events.Insert(evt); err != nil {
		panic(err)
	}

	p.governing = evt
}

// Run dispatches events in time order until the next event is later than
// until or no event is left. The clock stays at the time of the last
// dispatched event. Run can be called again with a later horizon to continue.
func (s *Simulator) Run(until VTimeInSec) error {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	if s.closing.Load() {
		return &InvalidArgumentError{Op: "Simulator.Run", Reason: "simulator is closed"}
	}

	now := s.readNow()
	if isNaN(until) || until < now {
		return &InvalidHorizonError{Until: until, Now: now}
	}

	s.state = SimRunning
	for !s.closing.Load() && s.step(until) {
	}
	s.state = SimFinished

	return nil
}

// RunAll dispatches events until none is left.
func (s *Simulator) RunAll() error {
	return s.Run(InfiniteTime)
}

// Step dispatches exactly one event. It returns false if there was none.
func (s *Simulator) Step() (bool, error) {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	if s.closing.Load() {
		return false, &InvalidArgumentError{Op: "Simulator.Step", Reason: "simulator is closed"}
	}

	s.state = SimRunning
	dispatched := s.step(InfiniteTime)
	s.state = SimFinished

	return dispatched, nil
}

func (s *Simulator) step(until VTimeInSec) bool {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	t, err := s.events.GetMin()
	if err != nil || t > until {
		return false
	}

	evt, err := s.events.DeleteMin()
	if err != nil {
		panic(err)
	}

	now := s.readNow()
	if evt.Time() < now {
		panic(fmt.Sprintf("cannot run event in the past, evt %s @ %g, now %g",
			evt.Name(), evt.Time(), now))
	}

	s.writeNow(evt.Time())

	hookCtx := HookCtx{
		Domain: s,
		Now:    evt.Time(),
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	s.InvokeHook(hookCtx)

	s.dispatch(evt)

	hookCtx.Pos = HookPosAfterEvent
	s.InvokeHook(hookCtx)

	return true
}

func (s *Simulator) dispatch(evt Event) {
	if trap := evt.base().detachTrap(); trap != nil {
		trap.spring()
	}

	switch e := evt.(type) {
	case *DirectEvent:
		// The next occurrence is pending while the callback runs.
		if e.IsRepeating() {
			e.renew()
			if err := s.events.Insert(e); err != nil {
				panic(err)
			}
		}

		e.Func(e)
	case *ProcessEvent:
		p := e.proc
		if p.governing != e {
			panic(fmt.Sprintf("stale event %s for process %s", e, p.Name()))
		}

		p.governing = nil
		s.resume(p, e.outcome)
	default:
		panic(fmt.Sprintf("unknown event type %T", evt))
	}
}

// resume hands control to p until it suspends or terminates.
func (s *Simulator) resume(p *Process, outcome WaitOutcome) {
	s.current = p

	if p.state == ProcessReady {
		p.state = ProcessRunning
		p.startTime = s.readNow()
		s.invokeProcessHook(HookPosProcessStart, p, nil)
		s.logger.WithField("process", p.Name()).Debug("process started")

		go p.body()
	} else {
		p.state = ProcessRunning
		p.resumeCh <- resumeSignal{outcome: outcome}
	}

	sig := <-p.yieldCh
	s.current = nil

	switch sig.kind {
	case yieldSuspended:
	case yieldExited:
		s.terminate(p, WaitFired)
	case yieldKilled:
		s.terminate(p, WaitCanceled)
	case yieldPanicked:
		s.terminate(p, WaitCanceled)
		panic(fmt.Sprintf("process %s panicked: %v\n%s",
			p.Name(), sig.panicValue, sig.stack))
	}
}

func (s *Simulator) terminate(p *Process, outcome WaitOutcome) {
	p.state = ProcessTerminated
	p.killed = outcome == WaitCanceled
	p.endTime = s.readNow()

	for i, q := range s.processes {
		if q == p {
			s.processes = append(s.processes[:i], s.processes[i+1:]...)
			break
		}
	}

	s.invokeProcessHook(HookPosProcessEnd, p, outcome)
	s.logger.WithFields(logrus.Fields{
		"process": p.Name(),
		"outcome": outcome.String(),
	}).Debug("process terminated")

	trap := p.doneTrap
	p.doneTrap = nil

	if trap == nil {
		return
	}

	if outcome == WaitFired {
		trap.spring()
	} else {
		trap.abort()
	}
}

func (s *Simulator) invokeProcessHook(pos *HookPos, p *Process, detail any) {
	s.InvokeHook(HookCtx{
		Domain: s,
		Now:    s.readNow(),
		Pos:    pos,
		Item:   p,
		Detail: detail,
	})
}

// Pause prevents the simulator from dispatching more events until Continue
// is called.
func (s *Simulator) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue allows the simulator to dispatch events again.
func (s *Simulator) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// IsPaused tells if Pause is in effect.
func (s *Simulator) IsPaused() bool {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	return s.isPaused
}
