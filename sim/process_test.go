package sim

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Process", func() {
	var (
		mockCtrl  *gomock.Controller
		simulator *Simulator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		simulator = NewSimulator()
	})

	AfterEach(func() {
		simulator.Close()
		mockCtrl.Finish()
	})

	It("should start at its scheduled time and sleep", func() {
		var times []VTimeInSec
		p, err := simulator.Process(func(p *Process) {
			times = append(times, p.Now())

			outcome, err := p.Sleep(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(WaitFired))
			times = append(times, p.Now())

			_, err = p.SleepUntil(10)
			Expect(err).NotTo(HaveOccurred())
			times = append(times, p.Now())
		}, At(2), WithName("sleeper"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.State()).To(Equal(ProcessReady))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(times).To(Equal([]VTimeInSec{2, 5, 10}))
		Expect(p.State()).To(Equal(ProcessTerminated))
		Expect(p.Killed()).To(BeFalse())
		Expect(p.StartTime()).To(Equal(VTimeInSec(2)))
		Expect(p.EndTime()).To(Equal(VTimeInSec(10)))
		Expect(simulator.Processes()).To(BeEmpty())
	})

	It("should wake with WaitCanceled when its sleep is canceled", func() {
		var (
			wokeAt  VTimeInSec
			outcome WaitOutcome
		)

		a, _ := simulator.Process(func(p *Process) {
			outcome, _ = p.SleepUntil(10)
			wokeAt = p.Now()
		}, WithName("A"))

		_, _ = simulator.Schedule(func(*DirectEvent) {
			Expect(simulator.Cancel(a.PendingEvent())).To(Succeed())
		}, At(4))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(outcome).To(Equal(WaitCanceled))
		Expect(wokeAt).To(Equal(VTimeInSec(4)))
		Expect(simulator.Now()).To(Equal(VTimeInSec(4)))
	})

	It("should terminate a process whose start event is canceled", func() {
		ran := false
		p, _ := simulator.Process(func(*Process) { ran = true }, At(1))

		Expect(simulator.Cancel(p.PendingEvent())).To(Succeed())
		Expect(simulator.RunAll()).To(Succeed())

		Expect(ran).To(BeFalse())
		Expect(p.State()).To(Equal(ProcessTerminated))
		Expect(p.Killed()).To(BeTrue())
	})

	It("should reject sleeping into the past", func() {
		var err error
		_, _ = simulator.Process(func(p *Process) {
			_, err = p.SleepUntil(-1)
		}, At(1))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(err).To(BeAssignableToTypeOf(&PastEventError{}))
	})

	It("should reject NaN sleeps and timeouts", func() {
		trap := simulator.NewTrap("never")
		nan := VTimeInSec(math.NaN())

		var (
			errs     []error
			outcomes []WaitOutcome
			at       VTimeInSec
		)
		_, _ = simulator.Process(func(p *Process) {
			outcome, err := p.Sleep(nan)
			outcomes = append(outcomes, outcome)
			errs = append(errs, err)

			outcome, err = p.SleepUntil(nan)
			outcomes = append(outcomes, outcome)
			errs = append(errs, err)

			outcome, err = p.Wait(trap, WithTimeout(nan))
			outcomes = append(outcomes, outcome)
			errs = append(errs, err)

			at = p.Now()
		}, At(2))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(errs).To(HaveLen(3))
		for _, err := range errs {
			Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
		}
		Expect(outcomes).NotTo(ContainElement(WaitFired))
		Expect(at).To(Equal(VTimeInSec(2)))
		Expect(simulator.Now()).To(Equal(VTimeInSec(2)))
		Expect(trap.NumWaiters()).To(Equal(0))
	})

	It("should wait on a trap", func() {
		trap := simulator.NewTrap("gate")
		var (
			outcomes []WaitOutcome
			times    []VTimeInSec
		)

		for i := 0; i < 2; i++ {
			_, _ = simulator.Process(func(p *Process) {
				o, err := p.Wait(trap)
				Expect(err).NotTo(HaveOccurred())
				outcomes = append(outcomes, o)
				times = append(times, p.Now())
			})
		}

		_, _ = simulator.Schedule(func(*DirectEvent) { trap.Trigger() }, At(3))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(outcomes).To(Equal([]WaitOutcome{WaitFired, WaitFired}))
		Expect(times).To(Equal([]VTimeInSec{3, 3}))
	})

	It("should return at once when the trap is already resolved", func() {
		trap := simulator.NewTrap("")
		trap.Cancel()

		var outcome WaitOutcome
		p, _ := simulator.Process(func(p *Process) {
			outcome, _ = p.Wait(trap)
		})

		Expect(simulator.RunAll()).To(Succeed())

		Expect(outcome).To(Equal(WaitCanceled))
		Expect(p.EndTime()).To(Equal(VTimeInSec(0)))
	})

	It("should wait on a pending event", func() {
		evt, _ := simulator.Schedule(noop, At(6))

		var (
			outcome WaitOutcome
			at      VTimeInSec
		)
		_, _ = simulator.Process(func(p *Process) {
			outcome, _ = p.Wait(evt)
			at = p.Now()
		})

		Expect(simulator.RunAll()).To(Succeed())

		Expect(outcome).To(Equal(WaitFired))
		Expect(at).To(Equal(VTimeInSec(6)))
	})

	It("should keep waiting on a rescheduled event", func() {
		evt, _ := simulator.Schedule(noop, At(6))

		var at VTimeInSec
		_, _ = simulator.Process(func(p *Process) {
			_, _ = p.Wait(evt)
			at = p.Now()
		})
		_, _ = simulator.Schedule(func(*DirectEvent) {
			Expect(simulator.Reschedule(evt, 8)).To(Succeed())
		}, At(1))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(at).To(Equal(VTimeInSec(8)))
	})

	It("should release waiters of a canceled event with WaitCanceled", func() {
		evt, _ := simulator.Schedule(noop, At(6))

		var (
			outcome WaitOutcome
			at      VTimeInSec
		)
		_, _ = simulator.Process(func(p *Process) {
			outcome, _ = p.Wait(evt)
			at = p.Now()
		})
		_, _ = simulator.Schedule(func(*DirectEvent) {
			Expect(simulator.Cancel(evt)).To(Succeed())
		}, At(2))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(outcome).To(Equal(WaitCanceled))
		Expect(at).To(Equal(VTimeInSec(2)))
	})

	It("should join another process", func() {
		worker, _ := simulator.Process(func(p *Process) {
			_, _ = p.Sleep(5)
		}, WithName("worker"))

		var (
			outcome WaitOutcome
			at      VTimeInSec
		)
		_, _ = simulator.Process(func(p *Process) {
			outcome, _ = p.Wait(worker)
			at = p.Now()
		}, At(1))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(outcome).To(Equal(WaitFired))
		Expect(at).To(Equal(VTimeInSec(5)))
	})

	It("should let the first of several traps win a race", func() {
		t1 := simulator.NewTrap("t1")
		t2 := simulator.NewTrap("t2")

		var (
			idx     int
			outcome WaitOutcome
		)
		_, _ = simulator.Process(func(p *Process) {
			idx, outcome, _ = p.WaitAny([]Trappable{t1, t2})
		})
		_, _ = simulator.Schedule(func(*DirectEvent) { t2.Trigger() }, At(1))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(idx).To(Equal(1))
		Expect(outcome).To(Equal(WaitFired))
		Expect(t1.NumWaiters()).To(Equal(0))
		Expect(t1.State()).To(Equal(TrapArmed))
	})

	It("should return the index of a target already resolved", func() {
		t1 := simulator.NewTrap("t1")
		t2 := simulator.NewTrap("t2")
		t2.Trigger()

		var idx int
		_, _ = simulator.Process(func(p *Process) {
			idx, _, _ = p.WaitAny([]Trappable{t1, t2})
		})

		Expect(simulator.RunAll()).To(Succeed())

		Expect(idx).To(Equal(1))
		Expect(t1.NumWaiters()).To(Equal(0))
	})

	It("should time out", func() {
		trap := simulator.NewTrap("never")

		var (
			idx     int
			outcome WaitOutcome
			at      VTimeInSec
		)
		_, _ = simulator.Process(func(p *Process) {
			idx, outcome, _ = p.WaitAny([]Trappable{trap}, WithTimeout(4))
			at = p.Now()
		})

		Expect(simulator.RunAll()).To(Succeed())

		Expect(idx).To(Equal(-1))
		Expect(outcome).To(Equal(WaitTimedOut))
		Expect(at).To(Equal(VTimeInSec(4)))
		Expect(trap.NumWaiters()).To(Equal(0))
	})

	It("should withdraw the timeout when a trap wins", func() {
		trap := simulator.NewTrap("")

		var outcome WaitOutcome
		_, _ = simulator.Process(func(p *Process) {
			outcome, _ = p.Wait(trap, WithTimeout(4))
		})
		_, _ = simulator.Schedule(func(*DirectEvent) { trap.Trigger() }, At(1))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(outcome).To(Equal(WaitFired))
		Expect(simulator.Now()).To(Equal(VTimeInSec(1)))
	})

	It("should reject empty and negative waits", func() {
		var errs []error
		_, _ = simulator.Process(func(p *Process) {
			_, _, err := p.WaitAny(nil)
			errs = append(errs, err)

			_, err = p.Wait(simulator.NewTrap(""), WithTimeout(-1))
			errs = append(errs, err)
		})

		Expect(simulator.RunAll()).To(Succeed())

		Expect(errs).To(HaveLen(2))
		for _, err := range errs {
			Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
		}
	})

	It("should kill a suspended process", func() {
		var reached bool
		victim, _ := simulator.Process(func(p *Process) {
			_, _ = p.Sleep(10)
			reached = true
		})

		var outcome WaitOutcome
		_, _ = simulator.Process(func(p *Process) {
			outcome, _ = p.Wait(victim)
		})

		_, _ = simulator.Schedule(func(*DirectEvent) {
			Expect(simulator.Kill(victim)).To(Succeed())
		}, At(2))

		Expect(simulator.RunAll()).To(Succeed())

		Expect(reached).To(BeFalse())
		Expect(victim.Killed()).To(BeTrue())
		Expect(victim.EndTime()).To(Equal(VTimeInSec(2)))
		Expect(outcome).To(Equal(WaitCanceled))
		Expect(simulator.Now()).To(Equal(VTimeInSec(2)))

		err := simulator.Kill(victim)
		Expect(err).To(BeAssignableToTypeOf(&NotFoundError{}))
	})

	It("should not let a process kill itself", func() {
		var err error
		_, _ = simulator.Process(func(p *Process) {
			err = simulator.Kill(p)
		})

		Expect(simulator.RunAll()).To(Succeed())

		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
	})

	It("should re-raise panics from process bodies", func() {
		p, _ := simulator.Process(func(*Process) {
			panic("boom")
		}, WithName("faulty"))

		Expect(func() { _ = simulator.RunAll() }).
			To(PanicWith(ContainSubstring("process faulty panicked: boom")))
		Expect(p.State()).To(Equal(ProcessTerminated))
	})

	It("should panic when suspending outside the process body", func() {
		p, _ := simulator.Process(func(*Process) {})

		Expect(func() { _, _ = p.Sleep(1) }).To(Panic())
	})

	It("should report process lifecycle to hooks", func() {
		hook := NewMockHook(mockCtrl)
		simulator.AcceptHook(hook)

		p, _ := simulator.Process(func(p *Process) { _, _ = p.Sleep(1) })

		start := hook.EXPECT().Func(HookCtx{
			Domain: simulator,
			Now:    0,
			Pos:    HookPosProcessStart,
			Item:   p,
		})
		hook.EXPECT().Func(HookCtx{
			Domain: simulator,
			Now:    1,
			Pos:    HookPosProcessEnd,
			Item:   p,
			Detail: WaitFired,
		}).After(start)
		hook.EXPECT().Func(gomock.Any()).AnyTimes()

		Expect(simulator.RunAll()).To(Succeed())
	})
})
