package sim

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Simulator", func() {
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

	It("should start idle at the start time", func() {
		s := MakeBuilder().WithStartTime(3).Build()

		Expect(s.Now()).To(Equal(VTimeInSec(3)))
		Expect(s.State()).To(Equal(SimIdle))
	})

	It("should dispatch direct events in time order", func() {
		var order []string
		record := func(e *DirectEvent) { order = append(order, e.Name()) }

		for _, c := range []struct {
			t    VTimeInSec
			name string
		}{{5, "a"}, {3, "b"}, {3, "c"}, {7, "d"}} {
			_, err := simulator.Schedule(record, At(c.t), WithName(c.name))
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(simulator.RunAll()).To(Succeed())

		Expect(order).To(Equal([]string{"b", "c", "a", "d"}))
		Expect(simulator.Now()).To(Equal(VTimeInSec(7)))
		Expect(simulator.State()).To(Equal(SimFinished))
	})

	It("should pass arguments to callbacks", func() {
		var got []any
		_, err := simulator.Schedule(func(e *DirectEvent) {
			got = append(got, e.Arg(0), e.Arg(5), e.KwArg("k"))
		}, WithArgs(1), WithKwArgs(map[string]any{"k": "v"}))
		Expect(err).NotTo(HaveOccurred())

		Expect(simulator.RunAll()).To(Succeed())

		Expect(got).To(Equal([]any{1, nil, "v"}))
	})

	It("should repeat events until the horizon", func() {
		var fired []VTimeInSec
		evt, err := simulator.Schedule(func(e *DirectEvent) {
			fired = append(fired, simulator.Now())
		}, At(0), WithRepeat(2))
		Expect(err).NotTo(HaveOccurred())

		Expect(simulator.Run(5)).To(Succeed())

		Expect(fired).To(Equal([]VTimeInSec{0, 2, 4}))
		Expect(simulator.Now()).To(Equal(VTimeInSec(4)))
		Expect(simulator.PendingEvents()).To(HaveLen(1))
		Expect(simulator.Peek()).To(Equal(VTimeInSec(6)))
		Expect(simulator.EventList().CurrentEvent(evt)).To(BeTrue())
	})

	It("should let a repeating event cancel itself", func() {
		count := 0
		_, err := simulator.Schedule(func(e *DirectEvent) {
			count++
			if count == 3 {
				Expect(simulator.Cancel(e)).To(Succeed())
			}
		}, WithRepeat(1))
		Expect(err).NotTo(HaveOccurred())

		Expect(simulator.RunAll()).To(Succeed())

		Expect(count).To(Equal(3))
		Expect(simulator.Now()).To(Equal(VTimeInSec(2)))
	})

	It("should reject invalid scheduling", func() {
		_, err := simulator.Schedule(nil)
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))

		_, err = simulator.Schedule(noop, WithRepeat(0))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))

		_, err = simulator.Schedule(noop, WithRepeat(-1))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))

		_, err = simulator.Process(func(*Process) {}, WithRepeat(1))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))

		_, err = simulator.Schedule(noop, At(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(simulator.RunAll()).To(Succeed())

		_, err = simulator.Schedule(noop, At(1))
		Expect(err).To(BeAssignableToTypeOf(&PastEventError{}))
	})

	It("should return immediately when there is nothing to run", func() {
		Expect(simulator.Run(10)).To(Succeed())

		Expect(simulator.Now()).To(Equal(VTimeInSec(0)))
		Expect(simulator.State()).To(Equal(SimFinished))
	})

	It("should reject horizons in the past", func() {
		_, _ = simulator.Schedule(noop, At(4))
		Expect(simulator.RunAll()).To(Succeed())

		err := simulator.Run(3)
		Expect(err).To(BeAssignableToTypeOf(&InvalidHorizonError{}))
	})

	It("should continue from where a previous run stopped", func() {
		var fired []VTimeInSec
		for _, t := range []VTimeInSec{1, 2, 3} {
			_, _ = simulator.Schedule(func(*DirectEvent) {
				fired = append(fired, simulator.Now())
			}, At(t))
		}

		Expect(simulator.Run(1.5)).To(Succeed())
		Expect(fired).To(Equal([]VTimeInSec{1}))

		Expect(simulator.Run(3)).To(Succeed())
		Expect(fired).To(Equal([]VTimeInSec{1, 2, 3}))
	})

	It("should step one event at a time", func() {
		_, _ = simulator.Schedule(noop, At(1))
		_, _ = simulator.Schedule(noop, At(2))

		ok, err := simulator.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(simulator.Now()).To(Equal(VTimeInSec(1)))

		ok, _ = simulator.Step()
		Expect(ok).To(BeTrue())

		ok, _ = simulator.Step()
		Expect(ok).To(BeFalse())
		Expect(simulator.Peek()).To(Equal(InfiniteTime))
	})

	It("should reschedule a pending event", func() {
		var fired []string
		record := func(e *DirectEvent) { fired = append(fired, e.Name()) }
		a, _ := simulator.Schedule(record, At(1), WithName("a"))
		_, _ = simulator.Schedule(record, At(2), WithName("b"))

		Expect(simulator.Reschedule(a, 3)).To(Succeed())
		Expect(simulator.RunAll()).To(Succeed())

		Expect(fired).To(Equal([]string{"b", "a"}))

		err := simulator.Reschedule(a, 5)
		Expect(err).To(BeAssignableToTypeOf(&NotFoundError{}))
	})

	It("should invoke hooks around each event", func() {
		hook := NewMockHook(mockCtrl)
		simulator.AcceptHook(hook)

		evt, _ := simulator.Schedule(noop, At(1))

		before := hook.EXPECT().Func(HookCtx{
			Domain: simulator,
			Now:    1,
			Pos:    HookPosBeforeEvent,
			Item:   evt,
		})
		hook.EXPECT().Func(HookCtx{
			Domain: simulator,
			Now:    1,
			Pos:    HookPosAfterEvent,
			Item:   evt,
		}).After(before)

		Expect(simulator.RunAll()).To(Succeed())
	})

	It("should not dispatch while paused", func() {
		_, _ = simulator.Schedule(noop, At(1))
		simulator.Pause()
		Expect(simulator.IsPaused()).To(BeTrue())

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = simulator.RunAll()
		}()

		Consistently(done).ShouldNot(BeClosed())

		simulator.Continue()
		Eventually(done).Should(BeClosed())
		Expect(simulator.Now()).To(Equal(VTimeInSec(1)))
	})

	It("should panic on events in the past", func() {
		evt, _ := simulator.Schedule(noop, At(5))
		simulator.writeNow(6)

		Expect(func() { _ = simulator.RunAll() }).To(Panic())
		Expect(simulator.EventList().CurrentEvent(evt)).To(BeFalse())
	})

	It("should keep every event when a NaN time is refused", func() {
		var fired []string
		record := func(e *DirectEvent) { fired = append(fired, e.Name()) }
		for _, name := range []string{"a", "b", "c"} {
			_, err := simulator.Schedule(record, At(1), WithName(name))
			Expect(err).NotTo(HaveOccurred())
		}

		_, err := simulator.Schedule(record, At(VTimeInSec(math.NaN())), WithName("nan"))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
		_, err = simulator.Schedule(record, After(VTimeInSec(math.NaN())))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
		_, err = simulator.Schedule(record, WithRepeat(VTimeInSec(math.NaN())))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
		_, err = simulator.Process(func(*Process) {}, At(VTimeInSec(math.NaN())))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))

		evt := simulator.EventList().Events()[0]
		err = simulator.Reschedule(evt, VTimeInSec(math.NaN()))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))

		Expect(simulator.EventList().Len()).To(Equal(3))
		Expect(simulator.RunAll()).To(Succeed())
		Expect(fired).To(Equal([]string{"a", "b", "c"}))
		Expect(simulator.Now()).To(Equal(VTimeInSec(1)))
	})

	It("should reject a NaN horizon", func() {
		fired := false
		_, _ = simulator.Schedule(func(*DirectEvent) { fired = true }, At(100))

		err := simulator.Run(VTimeInSec(math.NaN()))
		Expect(err).To(BeAssignableToTypeOf(&InvalidHorizonError{}))
		Expect(err.Error()).To(ContainSubstring("NaN"))
		Expect(fired).To(BeFalse())
		Expect(simulator.Now()).To(Equal(VTimeInSec(0)))
	})

	It("should stop a run on another goroutine when closed", func() {
		_, _ = simulator.Schedule(noop, WithRepeat(1))

		done := make(chan error, 1)
		go func() { done <- simulator.RunAll() }()

		Eventually(simulator.Now).Should(BeNumerically(">", 3))

		simulator.Close()
		Eventually(done).Should(Receive(BeNil()))
		Expect(simulator.State()).To(Equal(SimFinished))

		Expect(simulator.RunAll()).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
		_, err := simulator.Step()
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
	})
})
