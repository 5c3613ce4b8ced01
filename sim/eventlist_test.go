package sim

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func noop(*DirectEvent) {}

var _ = Describe("EventList", func() {
	var (
		list *EventList
		seq  int
	)

	newEvent := func(t VTimeInSec, name string) *DirectEvent {
		seq++
		return NewDirectEvent(string(rune('a'+seq)), t, name, noop)
	}

	BeforeEach(func() {
		list = NewEventList()
		seq = 0
	})

	It("should pop in time order and keep insertion order among ties", func() {
		e5 := newEvent(5, "e5")
		e3a := newEvent(3, "e3a")
		e3b := newEvent(3, "e3b")
		e7 := newEvent(7, "e7")

		for _, e := range []*DirectEvent{e5, e3a, e3b, e7} {
			Expect(list.Insert(e)).To(Succeed())
		}

		var names []string
		for list.Len() > 0 {
			e, err := list.DeleteMin()
			Expect(err).NotTo(HaveOccurred())
			names = append(names, e.Name())
		}

		Expect(names).To(Equal([]string{"e3a", "e3b", "e5", "e7"}))
		Expect(list.Last()).To(Equal(VTimeInSec(7)))
	})

	It("should pop random events in order", func() {
		for i := 0; i < 200; i++ {
			Expect(list.Insert(newEvent(VTimeInSec(rand.Intn(20)), ""))).
				To(Succeed())
		}

		now := MinusInfiniteTime
		for list.Len() > 0 {
			e, err := list.DeleteMin()
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Time()).To(BeNumerically(">=", now))
			now = e.Time()
		}
	})

	It("should report the minimum without removing it", func() {
		Expect(list.Insert(newEvent(4, "later"))).To(Succeed())
		Expect(list.Insert(newEvent(2, "sooner"))).To(Succeed())

		t, err := list.GetMin()
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(VTimeInSec(2)))

		e, err := list.PeekMin()
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Name()).To(Equal("sooner"))
		Expect(list.Len()).To(Equal(2))
	})

	It("should fail on an empty list", func() {
		_, err := list.GetMin()
		Expect(err).To(BeAssignableToTypeOf(&EmptyListError{}))

		_, err = list.PeekMin()
		Expect(err).To(BeAssignableToTypeOf(&EmptyListError{}))

		_, err = list.DeleteMin()
		Expect(err).To(BeAssignableToTypeOf(&EmptyListError{}))
	})

	It("should reject events before the watermark", func() {
		Expect(list.Insert(newEvent(5, ""))).To(Succeed())
		_, err := list.DeleteMin()
		Expect(err).NotTo(HaveOccurred())

		err = list.Insert(newEvent(4, "late"))
		Expect(err).To(BeAssignableToTypeOf(&PastEventError{}))

		Expect(list.Insert(newEvent(5, "same time"))).To(Succeed())
	})

	It("should reject NaN times without losing events", func() {
		events := []*DirectEvent{newEvent(1, "a"), newEvent(1, "b"), newEvent(1, "c")}
		for _, e := range events {
			Expect(list.Insert(e)).To(Succeed())
		}

		err := list.Insert(newEvent(VTimeInSec(math.NaN()), "nan"))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))

		err = list.Update(events[1], VTimeInSec(math.NaN()))
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
		Expect(events[1].Time()).To(Equal(VTimeInSec(1)))

		Expect(list.Len()).To(Equal(3))
		for _, want := range events {
			e, err := list.DeleteMin()
			Expect(err).NotTo(HaveOccurred())
			Expect(e).To(BeIdenticalTo(Event(want)))
		}
	})

	It("should panic when a key would evict another event", func() {
		store := newBTreeStore()
		k := eventKey{time: 1, seq: 1}
		store.Insert(k, newEvent(1, "first"))

		Expect(func() { store.Insert(k, newEvent(1, "second")) }).To(Panic())
		Expect(store.Len()).To(Equal(1))
	})

	It("should panic when the same event is inserted twice", func() {
		e := newEvent(1, "")
		Expect(list.Insert(e)).To(Succeed())
		Expect(func() { _ = list.Insert(e) }).To(Panic())
	})

	It("should cancel pending events", func() {
		e1 := newEvent(1, "e1")
		e2 := newEvent(1, "e2")
		Expect(list.Insert(e1)).To(Succeed())
		Expect(list.Insert(e2)).To(Succeed())

		Expect(list.Cancel(e1)).To(Succeed())
		Expect(list.CurrentEvent(e1)).To(BeFalse())
		Expect(list.CurrentEvent(e2)).To(BeTrue())

		err := list.Cancel(e1)
		Expect(err).To(BeAssignableToTypeOf(&NotFoundError{}))

		e, _ := list.DeleteMin()
		Expect(e).To(BeIdenticalTo(Event(e2)))
	})

	It("should update the time of an event without changing its identity", func() {
		e1 := newEvent(1, "e1")
		e2 := newEvent(2, "e2")
		Expect(list.Insert(e1)).To(Succeed())
		Expect(list.Insert(e2)).To(Succeed())

		Expect(list.Update(e1, 2)).To(Succeed())
		Expect(e1.Time()).To(Equal(VTimeInSec(2)))
		Expect(list.CurrentEvent(e1)).To(BeTrue())

		events := list.Events()
		Expect(events).To(HaveLen(2))
		Expect(events[0]).To(BeIdenticalTo(Event(e2)))
		Expect(events[1]).To(BeIdenticalTo(Event(e1)))
	})

	It("should not update events that are not pending", func() {
		e := newEvent(1, "")
		err := list.Update(e, 3)
		Expect(err).To(BeAssignableToTypeOf(&NotFoundError{}))
	})

	It("should not update events to before the watermark", func() {
		Expect(list.Insert(newEvent(3, ""))).To(Succeed())
		e := newEvent(4, "")
		Expect(list.Insert(e)).To(Succeed())
		_, _ = list.DeleteMin()

		err := list.Update(e, 2)
		Expect(err).To(BeAssignableToTypeOf(&PastEventError{}))
		Expect(e.Time()).To(Equal(VTimeInSec(4)))
	})

	It("should stop treating dispatched events as current", func() {
		e := newEvent(1, "")
		Expect(list.Insert(e)).To(Succeed())
		Expect(list.CurrentEvent(e)).To(BeTrue())

		_, _ = list.DeleteMin()
		Expect(list.CurrentEvent(e)).To(BeFalse())
	})
})
