package sim

import (
	"fmt"

	"github.com/google/btree"
)

// eventKey orders events by time first and by insertion order among events
// that share the same time.
type eventKey struct {
	time VTimeInSec
	seq  uint64
}

func (k eventKey) less(o eventKey) bool {
	if k.time != o.time {
		return k.time < o.time
	}

	return k.seq < o.seq
}

// eventStore is the ordered map the EventList keeps its events in. Keys are
// unique by construction.
type eventStore interface {
	Insert(k eventKey, evt Event)
	Min() (eventKey, Event, bool)
	PopMin() (eventKey, Event, bool)
	Delete(k eventKey) bool
	Contains(k eventKey) bool
	Ascend(fn func(k eventKey, evt Event) bool)
	Len() int
}

type storeItem struct {
	key eventKey
	evt Event
}

const btreeDegree = 32

type btreeStore struct {
	tree *btree.BTreeG[storeItem]
}

func newBTreeStore() *btreeStore {
	return &btreeStore{
		tree: btree.NewG(btreeDegree, func(a, b storeItem) bool {
			return a.key.less(b.key)
		}),
	}
}

func (s *btreeStore) Insert(k eventKey, evt Event) {
	old, replaced := s.tree.ReplaceOrInsert(storeItem{key: k, evt: evt})
	if replaced {
		panic(fmt.Sprintf("event %s evicted by %s at the same key",
			old.evt.Name(), evt.Name()))
	}
}

func (s *btreeStore) Min() (eventKey, Event, bool) {
	item, ok := s.tree.Min()
	return item.key, item.evt, ok
}

func (s *btreeStore) PopMin() (eventKey, Event, bool) {
	item, ok := s.tree.DeleteMin()
	return item.key, item.evt, ok
}

func (s *btreeStore) Delete(k eventKey) bool {
	_, ok := s.tree.Delete(storeItem{key: k})
	return ok
}

func (s *btreeStore) Contains(k eventKey) bool {
	return s.tree.Has(storeItem{key: k})
}

func (s *btreeStore) Ascend(fn func(k eventKey, evt Event) bool) {
	s.tree.Ascend(func(item storeItem) bool {
		return fn(item.key, item.evt)
	})
}

func (s *btreeStore) Len() int {
	return s.tree.Len()
}

// An EventList sorts pending events in timestamp order. Events with the same
// time are dispatched in the order they were inserted.
//
// The list keeps a watermark, the time of the most recently removed minimum.
// No event earlier than the watermark can be inserted.
type EventList struct {
	store   eventStore
	index   map[*EventBase]eventKey
	nextSeq uint64
	last    VTimeInSec
}

// NewEventList creates an empty EventList.
func NewEventList() *EventList {
	return &EventList{
		store: newBTreeStore(),
		index: make(map[*EventBase]eventKey),
		last:  MinusInfiniteTime,
	}
}

// Len returns the number of pending events.
func (l *EventList) Len() int {
	return l.store.Len()
}

// Last returns the watermark.
func (l *EventList) Last() VTimeInSec {
	return l.last
}

// Insert adds an event to the list.
func (l *EventList) Insert(evt Event) error {
	b := evt.base()

	if isNaN(evt.Time()) {
		return &InvalidArgumentError{Op: "EventList.Insert", Reason: "time is NaN"}
	}

	if evt.Time() < l.last {
		return &PastEventError{
			Op:    "EventList.Insert",
			Event: evt.Name(),
			Time:  evt.Time(),
			Last:  l.last,
		}
	}

	if _, found := l.index[b]; found {
		panic(fmt.Sprintf("event %s inserted twice", evt.Name()))
	}

	l.put(b, evt)

	return nil
}

func (l *EventList) put(b *EventBase, evt Event) {
	k := eventKey{time: b.time, seq: l.nextSeq}
	l.nextSeq++

	l.store.Insert(k, evt)
	l.index[b] = k
	b.list = l
}

// GetMin returns the time of the earliest pending event.
func (l *EventList) GetMin() (VTimeInSec, error) {
	k, _, ok := l.store.Min()
	if !ok {
		return 0, &EmptyListError{Op: "EventList.GetMin"}
	}

	return k.time, nil
}

// PeekMin returns the earliest pending event without removing it.
func (l *EventList) PeekMin() (Event, error) {
	_, evt, ok := l.store.Min()
	if !ok {
		return nil, &EmptyListError{Op: "EventList.PeekMin"}
	}

	return evt, nil
}

// DeleteMin removes and returns the earliest pending event and advances the
// watermark to its time.
func (l *EventList) DeleteMin() (Event, error) {
	k, evt, ok := l.store.PopMin()
	if !ok {
		return nil, &EmptyListError{Op: "EventList.DeleteMin"}
	}

	if k.time < l.last {
		panic(fmt.Sprintf("event %s @ %g is earlier than watermark %g",
			evt.Name(), k.time, l.last))
	}

	l.last = k.time
	delete(l.index, evt.base())

	return evt, nil
}

// Cancel removes a pending event.
func (l *EventList) Cancel(evt Event) error {
	b := evt.base()

	k, found := l.index[b]
	if !found {
		return &NotFoundError{Op: "EventList.Cancel", What: evt.Name()}
	}

	l.store.Delete(k)
	delete(l.index, b)

	return nil
}

// Update moves a pending event to a new time. The event keeps its identity,
// and therefore its trap, and is ordered after the events already pending at
// the new time.
func (l *EventList) Update(evt Event, t VTimeInSec) error {
	b := evt.base()

	k, found := l.index[b]
	if !found {
		return &NotFoundError{Op: "EventList.Update", What: evt.Name()}
	}

	if isNaN(t) {
		return &InvalidArgumentError{Op: "EventList.Update", Reason: "time is NaN"}
	}

	if t < l.last {
		return &PastEventError{
			Op:    "EventList.Update",
			Event: evt.Name(),
			Time:  t,
			Last:  l.last,
		}
	}

	l.store.Delete(k)
	b.time = t
	l.put(b, evt)

	return nil
}

// CurrentEvent tells if the event is still pending, that is, it has neither
// been dispatched nor canceled.
func (l *EventList) CurrentEvent(evt Event) bool {
	return l.contains(evt.base())
}

func (l *EventList) contains(b *EventBase) bool {
	k, found := l.index[b]
	if !found {
		return false
	}

	return k.time == b.time && l.store.Contains(k)
}

// Events returns the pending events in dispatch order.
func (l *EventList) Events() []Event {
	events := make([]Event, 0, l.store.Len())
	l.store.Ascend(func(_ eventKey, evt Event) bool {
		events = append(events, evt)
		return true
	})

	return events
}
