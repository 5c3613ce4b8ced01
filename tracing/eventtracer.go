package tracing

import (
	"github.com/sarchlab/simkernel/datarecording"
	"github.com/sarchlab/simkernel/sim"
)

// EventTableName is the table the EventTracer writes to.
const EventTableName = "sim_events"

// EventEntry is a row of the event table.
type EventEntry struct {
	Seq  int
	Time float64
	Kind string
	ID   string
	Name string
}

// An EventTracer is a hook that records every dispatched event.
type EventTracer struct {
	backend datarecording.DataRecorder
	seq     int
}

// NewEventTracer creates an EventTracer and the table it writes to.
func NewEventTracer(dataRecorder datarecording.DataRecorder) *EventTracer {
	dataRecorder.CreateTable(EventTableName, EventEntry{})

	return &EventTracer{backend: dataRecorder}
}

// Func records the event about to be dispatched.
func (t *EventTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(sim.Event)
	if !ok {
		return
	}

	t.seq++
	t.backend.InsertData(EventTableName, EventEntry{
		Seq:  t.seq,
		Time: float64(ctx.Now),
		Kind: sim.EventKind(evt),
		ID:   evt.ID(),
		Name: evt.Name(),
	})
}

// NumRecorded returns how many events have been recorded.
func (t *EventTracer) NumRecorded() int {
	return t.seq
}
