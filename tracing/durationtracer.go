package tracing

import (
	"sync"

	"github.com/sarchlab/simkernel/sim"
)

// inflightTracker remembers when the tasks that pass a filter started.
type inflightTracker struct {
	timeTeller sim.TimeTeller
	filter     TaskFilter
	lock       sync.Mutex
	inflight   map[string]sim.VTimeInSec
}

func newInflightTracker(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) inflightTracker {
	if filter == nil {
		filter = func(Task) bool { return true }
	}

	return inflightTracker{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]sim.VTimeInSec),
	}
}

// StartTask records the task start time
func (t *inflightTracker) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflight[task.ID] = t.timeTeller.CurrentTime()
	t.lock.Unlock()
}

// StepTask does nothing
func (t *inflightTracker) StepTask(_ Task) {}

// end removes the task and returns its duration. Must hold the lock.
func (t *inflightTracker) end(task Task) (sim.VTimeInSec, bool) {
	start, ok := t.inflight[task.ID]
	if !ok {
		return 0, false
	}

	delete(t.inflight, task.ID)

	return t.timeTeller.CurrentTime() - start, true
}

// NumInflight returns how many tasks have started but not ended.
func (t *inflightTracker) NumInflight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}

// TotalTimeTracer sums the durations of the tasks that pass a filter.
// Overlapping tasks are counted in full, so the total can exceed the elapsed
// simulated time.
type TotalTimeTracer struct {
	inflightTracker
	totalTime sim.VTimeInSec
}

// NewTotalTimeTracer creates a new TotalTimeTracer. A nil filter accepts
// every task.
func NewTotalTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *TotalTimeTracer {
	return &TotalTimeTracer{
		inflightTracker: newInflightTracker(timeTeller, filter),
	}
}

// TotalTime returns the summed duration of the completed tasks.
func (t *TotalTimeTracer) TotalTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime
}

// EndTask records the end of the task
func (t *TotalTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if d, ok := t.end(task); ok {
		t.totalTime += d
	}
}

// AverageTimeTracer collects the average and the longest duration of the
// tasks that pass a filter, for example the lifetimes of processes.
type AverageTimeTracer struct {
	inflightTracker
	averageTime sim.VTimeInSec
	maxTime     sim.VTimeInSec
	taskCount   uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer. A nil filter accepts
// every task.
func NewAverageTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	return &AverageTimeTracer{
		inflightTracker: newInflightTracker(timeTeller, filter),
	}
}

// AverageTime returns the average duration of the completed tasks.
func (t *AverageTimeTracer) AverageTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime
}

// MaxTime returns the longest duration of the completed tasks.
func (t *AverageTimeTracer) MaxTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.maxTime
}

// TotalCount returns the number of completed tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// EndTask records the end of the task
func (t *AverageTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	d, ok := t.end(task)
	if !ok {
		return
	}

	t.averageTime = sim.VTimeInSec(
		(float64(t.averageTime)*float64(t.taskCount) + float64(d)) /
			float64(t.taskCount+1))
	t.taskCount++

	if d > t.maxTime {
		t.maxTime = d
	}
}
