package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/simkernel/sim"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementTotal adds to the number of elements to track.
func (b *ProgressBar) IncrementTotal(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Total += amount
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// Snapshot returns the counters under the lock.
func (b *ProgressBar) Snapshot() (total, inProgress, finished uint64) {
	b.Lock()
	defer b.Unlock()

	return b.Total, b.InProgress, b.Finished
}

// A ProcessProgressHook counts processes on a progress bar. A process is in
// progress from its start until it terminates.
type ProcessProgressHook struct {
	bar *ProgressBar
}

// NewProcessProgressHook creates a hook that updates bar.
func NewProcessProgressHook(bar *ProgressBar) *ProcessProgressHook {
	return &ProcessProgressHook{bar: bar}
}

// Func updates the progress bar.
func (h *ProcessProgressHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosProcessStart:
		h.bar.IncrementTotal(1)
		h.bar.IncrementInProgress(1)
	case sim.HookPosProcessEnd:
		p, ok := ctx.Item.(*sim.Process)
		if !ok || p.StartTime() == sim.InfiniteTime {
			return
		}

		h.bar.MoveInProgressToFinished(1)
	}
}
