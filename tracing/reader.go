package tracing

import (
	"context"

	"github.com/sarchlab/simkernel/datarecording"
)

// ReadTasks returns the recorded tasks selected by p, ordered by start time
// unless p says otherwise, and the number of tasks matching p.Where.
func ReadTasks(
	ctx context.Context,
	r *datarecording.Reader,
	p datarecording.QueryParams,
) ([]TaskEntry, int, error) {
	if p.OrderBy == "" {
		p.OrderBy = "StartTime, rowid"
	}

	return datarecording.Query[TaskEntry](ctx, r, TaskTableName, p)
}

// ReadMilestones returns the milestones of a task in time order.
func ReadMilestones(
	ctx context.Context,
	r *datarecording.Reader,
	taskID string,
) ([]Milestone, error) {
	milestones, _, err := datarecording.Query[Milestone](ctx, r,
		MilestoneTableName,
		datarecording.QueryParams{
			Where:   "TaskID = ?",
			Args:    []any{taskID},
			OrderBy: "Time, rowid",
		})

	return milestones, err
}

// ReadEvents returns the dispatched events selected by p in dispatch order
// unless p says otherwise.
func ReadEvents(
	ctx context.Context,
	r *datarecording.Reader,
	p datarecording.QueryParams,
) ([]EventEntry, int, error) {
	if p.OrderBy == "" {
		p.OrderBy = "Seq"
	}

	return datarecording.Query[EventEntry](ctx, r, EventTableName, p)
}
