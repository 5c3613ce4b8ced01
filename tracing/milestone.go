package tracing

// Milestone is a point in time a task went through, such as a process being
// resumed.
type Milestone struct {
	ID     string  `json:"id"`
	TaskID string  `json:"task_id"`
	What   string  `json:"what"`
	Time   float64 `json:"time"`
}
