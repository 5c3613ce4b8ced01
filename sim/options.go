package sim

// ScheduleOption configures Schedule and Process.
type ScheduleOption func(*scheduleOptions)

type scheduleOptions struct {
	at     VTimeInSec
	hasAt  bool
	offset VTimeInSec

	name   string
	args   []any
	kwargs map[string]any

	repeat    VTimeInSec
	hasRepeat bool
}

// At schedules at the absolute time t.
func At(t VTimeInSec) ScheduleOption {
	return func(o *scheduleOptions) {
		o.at = t
		o.hasAt = true
	}
}

// After schedules d seconds after the current time. Without At or After,
// scheduling happens at the current time.
func After(d VTimeInSec) ScheduleOption {
	return func(o *scheduleOptions) {
		o.offset = d
		o.hasAt = false
	}
}

// WithName labels the event or process.
func WithName(name string) ScheduleOption {
	return func(o *scheduleOptions) {
		o.name = name
	}
}

// WithArgs sets the positional arguments passed along with the event or
// process.
func WithArgs(args ...any) ScheduleOption {
	return func(o *scheduleOptions) {
		o.args = args
	}
}

// WithKwArgs sets the keyword arguments of a direct event.
func WithKwArgs(kwargs map[string]any) ScheduleOption {
	return func(o *scheduleOptions) {
		o.kwargs = kwargs
	}
}

// WithRepeat makes a direct event fire every interval seconds.
func WithRepeat(interval VTimeInSec) ScheduleOption {
	return func(o *scheduleOptions) {
		o.repeat = interval
		o.hasRepeat = true
	}
}

func applyScheduleOptions(opts []ScheduleOption) scheduleOptions {
	o := scheduleOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func (o scheduleOptions) time(now VTimeInSec) VTimeInSec {
	if o.hasAt {
		return o.at
	}

	return now + o.offset
}
