package sim

import (
	"github.com/sirupsen/logrus"
)

// EventLogger is a hook that logs every dispatched event and every process
// start and end.
type EventLogger struct {
	logger logrus.FieldLogger
	level  logrus.Level
}

// NewEventLogger returns a new EventLogger which writes into logger at Info
// level.
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	return &EventLogger{logger: logger, level: logrus.InfoLevel}
}

// WithLevel sets the level the entries are logged at.
func (h *EventLogger) WithLevel(level logrus.Level) *EventLogger {
	h.level = level
	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeEvent:
		evt, ok := ctx.Item.(Event)
		if !ok {
			return
		}

		h.log(logrus.Fields{
			"time":  float64(ctx.Now),
			"kind":  EventKind(evt),
			"event": evt.Name(),
		}, "dispatch")
	case HookPosProcessStart, HookPosProcessEnd:
		p, ok := ctx.Item.(*Process)
		if !ok {
			return
		}

		fields := logrus.Fields{
			"time":    float64(ctx.Now),
			"process": p.Name(),
		}
		if outcome, ok := ctx.Detail.(WaitOutcome); ok {
			fields["outcome"] = outcome.String()
		}

		h.log(fields, ctx.Pos.Name)
	}
}

func (h *EventLogger) log(fields logrus.Fields, msg string) {
	entry := h.logger.WithFields(fields)

	switch h.level {
	case logrus.TraceLevel:
		entry.Trace(msg)
	case logrus.DebugLevel:
		entry.Debug(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

// EventKind returns a short label for the type of an event.
func EventKind(evt Event) string {
	switch evt.(type) {
	case *DirectEvent:
		return "direct"
	case *ProcessEvent:
		return "process"
	default:
		return "unknown"
	}
}
