package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sarchlab/simkernel/sim"
)

// MetricsHook exports the activity of a simulator as Prometheus metrics.
type MetricsHook struct {
	eventsDispatched    *prometheus.CounterVec
	simTime             prometheus.Gauge
	pendingEvents       prometheus.Gauge
	processesStarted    prometheus.Counter
	processesTerminated *prometheus.CounterVec
}

// NewMetricsHook creates the metrics in reg.
func NewMetricsHook(reg prometheus.Registerer) *MetricsHook {
	factory := promauto.With(reg)

	return &MetricsHook{
		eventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simkernel",
			Name:      "events_dispatched_total",
			Help:      "Number of events dispatched, by event kind.",
		}, []string{"kind"}),
		simTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "simkernel",
			Name:      "simulated_time_seconds",
			Help:      "Current simulation time.",
		}),
		pendingEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "simkernel",
			Name:      "pending_events",
			Help:      "Number of events in the event list after the last dispatch.",
		}),
		processesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "simkernel",
			Name:      "processes_started_total",
			Help:      "Number of processes that have started running.",
		}),
		processesTerminated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simkernel",
			Name:      "processes_terminated_total",
			Help:      "Number of processes that have terminated, by outcome.",
		}, []string{"outcome"}),
	}
}

// Func updates the metrics.
func (h *MetricsHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosBeforeEvent:
		evt, ok := ctx.Item.(sim.Event)
		if !ok {
			return
		}

		h.eventsDispatched.WithLabelValues(sim.EventKind(evt)).Inc()
		h.simTime.Set(float64(ctx.Now))
	case sim.HookPosAfterEvent:
		if s, ok := ctx.Domain.(*sim.Simulator); ok {
			h.pendingEvents.Set(float64(s.EventList().Len()))
		}
	case sim.HookPosProcessStart:
		h.processesStarted.Inc()
	case sim.HookPosProcessEnd:
		outcome, _ := ctx.Detail.(sim.WaitOutcome)
		h.processesTerminated.WithLabelValues(outcome.String()).Inc()
	}
}
