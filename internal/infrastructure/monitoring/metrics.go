package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups all Prometheus instruments used by the daemon.
type Metrics struct {
	// Decision engine
	Verdicts          *prometheus.CounterVec
	SuppressedEntries *prometheus.CounterVec
	StaleGuards       prometheus.Counter

	// Timer authority
	QuotaRemaining    prometheus.Gauge
	Sweeps            prometheus.Counter
	TimersExpired     *prometheus.CounterVec
	StaleTimers       prometheus.Counter
	OrphanedDecisions prometheus.Counter

	// Foreground monitor
	Transitions     prometheus.Counter
	RawEvents       *prometheus.CounterVec
	InfraSuppressed prometheus.Counter

	// Cross-process channel
	WSConnections   prometheus.Gauge
	WSMessages      *prometheus.CounterVec
	DeliveryRetries prometheus.Counter
	PendingEvents   prometheus.Gauge
}

// NewMetrics creates and registers the instrument set under the given
// namespace. Registration uses promauto with a dedicated registry so
// tests can construct multiple instances.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Decision engine verdicts by kind.",
		}, []string{"kind"}),
		SuppressedEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_entries_total",
			Help:      "Monitored-app entries suppressed by guards, by guard.",
		}, []string{"guard"}),
		StaleGuards: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_guards_total",
			Help:      "Edge-trigger guards cleared by self-healing.",
		}),
		QuotaRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Remaining global quick-task quota.",
		}),
		Sweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_sweeps_total",
			Help:      "Timer authority expiration sweeps.",
		}),
		TimersExpired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_expired_total",
			Help:      "Expired quick-task timers by foreground state at expiry.",
		}, []string{"foreground"}),
		StaleTimers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_timers_total",
			Help:      "Expiration events discarded because the entry was not active.",
		}),
		OrphanedDecisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_decisions_total",
			Help:      "Decision entries discarded because their resolution was lost.",
		}),
		Transitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "foreground_transitions_total",
			Help:      "Semantic foreground transitions emitted by the monitor.",
		}),
		RawEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_focus_events_total",
			Help:      "Raw platform focus events by classification.",
		}, []string{"class"}),
		InfraSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "infrastructure_suppressed_total",
			Help:      "Focus events suppressed as infrastructure surfaces.",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Attached UI-host connections.",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		DeliveryRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_retries_total",
			Help:      "Event redeliveries on the at-least-once channel.",
		}),
		PendingEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_events",
			Help:      "Events awaiting acknowledgment.",
		}),
	}
}

// NewDefault registers against the default Prometheus registry.
func NewDefault(namespace string) *Metrics {
	return NewMetrics(namespace, prometheus.DefaultRegisterer)
}

// NewTest creates an isolated instrument set for tests.
func NewTest() *Metrics {
	return NewMetrics("mindgate_test", prometheus.NewRegistry())
}
