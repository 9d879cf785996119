package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus counters for the escalation pipeline.
type Metrics struct {
	WebhooksReceived  *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	Escalations       prometheus.Counter
	Repeats           prometheus.Counter
	SchedulerTicks    prometheus.Counter
	SchedulerSkipped  prometheus.Counter
	TicketTransitions *prometheus.CounterVec
}

// NewMetrics registers counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_webhooks_received_total",
			Help: "Webhook requests by outcome status.",
		}, []string{"status"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_notifications_total",
			Help: "Channel delivery attempts by channel type and result.",
		}, []string{"channel", "result"}),
		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_level_advances_total",
			Help: "Tickets advanced to the next notification group.",
		}),
		Repeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_repeat_notifications_total",
			Help: "Repeat notifications at the current level.",
		}),
		SchedulerTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_scheduler_ticks_total",
			Help: "Completed scheduler ticks.",
		}),
		SchedulerSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_scheduler_ticks_skipped_total",
			Help: "Ticks skipped because the lease is held elsewhere.",
		}),
		TicketTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_ticket_transitions_total",
			Help: "Ticket status transitions by target status.",
		}, []string{"to"}),
	}
}

// NewDefaultMetrics registers on the global Prometheus registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}
