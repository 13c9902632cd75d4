// Package metrics exposes Prometheus instruments fed from the event bus.
package metrics

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remindbot/internal/eventbus"
	"remindbot/internal/task/engine"
)

const DefaultNamespace = "remindbot"

// Metrics groups all instruments. Each instance owns its registry.
type Metrics struct {
	Registry *prometheus.Registry

	Reminders     *prometheus.CounterVec
	Renewals      *prometheus.CounterVec
	RenewalAdded  prometheus.Counter
	Sessions      *prometheus.CounterVec
	Outbox        *prometheus.CounterVec
	Deleted       prometheus.Counter
	Tasks         *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
	ConfigReloads prometheus.Counter

	namespace string
}

func New(namespace string) *Metrics {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry:  reg,
		namespace: namespace,
		Reminders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reminder deliveries by result.",
		}, []string{"result"}),
		Renewals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewals_total",
			Help:      "Low-supply renewals by mode.",
		}, []string{"mode"}),
		RenewalAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_reminders_added_total",
			Help:      "Reminders created by auto-renewal.",
		}),
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Dialog session transitions by event and flow.",
		}, []string{"event", "flow"}),
		Outbox: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_messages_total",
			Help:      "Outbound messages by result.",
		}, []string{"result"}),
		Deleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_deleted_total",
			Help:      "Ephemeral messages removed from chats.",
		}),
		Tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Background task runs by task and result.",
		}, []string{"task", "result"}),
		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Background task run time.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"task"}),
		ConfigReloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Applied configuration reloads.",
		}),
	}
}

// Gauge registers a gauge sampled from fn at scrape time.
func (m *Metrics) Gauge(name, help string, fn func() float64) {
	promauto.With(m.Registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Run counts bus events until ctx ends.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	events, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}

// Observe updates the instruments for one event. Unknown types are ignored.
func (m *Metrics) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.ReminderDelivered:
		m.Reminders.WithLabelValues("delivered").Inc()
	case eventbus.ReminderFailed:
		m.Reminders.WithLabelValues("failed").Inc()
	case eventbus.RenewalAuto:
		m.Renewals.WithLabelValues("auto").Inc()
		if r, ok := e.Data.(eventbus.Renewal); ok && r.Added > 0 {
			m.RenewalAdded.Add(float64(r.Added))
		}
	case eventbus.RenewalPrompted:
		m.Renewals.WithLabelValues("prompted").Inc()
	case eventbus.SessionStarted, eventbus.SessionCompleted, eventbus.SessionExpired, eventbus.SessionCancelled, eventbus.SessionFailed:
		flow := ""
		if s, ok := e.Data.(eventbus.Session); ok {
			flow = s.Flow
		}
		m.Sessions.WithLabelValues(strings.TrimPrefix(e.Type, "session."), flow).Inc()
	case eventbus.OutboxSent, eventbus.OutboxFailed, eventbus.OutboxDropped, eventbus.OutboxDeduped:
		m.Outbox.WithLabelValues(strings.TrimPrefix(e.Type, "outbox.")).Inc()
	case eventbus.MessageDeleted:
		m.Deleted.Inc()
	case eventbus.TaskFinished, eventbus.TaskFailed, eventbus.TaskDropped:
		te, _ := e.Data.(engine.TaskEvent)
		m.Tasks.WithLabelValues(te.Name, strings.TrimPrefix(e.Type, "task.")).Inc()
		if e.Type != eventbus.TaskDropped {
			m.TaskDuration.WithLabelValues(te.Name).Observe(te.Duration.Seconds())
		}
	case eventbus.ConfigReloaded:
		m.ConfigReloads.Inc()
	}
}
