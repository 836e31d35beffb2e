package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters the coordination engine records.
type Metrics struct {
	tasksClaimed          metric.Int64Counter
	tasksProposed         metric.Int64Counter
	notificationsSent     metric.Int64Counter
	notificationsRequeued metric.Int64Counter
	heartbeats            metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("crewdeck")

	tasksClaimed, err := meter.Int64Counter("crewdeck.tasks.claimed",
		metric.WithDescription("Tasks claimed by agents"))
	if err != nil {
		return nil, err
	}
	tasksProposed, err := meter.Int64Counter("crewdeck.tasks.proposed",
		metric.WithDescription("Tasks proposed by agents"))
	if err != nil {
		return nil, err
	}
	notificationsSent, err := meter.Int64Counter("crewdeck.notifications.delivered",
		metric.WithDescription("Notifications delivered to agent sessions"))
	if err != nil {
		return nil, err
	}
	notificationsRequeued, err := meter.Int64Counter("crewdeck.notifications.requeued",
		metric.WithDescription("Notification deliveries that failed and stayed queued"))
	if err != nil {
		return nil, err
	}
	heartbeats, err := meter.Int64Counter("crewdeck.agents.heartbeats",
		metric.WithDescription("Agent work cycles executed"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		tasksClaimed:          tasksClaimed,
		tasksProposed:         tasksProposed,
		notificationsSent:     notificationsSent,
		notificationsRequeued: notificationsRequeued,
		heartbeats:            heartbeats,
	}, nil
}

func (m *Metrics) TaskClaimed(ctx context.Context, agentName string) {
	if m == nil {
		return
	}
	m.tasksClaimed.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agentName)))
}

func (m *Metrics) TaskProposed(ctx context.Context, agentName string) {
	if m == nil {
		return
	}
	m.tasksProposed.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agentName)))
}

func (m *Metrics) NotificationsDelivered(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.notificationsSent.Add(ctx, n)
}

func (m *Metrics) NotificationsRequeued(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.notificationsRequeued.Add(ctx, n)
}

func (m *Metrics) Heartbeat(ctx context.Context, agentName string) {
	if m == nil {
		return
	}
	m.heartbeats.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agentName)))
}
