package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kestrelworks/crewdeck/internal/adapter/otel"
	"github.com/kestrelworks/crewdeck/internal/adapter/ws"
	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/domain/notification"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/database"
	"github.com/kestrelworks/crewdeck/internal/port/messagequeue"
)

// NotificationService manages the queued, at-least-once alert channel.
type NotificationService struct {
	store   database.Store
	log     activitylog.Log
	events  *Events
	metrics *otel.Metrics
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(store database.Store, log activitylog.Log, events *Events, metrics *otel.Metrics) *NotificationService {
	return &NotificationService{store: store, log: log, events: events, metrics: metrics}
}

func notificationFor(agentID, content, taskID string) notification.CreateRequest {
	return notification.CreateRequest{
		AgentID: agentID,
		Content: content,
		TaskID:  taskID,
	}
}

// Create queues a notification for an agent.
func (s *NotificationService) Create(ctx context.Context, req notification.CreateRequest) (*notification.Notification, error) {
	if req.AgentID == "" || req.Content == "" {
		return nil, fmt.Errorf("%w: agent_id and content are required", domain.ErrValidation)
	}
	n, err := s.store.CreateNotification(ctx, req)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, messagequeue.SubjectNotificationCreated, ws.EventNotification, n)
	return n, nil
}

// UndeliveredForAgent returns the agent's pending notifications, oldest first.
func (s *NotificationService) UndeliveredForAgent(ctx context.Context, agentID string) ([]notification.Notification, error) {
	return s.store.ListUndeliveredForAgent(ctx, agentID)
}

// Undelivered returns every pending notification grouped per roster agent,
// oldest first within each group. This walks the roster rather than scanning
// a global queue, so cost grows with agent count.
func (s *NotificationService) Undelivered(ctx context.Context) (map[string][]notification.Notification, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]notification.Notification)
	for _, a := range agents {
		pending, err := s.store.ListUndeliveredForAgent(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("undelivered for %s: %w", a.Name, err)
		}
		if len(pending) > 0 {
			out[a.ID] = pending
		}
	}
	return out, nil
}

// MarkManyDelivered flips the delivered flag on the given notifications.
// Already-delivered ids are skipped, so redelivery marking is idempotent.
// Returns how many rows actually flipped.
func (s *NotificationService) MarkManyDelivered(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.store.MarkNotificationsDelivered(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.metrics.NotificationsDelivered(ctx, int64(n))
	return n, nil
}

// ListForAgent returns an agent's notification history, newest first.
func (s *NotificationService) ListForAgent(ctx context.Context, agentID string, limit int) ([]notification.Notification, error) {
	return s.store.ListNotificationsForAgent(ctx, agentID, limit)
}

// AgentSessions returns the routing roster the delivery daemon uses to map
// agent ids to live session keys. Agents without a session key are omitted.
func (s *NotificationService) AgentSessions(ctx context.Context) ([]notification.AgentSession, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	sessions := make([]notification.AgentSession, 0, len(agents))
	for _, a := range agents {
		if a.SessionKey == "" {
			continue
		}
		sessions = append(sessions, notification.AgentSession{
			AgentID:    a.ID,
			Name:       a.Name,
			SessionKey: a.SessionKey,
		})
	}
	return sessions, nil
}

// Broadcast queues a categorised announcement for the named agents, or for
// the whole roster except the operator when no names are given. The
// announcement is also archived as a note document.
func (s *NotificationService) Broadcast(ctx context.Context, content, category string, targetNames []string) (int, error) {
	if content == "" {
		return 0, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	if category == "" {
		category = "announcement"
	}
	body := fmt.Sprintf("[%s] %s", strings.ToUpper(category), content)

	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return 0, err
	}

	wanted := make(map[string]bool, len(targetNames))
	for _, name := range targetNames {
		wanted[strings.ToLower(name)] = true
	}

	sent := 0
	for _, a := range agents {
		if len(wanted) > 0 {
			if !wanted[strings.ToLower(a.Name)] {
				continue
			}
		} else if a.Name == OperatorAgentName {
			continue
		}
		if _, err := s.store.CreateNotification(ctx, notification.CreateRequest{
			AgentID: a.ID,
			Content: body,
		}); err != nil {
			slog.Error("broadcast notification", "agent", a.Name, "error", err)
			continue
		}
		sent++
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeMention,
		Message: fmt.Sprintf("Broadcast to %d agents: %s", sent, content),
		Metadata: activity.Metadata{
			Content: body,
		},
	})

	if _, err := s.store.CreateDocument(ctx, document.CreateRequest{
		Title:     fmt.Sprintf("Broadcast %s (%s)", time.Now().UTC().Format("2006-01-02 15:04"), category),
		Content:   body,
		Type:      document.TypeNote,
		CreatedBy: actor.Operator(),
	}); err != nil {
		slog.Error("archive broadcast", "error", err)
	}

	return sent, nil
}

// CountPending returns the number of undelivered notifications system-wide.
func (s *NotificationService) CountPending(ctx context.Context) (int, error) {
	return s.store.CountUndelivered(ctx)
}
