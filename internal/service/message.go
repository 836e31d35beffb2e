package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/domain/notification"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

// MessageService handles task-thread messaging and subscriptions.
type MessageService struct {
	store  database.Store
	log    activitylog.Log
	events *Events
}

// NewMessageService creates a MessageService.
func NewMessageService(store database.Store, log activitylog.Log, events *Events) *MessageService {
	return &MessageService{store: store, log: log, events: events}
}

// Create posts a message to a task thread and fans out notifications:
// one per mentioned agent, one per thread subscriber other than the author.
// An agent mentioned while also subscribed receives both. An agent author
// is subscribed to the thread as a side effect.
func (s *MessageService) Create(ctx context.Context, req message.CreateRequest) (*message.Message, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	t, err := s.store.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.CreateMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	authorID, authorIsAgent := req.From.AgentID()
	authorName := "Operator"
	if authorIsAgent {
		if a, err := s.store.GetAgent(ctx, authorID); err == nil {
			authorName = a.Name
		}
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeMessageSent,
		AgentID: authorID,
		TaskID:  req.TaskID,
		Message: fmt.Sprintf("%s commented on %q", authorName, t.Title),
	})

	for _, mentioned := range req.Mentions {
		if _, err := s.store.CreateNotification(ctx, notification.CreateRequest{
			AgentID:     mentioned,
			Content:     fmt.Sprintf("%s mentioned you on %q: %s", authorName, t.Title, req.Content),
			FromAgentID: authorID,
			TaskID:      req.TaskID,
			MessageID:   msg.ID,
		}); err != nil {
			slog.Error("notify mention", "task_id", req.TaskID, "agent_id", mentioned, "error", err)
		}
		record(ctx, s.log, s.events, activity.Activity{
			Type:    activity.TypeMention,
			AgentID: mentioned,
			TaskID:  req.TaskID,
			Message: fmt.Sprintf("%s mentioned an agent on %q", authorName, t.Title),
		})
	}

	if authorIsAgent {
		if _, err := s.store.CreateSubscription(ctx, authorID, req.TaskID); err != nil {
			slog.Error("auto-subscribe author", "task_id", req.TaskID, "agent_id", authorID, "error", err)
		}
	}

	subs, err := s.store.ListSubscriptionsByTask(ctx, req.TaskID)
	if err != nil {
		slog.Error("list subscribers", "task_id", req.TaskID, "error", err)
		return msg, nil
	}
	for _, sub := range subs {
		if sub.AgentID == authorID {
			continue
		}
		if _, err := s.store.CreateNotification(ctx, notification.CreateRequest{
			AgentID:     sub.AgentID,
			Content:     fmt.Sprintf("New message on %q from %s: %s", t.Title, authorName, req.Content),
			FromAgentID: authorID,
			TaskID:      req.TaskID,
			MessageID:   msg.ID,
		}); err != nil {
			slog.Error("notify subscriber", "task_id", req.TaskID, "agent_id", sub.AgentID, "error", err)
		}
	}

	return msg, nil
}

// ByTask returns a task's thread in the requested order.
func (s *MessageService) ByTask(ctx context.Context, taskID string, order database.Order, limit int) ([]message.Message, error) {
	return s.store.ListMessagesByTask(ctx, taskID, order, limit)
}

// Recent returns the newest messages across all threads.
func (s *MessageService) Recent(ctx context.Context, limit int) ([]message.Message, error) {
	return s.store.ListRecentMessages(ctx, limit)
}

// Subscribe registers an agent's interest in a task thread. Idempotent.
func (s *MessageService) Subscribe(ctx context.Context, agentID, taskID string) (*message.Subscription, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	return s.store.CreateSubscription(ctx, agentID, taskID)
}

// Unsubscribe removes an agent's thread subscription.
func (s *MessageService) Unsubscribe(ctx context.Context, agentID, taskID string) error {
	return s.store.DeleteSubscription(ctx, agentID, taskID)
}

// Subscribers returns the subscriptions on a task thread.
func (s *MessageService) Subscribers(ctx context.Context, taskID string) ([]message.Subscription, error) {
	return s.store.ListSubscriptionsByTask(ctx, taskID)
}
