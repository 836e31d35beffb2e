// Package database defines the entity store port (interface).
//
// Every method is a single-document unit of work: the store guarantees
// atomicity per call, never across calls. Lifecycle operations that touch
// several entities issue several calls in program order and accept the
// visibility window in between.
package database

import (
	"context"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/domain/notification"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
)

// Order selects result ordering by creation time.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// TaskPatch is a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *task.Status
	Priority     *task.Priority
	AssigneeIDs  *[]string
	Tags         *[]string
	ClaimedAt    *time.Time
}

// Store is the port interface for entity persistence.
type Store interface {
	// Agents
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*agent.Agent, error)
	GetAgentBySessionKey(ctx context.Context, sessionKey string) (*agent.Agent, error)
	CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error)
	PatchAgent(ctx context.Context, id string, patch agent.StatusPatch) error
	UpdateAgentSkills(ctx context.Context, id string, skills []string, canProposeTasks *bool) error

	// Tasks
	CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context, limit int) ([]task.Task, error)
	ListTasksByStatus(ctx context.Context, status task.Status, order Order, limit int) ([]task.Task, error)
	ListTasksByAssignee(ctx context.Context, agentID string) ([]task.Task, error)
	ListTasksByProposer(ctx context.Context, agentID string, limit int) ([]task.Task, error)
	TaskTitleExists(ctx context.Context, title string) (bool, error)
	PatchTask(ctx context.Context, id string, patch TaskPatch) error
	// ClaimTask conditionally moves an inbox task to assigned for the agent.
	// Returns domain.ErrInvalidState when the task is no longer in the inbox,
	// so the loser of a concurrent claim race is rejected instead of
	// silently double-claiming.
	ClaimTask(ctx context.Context, taskID, agentID string, claimedAt time.Time) error
	DeleteTask(ctx context.Context, id string) error
	GetTaskByRunID(ctx context.Context, runID string) (*task.Task, error)
	ListRunTasks(ctx context.Context, limit int) ([]task.Task, error)

	// Messages
	CreateMessage(ctx context.Context, req message.CreateRequest) (*message.Message, error)
	ListMessagesByTask(ctx context.Context, taskID string, order Order, limit int) ([]message.Message, error)
	ListRecentMessages(ctx context.Context, limit int) ([]message.Message, error)

	// Subscriptions
	GetSubscription(ctx context.Context, agentID, taskID string) (*message.Subscription, error)
	CreateSubscription(ctx context.Context, agentID, taskID string) (*message.Subscription, error)
	ListSubscriptionsByTask(ctx context.Context, taskID string) ([]message.Subscription, error)
	DeleteSubscription(ctx context.Context, agentID, taskID string) error

	// Notifications
	CreateNotification(ctx context.Context, req notification.CreateRequest) (*notification.Notification, error)
	ListUndeliveredForAgent(ctx context.Context, agentID string) ([]notification.Notification, error)
	ListNotificationsForAgent(ctx context.Context, agentID string, limit int) ([]notification.Notification, error)
	MarkNotificationsDelivered(ctx context.Context, ids []string) (int, error)
	CountUndelivered(ctx context.Context) (int, error)

	// Documents
	CreateDocument(ctx context.Context, req document.CreateRequest) (*document.Document, error)
	GetDocument(ctx context.Context, id string) (*document.Document, error)
	ListDocumentsByTask(ctx context.Context, taskID string) ([]document.Document, error)
	ListDocumentsByType(ctx context.Context, docType document.Type, limit int) ([]document.Document, error)
	ListRecentDocuments(ctx context.Context, limit int) ([]document.Document, error)

	// System status singleton. Reads default to unpaused when no row exists.
	SystemPaused(ctx context.Context) (bool, error)
	SetSystemPaused(ctx context.Context, paused bool) error

	// Session mappings (webhook session → agent resolution cache)
	GetSessionMapping(ctx context.Context, sessionKey string) (string, error)
	CreateSessionMapping(ctx context.Context, sessionKey, agentID string) error
}
