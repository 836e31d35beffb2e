// Package message defines task-thread and direct messages plus thread
// subscriptions.
package message

import (
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/actor"
)

// Message is an append-only comment on a task thread, or a direct
// agent-to-agent message when TaskID is empty.
type Message struct {
	ID        string      `json:"id"`
	TaskID    string      `json:"task_id,omitempty"`
	From      actor.Actor `json:"from"`
	Content   string      `json:"content"`
	Mentions  []string    `json:"mentions,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateRequest holds the fields for posting a message to a task thread.
type CreateRequest struct {
	TaskID   string      `json:"task_id"`
	From     actor.Actor `json:"from,omitempty"`
	Content  string      `json:"content"`
	Mentions []string    `json:"mentions,omitempty"`
}

// Subscription registers an agent's standing interest in a task thread.
// At most one row exists per (agent, task) pair.
type Subscription struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	TaskID       string    `json:"task_id"`
	SubscribedAt time.Time `json:"subscribed_at"`
}
