// Package notification defines the queued, at-least-once-delivered agent alert.
package notification

import "time"

// Notification targets a single agent. The delivered flag flips false→true
// exactly once and never reverts.
type Notification struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Content     string    `json:"content"`
	FromAgentID string    `json:"from_agent_id,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	MessageID   string    `json:"message_id,omitempty"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"created_at"`
	DeliveredAt time.Time `json:"delivered_at,omitempty"`
}

// CreateRequest holds the fields for queuing a new notification.
type CreateRequest struct {
	AgentID     string `json:"agent_id"`
	Content     string `json:"content"`
	FromAgentID string `json:"from_agent_id,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	MessageID   string `json:"message_id,omitempty"`
}

// AgentSession is the roster entry the delivery daemon uses to route a
// notification to a live session.
type AgentSession struct {
	AgentID    string `json:"agent_id"`
	Name       string `json:"name"`
	SessionKey string `json:"session_key"`
}
