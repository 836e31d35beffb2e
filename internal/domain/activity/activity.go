// Package activity defines the immutable audit event appended by every
// mutating operation.
package activity

import "time"

// Type identifies the kind of activity event.
type Type string

const (
	TypeTaskCreated        Type = "task_created"
	TypeTaskUpdated        Type = "task_updated"
	TypeTaskCompleted      Type = "task_completed"
	TypeTaskClaimed        Type = "task_claimed"
	TypeMessageSent        Type = "message_sent"
	TypeDocumentCreated    Type = "document_created"
	TypeDocumentUpdated    Type = "document_updated"
	TypeAgentHeartbeat     Type = "agent_heartbeat"
	TypeAgentStatusChanged Type = "agent_status_changed"
	TypeMention            Type = "mention"
	TypeStandupGenerated   Type = "standup_generated"
)

// Metadata carries the structured details of an activity event.
type Metadata struct {
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Activity is a single append-only audit record. Write-only from the
// engine's perspective; read by feeds and reports.
type Activity struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	AgentID   string    `json:"agent_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Message   string    `json:"message"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
