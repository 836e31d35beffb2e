// Package task defines the Task domain entity and its lifecycle states.
package task

import (
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/actor"
)

// Status represents where a task sits in its lifecycle.
type Status string

const (
	StatusInbox      Status = "inbox"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
	// StatusWaiting is a holding state entered and left only by explicit
	// operator action through Update; the engine never transitions into it.
	StatusWaiting Status = "waiting"
)

// Valid reports whether s is a known task status.
func (s Status) Valid() bool {
	switch s {
	case StatusInbox, StatusAssigned, StatusInProgress, StatusReview,
		StatusDone, StatusBlocked, StatusWaiting:
		return true
	}
	return false
}

// Priority represents task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task represents a unit of work on the board. AssigneeIDs is modeled as a
// slice but the lifecycle keeps at most one effective claimant.
type Task struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Status         Status      `json:"status"`
	Priority       Priority    `json:"priority"`
	AssigneeIDs    []string    `json:"assignee_ids"`
	RequiredSkills []string    `json:"required_skills,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
	CreatedBy      actor.Actor `json:"created_by"`
	ProposedBy     string      `json:"proposed_by,omitempty"`
	RunID          string      `json:"run_id,omitempty"`
	RunSessionKey  string      `json:"run_session_key,omitempty"`
	RunSource      string      `json:"run_source,omitempty"`
	ClaimedAt      time.Time   `json:"claimed_at,omitempty"`
	DueDate        time.Time   `json:"due_date,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// CreateRequest holds the fields for operator task creation. Tasks created
// with assignees start assigned; otherwise they land in the inbox.
type CreateRequest struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Priority       Priority    `json:"priority,omitempty"`
	AssigneeIDs    []string    `json:"assignee_ids,omitempty"`
	RequiredSkills []string    `json:"required_skills,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
	CreatedBy      actor.Actor `json:"created_by,omitempty"`
	ProposedBy     string      `json:"proposed_by,omitempty"`
	RunID          string      `json:"run_id,omitempty"`
	RunSessionKey  string      `json:"run_session_key,omitempty"`
	RunSource      string      `json:"run_source,omitempty"`
	DueDate        time.Time   `json:"due_date,omitempty"`
	// InitialStatus overrides the inbox/assigned default (run ingestion
	// creates tasks directly in_progress). Empty means derive from assignees.
	InitialStatus Status `json:"-"`
}

// UpdateRequest is a partial patch. Nil pointers leave fields untouched.
type UpdateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	AssigneeIDs *[]string `json:"assignee_ids,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// Board groups tasks by status for the kanban read view.
type Board struct {
	Inbox      []Task `json:"inbox"`
	Assigned   []Task `json:"assigned"`
	InProgress []Task `json:"in_progress"`
	Review     []Task `json:"review"`
	Done       []Task `json:"done"`
	Blocked    []Task `json:"blocked"`
	Waiting    []Task `json:"waiting"`
}
