// Package document defines markdown artifacts: deliverables, notes, research
// output and generated standups.
package document

import (
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/actor"
)

// Type classifies a document.
type Type string

const (
	TypeDeliverable Type = "deliverable"
	TypeResearch    Type = "research"
	TypeProtocol    Type = "protocol"
	TypeNote        Type = "note"
	TypeStandup     Type = "standup"
)

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	switch t {
	case TypeDeliverable, TypeResearch, TypeProtocol, TypeNote, TypeStandup:
		return true
	}
	return false
}

// Document is a markdown artifact, optionally linked to a task.
type Document struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Type      Type        `json:"type"`
	TaskID    string      `json:"task_id,omitempty"`
	CreatedBy actor.Actor `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CreateRequest holds the fields for creating a document.
type CreateRequest struct {
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Type      Type        `json:"type"`
	TaskID    string      `json:"task_id,omitempty"`
	CreatedBy actor.Actor `json:"created_by,omitempty"`
}
