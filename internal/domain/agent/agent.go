// Package agent defines the Agent domain entity.
package agent

import "time"

// Status represents an agent's working state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// Agent represents an autonomous worker identity with skills, a status, and a
// single current-task slot.
type Agent struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Role            string    `json:"role"`
	Status          Status    `json:"status"`
	SessionKey      string    `json:"session_key"`
	Personality     string    `json:"personality,omitempty"`
	Specialties     []string  `json:"specialties,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	CanProposeTasks bool      `json:"can_propose_tasks"`
	CurrentTaskID   string    `json:"current_task_id,omitempty"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at,omitempty"`
	LastProposalAt  time.Time `json:"last_proposal_at,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasSkills reports whether the agent holds every skill in required.
// An empty requirement always matches.
func (a *Agent) HasSkills(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range a.Skills {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CreateRequest holds the fields needed to register a new agent.
type CreateRequest struct {
	Name            string   `json:"name"`
	Role            string   `json:"role"`
	SessionKey      string   `json:"session_key"`
	Personality     string   `json:"personality,omitempty"`
	Specialties     []string `json:"specialties,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	CanProposeTasks bool     `json:"can_propose_tasks"`
}

// StatusPatch holds the mutable fields of an agent's work-state.
// Nil pointers leave the corresponding column untouched.
type StatusPatch struct {
	Status          *Status
	CurrentTaskID   *string // pointer to empty string clears the slot
	LastHeartbeatAt *time.Time
	LastProposalAt  *time.Time
}
