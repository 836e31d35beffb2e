// Package runevent defines the webhook payload emitted by the external
// automation tool for agent run lifecycle events.
package runevent

// Action is the run lifecycle phase reported by the external tool.
type Action string

const (
	ActionStart    Action = "start"
	ActionProgress Action = "progress"
	ActionEnd      Action = "end"
	ActionError    Action = "error"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionProgress, ActionEnd, ActionError:
		return true
	}
	return false
}

// Event is one webhook delivery for an external agent run.
type Event struct {
	RunID      string   `json:"run_id"`
	Action     Action   `json:"action"`
	SessionKey string   `json:"session_key"`
	Prompt     string   `json:"prompt,omitempty"`
	Source     string   `json:"source,omitempty"`
	Response   string   `json:"response,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration,omitempty"`
	ToolsUsed  []string `json:"tools_used,omitempty"`
}

// Result reports what the ingestion did with an event.
type Result struct {
	TaskID    string `json:"task_id,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
}

// Stats summarizes ingested run tasks for the reporting view.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Errors    int `json:"errors"`
}
