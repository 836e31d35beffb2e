package ws

// Event type constants for WebSocket messages.
const (
	EventTaskStatus   = "task.status"
	EventTaskClaimed  = "task.claimed"
	EventAgentStatus  = "agent.status"
	EventActivity     = "activity.appended"
	EventNotification = "notification.created"
)

// TaskStatusEvent is broadcast when a task's status changes.
type TaskStatusEvent struct {
	TaskID    string `json:"task_id"`
	OldStatus string `json:"old_status,omitempty"`
	Status    string `json:"status"`
	AgentID   string `json:"agent_id,omitempty"`
}

// AgentStatusEvent is broadcast when an agent's status changes.
type AgentStatusEvent struct {
	AgentID       string `json:"agent_id"`
	Status        string `json:"status"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
}

// ActivityEvent is broadcast for every appended audit record, feeding the
// dashboard activity stream.
type ActivityEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	AgentID string `json:"agent_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message"`
}
