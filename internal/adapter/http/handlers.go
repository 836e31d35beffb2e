package http

import (
	"net/http"

	"github.com/kestrelworks/crewdeck/internal/adapter/ws"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/messagequeue"
	"github.com/kestrelworks/crewdeck/internal/service"
)

// Handlers bundles the HTTP handler dependencies.
type Handlers struct {
	Tasks         *service.TaskService
	Agents        *service.AgentService
	Messages      *service.MessageService
	Notifications *service.NotificationService
	Documents     *service.DocumentService
	WorkCycle     *service.WorkCycleService
	Webhooks      *service.RunWebhookService
	Standup       *service.StandupService
	Status        *service.StatusService
	Reconcile     *service.ReconcileService
	Activities    activitylog.Log
	Hub           *ws.Hub
	Queue         messagequeue.Queue
}

// Health reports process liveness and queue connectivity.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	queue := "disconnected"
	if h.Queue != nil && h.Queue.IsConnected() {
		queue = "connected"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"queue":      queue,
		"ws_clients": h.Hub.ConnectionCount(),
	})
}
