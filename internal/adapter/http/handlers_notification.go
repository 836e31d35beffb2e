package http

import (
	"net/http"

	"github.com/kestrelworks/crewdeck/internal/domain/notification"
)

func (h *Handlers) CreateNotification(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[notification.CreateRequest](w, r)
	if !ok {
		return
	}
	n, err := h.Notifications.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "notification not created")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// ListUndelivered returns every pending notification keyed by agent id.
// This is the delivery daemon's poll endpoint.
func (h *Handlers) ListUndelivered(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Notifications.Undelivered(r.Context())
	if err != nil {
		writeDomainError(w, err, "notifications not listed")
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *Handlers) ListAgentNotifications(w http.ResponseWriter, r *http.Request) {
	agentID := urlParam(r, "id")
	if r.URL.Query().Get("undelivered") == "true" {
		pending, err := h.Notifications.UndeliveredForAgent(r.Context(), agentID)
		if err != nil {
			writeDomainError(w, err, "agent not found")
			return
		}
		writeJSON(w, http.StatusOK, pending)
		return
	}
	history, err := h.Notifications.ListForAgent(r.Context(), agentID, queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handlers) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		IDs []string `json:"ids"`
	}](w, r)
	if !ok {
		return
	}
	marked, err := h.Notifications.MarkManyDelivered(r.Context(), req.IDs)
	if err != nil {
		writeDomainError(w, err, "notifications not marked")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

// ListAgentSessions returns the agent→session routing roster for the daemon.
func (h *Handlers) ListAgentSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Notifications.AgentSessions(r.Context())
	if err != nil {
		writeDomainError(w, err, "sessions not listed")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handlers) Broadcast(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Content  string   `json:"content"`
		Category string   `json:"category,omitempty"`
		Targets  []string `json:"targets,omitempty"`
	}](w, r)
	if !ok {
		return
	}
	sent, err := h.Notifications.Broadcast(r.Context(), req.Content, req.Category, req.Targets)
	if err != nil {
		writeDomainError(w, err, "broadcast failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
