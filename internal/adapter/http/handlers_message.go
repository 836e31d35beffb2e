package http

import (
	"net/http"

	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

func (h *Handlers) CreateMessage(w http.ResponseWriter, r *http.Request) {
	type createRequest struct {
		From     string   `json:"from,omitempty"`
		Content  string   `json:"content"`
		Mentions []string `json:"mentions,omitempty"`
	}
	req, ok := readJSON[createRequest](w, r)
	if !ok {
		return
	}
	msg, err := h.Messages.Create(r.Context(), message.CreateRequest{
		TaskID:   urlParam(r, "id"),
		From:     actor.Parse(req.From),
		Content:  req.Content,
		Mentions: req.Mentions,
	})
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handlers) ListTaskMessages(w http.ResponseWriter, r *http.Request) {
	order := database.OrderAsc
	if r.URL.Query().Get("order") == "desc" {
		order = database.OrderDesc
	}
	msgs, err := h.Messages.ByTask(r.Context(), urlParam(r, "id"), order, queryLimit(r, 0))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handlers) ListRecentMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Messages.Recent(r.Context(), queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, err, "messages not listed")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		AgentID string `json:"agent_id"`
	}](w, r)
	if !ok {
		return
	}
	sub, err := h.Messages.Subscribe(r.Context(), req.AgentID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		AgentID string `json:"agent_id"`
	}](w, r)
	if !ok {
		return
	}
	if err := h.Messages.Unsubscribe(r.Context(), req.AgentID, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Messages.Subscribers(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}
