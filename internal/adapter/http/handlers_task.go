package http

import (
	"net/http"

	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
)

func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "task not created")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := task.Status(r.URL.Query().Get("status"))
	assignee := r.URL.Query().Get("assignee_id")
	tasks, err := h.Tasks.List(r.Context(), status, assignee, queryLimit(r, 0))
	if err != nil {
		writeDomainError(w, err, "tasks not listed")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.Tasks.Board(r.Context())
	if err != nil {
		writeDomainError(w, err, "board not available")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handlers) GetInbox(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.Inbox(r.Context(), queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, err, "inbox not available")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	details, err := h.Tasks.GetDetails(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	type updateRequest struct {
		task.UpdateRequest
		By string `json:"by,omitempty"`
	}
	req, ok := readJSON[updateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Update(r.Context(), urlParam(r, "id"), req.UpdateRequest, actor.Parse(req.By))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ClaimTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		AgentID string `json:"agent_id"`
	}](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Claim(r.Context(), urlParam(r, "id"), req.AgentID)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) ProposeTask(w http.ResponseWriter, r *http.Request) {
	type proposeRequest struct {
		AgentID string `json:"agent_id"`
		task.CreateRequest
	}
	req, ok := readJSON[proposeRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Propose(r.Context(), req.AgentID, req.CreateRequest)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) StartTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		AgentID string `json:"agent_id"`
	}](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.StartTask(r.Context(), urlParam(r, "id"), req.AgentID)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) CompleteTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		AgentID     string `json:"agent_id"`
		Summary     string `json:"summary,omitempty"`
		Deliverable string `json:"deliverable,omitempty"`
	}](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.CompleteTask(r.Context(), urlParam(r, "id"), req.AgentID, req.Summary, req.Deliverable)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) RequestReview(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		AgentID   string `json:"agent_id"`
		ToAgentID string `json:"to_agent_id"`
		Note      string `json:"note,omitempty"`
	}](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.RequestReview(r.Context(), urlParam(r, "id"), req.AgentID, req.ToAgentID, req.Note)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) BlockTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Reason string `json:"reason,omitempty"`
		By     string `json:"by,omitempty"`
	}](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Block(r.Context(), urlParam(r, "id"), req.Reason, actor.Parse(req.By))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) UnblockTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Resume task.Status `json:"resume,omitempty"`
		By     string      `json:"by,omitempty"`
	}](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Unblock(r.Context(), urlParam(r, "id"), req.Resume, actor.Parse(req.By))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) ListProposedTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ProposedBy(r.Context(), urlParam(r, "id"), queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}
