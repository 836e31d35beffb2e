package http

import (
	"net/http"

	"github.com/kestrelworks/crewdeck/internal/domain/agent"
)

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Agents.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents not listed")
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.CreateRequest](w, r)
	if !ok {
		return
	}
	a, err := h.Agents.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent not created")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.Agents.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) GetAgentByName(w http.ResponseWriter, r *http.Request) {
	a, err := h.Agents.GetByName(r.Context(), urlParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) UpdateAgentStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Status        agent.Status `json:"status"`
		CurrentTaskID *string      `json:"current_task_id,omitempty"`
	}](w, r)
	if !ok {
		return
	}
	a, err := h.Agents.UpdateStatus(r.Context(), urlParam(r, "id"), req.Status, req.CurrentTaskID)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) UpdateAgentSkills(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Skills          []string `json:"skills"`
		CanProposeTasks *bool    `json:"can_propose_tasks,omitempty"`
	}](w, r)
	if !ok {
		return
	}
	a, err := h.Agents.UpdateSkills(r.Context(), urlParam(r, "id"), req.Skills, req.CanProposeTasks)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) AgentHeartbeat(w http.ResponseWriter, r *http.Request) {
	res, err := h.WorkCycle.Heartbeat(r.Context(), urlParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) RunAllCycles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.WorkCycle.RunAll(r.Context()))
}

func (h *Handlers) SendDirectMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		ToAgentID string `json:"to_agent_id"`
		Content   string `json:"content"`
	}](w, r)
	if !ok {
		return
	}
	msg, err := h.Agents.SendDirectMessage(r.Context(), urlParam(r, "id"), req.ToAgentID, req.Content)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
