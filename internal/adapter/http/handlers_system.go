package http

import (
	"net/http"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/runevent"
)

func (h *Handlers) SystemStatus(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Status.Summary(r.Context())
	if err != nil {
		writeDomainError(w, err, "status not available")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handlers) PauseSystem(w http.ResponseWriter, r *http.Request) {
	if err := h.Status.Pause(r.Context()); err != nil {
		writeDomainError(w, err, "pause failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (h *Handlers) ResumeSystem(w http.ResponseWriter, r *http.Request) {
	if err := h.Status.Resume(r.Context()); err != nil {
		writeDomainError(w, err, "resume failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (h *Handlers) ListActivities(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	q := r.URL.Query()
	switch {
	case q.Get("agent_id") != "":
		acts, err := h.Activities.ByAgent(r.Context(), q.Get("agent_id"), limit)
		if err != nil {
			writeDomainError(w, err, "activities not listed")
			return
		}
		writeJSON(w, http.StatusOK, acts)
	case q.Get("task_id") != "":
		acts, err := h.Activities.ByTask(r.Context(), q.Get("task_id"), limit)
		if err != nil {
			writeDomainError(w, err, "activities not listed")
			return
		}
		writeJSON(w, http.StatusOK, acts)
	case q.Get("since") != "":
		cutoff, err := time.Parse(time.RFC3339, q.Get("since"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		acts, err := h.Activities.Since(r.Context(), cutoff)
		if err != nil {
			writeDomainError(w, err, "activities not listed")
			return
		}
		writeJSON(w, http.StatusOK, acts)
	default:
		acts, err := h.Activities.Recent(r.Context(), limit)
		if err != nil {
			writeDomainError(w, err, "activities not listed")
			return
		}
		writeJSON(w, http.StatusOK, acts)
	}
}

func (h *Handlers) GenerateStandup(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Standup.Generate(r.Context())
	if err != nil {
		writeDomainError(w, err, "standup not generated")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handlers) LatestStandup(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Standup.Latest(r.Context())
	if err != nil {
		writeDomainError(w, err, "no standup generated yet")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handlers) RunReconcile(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.Reconcile.SyncTaskAssignments(r.Context())
	if err != nil {
		writeDomainError(w, err, "reconcile failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"repaired": fixed})
}

// RunWebhook ingests run lifecycle events from the external automation tool.
func (h *Handlers) RunWebhook(w http.ResponseWriter, r *http.Request) {
	ev, ok := readJSON[runevent.Event](w, r)
	if !ok {
		return
	}
	res, err := h.Webhooks.Handle(r.Context(), ev)
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) ListRunTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Webhooks.RunTasks(r.Context(), queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, err, "run tasks not listed")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) RunStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Webhooks.RunStats(r.Context())
	if err != nil {
		writeDomainError(w, err, "run stats not available")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
