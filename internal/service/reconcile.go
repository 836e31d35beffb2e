package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

// ReconcileService repairs drift between tasks and agent work-state. The
// lifecycle writes entities one at a time, so a crash mid-operation can
// leave an idle agent holding live tasks or an agent pointing at a task it
// no longer has.
type ReconcileService struct {
	store    database.Store
	interval time.Duration
}

// NewReconcileService creates a ReconcileService.
func NewReconcileService(store database.Store, interval time.Duration) *ReconcileService {
	return &ReconcileService{store: store, interval: interval}
}

// SyncTaskAssignments makes every agent's work-state agree with the board:
// an agent assigned to a live task is active and points at it; an agent
// whose current task is gone or finished is idled. Returns how many agents
// were repaired.
func (s *ReconcileService) SyncTaskAssignments(ctx context.Context) (int, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, a := range agents {
		if a.Name == OperatorAgentName {
			continue
		}

		live := ""
		tasks, err := s.store.ListTasksByAssignee(ctx, a.ID)
		if err != nil {
			slog.Error("reconcile list tasks", "agent", a.Name, "error", err)
			continue
		}
		for _, t := range tasks {
			if t.Status == task.StatusAssigned || t.Status == task.StatusInProgress {
				live = t.ID
				break
			}
		}

		switch {
		case live != "" && (a.CurrentTaskID != live || a.Status != agent.StatusActive):
			active := agent.StatusActive
			if err := s.store.PatchAgent(ctx, a.ID, agent.StatusPatch{
				Status:        &active,
				CurrentTaskID: &live,
			}); err != nil {
				slog.Error("reconcile activate", "agent", a.Name, "error", err)
				continue
			}
			slog.Info("reconciled agent to active", "agent", a.Name, "task_id", live)
			fixed++
		case live == "" && (a.CurrentTaskID != "" || a.Status == agent.StatusActive):
			idle := agent.StatusIdle
			empty := ""
			if err := s.store.PatchAgent(ctx, a.ID, agent.StatusPatch{
				Status:        &idle,
				CurrentTaskID: &empty,
			}); err != nil {
				slog.Error("reconcile idle", "agent", a.Name, "error", err)
				continue
			}
			slog.Info("reconciled agent to idle", "agent", a.Name)
			fixed++
		}
	}
	return fixed, nil
}

// Loop runs the repair on the configured interval until the context is
// cancelled.
func (s *ReconcileService) Loop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := s.SyncTaskAssignments(ctx); err != nil {
				slog.Error("reconcile pass failed", "error", err)
			} else if n > 0 {
				slog.Info("reconcile repaired agents", "count", n)
			}
		}
	}
}
