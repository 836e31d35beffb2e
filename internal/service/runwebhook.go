package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/domain/runevent"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

const runTaskTag = "agent-run"

// RunWebhookService ingests run lifecycle events from the external
// automation tool and mirrors them onto the board.
type RunWebhookService struct {
	store  database.Store
	log    activitylog.Log
	events *Events
	tasks  *TaskService
}

// NewRunWebhookService creates a RunWebhookService.
func NewRunWebhookService(store database.Store, log activitylog.Log, events *Events, tasks *TaskService) *RunWebhookService {
	return &RunWebhookService{store: store, log: log, events: events, tasks: tasks}
}

// Handle processes one webhook event. Events for unknown runs are rejected
// with ErrNotFound except start, which creates the run task.
func (s *RunWebhookService) Handle(ctx context.Context, ev runevent.Event) (*runevent.Result, error) {
	if ev.RunID == "" {
		return nil, fmt.Errorf("%w: run_id is required", domain.ErrValidation)
	}
	if !ev.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrValidation, ev.Action)
	}

	a, err := s.resolveAgent(ctx, ev.SessionKey)
	if err != nil {
		return nil, err
	}

	switch ev.Action {
	case runevent.ActionStart:
		return s.handleStart(ctx, ev, a)
	case runevent.ActionProgress:
		return s.handleProgress(ctx, ev, a)
	case runevent.ActionEnd:
		return s.handleEnd(ctx, ev, a)
	default:
		return s.handleError(ctx, ev, a)
	}
}

// resolveAgent maps a run session key to a roster agent: the mapping table
// first, then an exact session key match, then a name-token substring match.
// The coordinator, then the operator, are the fallbacks of last resort. Any
// resolution is cached in the mapping table for next time.
func (s *RunWebhookService) resolveAgent(ctx context.Context, sessionKey string) (*agent.Agent, error) {
	if sessionKey != "" {
		if agentID, err := s.store.GetSessionMapping(ctx, sessionKey); err == nil {
			return s.store.GetAgent(ctx, agentID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		if a, err := s.store.GetAgentBySessionKey(ctx, sessionKey); err == nil {
			s.remember(ctx, sessionKey, a.ID)
			return a, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(sessionKey)
	for i := range agents {
		name := strings.ToLower(agents[i].Name)
		if name != "" && strings.Contains(lowered, name) {
			s.remember(ctx, sessionKey, agents[i].ID)
			return &agents[i], nil
		}
	}
	for i := range agents {
		if agents[i].Role == "Coordinator" {
			s.remember(ctx, sessionKey, agents[i].ID)
			return &agents[i], nil
		}
	}
	for i := range agents {
		if agents[i].Name == OperatorAgentName {
			return &agents[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no agent for session %q", domain.ErrNotFound, sessionKey)
}

func (s *RunWebhookService) remember(ctx context.Context, sessionKey, agentID string) {
	if sessionKey == "" {
		return
	}
	if err := s.store.CreateSessionMapping(ctx, sessionKey, agentID); err != nil {
		slog.Warn("cache session mapping", "session", sessionKey, "error", err)
	}
}

func (s *RunWebhookService) handleStart(ctx context.Context, ev runevent.Event, a *agent.Agent) (*runevent.Result, error) {
	if existing, err := s.store.GetTaskByRunID(ctx, ev.RunID); err == nil {
		// Duplicate start delivery; the run task already exists.
		return &runevent.Result{TaskID: existing.ID, AgentName: a.Name}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	title := runTaskTitle(ev.Prompt)
	t, err := s.store.CreateTask(ctx, task.CreateRequest{
		Title:         title,
		Description:   ev.Prompt,
		Priority:      task.PriorityMedium,
		AssigneeIDs:   []string{a.ID},
		Tags:          runTags(ev.Source),
		CreatedBy:     actor.Agent(a.ID),
		RunID:         ev.RunID,
		RunSessionKey: ev.SessionKey,
		RunSource:     ev.Source,
		InitialStatus: task.StatusInProgress,
	})
	if err != nil {
		return nil, err
	}

	active := agent.StatusActive
	if err := s.store.PatchAgent(ctx, a.ID, agent.StatusPatch{
		Status:        &active,
		CurrentTaskID: &t.ID,
	}); err != nil {
		slog.Error("set run agent active", "agent", a.Name, "error", err)
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskCreated,
		TaskID:  t.ID,
		AgentID: a.ID,
		Message: fmt.Sprintf("Run started for %s: %s", a.Name, title),
	})
	return &runevent.Result{TaskID: t.ID, AgentName: a.Name}, nil
}

func (s *RunWebhookService) handleProgress(ctx context.Context, ev runevent.Event, a *agent.Agent) (*runevent.Result, error) {
	t, err := s.store.GetTaskByRunID(ctx, ev.RunID)
	if err != nil {
		return nil, fmt.Errorf("progress for run %s: %w", ev.RunID, err)
	}

	content := ev.Response
	if content == "" {
		content = "Run in progress."
	}
	if _, err := s.store.CreateMessage(ctx, message.CreateRequest{
		TaskID:  t.ID,
		From:    actor.Agent(a.ID),
		Content: content,
	}); err != nil {
		return nil, err
	}
	return &runevent.Result{TaskID: t.ID, AgentName: a.Name}, nil
}

func (s *RunWebhookService) handleEnd(ctx context.Context, ev runevent.Event, a *agent.Agent) (*runevent.Result, error) {
	t, err := s.store.GetTaskByRunID(ctx, ev.RunID)
	if err != nil {
		return nil, fmt.Errorf("end for run %s: %w", ev.RunID, err)
	}

	summary := fmt.Sprintf("Run finished in %dms", ev.DurationMS)
	if len(ev.ToolsUsed) > 0 {
		summary = fmt.Sprintf("%s using %s", summary, strings.Join(ev.ToolsUsed, ", "))
	}
	if _, err := s.tasks.CompleteTask(ctx, t.ID, a.ID, summary, ev.Response); err != nil {
		return nil, err
	}
	return &runevent.Result{TaskID: t.ID, AgentName: a.Name}, nil
}

func (s *RunWebhookService) handleError(ctx context.Context, ev runevent.Event, a *agent.Agent) (*runevent.Result, error) {
	t, err := s.store.GetTaskByRunID(ctx, ev.RunID)
	if err != nil {
		return nil, fmt.Errorf("error for run %s: %w", ev.RunID, err)
	}

	if _, err := s.store.CreateMessage(ctx, message.CreateRequest{
		TaskID:  t.ID,
		From:    actor.Agent(a.ID),
		Content: fmt.Sprintf("Run failed: %s", ev.Error),
	}); err != nil {
		slog.Error("run error message", "task_id", t.ID, "error", err)
	}
	if _, err := s.tasks.Block(ctx, t.ID, ev.Error, actor.Agent(a.ID)); err != nil {
		return nil, err
	}

	idle := agent.StatusIdle
	empty := ""
	if err := s.store.PatchAgent(ctx, a.ID, agent.StatusPatch{
		Status:        &idle,
		CurrentTaskID: &empty,
	}); err != nil {
		slog.Error("free agent after run error", "agent", a.Name, "error", err)
	}
	return &runevent.Result{TaskID: t.ID, AgentName: a.Name}, nil
}

// RunTasks returns tasks created by run ingestion, newest first.
func (s *RunWebhookService) RunTasks(ctx context.Context, limit int) ([]task.Task, error) {
	return s.store.ListRunTasks(ctx, limit)
}

// RunStats summarizes the ingested run tasks.
func (s *RunWebhookService) RunStats(ctx context.Context) (*runevent.Stats, error) {
	tasks, err := s.store.ListRunTasks(ctx, 0)
	if err != nil {
		return nil, err
	}
	stats := &runevent.Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case task.StatusAssigned, task.StatusInProgress:
			stats.Active++
		case task.StatusReview, task.StatusDone:
			stats.Completed++
		case task.StatusBlocked:
			stats.Errors++
		}
	}
	return stats, nil
}

func runTaskTitle(prompt string) string {
	title := strings.TrimSpace(prompt)
	if title == "" {
		return "Agent run"
	}
	if idx := strings.IndexByte(title, '\n'); idx > 0 {
		title = title[:idx]
	}
	if r := []rune(title); len(r) > 80 {
		title = string(r[:77]) + "..."
	}
	return title
}

func runTags(source string) []string {
	tags := []string{runTaskTag}
	if source != "" {
		tags = append(tags, source)
	}
	return tags
}
