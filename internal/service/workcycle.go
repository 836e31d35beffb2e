package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelworks/crewdeck/internal/adapter/otel"
	"github.com/kestrelworks/crewdeck/internal/config"
	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/database"
	"github.com/kestrelworks/crewdeck/internal/port/messagequeue"
)

// CycleResult summarizes one heartbeat work cycle.
type CycleResult struct {
	Agent         string `json:"agent"`
	Status        string `json:"status"`
	TasksClaimed  int    `json:"tasks_claimed"`
	TasksProposed int    `json:"tasks_proposed"`
	MessagesSent  int    `json:"messages_sent"`
}

// taskTemplate is a proposable unit of self-directed work.
type taskTemplate struct {
	title       string
	description string
	priority    task.Priority
	skills      []string
}

// Template catalogs keyed by the skill that selects them. An agent draws from
// every catalog it has the key skill for.
var proposalCatalogs = map[string][]taskTemplate{
	"security": {
		{
			title:       "Review recent dependency updates for advisories",
			description: "Check newly bumped dependencies against published vulnerability advisories.",
			priority:    task.PriorityHigh,
			skills:      []string{"security"},
		},
		{
			title:       "Rotate and audit stored credentials",
			description: "Verify no credentials are older than the rotation policy allows.",
			priority:    task.PriorityMedium,
			skills:      []string{"security"},
		},
		{
			title:       "Threat-model the newest API endpoints",
			description: "Enumerate abuse cases for endpoints added since the last review.",
			priority:    task.PriorityMedium,
			skills:      []string{"security", "research"},
		},
	},
	"documentation": {
		{
			title:       "Update the API changelog",
			description: "Capture endpoint and payload changes since the last changelog entry.",
			priority:    task.PriorityMedium,
			skills:      []string{"writing"},
		},
		{
			title:       "Review onboarding docs for staleness",
			description: "Walk the onboarding guide end to end and fix anything that no longer matches.",
			priority:    task.PriorityLow,
			skills:      []string{"writing", "documentation"},
		},
	},
	"research": {
		{
			title:       "Summarize notable developments in the field",
			description: "Collect and summarize relevant publications and announcements from the past week.",
			priority:    task.PriorityLow,
			skills:      []string{"research"},
		},
		{
			title:       "Compile open questions from recent task threads",
			description: "Scan recent discussions for unresolved questions worth dedicated research.",
			priority:    task.PriorityMedium,
			skills:      []string{"research", "analysis"},
		},
	},
}

// WorkCycleService runs the autonomous agent heartbeat: claim, resume,
// propose, pulse. Cycles for different agents are independent units of work.
type WorkCycleService struct {
	store    database.Store
	log      activitylog.Log
	events   *Events
	metrics  *otel.Metrics
	tasks    *TaskService
	messages *MessageService
	cfg      config.Worker

	now func() time.Time
}

// NewWorkCycleService creates a WorkCycleService.
func NewWorkCycleService(store database.Store, log activitylog.Log, events *Events, metrics *otel.Metrics, tasks *TaskService, messages *MessageService, cfg config.Worker) *WorkCycleService {
	return &WorkCycleService{
		store:    store,
		log:      log,
		events:   events,
		metrics:  metrics,
		tasks:    tasks,
		messages: messages,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Heartbeat executes one work cycle for the named agent:
//
//  1. a paused system records the heartbeat timestamp and nothing else;
//  2. an autonomous agent with a free task slot scans the oldest inbox tasks
//     and claims the first skill match, at most one claim per cycle;
//  3. move the agent's own assigned task to in_progress;
//  4. propose template work only when the scan claimed nothing, gated by the
//     proposal cooldown and deduplicated by exact title;
//  5. record the heartbeat.
//
// Claim and propose are mutually exclusive within one cycle, so a heartbeat
// never opens two work streams at once.
func (s *WorkCycleService) Heartbeat(ctx context.Context, agentName string) (*CycleResult, error) {
	a, err := s.store.GetAgentByName(ctx, agentName)
	if err != nil {
		return nil, err
	}

	paused, err := s.store.SystemPaused(ctx)
	if err != nil {
		return nil, err
	}
	if paused {
		now := s.now().UTC()
		if err := s.store.PatchAgent(ctx, a.ID, agent.StatusPatch{LastHeartbeatAt: &now}); err != nil {
			slog.Error("record heartbeat", "agent", agentName, "error", err)
		}
		return &CycleResult{Agent: agentName, Status: "paused"}, nil
	}

	res := &CycleResult{Agent: agentName, Status: "ok"}

	if a.CanProposeTasks && a.CurrentTaskID == "" {
		claimed, sent := s.scanInbox(ctx, a)
		res.TasksClaimed += claimed
		res.MessagesSent += sent
	}
	if a.CurrentTaskID != "" {
		s.resumeCurrent(ctx, a)
	}
	if a.CanProposeTasks && res.TasksClaimed == 0 {
		res.TasksProposed += s.proposeWork(ctx, a)
	}

	now := s.now().UTC()
	if err := s.store.PatchAgent(ctx, a.ID, agent.StatusPatch{LastHeartbeatAt: &now}); err != nil {
		slog.Error("record heartbeat", "agent", agentName, "error", err)
	}
	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeAgentHeartbeat,
		AgentID: a.ID,
		Message: fmt.Sprintf("%s heartbeat: claimed %d, proposed %d", a.Name, res.TasksClaimed, res.TasksProposed),
	})
	s.events.Publish(ctx, messagequeue.SubjectAgentHeartbeat, "", map[string]any{
		"agent_id": a.ID,
		"at":       now,
	})
	s.metrics.Heartbeat(ctx, a.Name)

	return res, nil
}

// scanInbox claims the first skill-matching inbox task, oldest first. A lost
// claim race moves on to the next candidate; a successful claim stops the
// scan and posts a kickoff message to the thread.
func (s *WorkCycleService) scanInbox(ctx context.Context, a *agent.Agent) (claimed, sent int) {
	inbox, err := s.store.ListTasksByStatus(ctx, task.StatusInbox, database.OrderAsc, s.cfg.InboxScanLimit)
	if err != nil {
		slog.Error("scan inbox", "agent", a.Name, "error", err)
		return 0, 0
	}
	for _, t := range inbox {
		if !a.HasSkills(t.RequiredSkills) {
			continue
		}
		if _, err := s.tasks.Claim(ctx, t.ID, a.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				// Another agent got there first; try the next candidate.
				continue
			}
			slog.Error("claim from cycle", "agent", a.Name, "task_id", t.ID, "error", err)
			continue
		}
		if _, err := s.messages.Create(ctx, message.CreateRequest{
			TaskID:  t.ID,
			From:    actor.Agent(a.ID),
			Content: fmt.Sprintf("Picking this up. Starting on %q now.", t.Title),
		}); err != nil {
			slog.Error("kickoff message", "task_id", t.ID, "error", err)
		} else {
			sent++
		}
		return 1, sent
	}
	return 0, sent
}

// resumeCurrent moves the agent's held task from assigned to in_progress.
func (s *WorkCycleService) resumeCurrent(ctx context.Context, a *agent.Agent) {
	t, err := s.store.GetTask(ctx, a.CurrentTaskID)
	if err != nil {
		slog.Warn("current task missing", "agent", a.Name, "task_id", a.CurrentTaskID, "error", err)
		return
	}
	if t.Status != task.StatusAssigned {
		return
	}
	if _, err := s.tasks.StartTask(ctx, t.ID, a.ID); err != nil {
		slog.Error("resume task", "agent", a.Name, "task_id", t.ID, "error", err)
	}
}

// proposeWork proposes at most one template task per cycle, gated by the
// per-agent cooldown and deduplicated by exact title against the whole board.
func (s *WorkCycleService) proposeWork(ctx context.Context, a *agent.Agent) int {
	now := s.now().UTC()
	if !a.LastProposalAt.IsZero() && now.Sub(a.LastProposalAt) < s.cfg.ProposalCooldown {
		return 0
	}

	// Cooldown restarts on every attempt, proposed or not, so an agent
	// whose whole catalog already exists does not retry each cycle.
	if err := s.store.PatchAgent(ctx, a.ID, agent.StatusPatch{LastProposalAt: &now}); err != nil {
		slog.Error("record proposal attempt", "agent", a.Name, "error", err)
	}

	for _, key := range []string{"security", "documentation", "research"} {
		if !a.HasSkills(catalogGate(key)) {
			continue
		}
		for _, tpl := range proposalCatalogs[key] {
			exists, err := s.store.TaskTitleExists(ctx, tpl.title)
			if err != nil {
				slog.Error("dedup check", "title", tpl.title, "error", err)
				return 0
			}
			if exists {
				continue
			}
			if _, err := s.tasks.Propose(ctx, a.ID, task.CreateRequest{
				Title:          tpl.title,
				Description:    tpl.description,
				Priority:       tpl.priority,
				RequiredSkills: tpl.skills,
				Tags:           []string{"self-directed"},
			}); err != nil {
				slog.Error("propose from cycle", "agent", a.Name, "title", tpl.title, "error", err)
				return 0
			}
			return 1
		}
	}
	return 0
}

// catalogGate maps a catalog key to the skill that unlocks it.
func catalogGate(key string) []string {
	switch key {
	case "documentation":
		return []string{"writing"}
	default:
		return []string{key}
	}
}

// RunAll executes a cycle for every roster agent except the operator,
// swallowing per-agent failures so one bad cycle never starves the rest.
func (s *WorkCycleService) RunAll(ctx context.Context) []CycleResult {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		slog.Error("list agents for cycles", "error", err)
		return nil
	}
	results := make([]CycleResult, 0, len(agents))
	for _, a := range agents {
		if a.Name == OperatorAgentName {
			continue
		}
		res, err := s.Heartbeat(ctx, a.Name)
		if err != nil {
			slog.Error("work cycle failed", "agent", a.Name, "error", err)
			continue
		}
		results = append(results, *res)
	}
	return results
}

// Loop runs cycles for the whole roster on the configured interval until the
// context is cancelled.
func (s *WorkCycleService) Loop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunAll(ctx)
		}
	}
}
