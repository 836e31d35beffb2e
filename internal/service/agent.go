package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kestrelworks/crewdeck/internal/adapter/ws"
	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/domain/notification"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/database"
	"github.com/kestrelworks/crewdeck/internal/port/messagequeue"
)

// OperatorAgentName is the roster entry representing the human operator.
// Operator notifications are queued against this agent so the delivery
// daemon routes them like any other.
const OperatorAgentName = "Operator"

// AgentService manages the agent roster.
type AgentService struct {
	store  database.Store
	log    activitylog.Log
	events *Events
}

// NewAgentService creates an AgentService.
func NewAgentService(store database.Store, log activitylog.Log, events *Events) *AgentService {
	return &AgentService{store: store, log: log, events: events}
}

// List returns every roster agent.
func (s *AgentService) List(ctx context.Context) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx)
}

// Get returns an agent by id.
func (s *AgentService) Get(ctx context.Context, id string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// GetByName returns an agent by its unique name.
func (s *AgentService) GetByName(ctx context.Context, name string) (*agent.Agent, error) {
	return s.store.GetAgentByName(ctx, name)
}

// GetBySessionKey returns the agent bound to a live session.
func (s *AgentService) GetBySessionKey(ctx context.Context, sessionKey string) (*agent.Agent, error) {
	return s.store.GetAgentBySessionKey(ctx, sessionKey)
}

// Create registers a new agent.
func (s *AgentService) Create(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	return s.store.CreateAgent(ctx, req)
}

// UpdateStatus sets an agent's working state and optional current task slot.
func (s *AgentService) UpdateStatus(ctx context.Context, id string, status agent.Status, currentTaskID *string) (*agent.Agent, error) {
	switch status {
	case agent.StatusIdle, agent.StatusActive, agent.StatusBlocked:
	default:
		return nil, fmt.Errorf("%w: unknown agent status %q", domain.ErrValidation, status)
	}
	a, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.PatchAgent(ctx, id, agent.StatusPatch{
		Status:        &status,
		CurrentTaskID: currentTaskID,
	}); err != nil {
		return nil, err
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeAgentStatusChanged,
		AgentID: id,
		Message: fmt.Sprintf("%s is now %s", a.Name, status),
		Metadata: activity.Metadata{
			OldStatus: string(a.Status),
			NewStatus: string(status),
		},
	})
	s.events.Publish(ctx, messagequeue.SubjectAgentStatus, ws.EventAgentStatus, ws.AgentStatusEvent{
		AgentID: id,
		Status:  string(status),
	})

	return s.store.GetAgent(ctx, id)
}

// UpdateSkills replaces an agent's skill set and optionally flips the
// proposal permission.
func (s *AgentService) UpdateSkills(ctx context.Context, id string, skills []string, canProposeTasks *bool) (*agent.Agent, error) {
	if err := s.store.UpdateAgentSkills(ctx, id, skills, canProposeTasks); err != nil {
		return nil, err
	}
	return s.store.GetAgent(ctx, id)
}

// SendDirectMessage posts an agent-to-agent chat message outside any task
// thread and queues a mention notification for the recipient.
func (s *AgentService) SendDirectMessage(ctx context.Context, fromAgentID, toAgentID, content string) (*message.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	from, err := s.store.GetAgent(ctx, fromAgentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAgent(ctx, toAgentID); err != nil {
		return nil, err
	}

	msg, err := s.store.CreateMessage(ctx, message.CreateRequest{
		From:     actor.Agent(fromAgentID),
		Content:  content,
		Mentions: []string{toAgentID},
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.store.CreateNotification(ctx, notification.CreateRequest{
		AgentID:     toAgentID,
		Content:     fmt.Sprintf("Message from %s: %s", from.Name, content),
		FromAgentID: fromAgentID,
		MessageID:   msg.ID,
	}); err != nil {
		slog.Error("notify direct message", "to", toAgentID, "error", err)
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeMessageSent,
		AgentID: fromAgentID,
		Message: fmt.Sprintf("%s sent a direct message", from.Name),
	})

	return msg, nil
}

// seedAgent describes one bootstrap roster entry.
type seedAgent struct {
	req   agent.CreateRequest
	tasks []task.CreateRequest
}

// Bootstrap installs the default roster and a handful of starter tasks.
// Idempotent: agents that already exist are left alone, and starter tasks
// are only created on a roster that was empty.
func (s *AgentService) Bootstrap(ctx context.Context) error {
	existing, err := s.store.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap roster check: %w", err)
	}
	firstRun := len(existing) == 0

	seeds := []seedAgent{
		{
			req: agent.CreateRequest{
				Name:       OperatorAgentName,
				Role:       "Human operator",
				SessionKey: "operator-console",
			},
		},
		{
			req: agent.CreateRequest{
				Name:            "Vanta",
				Role:            "Security analyst",
				SessionKey:      "agent:vanta",
				Personality:     "Paranoid and thorough. Assumes everything is broken until proven otherwise.",
				Specialties:     []string{"threat modeling", "dependency audits"},
				Skills:          []string{"security", "code-review", "research"},
				CanProposeTasks: true,
			},
			tasks: []task.CreateRequest{
				{
					Title:          "Audit API authentication surface",
					Description:    "Walk every externally reachable endpoint and document its auth posture.",
					Priority:       task.PriorityHigh,
					RequiredSkills: []string{"security"},
					Tags:           []string{"security"},
				},
			},
		},
		{
			req: agent.CreateRequest{
				Name:            "Quill",
				Role:            "Technical writer",
				SessionKey:      "agent:quill",
				Personality:     "Precise and a little pedantic. Believes undocumented behavior does not exist.",
				Specialties:     []string{"api reference", "onboarding guides"},
				Skills:          []string{"writing", "documentation", "editing"},
				CanProposeTasks: true,
			},
			tasks: []task.CreateRequest{
				{
					Title:          "Draft onboarding guide for new agents",
					Description:    "A short guide covering the work cycle, claiming rules and review flow.",
					Priority:       task.PriorityMedium,
					RequiredSkills: []string{"writing"},
					Tags:           []string{"docs"},
				},
			},
		},
		{
			req: agent.CreateRequest{
				Name:            "Fathom",
				Role:            "Research analyst",
				SessionKey:      "agent:fathom",
				Personality:     "Curious generalist. Starts every answer with a source.",
				Specialties:     []string{"competitive analysis", "literature review"},
				Skills:          []string{"research", "analysis", "writing"},
				CanProposeTasks: true,
			},
		},
		{
			req: agent.CreateRequest{
				Name:        "Relay",
				Role:        "Coordinator",
				SessionKey:  "agent:relay",
				Personality: "Keeps the board moving. Allergic to stale tasks.",
				Skills:      []string{"coordination", "analysis"},
			},
		},
	}

	for _, seed := range seeds {
		if _, err := s.store.GetAgentByName(ctx, seed.req.Name); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("bootstrap lookup %s: %w", seed.req.Name, err)
		}
		if _, err := s.store.CreateAgent(ctx, seed.req); err != nil {
			return fmt.Errorf("bootstrap create %s: %w", seed.req.Name, err)
		}
		slog.Info("bootstrapped agent", "name", seed.req.Name)

		if !firstRun {
			continue
		}
		for _, tr := range seed.tasks {
			tr.CreatedBy = actor.Operator()
			if _, err := s.store.CreateTask(ctx, tr); err != nil {
				slog.Error("bootstrap starter task", "title", tr.Title, "error", err)
			}
		}
	}
	return nil
}
