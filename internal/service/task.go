package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelworks/crewdeck/internal/adapter/otel"
	"github.com/kestrelworks/crewdeck/internal/adapter/ws"
	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/domain/notification"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/database"
	"github.com/kestrelworks/crewdeck/internal/port/messagequeue"
)

// TaskService is the task lifecycle engine. Every mutation is a sequence of
// single-entity store calls in program order; intermediate states are visible
// to concurrent readers.
type TaskService struct {
	store   database.Store
	log     activitylog.Log
	events  *Events
	metrics *otel.Metrics
}

// NewTaskService creates a TaskService.
func NewTaskService(store database.Store, log activitylog.Log, events *Events, metrics *otel.Metrics) *TaskService {
	return &TaskService{store: store, log: log, events: events, metrics: metrics}
}

// record appends an audit activity, logging instead of failing the operation.
func record(ctx context.Context, log activitylog.Log, events *Events, act activity.Activity) {
	if err := log.Append(ctx, &act); err != nil {
		slog.Error("append activity", "type", act.Type, "error", err)
		return
	}
	events.Publish(ctx, messagequeue.SubjectActivityAppended, ws.EventActivity, ws.ActivityEvent{
		ID:      act.ID,
		Type:    string(act.Type),
		AgentID: act.AgentID,
		TaskID:  act.TaskID,
		Message: act.Message,
	})
}

// Create inserts a new task. Tasks created with assignees start assigned and
// each assignee is notified and subscribed to the thread.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, req.Priority)
	}
	for _, id := range req.AssigneeIDs {
		if _, err := s.store.GetAgent(ctx, id); err != nil {
			return nil, fmt.Errorf("assignee %s: %w", id, err)
		}
	}

	t, err := s.store.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskCreated,
		TaskID:  t.ID,
		Message: fmt.Sprintf("Task created: %s", t.Title),
		Metadata: activity.Metadata{
			NewStatus: string(t.Status),
		},
	})

	for _, agentID := range t.AssigneeIDs {
		if _, err := s.store.CreateNotification(ctx, notificationFor(agentID, fmt.Sprintf("You have been assigned a new task: %s", t.Title), t.ID)); err != nil {
			slog.Error("notify assignee", "task_id", t.ID, "agent_id", agentID, "error", err)
		}
		if _, err := s.store.CreateSubscription(ctx, agentID, t.ID); err != nil {
			slog.Error("subscribe assignee", "task_id", t.ID, "agent_id", agentID, "error", err)
		}
	}

	s.events.Publish(ctx, messagequeue.SubjectTaskCreated, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID: t.ID,
		Status: string(t.Status),
	})
	return t, nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// Details is the full read view of a single task.
type Details struct {
	Task      task.Task           `json:"task"`
	Assignees []agent.Agent       `json:"assignees"`
	Messages  []message.Message   `json:"messages"`
	Documents []document.Document `json:"documents"`
}

// GetDetails returns a task with its assignees, thread and documents.
func (s *TaskService) GetDetails(ctx context.Context, id string) (*Details, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Details{Task: *t, Assignees: []agent.Agent{}}
	for _, agentID := range t.AssigneeIDs {
		a, err := s.store.GetAgent(ctx, agentID)
		if err != nil {
			slog.Warn("task assignee missing", "task_id", id, "agent_id", agentID)
			continue
		}
		d.Assignees = append(d.Assignees, *a)
	}
	if d.Messages, err = s.store.ListMessagesByTask(ctx, id, database.OrderAsc, 0); err != nil {
		return nil, err
	}
	if d.Documents, err = s.store.ListDocumentsByTask(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns tasks, optionally filtered by status or assignee.
func (s *TaskService) List(ctx context.Context, status task.Status, assigneeID string, limit int) ([]task.Task, error) {
	switch {
	case assigneeID != "":
		return s.store.ListTasksByAssignee(ctx, assigneeID)
	case status != "":
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
		}
		return s.store.ListTasksByStatus(ctx, status, database.OrderDesc, limit)
	default:
		return s.store.ListTasks(ctx, limit)
	}
}

// Board returns every task grouped by lifecycle status.
func (s *TaskService) Board(ctx context.Context) (*task.Board, error) {
	all, err := s.store.ListTasks(ctx, 0)
	if err != nil {
		return nil, err
	}
	b := &task.Board{
		Inbox:      []task.Task{},
		Assigned:   []task.Task{},
		InProgress: []task.Task{},
		Review:     []task.Task{},
		Done:       []task.Task{},
		Blocked:    []task.Task{},
		Waiting:    []task.Task{},
	}
	for _, t := range all {
		switch t.Status {
		case task.StatusInbox:
			b.Inbox = append(b.Inbox, t)
		case task.StatusAssigned:
			b.Assigned = append(b.Assigned, t)
		case task.StatusInProgress:
			b.InProgress = append(b.InProgress, t)
		case task.StatusReview:
			b.Review = append(b.Review, t)
		case task.StatusDone:
			b.Done = append(b.Done, t)
		case task.StatusBlocked:
			b.Blocked = append(b.Blocked, t)
		case task.StatusWaiting:
			b.Waiting = append(b.Waiting, t)
		}
	}
	return b, nil
}

// Inbox returns the oldest unclaimed tasks, up to limit.
func (s *TaskService) Inbox(ctx context.Context, limit int) ([]task.Task, error) {
	return s.store.ListTasksByStatus(ctx, task.StatusInbox, database.OrderAsc, limit)
}

// ProposedBy returns tasks an agent proposed, newest first.
func (s *TaskService) ProposedBy(ctx context.Context, agentID string, limit int) ([]task.Task, error) {
	return s.store.ListTasksByProposer(ctx, agentID, limit)
}

// Update applies a partial patch. Status changes append an audit record and
// notify thread subscribers; transitioning to done also records completion.
func (s *TaskService) Update(ctx context.Context, id string, req task.UpdateRequest, by actor.Actor) (*task.Task, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *req.Status)
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, *req.Priority)
	}

	old, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := database.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeIDs: req.AssigneeIDs,
		Tags:        req.Tags,
	}
	if err := s.store.PatchTask(ctx, id, patch); err != nil {
		return nil, err
	}

	fanout := fmt.Sprintf("Task %q updated", old.Title)
	statusChanged := req.Status != nil && *req.Status != old.Status
	if statusChanged {
		fanout = fmt.Sprintf("Task %q is now %s", old.Title, *req.Status)
		record(ctx, s.log, s.events, activity.Activity{
			Type:    activity.TypeTaskUpdated,
			TaskID:  id,
			AgentID: actorAgentID(by),
			Message: fmt.Sprintf("Task %q moved from %s to %s", old.Title, old.Status, *req.Status),
			Metadata: activity.Metadata{
				OldStatus: string(old.Status),
				NewStatus: string(*req.Status),
			},
		})
		if *req.Status == task.StatusDone {
			record(ctx, s.log, s.events, activity.Activity{
				Type:    activity.TypeTaskCompleted,
				TaskID:  id,
				AgentID: actorAgentID(by),
				Message: fmt.Sprintf("Task completed: %s", old.Title),
			})
		}
		s.events.Publish(ctx, messagequeue.SubjectTaskStatus, ws.EventTaskStatus, ws.TaskStatusEvent{
			TaskID:    id,
			OldStatus: string(old.Status),
			Status:    string(*req.Status),
			AgentID:   actorAgentID(by),
		})
	}
	// Subscribers hear about every update, not only status moves.
	s.notifySubscribers(ctx, id, by, fanout)

	return s.store.GetTask(ctx, id)
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, id)
}

// Claim moves an inbox task to the calling agent. The store write is
// conditional on the task still being in the inbox, so of two racing
// claimants exactly one succeeds and the other observes ErrInvalidState.
func (s *TaskService) Claim(ctx context.Context, taskID, agentID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusInbox {
		return nil, fmt.Errorf("%w: task is %s, only inbox tasks can be claimed", domain.ErrInvalidState, t.Status)
	}
	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !a.HasSkills(t.RequiredSkills) {
		return nil, fmt.Errorf("%w: agent %s lacks required skills %v", domain.ErrSkillMismatch, a.Name, t.RequiredSkills)
	}

	now := time.Now().UTC()
	if err := s.store.ClaimTask(ctx, taskID, agentID, now); err != nil {
		return nil, err
	}

	status := agent.StatusActive
	if err := s.store.PatchAgent(ctx, agentID, agent.StatusPatch{
		Status:        &status,
		CurrentTaskID: &taskID,
	}); err != nil {
		slog.Error("set claimant active", "task_id", taskID, "agent_id", agentID, "error", err)
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskClaimed,
		TaskID:  taskID,
		AgentID: agentID,
		Message: fmt.Sprintf("%s claimed task: %s", a.Name, t.Title),
		Metadata: activity.Metadata{
			OldStatus: string(task.StatusInbox),
			NewStatus: string(task.StatusAssigned),
		},
	})
	s.events.Publish(ctx, messagequeue.SubjectTaskClaimed, ws.EventTaskClaimed, ws.TaskStatusEvent{
		TaskID:    taskID,
		OldStatus: string(task.StatusInbox),
		Status:    string(task.StatusAssigned),
		AgentID:   agentID,
	})
	s.metrics.TaskClaimed(ctx, a.Name)

	return s.store.GetTask(ctx, taskID)
}

// Propose lets a permitted agent add a task to the inbox.
func (s *TaskService) Propose(ctx context.Context, agentID string, req task.CreateRequest) (*task.Task, error) {
	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !a.CanProposeTasks {
		return nil, fmt.Errorf("%w: agent %s cannot propose tasks", domain.ErrUnauthorized, a.Name)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	req.AssigneeIDs = nil
	req.CreatedBy = actor.Agent(agentID)
	req.ProposedBy = agentID
	req.InitialStatus = task.StatusInbox

	t, err := s.store.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskCreated,
		TaskID:  t.ID,
		AgentID: agentID,
		Message: fmt.Sprintf("%s proposed task: %s", a.Name, t.Title),
	})
	s.events.Publish(ctx, messagequeue.SubjectTaskCreated, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID: t.ID,
		Status: string(t.Status),
	})
	s.metrics.TaskProposed(ctx, a.Name)

	return t, nil
}

// StartTask moves an assigned task to in_progress for the agent working it.
func (s *TaskService) StartTask(ctx context.Context, taskID, agentID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusAssigned {
		return nil, fmt.Errorf("%w: task is %s, expected assigned", domain.ErrInvalidState, t.Status)
	}

	status := task.StatusInProgress
	if err := s.store.PatchTask(ctx, taskID, database.TaskPatch{Status: &status}); err != nil {
		return nil, err
	}
	active := agent.StatusActive
	if err := s.store.PatchAgent(ctx, agentID, agent.StatusPatch{
		Status:        &active,
		CurrentTaskID: &taskID,
	}); err != nil {
		slog.Error("set worker active", "task_id", taskID, "agent_id", agentID, "error", err)
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskUpdated,
		TaskID:  taskID,
		AgentID: agentID,
		Message: fmt.Sprintf("Work started on: %s", t.Title),
		Metadata: activity.Metadata{
			OldStatus: string(task.StatusAssigned),
			NewStatus: string(task.StatusInProgress),
		},
	})
	s.events.Publish(ctx, messagequeue.SubjectTaskStatus, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID:    taskID,
		OldStatus: string(task.StatusAssigned),
		Status:    string(task.StatusInProgress),
		AgentID:   agentID,
	})

	return s.store.GetTask(ctx, taskID)
}

// CompleteTask moves the agent's task to review, archives the deliverable as
// a document when one is supplied, frees the agent and notifies the operator.
func (s *TaskService) CompleteTask(ctx context.Context, taskID, agentID, summary, deliverable string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusAssigned && t.Status != task.StatusInProgress {
		return nil, fmt.Errorf("%w: task is %s, expected assigned or in_progress", domain.ErrInvalidState, t.Status)
	}
	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	status := task.StatusReview
	if err := s.store.PatchTask(ctx, taskID, database.TaskPatch{Status: &status}); err != nil {
		return nil, err
	}

	if deliverable != "" {
		if _, err := s.store.CreateDocument(ctx, document.CreateRequest{
			Title:     fmt.Sprintf("Deliverable: %s", t.Title),
			Content:   deliverable,
			Type:      document.TypeDeliverable,
			TaskID:    taskID,
			CreatedBy: actor.Agent(agentID),
		}); err != nil {
			slog.Error("archive deliverable", "task_id", taskID, "error", err)
		}
	}

	idle := agent.StatusIdle
	empty := ""
	if err := s.store.PatchAgent(ctx, agentID, agent.StatusPatch{
		Status:        &idle,
		CurrentTaskID: &empty,
	}); err != nil {
		slog.Error("free agent after completion", "agent_id", agentID, "error", err)
	}

	note := fmt.Sprintf("%s completed task: %s", a.Name, t.Title)
	if summary != "" {
		note = fmt.Sprintf("%s. %s", note, summary)
	}
	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskCompleted,
		TaskID:  taskID,
		AgentID: agentID,
		Message: note,
		Metadata: activity.Metadata{
			OldStatus: string(t.Status),
			NewStatus: string(task.StatusReview),
		},
	})
	s.notifyOperator(ctx, agentID, taskID, fmt.Sprintf("%s finished %q and moved it to review", a.Name, t.Title))
	s.events.Publish(ctx, messagequeue.SubjectTaskStatus, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID:    taskID,
		OldStatus: string(t.Status),
		Status:    string(task.StatusReview),
		AgentID:   agentID,
	})

	return s.store.GetTask(ctx, taskID)
}

// RequestReview posts a mention-bearing review request on the task thread,
// notifies the chosen reviewer and moves the task to review.
func (s *TaskService) RequestReview(ctx context.Context, taskID, fromAgentID, toAgentID, note string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	from, err := s.store.GetAgent(ctx, fromAgentID)
	if err != nil {
		return nil, err
	}
	to, err := s.store.GetAgent(ctx, toAgentID)
	if err != nil {
		return nil, fmt.Errorf("reviewer %s: %w", toAgentID, err)
	}

	if note == "" {
		note = fmt.Sprintf("Please review %q.", t.Title)
	}
	msg, err := s.store.CreateMessage(ctx, message.CreateRequest{
		TaskID:   taskID,
		From:     actor.Agent(fromAgentID),
		Content:  fmt.Sprintf("@%s %s", to.Name, note),
		Mentions: []string{toAgentID},
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.store.CreateNotification(ctx, notification.CreateRequest{
		AgentID:     toAgentID,
		Content:     fmt.Sprintf("Review requested by %s: %s", from.Name, t.Title),
		FromAgentID: fromAgentID,
		TaskID:      taskID,
		MessageID:   msg.ID,
	}); err != nil {
		slog.Error("notify reviewer", "task_id", taskID, "agent_id", toAgentID, "error", err)
	}

	if t.Status != task.StatusReview {
		status := task.StatusReview
		if err := s.store.PatchTask(ctx, taskID, database.TaskPatch{Status: &status}); err != nil {
			return nil, err
		}
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskUpdated,
		TaskID:  taskID,
		AgentID: fromAgentID,
		Message: fmt.Sprintf("%s requested review from %s", from.Name, to.Name),
		Metadata: activity.Metadata{
			OldStatus: string(t.Status),
			NewStatus: string(task.StatusReview),
		},
	})
	s.events.Publish(ctx, messagequeue.SubjectTaskStatus, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID:    taskID,
		OldStatus: string(t.Status),
		Status:    string(task.StatusReview),
		AgentID:   fromAgentID,
	})

	return s.store.GetTask(ctx, taskID)
}

// Block marks a task blocked, recording the reason in the audit trail.
func (s *TaskService) Block(ctx context.Context, taskID, reason string, by actor.Actor) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status == task.StatusBlocked {
		return t, nil
	}

	status := task.StatusBlocked
	if err := s.store.PatchTask(ctx, taskID, database.TaskPatch{Status: &status}); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Task blocked: %s", t.Title)
	if reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, reason)
	}
	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskUpdated,
		TaskID:  taskID,
		AgentID: actorAgentID(by),
		Message: msg,
		Metadata: activity.Metadata{
			OldStatus: string(t.Status),
			NewStatus: string(task.StatusBlocked),
			Content:   reason,
		},
	})
	s.events.Publish(ctx, messagequeue.SubjectTaskStatus, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID:    taskID,
		OldStatus: string(t.Status),
		Status:    string(task.StatusBlocked),
	})

	return s.store.GetTask(ctx, taskID)
}

// Unblock moves a blocked task to the caller-supplied resume status,
// defaulting to assigned.
func (s *TaskService) Unblock(ctx context.Context, taskID string, resume task.Status, by actor.Actor) (*task.Task, error) {
	if resume == "" {
		resume = task.StatusAssigned
	}
	switch resume {
	case task.StatusInbox, task.StatusAssigned, task.StatusInProgress:
	default:
		return nil, fmt.Errorf("%w: cannot unblock into %q", domain.ErrValidation, resume)
	}

	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusBlocked {
		return nil, fmt.Errorf("%w: task is %s, expected blocked", domain.ErrInvalidState, t.Status)
	}

	if err := s.store.PatchTask(ctx, taskID, database.TaskPatch{Status: &resume}); err != nil {
		return nil, err
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeTaskUpdated,
		TaskID:  taskID,
		AgentID: actorAgentID(by),
		Message: fmt.Sprintf("Task unblocked: %s", t.Title),
		Metadata: activity.Metadata{
			OldStatus: string(task.StatusBlocked),
			NewStatus: string(resume),
		},
	})
	s.events.Publish(ctx, messagequeue.SubjectTaskStatus, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID:    taskID,
		OldStatus: string(task.StatusBlocked),
		Status:    string(resume),
	})

	return s.store.GetTask(ctx, taskID)
}

// notifySubscribers queues a notification for every thread subscriber except
// the acting agent.
func (s *TaskService) notifySubscribers(ctx context.Context, taskID string, by actor.Actor, content string) {
	subs, err := s.store.ListSubscriptionsByTask(ctx, taskID)
	if err != nil {
		slog.Error("list subscribers", "task_id", taskID, "error", err)
		return
	}
	byID := actorAgentID(by)
	for _, sub := range subs {
		if sub.AgentID == byID {
			continue
		}
		req := notificationFor(sub.AgentID, content, taskID)
		req.FromAgentID = byID
		if _, err := s.store.CreateNotification(ctx, req); err != nil {
			slog.Error("notify subscriber", "task_id", taskID, "agent_id", sub.AgentID, "error", err)
		}
	}
}

func (s *TaskService) notifyOperator(ctx context.Context, fromAgentID, taskID, content string) {
	s.notifyOperatorWithMessage(ctx, fromAgentID, taskID, "", content)
}

func (s *TaskService) notifyOperatorWithMessage(ctx context.Context, fromAgentID, taskID, messageID, content string) {
	op, err := s.store.GetAgentByName(ctx, OperatorAgentName)
	if err != nil {
		slog.Warn("operator agent not found, skipping notification", "error", err)
		return
	}
	if _, err := s.store.CreateNotification(ctx, notification.CreateRequest{
		AgentID:     op.ID,
		Content:     content,
		FromAgentID: fromAgentID,
		TaskID:      taskID,
		MessageID:   messageID,
	}); err != nil {
		slog.Error("notify operator", "task_id", taskID, "error", err)
	}
}

func actorAgentID(a actor.Actor) string {
	id, _ := a.AgentID()
	return id
}
