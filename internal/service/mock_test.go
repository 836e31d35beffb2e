package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/domain/notification"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

// --- Mocks ---

var errMockNotFound = fmt.Errorf("mock: %w", domain.ErrNotFound)

// mockStore is an in-memory database.Store mirroring the semantics the
// services rely on: status derivation on task creation, the conditional
// claim write and idempotent delivered marking.
type mockStore struct {
	mu            sync.Mutex
	seq           int
	agents        []agent.Agent
	tasks         []task.Task
	messages      []message.Message
	notifications []notification.Notification
	documents     []document.Document
	subscriptions []message.Subscription
	mappings      map[string]string
	paused        bool
}

func newMockStore() *mockStore {
	return &mockStore{mappings: map[string]string{}}
}

func (m *mockStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// Agents

func (m *mockStore) ListAgents(_ context.Context) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]agent.Agent, len(m.agents))
	copy(out, m.agents)
	return out, nil
}

func (m *mockStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID == id {
			a := m.agents[i]
			return &a, nil
		}
	}
	return nil, errMockNotFound
}

func (m *mockStore) GetAgentByName(_ context.Context, name string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].Name == name {
			a := m.agents[i]
			return &a, nil
		}
	}
	return nil, errMockNotFound
}

func (m *mockStore) GetAgentBySessionKey(_ context.Context, sessionKey string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].SessionKey == sessionKey {
			a := m.agents[i]
			return &a, nil
		}
	}
	return nil, errMockNotFound
}

func (m *mockStore) CreateAgent(_ context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := agent.Agent{
		ID:              m.nextID("agent"),
		Name:            req.Name,
		Role:            req.Role,
		Status:          agent.StatusIdle,
		SessionKey:      req.SessionKey,
		Personality:     req.Personality,
		Specialties:     req.Specialties,
		Skills:          req.Skills,
		CanProposeTasks: req.CanProposeTasks,
		CreatedAt:       time.Now(),
	}
	m.agents = append(m.agents, a)
	return &a, nil
}

func (m *mockStore) PatchAgent(_ context.Context, id string, patch agent.StatusPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID != id {
			continue
		}
		if patch.Status != nil {
			m.agents[i].Status = *patch.Status
		}
		if patch.CurrentTaskID != nil {
			m.agents[i].CurrentTaskID = *patch.CurrentTaskID
		}
		if patch.LastHeartbeatAt != nil {
			m.agents[i].LastHeartbeatAt = *patch.LastHeartbeatAt
		}
		if patch.LastProposalAt != nil {
			m.agents[i].LastProposalAt = *patch.LastProposalAt
		}
		return nil
	}
	return errMockNotFound
}

func (m *mockStore) UpdateAgentSkills(_ context.Context, id string, skills []string, canPropose *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID != id {
			continue
		}
		m.agents[i].Skills = skills
		if canPropose != nil {
			m.agents[i].CanProposeTasks = *canPropose
		}
		return nil
	}
	return errMockNotFound
}

// Tasks

func (m *mockStore) CreateTask(_ context.Context, req task.CreateRequest) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := task.StatusInbox
	if len(req.AssigneeIDs) > 0 {
		status = task.StatusAssigned
	}
	if req.InitialStatus != "" {
		status = req.InitialStatus
	}
	priority := req.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}
	t := task.Task{
		ID:             m.nextID("task"),
		Title:          req.Title,
		Description:    req.Description,
		Status:         status,
		Priority:       priority,
		AssigneeIDs:    req.AssigneeIDs,
		RequiredSkills: req.RequiredSkills,
		Tags:           req.Tags,
		CreatedBy:      req.CreatedBy,
		ProposedBy:     req.ProposedBy,
		RunID:          req.RunID,
		RunSessionKey:  req.RunSessionKey,
		RunSource:      req.RunSource,
		DueDate:        req.DueDate,
		CreatedAt:      time.Now(),
	}
	m.tasks = append(m.tasks, t)
	return &t, nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, errMockNotFound
}

func (m *mockStore) ListTasks(_ context.Context, limit int) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]task.Task, len(m.tasks))
	copy(out, m.tasks)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListTasksByStatus(_ context.Context, status task.Status, order database.Order, limit int) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Task
	for _, t := range m.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	if order == database.OrderDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListTasksByAssignee(_ context.Context, agentID string) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Task
	for _, t := range m.tasks {
		for _, id := range t.AssigneeIDs {
			if id == agentID {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (m *mockStore) ListTasksByProposer(_ context.Context, agentID string, limit int) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Task
	for _, t := range m.tasks {
		if t.ProposedBy == agentID {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) TaskTitleExists(_ context.Context, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) PatchTask(_ context.Context, id string, patch database.TaskPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID != id {
			continue
		}
		if patch.Title != nil {
			m.tasks[i].Title = *patch.Title
		}
		if patch.Description != nil {
			m.tasks[i].Description = *patch.Description
		}
		if patch.Status != nil {
			m.tasks[i].Status = *patch.Status
		}
		if patch.Priority != nil {
			m.tasks[i].Priority = *patch.Priority
		}
		if patch.AssigneeIDs != nil {
			m.tasks[i].AssigneeIDs = *patch.AssigneeIDs
		}
		if patch.Tags != nil {
			m.tasks[i].Tags = *patch.Tags
		}
		if patch.ClaimedAt != nil {
			m.tasks[i].ClaimedAt = *patch.ClaimedAt
		}
		return nil
	}
	return errMockNotFound
}

func (m *mockStore) ClaimTask(_ context.Context, taskID, agentID string, claimedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID != taskID {
			continue
		}
		if m.tasks[i].Status != task.StatusInbox {
			return fmt.Errorf("mock: %w", domain.ErrInvalidState)
		}
		m.tasks[i].Status = task.StatusAssigned
		m.tasks[i].AssigneeIDs = []string{agentID}
		m.tasks[i].ClaimedAt = claimedAt
		return nil
	}
	return errMockNotFound
}

func (m *mockStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return errMockNotFound
}

func (m *mockStore) GetTaskByRunID(_ context.Context, runID string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].RunID == runID {
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, errMockNotFound
}

func (m *mockStore) ListRunTasks(_ context.Context, limit int) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Task
	for _, t := range m.tasks {
		if t.RunID != "" {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Messages

func (m *mockStore) CreateMessage(_ context.Context, req message.CreateRequest) (*message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := message.Message{
		ID:        m.nextID("msg"),
		TaskID:    req.TaskID,
		From:      req.From,
		Content:   req.Content,
		Mentions:  req.Mentions,
		CreatedAt: time.Now(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *mockStore) ListMessagesByTask(_ context.Context, taskID string, _ database.Order, limit int) ([]message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []message.Message
	for _, msg := range m.messages {
		if msg.TaskID == taskID {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListRecentMessages(_ context.Context, limit int) ([]message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]message.Message, len(m.messages))
	copy(out, m.messages)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Subscriptions

func (m *mockStore) GetSubscription(_ context.Context, agentID, taskID string) (*message.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subscriptions {
		if m.subscriptions[i].AgentID == agentID && m.subscriptions[i].TaskID == taskID {
			s := m.subscriptions[i]
			return &s, nil
		}
	}
	return nil, errMockNotFound
}

func (m *mockStore) CreateSubscription(_ context.Context, agentID, taskID string) (*message.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subscriptions {
		if m.subscriptions[i].AgentID == agentID && m.subscriptions[i].TaskID == taskID {
			s := m.subscriptions[i]
			return &s, nil
		}
	}
	s := message.Subscription{
		ID:           m.nextID("sub"),
		AgentID:      agentID,
		TaskID:       taskID,
		SubscribedAt: time.Now(),
	}
	m.subscriptions = append(m.subscriptions, s)
	return &s, nil
}

func (m *mockStore) ListSubscriptionsByTask(_ context.Context, taskID string) ([]message.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []message.Subscription
	for _, s := range m.subscriptions {
		if s.TaskID == taskID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteSubscription(_ context.Context, agentID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subscriptions {
		if m.subscriptions[i].AgentID == agentID && m.subscriptions[i].TaskID == taskID {
			m.subscriptions = append(m.subscriptions[:i], m.subscriptions[i+1:]...)
			return nil
		}
	}
	return errMockNotFound
}

// Notifications

func (m *mockStore) CreateNotification(_ context.Context, req notification.CreateRequest) (*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := notification.Notification{
		ID:          m.nextID("notif"),
		AgentID:     req.AgentID,
		Content:     req.Content,
		FromAgentID: req.FromAgentID,
		TaskID:      req.TaskID,
		MessageID:   req.MessageID,
		CreatedAt:   time.Now(),
	}
	m.notifications = append(m.notifications, n)
	return &n, nil
}

func (m *mockStore) ListUndeliveredForAgent(_ context.Context, agentID string) ([]notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notification.Notification
	for _, n := range m.notifications {
		if n.AgentID == agentID && !n.Delivered {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockStore) ListNotificationsForAgent(_ context.Context, agentID string, limit int) ([]notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notification.Notification
	for _, n := range m.notifications {
		if n.AgentID == agentID {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) MarkNotificationsDelivered(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	marked := 0
	for _, id := range ids {
		for i := range m.notifications {
			if m.notifications[i].ID == id && !m.notifications[i].Delivered {
				m.notifications[i].Delivered = true
				m.notifications[i].DeliveredAt = time.Now()
				marked++
			}
		}
	}
	return marked, nil
}

func (m *mockStore) CountUndelivered(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if !n.Delivered {
			count++
		}
	}
	return count, nil
}

// Documents

func (m *mockStore) CreateDocument(_ context.Context, req document.CreateRequest) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := document.Document{
		ID:        m.nextID("doc"),
		Title:     req.Title,
		Content:   req.Content,
		Type:      req.Type,
		TaskID:    req.TaskID,
		CreatedBy: req.CreatedBy,
		CreatedAt: time.Now(),
	}
	m.documents = append(m.documents, d)
	return &d, nil
}

func (m *mockStore) GetDocument(_ context.Context, id string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.documents {
		if m.documents[i].ID == id {
			d := m.documents[i]
			return &d, nil
		}
	}
	return nil, errMockNotFound
}

func (m *mockStore) ListDocumentsByTask(_ context.Context, taskID string) ([]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []document.Document
	for _, d := range m.documents {
		if d.TaskID == taskID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockStore) ListDocumentsByType(_ context.Context, docType document.Type, limit int) ([]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []document.Document
	for i := len(m.documents) - 1; i >= 0; i-- {
		if m.documents[i].Type == docType {
			out = append(out, m.documents[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListRecentDocuments(_ context.Context, limit int) ([]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]document.Document, len(m.documents))
	copy(out, m.documents)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// System

func (m *mockStore) SystemPaused(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused, nil
}

func (m *mockStore) SetSystemPaused(_ context.Context, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
	return nil
}

func (m *mockStore) GetSessionMapping(_ context.Context, sessionKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.mappings[sessionKey]; ok {
		return id, nil
	}
	return "", errMockNotFound
}

func (m *mockStore) CreateSessionMapping(_ context.Context, sessionKey, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mappings[sessionKey]; !ok {
		m.mappings[sessionKey] = agentID
	}
	return nil
}

// mockLog is an in-memory activitylog.Log.
type mockLog struct {
	mu         sync.Mutex
	seq        int
	activities []activity.Activity
}

func (m *mockLog) Append(_ context.Context, act *activity.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	act.ID = fmt.Sprintf("act-%d", m.seq)
	act.CreatedAt = time.Now()
	m.activities = append(m.activities, *act)
	return nil
}

func (m *mockLog) Recent(_ context.Context, limit int) ([]activity.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []activity.Activity
	for i := len(m.activities) - 1; i >= 0; i-- {
		out = append(out, m.activities[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockLog) ByAgent(_ context.Context, agentID string, limit int) ([]activity.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []activity.Activity
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].AgentID == agentID {
			out = append(out, m.activities[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockLog) ByTask(_ context.Context, taskID string, limit int) ([]activity.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []activity.Activity
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].TaskID == taskID {
			out = append(out, m.activities[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockLog) Since(_ context.Context, cutoff time.Time) ([]activity.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []activity.Activity
	for _, act := range m.activities {
		if !act.CreatedAt.Before(cutoff) {
			out = append(out, act)
		}
	}
	return out, nil
}

func (m *mockLog) countType(t activity.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, act := range m.activities {
		if act.Type == t {
			count++
		}
	}
	return count
}
