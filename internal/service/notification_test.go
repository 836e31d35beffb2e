package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/notification"
	"github.com/kestrelworks/crewdeck/internal/service"
)

func newNotificationService(store *mockStore, log *mockLog) *service.NotificationService {
	return service.NewNotificationService(store, log, service.NewEvents(nil, nil), nil)
}

func TestMarkManyDelivered_Idempotent(t *testing.T) {
	store := newMockStore()
	svc := newNotificationService(store, &mockLog{})
	ctx := context.Background()

	a := seedAgent(t, store, agent.CreateRequest{Name: "Vanta"})
	n1, _ := store.CreateNotification(ctx, notification.CreateRequest{AgentID: a.ID, Content: "one"})
	n2, _ := store.CreateNotification(ctx, notification.CreateRequest{AgentID: a.ID, Content: "two"})

	marked, err := svc.MarkManyDelivered(ctx, []string{n1.ID, n2.ID})
	if err != nil {
		t.Fatal(err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 marked, got %d", marked)
	}

	marked, err = svc.MarkManyDelivered(ctx, []string{n1.ID, n2.ID})
	if err != nil {
		t.Fatal(err)
	}
	if marked != 0 {
		t.Errorf("re-marking must be a no-op, got %d", marked)
	}

	pending, _ := svc.UndeliveredForAgent(ctx, a.ID)
	if len(pending) != 0 {
		t.Errorf("expected empty queue, got %d", len(pending))
	}
}

func TestUndelivered_GroupsByAgent(t *testing.T) {
	store := newMockStore()
	svc := newNotificationService(store, &mockLog{})
	ctx := context.Background()

	a := seedAgent(t, store, agent.CreateRequest{Name: "Vanta"})
	b := seedAgent(t, store, agent.CreateRequest{Name: "Quill"})
	seedAgent(t, store, agent.CreateRequest{Name: "Fathom"})

	if _, err := store.CreateNotification(ctx, notification.CreateRequest{AgentID: a.ID, Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateNotification(ctx, notification.CreateRequest{AgentID: b.ID, Content: "y"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateNotification(ctx, notification.CreateRequest{AgentID: b.ID, Content: "z"}); err != nil {
		t.Fatal(err)
	}

	pending, err := svc.Undelivered(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 agents with pending work, got %d", len(pending))
	}
	if len(pending[a.ID]) != 1 || len(pending[b.ID]) != 2 {
		t.Errorf("unexpected grouping: %v", pending)
	}
}

func TestBroadcast(t *testing.T) {
	store := newMockStore()
	svc := newNotificationService(store, &mockLog{})
	ctx := context.Background()

	op := seedAgent(t, store, agent.CreateRequest{Name: service.OperatorAgentName})
	a := seedAgent(t, store, agent.CreateRequest{Name: "Vanta"})
	b := seedAgent(t, store, agent.CreateRequest{Name: "Quill"})

	sent, err := svc.Broadcast(ctx, "deploy freeze until Monday", "policy", nil)
	if err != nil {
		t.Fatal(err)
	}
	if sent != 2 {
		t.Fatalf("expected broadcast to 2 agents, got %d", sent)
	}

	opPending, _ := store.ListUndeliveredForAgent(ctx, op.ID)
	if len(opPending) != 0 {
		t.Errorf("operator must be excluded from broadcasts, got %d", len(opPending))
	}
	pending, _ := store.ListUndeliveredForAgent(ctx, a.ID)
	if len(pending) != 1 || !strings.HasPrefix(pending[0].Content, "[POLICY]") {
		t.Errorf("expected category-prefixed notification, got %v", pending)
	}

	// Targeted broadcast hits only named agents.
	sent, err = svc.Broadcast(ctx, "just you", "", []string{"quill"})
	if err != nil {
		t.Fatal(err)
	}
	if sent != 1 {
		t.Fatalf("expected targeted broadcast to 1 agent, got %d", sent)
	}
	pending, _ = store.ListUndeliveredForAgent(ctx, b.ID)
	if len(pending) != 2 {
		t.Errorf("expected Quill to hold both broadcasts, got %d", len(pending))
	}

	// The announcement is archived as a note document.
	docs, _ := store.ListRecentDocuments(ctx, 0)
	if len(docs) != 2 {
		t.Errorf("expected 2 archived broadcasts, got %d", len(docs))
	}
}

func TestAgentSessions_OmitsSessionlessAgents(t *testing.T) {
	store := newMockStore()
	svc := newNotificationService(store, &mockLog{})
	ctx := context.Background()

	seedAgent(t, store, agent.CreateRequest{Name: "Vanta", SessionKey: "agent:vanta"})
	seedAgent(t, store, agent.CreateRequest{Name: "Ghost"})

	sessions, err := svc.AgentSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].SessionKey != "agent:vanta" {
		t.Errorf("expected only routable agents, got %v", sessions)
	}
}
