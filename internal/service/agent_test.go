package service_test

import (
	"context"
	"testing"

	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/service"
)

func newAgentService(store *mockStore, log *mockLog) *service.AgentService {
	return service.NewAgentService(store, log, service.NewEvents(nil, nil))
}

func TestBootstrap(t *testing.T) {
	store := newMockStore()
	svc := newAgentService(store, &mockLog{})
	ctx := context.Background()

	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	agents, _ := store.ListAgents(ctx)
	if len(agents) < 3 {
		t.Fatalf("expected a seeded roster, got %d agents", len(agents))
	}
	if _, err := store.GetAgentByName(ctx, service.OperatorAgentName); err != nil {
		t.Errorf("expected operator agent, got %v", err)
	}
	tasks, _ := store.ListTasks(ctx, 0)
	if len(tasks) == 0 {
		t.Error("expected starter tasks on first run")
	}

	// Re-running must not duplicate agents or starter tasks.
	before := len(agents)
	tasksBefore := len(tasks)
	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	agents, _ = store.ListAgents(ctx)
	if len(agents) != before {
		t.Errorf("bootstrap must be idempotent, agents %d -> %d", before, len(agents))
	}
	tasks, _ = store.ListTasks(ctx, 0)
	if len(tasks) != tasksBefore {
		t.Errorf("bootstrap must be idempotent, tasks %d -> %d", tasksBefore, len(tasks))
	}
}

func TestSendDirectMessage(t *testing.T) {
	store := newMockStore()
	svc := newAgentService(store, &mockLog{})
	ctx := context.Background()

	from := seedAgent(t, store, agent.CreateRequest{Name: "Vanta"})
	to := seedAgent(t, store, agent.CreateRequest{Name: "Quill"})

	msg, err := svc.SendDirectMessage(ctx, from.ID, to.ID, "got a minute?")
	if err != nil {
		t.Fatal(err)
	}
	if msg.TaskID != "" {
		t.Errorf("direct message must not belong to a task, got %q", msg.TaskID)
	}

	pending, _ := store.ListUndeliveredForAgent(ctx, to.ID)
	if len(pending) != 1 {
		t.Fatalf("expected recipient notification, got %d", len(pending))
	}
	if pending[0].FromAgentID != from.ID || pending[0].MessageID != msg.ID {
		t.Errorf("notification must reference sender and message, got %+v", pending[0])
	}
}

func TestUpdateStatus(t *testing.T) {
	store := newMockStore()
	svc := newAgentService(store, &mockLog{})
	ctx := context.Background()

	a := seedAgent(t, store, agent.CreateRequest{Name: "Vanta"})

	updated, err := svc.UpdateStatus(ctx, a.ID, agent.StatusBlocked, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != agent.StatusBlocked {
		t.Errorf("expected blocked, got %q", updated.Status)
	}

	if _, err := svc.UpdateStatus(ctx, a.ID, "napping", nil); err == nil {
		t.Error("expected error for unknown status")
	}
}
