package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/service"
)

func TestStandup(t *testing.T) {
	store := newMockStore()
	log := &mockLog{}
	svc := service.NewStandupService(store, log, service.NewEvents(nil, nil))
	ctx := context.Background()

	seedAgent(t, store, agent.CreateRequest{Name: service.OperatorAgentName})
	a := seedAgent(t, store, agent.CreateRequest{Name: "Vanta", Skills: []string{"security"}})

	tasks := service.NewTaskService(store, log, service.NewEvents(nil, nil), nil)
	tk := seedTask(t, store, task.CreateRequest{Title: "Audit endpoints", RequiredSkills: []string{"security"}})
	if _, err := tasks.Claim(ctx, tk.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := tasks.StartTask(ctx, tk.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := tasks.CompleteTask(ctx, tk.ID, a.ID, "clean", ""); err != nil {
		t.Fatal(err)
	}
	seedTask(t, store, task.CreateRequest{Title: "Stuck thing", InitialStatus: task.StatusBlocked})

	doc, err := svc.Generate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Type != document.TypeStandup {
		t.Fatalf("expected standup document, got %q", doc.Type)
	}
	for _, want := range []string{"Audit endpoints", "Stuck thing", "Vanta"} {
		if !strings.Contains(doc.Content, want) {
			t.Errorf("standup missing %q:\n%s", want, doc.Content)
		}
	}
	if log.countType(activity.TypeStandupGenerated) != 1 {
		t.Error("expected standup_generated activity")
	}

	latest, err := svc.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != doc.ID {
		t.Errorf("expected latest standup %s, got %s", doc.ID, latest.ID)
	}
}

func TestStandup_LatestWithoutAny(t *testing.T) {
	svc := service.NewStandupService(newMockStore(), &mockLog{}, service.NewEvents(nil, nil))
	if _, err := svc.Latest(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
