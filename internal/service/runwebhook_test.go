package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/domain/runevent"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/service"
)

func newRunWebhook(store *mockStore, log *mockLog) *service.RunWebhookService {
	events := service.NewEvents(nil, nil)
	tasks := service.NewTaskService(store, log, events, nil)
	return service.NewRunWebhookService(store, log, events, tasks)
}

func TestRunWebhook_StartEndFlow(t *testing.T) {
	store := newMockStore()
	svc := newRunWebhook(store, &mockLog{})
	ctx := context.Background()

	seedAgent(t, store, agent.CreateRequest{Name: service.OperatorAgentName})
	a := seedAgent(t, store, agent.CreateRequest{Name: "Vanta", SessionKey: "run-session-1"})

	res, err := svc.Handle(ctx, runevent.Event{
		RunID:      "run-1",
		Action:     runevent.ActionStart,
		SessionKey: "run-session-1",
		Prompt:     "Review the deploy scripts",
		Source:     "scheduler",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.AgentName != "Vanta" {
		t.Errorf("expected Vanta, got %q", res.AgentName)
	}

	tk, err := store.GetTaskByRunID(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if tk.Status != task.StatusInProgress {
		t.Errorf("run task must start in_progress, got %q", tk.Status)
	}
	got, _ := store.GetAgent(ctx, a.ID)
	if got.Status != agent.StatusActive || got.CurrentTaskID != tk.ID {
		t.Errorf("run agent must be active on the task, got %s %q", got.Status, got.CurrentTaskID)
	}

	// Duplicate start is absorbed.
	res2, err := svc.Handle(ctx, runevent.Event{RunID: "run-1", Action: runevent.ActionStart, SessionKey: "run-session-1"})
	if err != nil {
		t.Fatal(err)
	}
	if res2.TaskID != tk.ID {
		t.Errorf("duplicate start must reuse the task, got %q", res2.TaskID)
	}

	if _, err := svc.Handle(ctx, runevent.Event{
		RunID:      "run-1",
		Action:     runevent.ActionProgress,
		SessionKey: "run-session-1",
		Response:   "halfway there",
	}); err != nil {
		t.Fatal(err)
	}
	msgs, _ := store.ListMessagesByTask(ctx, tk.ID, "asc", 0)
	if len(msgs) != 1 {
		t.Fatalf("expected progress message, got %d", len(msgs))
	}

	if _, err := svc.Handle(ctx, runevent.Event{
		RunID:      "run-1",
		Action:     runevent.ActionEnd,
		SessionKey: "run-session-1",
		Response:   "# Findings\nAll good.",
		DurationMS: 1200,
	}); err != nil {
		t.Fatal(err)
	}
	tk, _ = store.GetTask(ctx, tk.ID)
	if tk.Status != task.StatusReview {
		t.Errorf("ended run must sit in review, got %q", tk.Status)
	}
	docs, _ := store.ListDocumentsByTask(ctx, tk.ID)
	if len(docs) != 1 || docs[0].Type != document.TypeDeliverable {
		t.Errorf("expected deliverable from run response, got %v", docs)
	}
	got, _ = store.GetAgent(ctx, a.ID)
	if got.Status != agent.StatusIdle {
		t.Errorf("run agent must be idle after end, got %s", got.Status)
	}
}

func TestRunWebhook_Error(t *testing.T) {
	store := newMockStore()
	svc := newRunWebhook(store, &mockLog{})
	ctx := context.Background()

	seedAgent(t, store, agent.CreateRequest{Name: "Vanta", SessionKey: "run-session-1"})

	if _, err := svc.Handle(ctx, runevent.Event{
		RunID:      "run-err",
		Action:     runevent.ActionStart,
		SessionKey: "run-session-1",
		Prompt:     "doomed",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Handle(ctx, runevent.Event{
		RunID:      "run-err",
		Action:     runevent.ActionError,
		SessionKey: "run-session-1",
		Error:      "model timeout",
	}); err != nil {
		t.Fatal(err)
	}

	tk, _ := store.GetTaskByRunID(ctx, "run-err")
	if tk.Status != task.StatusBlocked {
		t.Errorf("errored run must be blocked, got %q", tk.Status)
	}
}

func TestRunWebhook_SessionResolution(t *testing.T) {
	store := newMockStore()
	svc := newRunWebhook(store, &mockLog{})
	ctx := context.Background()

	a := seedAgent(t, store, agent.CreateRequest{Name: "Fathom", SessionKey: "agent:fathom"})

	// Token match: the run session embeds the agent name.
	res, err := svc.Handle(ctx, runevent.Event{
		RunID:      "run-2",
		Action:     runevent.ActionStart,
		SessionKey: "openrun-fathom-20260901",
		Prompt:     "dig into the archives",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.AgentName != "Fathom" {
		t.Errorf("expected name-token resolution, got %q", res.AgentName)
	}

	// The resolution is remembered for the next event.
	if id, err := store.GetSessionMapping(ctx, "openrun-fathom-20260901"); err != nil || id != a.ID {
		t.Errorf("expected cached mapping to %s, got %q (%v)", a.ID, id, err)
	}
}

func TestRunWebhook_Validation(t *testing.T) {
	svc := newRunWebhook(newMockStore(), &mockLog{})
	ctx := context.Background()

	if _, err := svc.Handle(ctx, runevent.Event{Action: runevent.ActionStart}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation without run_id, got %v", err)
	}
	if _, err := svc.Handle(ctx, runevent.Event{RunID: "r", Action: "retry"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown action, got %v", err)
	}
	if _, err := svc.Handle(ctx, runevent.Event{RunID: "r", Action: runevent.ActionProgress}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty roster, got %v", err)
	}
}

func TestRunWebhook_TitleTruncation(t *testing.T) {
	store := newMockStore()
	svc := newRunWebhook(store, &mockLog{})
	ctx := context.Background()

	seedAgent(t, store, agent.CreateRequest{Name: service.OperatorAgentName})
	seedAgent(t, store, agent.CreateRequest{Name: "Vanta", SessionKey: "run-session-1"})

	// Multi-byte runes past the cap must not be split mid-sequence.
	prompt := strings.Repeat("é", 100)
	if _, err := svc.Handle(ctx, runevent.Event{
		RunID:      "run-long",
		Action:     runevent.ActionStart,
		SessionKey: "run-session-1",
		Prompt:     prompt,
	}); err != nil {
		t.Fatal(err)
	}

	tk, err := store.GetTaskByRunID(ctx, "run-long")
	if err != nil {
		t.Fatal(err)
	}
	if !utf8.ValidString(tk.Title) {
		t.Errorf("truncated title is not valid UTF-8: %q", tk.Title)
	}
	if want := strings.Repeat("é", 77) + "..."; tk.Title != want {
		t.Errorf("expected %d-rune title ending in ellipsis, got %q", 80, tk.Title)
	}
}

func TestRunStats(t *testing.T) {
	store := newMockStore()
	svc := newRunWebhook(store, &mockLog{})
	ctx := context.Background()

	seedAgent(t, store, agent.CreateRequest{Name: service.OperatorAgentName})
	seedAgent(t, store, agent.CreateRequest{Name: "Vanta", SessionKey: "s1"})

	for i, action := range []runevent.Action{runevent.ActionStart, runevent.ActionStart, runevent.ActionStart} {
		if _, err := svc.Handle(ctx, runevent.Event{
			RunID:      string(rune('a' + i)),
			Action:     action,
			SessionKey: "s1",
			Prompt:     "work",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Handle(ctx, runevent.Event{RunID: "a", Action: runevent.ActionEnd, SessionKey: "s1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Handle(ctx, runevent.Event{RunID: "b", Action: runevent.ActionError, SessionKey: "s1", Error: "boom"}); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.RunStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Completed != 1 || stats.Errors != 1 || stats.Active != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
