package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

// StandupService generates the daily standup report document.
type StandupService struct {
	store  database.Store
	log    activitylog.Log
	events *Events

	now func() time.Time
}

// NewStandupService creates a StandupService.
func NewStandupService(store database.Store, log activitylog.Log, events *Events) *StandupService {
	return &StandupService{store: store, log: log, events: events, now: time.Now}
}

// Generate builds a markdown standup covering the last 24 hours and saves it
// as a standup document.
func (s *StandupService) Generate(ctx context.Context) (*document.Document, error) {
	now := s.now().UTC()
	cutoff := now.Add(-24 * time.Hour)

	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Standup %s\n", now.Format("2006-01-02"))

	completed, err := s.log.Since(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	b.WriteString("\n## Completed in the last 24h\n")
	any := false
	for _, act := range completed {
		if act.Type != activity.TypeTaskCompleted {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", act.Message)
		any = true
	}
	if !any {
		b.WriteString("- Nothing completed.\n")
	}

	writeSection := func(title string, status task.Status, withAssignees bool) error {
		tasks, err := s.store.ListTasksByStatus(ctx, status, database.OrderDesc, 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "\n## %s\n", title)
		if len(tasks) == 0 {
			b.WriteString("- None.\n")
			return nil
		}
		for _, t := range tasks {
			line := t.Title
			if withAssignees && len(t.AssigneeIDs) > 0 {
				who := make([]string, 0, len(t.AssigneeIDs))
				for _, id := range t.AssigneeIDs {
					if name, ok := names[id]; ok {
						who = append(who, name)
					}
				}
				if len(who) > 0 {
					line = fmt.Sprintf("%s (%s)", line, strings.Join(who, ", "))
				}
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
		return nil
	}

	if err := writeSection("In progress", task.StatusInProgress, true); err != nil {
		return nil, err
	}
	if err := writeSection("Awaiting review", task.StatusReview, true); err != nil {
		return nil, err
	}
	if err := writeSection("Blocked", task.StatusBlocked, false); err != nil {
		return nil, err
	}

	b.WriteString("\n## Roster\n")
	for _, a := range agents {
		if a.Name == OperatorAgentName {
			continue
		}
		line := fmt.Sprintf("- %s: %s", a.Name, a.Status)
		if a.CurrentTaskID != "" {
			if t, err := s.store.GetTask(ctx, a.CurrentTaskID); err == nil {
				line = fmt.Sprintf("%s, working on %q", line, t.Title)
			}
		}
		b.WriteString(line + "\n")
	}

	doc, err := s.store.CreateDocument(ctx, document.CreateRequest{
		Title:     fmt.Sprintf("Standup %s", now.Format("2006-01-02")),
		Content:   b.String(),
		Type:      document.TypeStandup,
		CreatedBy: actor.Operator(),
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeStandupGenerated,
		Message: fmt.Sprintf("Standup generated for %s", now.Format("2006-01-02")),
	})
	return doc, nil
}

// Latest returns the most recent standup document.
func (s *StandupService) Latest(ctx context.Context) (*document.Document, error) {
	docs, err := s.store.ListDocumentsByType(ctx, document.TypeStandup, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no standup generated yet", domain.ErrNotFound)
	}
	return &docs[0], nil
}
