package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/agent"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/cache"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

const (
	statusCacheKey = "system:status"
	statusCacheTTL = 5 * time.Second
)

// Summary is the system status read view.
type Summary struct {
	Paused               bool                `json:"paused"`
	Agents               []agent.Agent       `json:"agents"`
	TaskCounts           map[string]int      `json:"task_counts"`
	PendingNotifications int                 `json:"pending_notifications"`
	RecentActivities     []activity.Activity `json:"recent_activities"`
	RecentDocuments      []document.Document `json:"recent_documents"`
	GeneratedAt          time.Time           `json:"generated_at"`
}

// StatusService aggregates the system status view and owns the pause switch.
type StatusService struct {
	store database.Store
	log   activitylog.Log
	cache cache.Cache
}

// NewStatusService creates a StatusService.
func NewStatusService(store database.Store, log activitylog.Log, c cache.Cache) *StatusService {
	return &StatusService{store: store, log: log, cache: c}
}

// Summary returns the aggregated status view, cached for a few seconds to
// keep dashboard polling off the store.
func (s *StatusService) Summary(ctx context.Context) (*Summary, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, statusCacheKey); err == nil && ok {
			var cached Summary
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	paused, err := s.store.SystemPaused(ctx)
	if err != nil {
		return nil, err
	}
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, 0)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[string(t.Status)]++
	}
	pending, err := s.store.CountUndelivered(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.log.Recent(ctx, 20)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListRecentDocuments(ctx, 5)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Paused:               paused,
		Agents:               agents,
		TaskCounts:           counts,
		PendingNotifications: pending,
		RecentActivities:     recent,
		RecentDocuments:      docs,
		GeneratedAt:          time.Now().UTC(),
	}

	if s.cache != nil {
		if data, err := json.Marshal(sum); err == nil {
			if err := s.cache.Set(ctx, statusCacheKey, data, statusCacheTTL); err != nil {
				slog.Warn("cache status summary", "error", err)
			}
		}
	}
	return sum, nil
}

// Paused reports the pause switch. Absent state reads as running.
func (s *StatusService) Paused(ctx context.Context) (bool, error) {
	return s.store.SystemPaused(ctx)
}

// Pause stops all agent work cycles at their next heartbeat.
func (s *StatusService) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true)
}

// Resume re-enables agent work cycles.
func (s *StatusService) Resume(ctx context.Context) error {
	return s.setPaused(ctx, false)
}

func (s *StatusService) setPaused(ctx context.Context, paused bool) error {
	if err := s.store.SetSystemPaused(ctx, paused); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, statusCacheKey); err != nil {
			slog.Warn("invalidate status cache", "error", err)
		}
	}
	msg := "System resumed"
	if paused {
		msg = "System paused"
	}
	act := activity.Activity{Type: activity.TypeAgentStatusChanged, Message: msg}
	if err := s.log.Append(ctx, &act); err != nil {
		slog.Error("append pause activity", "error", err)
	}
	return nil
}
