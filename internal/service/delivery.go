package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelworks/crewdeck/internal/adapter/otel"
	"github.com/kestrelworks/crewdeck/internal/port/cache"
	"github.com/kestrelworks/crewdeck/internal/port/database"
	"github.com/kestrelworks/crewdeck/internal/port/gateway"
)

const (
	rosterCacheTTL    = 5 * time.Minute
	rosterCachePrefix = "session:"
)

// DeliveryService drains the notification queue into live agent sessions.
// Delivery is at-least-once: a notification is only marked delivered after
// the gateway accepted it, so a crash between send and mark redelivers.
type DeliveryService struct {
	store   database.Store
	sender  gateway.Sender
	cache   cache.Cache
	metrics *otel.Metrics
	poll    time.Duration
}

// NewDeliveryService creates a DeliveryService.
func NewDeliveryService(store database.Store, sender gateway.Sender, c cache.Cache, metrics *otel.Metrics, poll time.Duration) *DeliveryService {
	return &DeliveryService{store: store, sender: sender, cache: c, metrics: metrics, poll: poll}
}

// sessionKeyFor resolves an agent id to its session key through the cache,
// falling back to a roster reload on miss.
func (s *DeliveryService) sessionKeyFor(ctx context.Context, agentID string) (string, error) {
	if key, ok, err := s.cache.Get(ctx, rosterCachePrefix+agentID); err == nil && ok {
		return string(key), nil
	}

	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return "", fmt.Errorf("reload roster: %w", err)
	}
	found := ""
	for _, a := range agents {
		if a.SessionKey == "" {
			continue
		}
		if err := s.cache.Set(ctx, rosterCachePrefix+a.ID, []byte(a.SessionKey), rosterCacheTTL); err != nil {
			slog.Warn("cache roster entry", "agent", a.Name, "error", err)
		}
		if a.ID == agentID {
			found = a.SessionKey
		}
	}
	if found == "" {
		return "", fmt.Errorf("agent %s has no session key", agentID)
	}
	return found, nil
}

// DeliverPending runs one delivery pass: fetch every undelivered
// notification, push each to its agent's session, then batch-mark only the
// successful ones. Failures stay queued for the next pass, no backoff.
// Returns how many notifications were delivered.
func (s *DeliveryService) DeliverPending(ctx context.Context) (int, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list agents: %w", err)
	}

	var delivered []string
	var requeued int
	for _, a := range agents {
		pending, err := s.store.ListUndeliveredForAgent(ctx, a.ID)
		if err != nil {
			slog.Error("fetch undelivered", "agent", a.Name, "error", err)
			continue
		}
		if len(pending) == 0 {
			continue
		}

		sessionKey, err := s.sessionKeyFor(ctx, a.ID)
		if err != nil {
			slog.Warn("no session route, leaving queued", "agent", a.Name, "pending", len(pending), "error", err)
			requeued += len(pending)
			continue
		}

		for _, n := range pending {
			if err := s.sender.Send(ctx, sessionKey, n.Content); err != nil {
				slog.Warn("delivery failed, leaving queued", "agent", a.Name, "notification_id", n.ID, "error", err)
				requeued++
				continue
			}
			delivered = append(delivered, n.ID)
		}
	}

	if len(delivered) > 0 {
		marked, err := s.store.MarkNotificationsDelivered(ctx, delivered)
		if err != nil {
			// Sent but unmarked: these will be resent next pass. Accepted
			// under at-least-once semantics.
			return 0, fmt.Errorf("mark delivered: %w", err)
		}
		s.metrics.NotificationsDelivered(ctx, int64(marked))
	}
	s.metrics.NotificationsRequeued(ctx, int64(requeued))

	return len(delivered), nil
}

// Run polls on the configured interval, strictly sequentially: a pass
// finishes before the next one starts. Runs until the context is cancelled.
func (s *DeliveryService) Run(ctx context.Context) error {
	slog.Info("delivery loop started", "poll_interval", s.poll)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.DeliverPending(ctx)
			if err != nil {
				slog.Error("delivery pass failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("delivered notifications", "count", n)
			}
		}
	}
}
