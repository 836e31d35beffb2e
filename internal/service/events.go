// Package service contains application services.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kestrelworks/crewdeck/internal/port/broadcast"
	"github.com/kestrelworks/crewdeck/internal/port/messagequeue"
)

// Events fans a domain event out to the message queue and the websocket
// broadcaster. Publish failures are logged, never propagated: the entity
// store is the source of truth and events are best-effort.
type Events struct {
	queue       messagequeue.Queue
	broadcaster broadcast.Broadcaster
}

// NewEvents creates an Events fan-out. Both dependencies may be nil.
func NewEvents(queue messagequeue.Queue, broadcaster broadcast.Broadcaster) *Events {
	return &Events{queue: queue, broadcaster: broadcaster}
}

// Publish marshals payload once and sends it to the queue subject and to
// connected websocket clients under eventType.
func (e *Events) Publish(ctx context.Context, subject, eventType string, payload any) {
	if e == nil {
		return
	}
	if e.queue != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.Error("marshal event payload", "subject", subject, "error", err)
		} else if err := e.queue.Publish(ctx, subject, data); err != nil {
			slog.Error("publish event", "subject", subject, "error", err)
		}
	}
	if e.broadcaster != nil && eventType != "" {
		e.broadcaster.BroadcastEvent(ctx, eventType, payload)
	}
}
