// Package activitylog defines the append-only audit log port.
package activitylog

import (
	"context"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/activity"
)

// Log is the port interface for the audit trail. Records are immutable;
// there is no update or delete.
type Log interface {
	// Append inserts a new activity record. CreatedAt is set by the store.
	Append(ctx context.Context, act *activity.Activity) error

	// Recent returns the newest records first.
	Recent(ctx context.Context, limit int) ([]activity.Activity, error)

	// ByAgent returns the agent's records, newest first.
	ByAgent(ctx context.Context, agentID string, limit int) ([]activity.Activity, error)

	// ByTask returns the task's records, newest first.
	ByTask(ctx context.Context, taskID string, limit int) ([]activity.Activity, error)

	// Since returns all records created at or after the cutoff, oldest first.
	Since(ctx context.Context, cutoff time.Time) ([]activity.Activity, error)
}
