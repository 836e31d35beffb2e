package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrelworks/crewdeck/internal/domain/activity"
)

// ActivityLog implements activitylog.Log using PostgreSQL (append-only).
type ActivityLog struct {
	pool *pgxpool.Pool
}

// NewActivityLog creates a new ActivityLog backed by the given connection pool.
func NewActivityLog(pool *pgxpool.Pool) *ActivityLog {
	return &ActivityLog{pool: pool}
}

const activityColumns = `id, type, agent_id, task_id, message, metadata, created_at`

// Append inserts a new activity record.
func (l *ActivityLog) Append(ctx context.Context, act *activity.Activity) error {
	meta, err := json.Marshal(act.Metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}

	err = l.pool.QueryRow(ctx,
		`INSERT INTO activities (type, agent_id, task_id, message, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		string(act.Type), nullIfEmpty(act.AgentID), nullIfEmpty(act.TaskID),
		act.Message, meta).Scan(&act.ID, &act.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func scanActivity(row scannable) (activity.Activity, error) {
	var (
		act     activity.Activity
		agentID *string
		taskID  *string
		meta    []byte
	)
	err := row.Scan(&act.ID, &act.Type, &agentID, &taskID, &act.Message, &meta, &act.CreatedAt)
	if err != nil {
		return activity.Activity{}, err
	}
	act.AgentID = strOrEmpty(agentID)
	act.TaskID = strOrEmpty(taskID)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &act.Metadata); err != nil {
			return activity.Activity{}, fmt.Errorf("unmarshal activity metadata: %w", err)
		}
	}
	return act, nil
}

func (l *ActivityLog) query(ctx context.Context, query string, args ...any) ([]activity.Activity, error) {
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acts []activity.Activity
	for rows.Next() {
		act, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		acts = append(acts, act)
	}
	return acts, rows.Err()
}

// Recent returns the newest records first.
func (l *ActivityLog) Recent(ctx context.Context, limit int) ([]activity.Activity, error) {
	acts, err := l.query(ctx,
		fmt.Sprintf(`SELECT %s FROM activities ORDER BY created_at DESC LIMIT $1`, activityColumns), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	return acts, nil
}

// ByAgent returns the agent's records, newest first.
func (l *ActivityLog) ByAgent(ctx context.Context, agentID string, limit int) ([]activity.Activity, error) {
	acts, err := l.query(ctx,
		fmt.Sprintf(`SELECT %s FROM activities WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`, activityColumns),
		agentID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("activities by agent %s: %w", agentID, err)
	}
	return acts, nil
}

// ByTask returns the task's records, newest first.
func (l *ActivityLog) ByTask(ctx context.Context, taskID string, limit int) ([]activity.Activity, error) {
	acts, err := l.query(ctx,
		fmt.Sprintf(`SELECT %s FROM activities WHERE task_id = $1 ORDER BY created_at DESC LIMIT $2`, activityColumns),
		taskID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("activities by task %s: %w", taskID, err)
	}
	return acts, nil
}

// Since returns all records created at or after the cutoff, oldest first.
func (l *ActivityLog) Since(ctx context.Context, cutoff time.Time) ([]activity.Activity, error) {
	acts, err := l.query(ctx,
		fmt.Sprintf(`SELECT %s FROM activities WHERE created_at >= $1 ORDER BY created_at ASC`, activityColumns),
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("activities since %s: %w", cutoff, err)
	}
	return acts, nil
}
