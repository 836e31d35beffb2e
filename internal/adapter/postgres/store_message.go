package postgres

import (
	"context"
	"fmt"

	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/message"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

// --- Messages ---

const messageColumns = `id, task_id, from_actor, content, mentions, created_at`

func scanMessage(row scannable) (message.Message, error) {
	var (
		m      message.Message
		taskID *string
		from   string
	)
	err := row.Scan(&m.ID, &taskID, &from, &m.Content, &m.Mentions, &m.CreatedAt)
	if err != nil {
		return message.Message{}, err
	}
	m.TaskID = strOrEmpty(taskID)
	m.From = actor.Parse(from)
	m.Mentions = orEmpty(m.Mentions)
	return m, nil
}

func (s *Store) CreateMessage(ctx context.Context, req message.CreateRequest) (*message.Message, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO messages (task_id, from_actor, content, mentions)
		 VALUES ($1, $2, $3, $4)
		 RETURNING %s`, messageColumns),
		nullIfEmpty(req.TaskID), req.From.String(), req.Content, pgTextArray(req.Mentions))

	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &m, nil
}

func (s *Store) ListMessagesByTask(ctx context.Context, taskID string, order database.Order, limit int) ([]message.Message, error) {
	dir := "ASC"
	if order == database.OrderDesc {
		dir = "DESC"
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM messages WHERE task_id = $1 ORDER BY created_at %s LIMIT $2`, messageColumns, dir),
		taskID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages by task %s: %w", taskID, err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (s *Store) ListRecentMessages(ctx context.Context, limit int) ([]message.Message, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM messages ORDER BY created_at DESC LIMIT $1`, messageColumns), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]message.Message, error) {
	var messages []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// --- Subscriptions ---

func (s *Store) GetSubscription(ctx context.Context, agentID, taskID string) (*message.Subscription, error) {
	var sub message.Subscription
	err := s.pool.QueryRow(ctx,
		`SELECT id, agent_id, task_id, subscribed_at FROM subscriptions WHERE agent_id = $1 AND task_id = $2`,
		agentID, taskID).Scan(&sub.ID, &sub.AgentID, &sub.TaskID, &sub.SubscribedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get subscription %s/%s", agentID, taskID)
	}
	return &sub, nil
}

// CreateSubscription is idempotent: a second insert for the same pair
// returns the existing row unchanged.
func (s *Store) CreateSubscription(ctx context.Context, agentID, taskID string) (*message.Subscription, error) {
	var sub message.Subscription
	err := s.pool.QueryRow(ctx,
		`INSERT INTO subscriptions (agent_id, task_id)
		 VALUES ($1, $2)
		 ON CONFLICT (agent_id, task_id) DO UPDATE SET agent_id = EXCLUDED.agent_id
		 RETURNING id, agent_id, task_id, subscribed_at`,
		agentID, taskID).Scan(&sub.ID, &sub.AgentID, &sub.TaskID, &sub.SubscribedAt)
	if err != nil {
		return nil, fmt.Errorf("create subscription %s/%s: %w", agentID, taskID, err)
	}
	return &sub, nil
}

func (s *Store) ListSubscriptionsByTask(ctx context.Context, taskID string) ([]message.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, task_id, subscribed_at FROM subscriptions WHERE task_id = $1 ORDER BY subscribed_at ASC`,
		taskID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by task %s: %w", taskID, err)
	}
	defer rows.Close()

	var subs []message.Subscription
	for rows.Next() {
		var sub message.Subscription
		if err := rows.Scan(&sub.ID, &sub.AgentID, &sub.TaskID, &sub.SubscribedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) DeleteSubscription(ctx context.Context, agentID, taskID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM subscriptions WHERE agent_id = $1 AND task_id = $2`, agentID, taskID)
	return execExpectOne(tag, err, "delete subscription %s/%s", agentID, taskID)
}
