package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain/notification"
)

const notificationColumns = `id, agent_id, content, from_agent_id, task_id, message_id, delivered, created_at, delivered_at`

func scanNotification(row scannable) (notification.Notification, error) {
	var (
		n           notification.Notification
		fromAgentID *string
		taskID      *string
		messageID   *string
		deliveredAt *time.Time
	)
	err := row.Scan(&n.ID, &n.AgentID, &n.Content, &fromAgentID, &taskID,
		&messageID, &n.Delivered, &n.CreatedAt, &deliveredAt)
	if err != nil {
		return notification.Notification{}, err
	}
	n.FromAgentID = strOrEmpty(fromAgentID)
	n.TaskID = strOrEmpty(taskID)
	n.MessageID = strOrEmpty(messageID)
	n.DeliveredAt = timeOrZero(deliveredAt)
	return n, nil
}

func (s *Store) CreateNotification(ctx context.Context, req notification.CreateRequest) (*notification.Notification, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO notifications (agent_id, content, from_agent_id, task_id, message_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING %s`, notificationColumns),
		req.AgentID, req.Content, nullIfEmpty(req.FromAgentID),
		nullIfEmpty(req.TaskID), nullIfEmpty(req.MessageID))

	n, err := scanNotification(row)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return &n, nil
}

// ListUndeliveredForAgent returns the agent's queued notifications in
// creation order, so the daemon delivers oldest first.
func (s *Store) ListUndeliveredForAgent(ctx context.Context, agentID string) ([]notification.Notification, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM notifications WHERE agent_id = $1 AND NOT delivered ORDER BY created_at ASC`, notificationColumns),
		agentID)
	if err != nil {
		return nil, fmt.Errorf("list undelivered for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

func (s *Store) ListNotificationsForAgent(ctx context.Context, agentID string, limit int) ([]notification.Notification, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM notifications WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`, notificationColumns),
		agentID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// MarkNotificationsDelivered flips the delivered flag for the given ids.
// Re-marking an already-delivered id is a no-op, so the call is idempotent.
func (s *Store) MarkNotificationsDelivered(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET delivered = TRUE, delivered_at = now()
		 WHERE id = ANY($1) AND NOT delivered`, ids)
	if err != nil {
		return 0, fmt.Errorf("mark notifications delivered: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CountUndelivered(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE NOT delivered`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count undelivered: %w", err)
	}
	return count, nil
}

func collectNotifications(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]notification.Notification, error) {
	var notifications []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
