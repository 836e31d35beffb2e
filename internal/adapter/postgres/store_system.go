package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// --- System status singleton ---

// SystemPaused reads the pause flag. A missing row means not paused; the
// singleton is created lazily on first write.
func (s *Store) SystemPaused(ctx context.Context) (bool, error) {
	var paused bool
	err := s.pool.QueryRow(ctx, `SELECT paused FROM system_status WHERE id = 1`).Scan(&paused)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read system status: %w", err)
	}
	return paused, nil
}

func (s *Store) SetSystemPaused(ctx context.Context, paused bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO system_status (id, paused) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET paused = EXCLUDED.paused`, paused)
	if err != nil {
		return fmt.Errorf("set system paused: %w", err)
	}
	return nil
}

// --- Session mappings ---

func (s *Store) GetSessionMapping(ctx context.Context, sessionKey string) (string, error) {
	var agentID string
	err := s.pool.QueryRow(ctx,
		`SELECT agent_id FROM session_mappings WHERE session_key = $1`, sessionKey).Scan(&agentID)
	if err != nil {
		return "", notFoundWrap(err, "get session mapping %s", sessionKey)
	}
	return agentID, nil
}

func (s *Store) CreateSessionMapping(ctx context.Context, sessionKey, agentID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_mappings (session_key, agent_id) VALUES ($1, $2)
		 ON CONFLICT (session_key) DO NOTHING`, sessionKey, agentID)
	if err != nil {
		return fmt.Errorf("create session mapping %s: %w", sessionKey, err)
	}
	return nil
}
