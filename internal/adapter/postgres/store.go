package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrelworks/crewdeck/internal/domain/agent"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Agents ---

const agentColumns = `id, name, role, status, session_key, personality, specialties, skills,
	can_propose_tasks, current_task_id, last_heartbeat_at, last_proposal_at, created_at, updated_at`

func scanAgent(row scannable) (agent.Agent, error) {
	var (
		a             agent.Agent
		currentTaskID *string
		heartbeatAt   *time.Time
		proposalAt    *time.Time
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Role, &a.Status, &a.SessionKey, &a.Personality,
		&a.Specialties, &a.Skills, &a.CanProposeTasks, &currentTaskID,
		&heartbeatAt, &proposalAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return agent.Agent{}, err
	}
	a.CurrentTaskID = strOrEmpty(currentTaskID)
	a.LastHeartbeatAt = timeOrZero(heartbeatAt)
	a.LastProposalAt = timeOrZero(proposalAt)
	a.Specialties = orEmpty(a.Specialties)
	a.Skills = orEmpty(a.Skills)
	return a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM agents ORDER BY created_at ASC`, agentColumns))
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM agents WHERE id = $1`, agentColumns), id)

	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", id)
	}
	return &a, nil
}

func (s *Store) GetAgentByName(ctx context.Context, name string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM agents WHERE name = $1`, agentColumns), name)

	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent by name %s", name)
	}
	return &a, nil
}

func (s *Store) GetAgentBySessionKey(ctx context.Context, sessionKey string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM agents WHERE session_key = $1`, agentColumns), sessionKey)

	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent by session key %s", sessionKey)
	}
	return &a, nil
}

func (s *Store) CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO agents (name, role, session_key, personality, specialties, skills, can_propose_tasks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING %s`, agentColumns),
		req.Name, req.Role, req.SessionKey, req.Personality,
		pgTextArray(req.Specialties), pgTextArray(req.Skills), req.CanProposeTasks)

	a, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &a, nil
}

// PatchAgent applies a partial work-state update. Each call is a single
// UPDATE statement and therefore atomic on its own.
func (s *Store) PatchAgent(ctx context.Context, id string, patch agent.StatusPatch) error {
	b := newPatchBuilder()
	if patch.Status != nil {
		b.set("status", string(*patch.Status))
	}
	if patch.CurrentTaskID != nil {
		b.set("current_task_id", nullIfEmpty(*patch.CurrentTaskID))
	}
	if patch.LastHeartbeatAt != nil {
		b.set("last_heartbeat_at", *patch.LastHeartbeatAt)
	}
	if patch.LastProposalAt != nil {
		b.set("last_proposal_at", *patch.LastProposalAt)
	}
	if b.empty() {
		return nil
	}
	b.setRaw("updated_at", "now()")

	query, args := b.update("agents", id)
	tag, err := s.pool.Exec(ctx, query, args...)
	return execExpectOne(tag, err, "patch agent %s", id)
}

func (s *Store) UpdateAgentSkills(ctx context.Context, id string, skills []string, canProposeTasks *bool) error {
	b := newPatchBuilder()
	b.set("skills", pgTextArray(skills))
	if canProposeTasks != nil {
		b.set("can_propose_tasks", *canProposeTasks)
	}
	b.setRaw("updated_at", "now()")

	query, args := b.update("agents", id)
	tag, err := s.pool.Exec(ctx, query, args...)
	return execExpectOne(tag, err, "update agent skills %s", id)
}
