package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/actor"
	"github.com/kestrelworks/crewdeck/internal/domain/task"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

const taskColumns = `id, title, description, status, priority, assignee_ids, required_skills, tags,
	created_by, proposed_by, run_id, run_session_key, run_source, claimed_at, due_date, created_at, updated_at`

func scanTask(row scannable) (task.Task, error) {
	var (
		t          task.Task
		createdBy  string
		proposedBy *string
		runID      *string
		runSession *string
		runSource  *string
		claimedAt  *time.Time
		dueDate    *time.Time
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeIDs, &t.RequiredSkills, &t.Tags, &createdBy, &proposedBy,
		&runID, &runSession, &runSource, &claimedAt, &dueDate,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return task.Task{}, err
	}
	t.CreatedBy = actor.Parse(createdBy)
	t.ProposedBy = strOrEmpty(proposedBy)
	t.RunID = strOrEmpty(runID)
	t.RunSessionKey = strOrEmpty(runSession)
	t.RunSource = strOrEmpty(runSource)
	t.ClaimedAt = timeOrZero(claimedAt)
	t.DueDate = timeOrZero(dueDate)
	t.AssigneeIDs = orEmpty(t.AssigneeIDs)
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	status := req.InitialStatus
	if status == "" {
		status = task.StatusInbox
		if len(req.AssigneeIDs) > 0 {
			status = task.StatusAssigned
		}
	}
	priority := req.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}

	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO tasks (title, description, status, priority, assignee_ids, required_skills, tags,
			created_by, proposed_by, run_id, run_session_key, run_source, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING %s`, taskColumns),
		req.Title, req.Description, string(status), string(priority),
		pgTextArray(req.AssigneeIDs), pgTextArray(req.RequiredSkills), pgTextArray(req.Tags),
		req.CreatedBy.String(), nullIfEmpty(req.ProposedBy),
		nullIfEmpty(req.RunID), nullIfEmpty(req.RunSessionKey), nullIfEmpty(req.RunSource),
		nullTime(req.DueDate))

	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns), id)

	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) ListTasks(ctx context.Context, limit int) ([]task.Task, error) {
	tasks, err := s.queryTasks(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks ORDER BY created_at DESC LIMIT $1`, taskColumns), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) ListTasksByStatus(ctx context.Context, status task.Status, order database.Order, limit int) ([]task.Task, error) {
	dir := "DESC"
	if order == database.OrderAsc {
		dir = "ASC"
	}
	tasks, err := s.queryTasks(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE status = $1 ORDER BY created_at %s LIMIT $2`, taskColumns, dir),
		string(status), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list tasks by status %s: %w", status, err)
	}
	return tasks, nil
}

func (s *Store) ListTasksByAssignee(ctx context.Context, agentID string) ([]task.Task, error) {
	tasks, err := s.queryTasks(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE $1 = ANY(assignee_ids) ORDER BY created_at DESC`, taskColumns),
		agentID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by assignee %s: %w", agentID, err)
	}
	return tasks, nil
}

func (s *Store) ListTasksByProposer(ctx context.Context, agentID string, limit int) ([]task.Task, error) {
	tasks, err := s.queryTasks(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE proposed_by = $1 ORDER BY created_at DESC LIMIT $2`, taskColumns),
		agentID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list tasks by proposer %s: %w", agentID, err)
	}
	return tasks, nil
}

// TaskTitleExists reports whether any task carries exactly this title.
// Used for proposal dedup; equality is exact, not fuzzy.
func (s *Store) TaskTitleExists(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE title = $1)`, title).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("task title exists: %w", err)
	}
	return exists, nil
}

func (s *Store) PatchTask(ctx context.Context, id string, patch database.TaskPatch) error {
	b := newPatchBuilder()
	if patch.Title != nil {
		b.set("title", *patch.Title)
	}
	if patch.Description != nil {
		b.set("description", *patch.Description)
	}
	if patch.Status != nil {
		b.set("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		b.set("priority", string(*patch.Priority))
	}
	if patch.AssigneeIDs != nil {
		b.set("assignee_ids", pgTextArray(*patch.AssigneeIDs))
	}
	if patch.Tags != nil {
		b.set("tags", pgTextArray(*patch.Tags))
	}
	if patch.ClaimedAt != nil {
		b.set("claimed_at", *patch.ClaimedAt)
	}
	if b.empty() {
		return nil
	}
	b.setRaw("updated_at", "now()")

	query, args := b.update("tasks", id)
	tag, err := s.pool.Exec(ctx, query, args...)
	return execExpectOne(tag, err, "patch task %s", id)
}

// ClaimTask is the one conditional write in the lifecycle: the status guard
// in the WHERE clause makes the loser of a concurrent claim race fail with
// ErrInvalidState instead of double-claiming.
func (s *Store) ClaimTask(ctx context.Context, taskID, agentID string, claimedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks
		 SET status = $2, assignee_ids = $3, claimed_at = $4, updated_at = now()
		 WHERE id = $1 AND status = $5`,
		taskID, string(task.StatusAssigned), []string{agentID}, claimedAt, string(task.StatusInbox))
	if err != nil {
		return fmt.Errorf("claim task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim task %s: %w", taskID, domain.ErrInvalidState)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete task %s", id)
}

func (s *Store) GetTaskByRunID(ctx context.Context, runID string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE run_id = $1`, taskColumns), runID)

	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task by run %s", runID)
	}
	return &t, nil
}

func (s *Store) ListRunTasks(ctx context.Context, limit int) ([]task.Task, error) {
	tasks, err := s.queryTasks(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE run_id IS NOT NULL ORDER BY created_at DESC LIMIT $1`, taskColumns),
		sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	return tasks, nil
}
