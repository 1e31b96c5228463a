// AngelaMos | 2026
// repository.go

package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/pocketree/internal/core"
)

// ErrNoActiveAssignment means the (user, task, day) record is missing,
// already completed or expired.
var ErrNoActiveAssignment = errors.New("no active assignment")

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context) ([]Task, error)
	ListAssignedOn(
		ctx context.Context,
		userID string,
		day time.Time,
	) ([]AssignedTask, error)
	ListTaskIDsAssignedOn(
		ctx context.Context,
		userID string,
		day time.Time,
	) ([]int64, error)
	CreateAssignments(ctx context.Context, assignments []Assignment) error
	FindActiveAssignment(
		ctx context.Context,
		userID string,
		taskID int64,
		day time.Time,
	) (*Assignment, error)
	MarkCompleted(ctx context.Context, assignmentID int64, at time.Time) error
	DeleteExpired(
		ctx context.Context,
		userID string,
		before time.Time,
	) (int, error)
	ExpireAllBefore(ctx context.Context, before time.Time) (map[string]int, error)
	CountCompletedByDifficulty(
		ctx context.Context,
		userID string,
		difficulty Difficulty,
	) (int, error)
	ListHistory(
		ctx context.Context,
		userID string,
		limit int,
	) ([]HistoryEntry, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const taskColumns = `id, description, difficulty, coin_reward,
		       requires_evidence, keyword, category`

func (r *repository) GetByID(ctx context.Context, id int64) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var t Task
	err := r.db.GetContext(ctx, &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	return &t, nil
}

func (r *repository) List(ctx context.Context) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY id`

	var tasks []Task
	if err := r.db.SelectContext(ctx, &tasks, query); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

func (r *repository) ListAssignedOn(
	ctx context.Context,
	userID string,
	day time.Time,
) ([]AssignedTask, error) {
	query := `
		SELECT t.id, t.description, t.difficulty, t.coin_reward,
		       t.requires_evidence, t.keyword, t.category,
		       a.id AS assignment_id, a.status
		FROM task_assignments a
		JOIN tasks t ON t.id = a.task_id
		WHERE a.user_id = $1 AND a.assigned_on = $2
		ORDER BY a.id`

	var tasks []AssignedTask
	if err := r.db.SelectContext(ctx, &tasks, query, userID, day); err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}

	return tasks, nil
}

func (r *repository) ListTaskIDsAssignedOn(
	ctx context.Context,
	userID string,
	day time.Time,
) ([]int64, error) {
	query := `
		SELECT task_id FROM task_assignments
		WHERE user_id = $1 AND assigned_on = $2`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, userID, day); err != nil {
		return nil, fmt.Errorf("list assigned task ids: %w", err)
	}

	return ids, nil
}

func (r *repository) CreateAssignments(
	ctx context.Context,
	assignments []Assignment,
) error {
	if len(assignments) == 0 {
		return nil
	}

	query := `
		INSERT INTO task_assignments (user_id, task_id, assigned_on, status)
		VALUES (:user_id, :task_id, :assigned_on, :status)
		ON CONFLICT (user_id, task_id, assigned_on) DO NOTHING`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, assignments); err != nil {
		return fmt.Errorf("create assignments: %w", err)
	}

	return nil
}

func (r *repository) FindActiveAssignment(
	ctx context.Context,
	userID string,
	taskID int64,
	day time.Time,
) (*Assignment, error) {
	query := `
		SELECT id, user_id, task_id, assigned_on, status, completed_at
		FROM task_assignments
		WHERE user_id = $1 AND task_id = $2 AND assigned_on = $3
		  AND status = 'assigned'
		FOR UPDATE`

	var a Assignment
	err := r.db.GetContext(ctx, &a, query, userID, taskID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find assignment: %w", ErrNoActiveAssignment)
	}
	if err != nil {
		return nil, fmt.Errorf("find assignment: %w", err)
	}

	return &a, nil
}

func (r *repository) MarkCompleted(
	ctx context.Context,
	assignmentID int64,
	at time.Time,
) error {
	query := `
		UPDATE task_assignments
		SET status = 'completed', completed_at = $2
		WHERE id = $1 AND status = 'assigned'`

	result, err := r.db.ExecContext(ctx, query, assignmentID, at)
	if err != nil {
		return fmt.Errorf("complete assignment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete assignment: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("complete assignment: %w", ErrNoActiveAssignment)
	}

	return nil
}

func (r *repository) DeleteExpired(
	ctx context.Context,
	userID string,
	before time.Time,
) (int, error) {
	query := `
		DELETE FROM task_assignments
		WHERE user_id = $1 AND status = 'assigned' AND assigned_on < $2`

	result, err := r.db.ExecContext(ctx, query, userID, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired assignments: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired assignments: %w", err)
	}

	return int(rows), nil
}

func (r *repository) ExpireAllBefore(
	ctx context.Context,
	before time.Time,
) (map[string]int, error) {
	query := `
		WITH expired AS (
			DELETE FROM task_assignments
			WHERE status = 'assigned' AND assigned_on < $1
			RETURNING user_id
		)
		SELECT user_id, COUNT(*) AS expired
		FROM expired
		GROUP BY user_id`

	var rows []struct {
		UserID  string `db:"user_id"`
		Expired int    `db:"expired"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, before); err != nil {
		return nil, fmt.Errorf("expire assignments: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Expired
	}

	return counts, nil
}

func (r *repository) CountCompletedByDifficulty(
	ctx context.Context,
	userID string,
	difficulty Difficulty,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM task_assignments a
		JOIN tasks t ON t.id = a.task_id
		WHERE a.user_id = $1 AND a.status = 'completed' AND t.difficulty = $2`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, difficulty); err != nil {
		return 0, fmt.Errorf("count completed tasks: %w", err)
	}

	return count, nil
}

func (r *repository) ListHistory(
	ctx context.Context,
	userID string,
	limit int,
) ([]HistoryEntry, error) {
	query := `
		SELECT t.id AS task_id, t.description, t.difficulty, t.coin_reward,
		       a.completed_at
		FROM task_assignments a
		JOIN tasks t ON t.id = a.task_id
		WHERE a.user_id = $1 AND a.status = 'completed'
		ORDER BY a.completed_at DESC
		LIMIT $2`

	var entries []HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}

	return entries, nil
}
