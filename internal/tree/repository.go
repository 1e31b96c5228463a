// AngelaMos | 2026
// repository.go

package tree

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/pocketree/internal/core"
)

type Repository interface {
	GetActive(ctx context.Context, userID string, missionID int64) (*Tree, error)
	GetActiveForUser(ctx context.Context, userID string) (*Tree, error)
	Revive(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, at time.Time) error
	WitherInactive(ctx context.Context, cutoff time.Time) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const treeColumns = `id, user_id, mission_id, is_withered, is_completed,
		       created_at, completed_at`

func (r *repository) GetActive(
	ctx context.Context,
	userID string,
	missionID int64,
) (*Tree, error) {
	query := `SELECT ` + treeColumns + `
		FROM trees
		WHERE user_id = $1 AND mission_id = $2 AND NOT is_completed
		FOR UPDATE`

	var t Tree
	err := r.db.GetContext(ctx, &t, query, userID, missionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get active tree: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active tree: %w", err)
	}

	return &t, nil
}

func (r *repository) GetActiveForUser(
	ctx context.Context,
	userID string,
) (*Tree, error) {
	query := `SELECT ` + treeColumns + `
		FROM trees
		WHERE user_id = $1 AND NOT is_completed
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE`

	var t Tree
	err := r.db.GetContext(ctx, &t, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get active tree: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active tree: %w", err)
	}

	return &t, nil
}

func (r *repository) Revive(ctx context.Context, id int64) error {
	query := `UPDATE trees SET is_withered = FALSE WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("revive tree: %w", err)
	}

	return nil
}

func (r *repository) MarkCompleted(
	ctx context.Context,
	id int64,
	at time.Time,
) error {
	query := `
		UPDATE trees
		SET is_completed = TRUE, is_withered = FALSE, completed_at = $2
		WHERE id = $1 AND NOT is_completed`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("complete tree: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete tree: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("complete tree: %w", core.ErrNotFound)
	}

	return nil
}

// WitherInactive flags active trees whose owner has neither logged in nor
// completed a task since cutoff and returns how many changed. A revived
// tree stays green until its owner goes quiet again.
func (r *repository) WitherInactive(
	ctx context.Context,
	cutoff time.Time,
) (int, error) {
	query := `
		UPDATE trees t
		SET is_withered = TRUE
		FROM users u
		WHERE u.id = t.user_id
		  AND NOT t.is_completed
		  AND NOT t.is_withered
		  AND u.deleted_at IS NULL
		  AND GREATEST(u.created_at, u.last_login_at, u.last_activity_at) < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("wither trees: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("wither trees: %w", err)
	}

	return int(rows), nil
}
