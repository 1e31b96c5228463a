// AngelaMos | 2026
// repository.go

package badge

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/pocketree/internal/core"
)

type Repository interface {
	ListAll(ctx context.Context) ([]Badge, error)
	ListUnowned(ctx context.Context, userID string) ([]Badge, error)
	ListOwned(ctx context.Context, userID string) ([]EarnedBadge, error)
	Award(
		ctx context.Context,
		userID string,
		badgeID int64,
		at time.Time,
	) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const badgeColumns = `b.id, b.name, b.description, b.criteria_type,
		       COALESCE(b.required_difficulty, '') AS required_difficulty,
		       b.required_count`

func (r *repository) ListAll(ctx context.Context) ([]Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges b ORDER BY b.id`

	var badges []Badge
	if err := r.db.SelectContext(ctx, &badges, query); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}

	return badges, nil
}

func (r *repository) ListUnowned(
	ctx context.Context,
	userID string,
) ([]Badge, error) {
	query := `SELECT ` + badgeColumns + `
		FROM badges b
		WHERE NOT EXISTS (
			SELECT 1 FROM user_badges ub
			WHERE ub.badge_id = b.id AND ub.user_id = $1
		)
		ORDER BY b.id`

	var badges []Badge
	if err := r.db.SelectContext(ctx, &badges, query, userID); err != nil {
		return nil, fmt.Errorf("list unowned badges: %w", err)
	}

	return badges, nil
}

func (r *repository) ListOwned(
	ctx context.Context,
	userID string,
) ([]EarnedBadge, error) {
	query := `SELECT ` + badgeColumns + `, ub.date_earned
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.date_earned, b.id`

	var badges []EarnedBadge
	if err := r.db.SelectContext(ctx, &badges, query, userID); err != nil {
		return nil, fmt.Errorf("list owned badges: %w", err)
	}

	return badges, nil
}

// Award records the badge and reports whether this call inserted it. The
// (user_id, badge_id) primary key makes repeated awards a no-op.
func (r *repository) Award(
	ctx context.Context,
	userID string,
	badgeID int64,
	at time.Time,
) (bool, error) {
	query := `
		INSERT INTO user_badges (user_id, badge_id, date_earned)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, userID, badgeID, at)
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}

	return rows == 1, nil
}
