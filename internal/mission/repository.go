// AngelaMos | 2026
// repository.go

package mission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/pocketree/internal/core"
)

type Repository interface {
	List(ctx context.Context) ([]Mission, error)
	GetByName(ctx context.Context, name string) (*Mission, error)
	LockByName(ctx context.Context, name string) (*Mission, error)
	IncrementTreeCount(ctx context.Context, id int64) (int, error)
	CountForestTrees(ctx context.Context, missionID int64) (int, error)
	PlantForestTree(ctx context.Context, t *ForestTree) error
	ListForestTrees(ctx context.Context, missionID int64) ([]ForestTree, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const missionColumns = `id, name, total_required_trees, current_tree_count,
		       planting_frequency, created_at`

func (r *repository) List(ctx context.Context) ([]Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM global_missions ORDER BY id`

	var missions []Mission
	if err := r.db.SelectContext(ctx, &missions, query); err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}

	return missions, nil
}

func (r *repository) GetByName(
	ctx context.Context,
	name string,
) (*Mission, error) {
	query := `SELECT ` + missionColumns + `
		FROM global_missions
		WHERE name = $1`

	var m Mission
	err := r.db.GetContext(ctx, &m, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get mission: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}

	return &m, nil
}

// LockByName takes the per-mission row lock that serializes every
// increment-and-plant sequence for the mission.
func (r *repository) LockByName(
	ctx context.Context,
	name string,
) (*Mission, error) {
	query := `SELECT ` + missionColumns + `
		FROM global_missions
		WHERE name = $1
		FOR UPDATE`

	var m Mission
	err := r.db.GetContext(ctx, &m, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lock mission: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock mission: %w", err)
	}

	return &m, nil
}

func (r *repository) IncrementTreeCount(
	ctx context.Context,
	id int64,
) (int, error) {
	query := `
		UPDATE global_missions
		SET current_tree_count = current_tree_count + 1
		WHERE id = $1 AND current_tree_count < total_required_trees
		RETURNING current_tree_count`

	var count int
	err := r.db.GetContext(ctx, &count, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment mission: %w", ErrMissionFull)
	}
	if err != nil {
		return 0, fmt.Errorf("increment mission: %w", err)
	}

	return count, nil
}

func (r *repository) CountForestTrees(
	ctx context.Context,
	missionID int64,
) (int, error) {
	query := `SELECT COUNT(*) FROM community_forest_trees WHERE mission_id = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, missionID); err != nil {
		return 0, fmt.Errorf("count forest trees: %w", err)
	}

	return count, nil
}

func (r *repository) PlantForestTree(
	ctx context.Context,
	t *ForestTree,
) error {
	query := `
		INSERT INTO community_forest_trees (mission_id, slot_index, x, y, planted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.GetContext(ctx, &t.ID, query,
		t.MissionID,
		t.SlotIndex,
		t.X,
		t.Y,
		t.PlantedAt,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("plant forest tree: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("plant forest tree: %w", err)
	}

	return nil
}

func (r *repository) ListForestTrees(
	ctx context.Context,
	missionID int64,
) ([]ForestTree, error) {
	query := `
		SELECT id, mission_id, slot_index, x, y, planted_at
		FROM community_forest_trees
		WHERE mission_id = $1
		ORDER BY slot_index`

	var trees []ForestTree
	if err := r.db.SelectContext(ctx, &trees, query, missionID); err != nil {
		return nil, fmt.Errorf("list forest trees: %w", err)
	}

	return trees, nil
}
