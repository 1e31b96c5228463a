// AngelaMos | 2026
// contributor.go

package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/tree"
)

var ErrMissionFull = errors.New("mission already reached its target")

// UnitOfWork is the slice of a running transaction the contributor needs.
type UnitOfWork interface {
	Missions() Repository
	Trees() tree.Repository
	AfterCommit(fn func())
}

// Publisher fans a planted tree out to live observers. Delivery is best
// effort and must not block the committing request.
type Publisher interface {
	PublishTreePlanted(ctx context.Context, missionID int64, x, y float64)
}

type Contribution struct {
	MissionID int64
	TreeCount int
	Full      bool
	Planted   *ForestTree
}

type Contributor struct {
	slots     *SlotAllocator
	publisher Publisher
	clock     core.Clock
	logger    *slog.Logger
}

func NewContributor(
	slots *SlotAllocator,
	publisher Publisher,
	clock core.Clock,
	logger *slog.Logger,
) *Contributor {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Contributor{
		slots:     slots,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// Contribute adds one tree to the named mission on behalf of userID and
// retires the user's active tree for it. Every planting-frequency
// contributions a communal tree is planted in the next slot. The mission
// row stays locked until uow commits, so concurrent contributors are
// serialized and the forest always holds count/frequency trees. The
// broadcast is deferred until after commit.
func (c *Contributor) Contribute(
	ctx context.Context,
	uow UnitOfWork,
	userID, missionName string,
) (*Contribution, error) {
	ctx, span := core.StartSpan(ctx, "mission.contribute",
		attribute.String("mission.name", missionName),
		attribute.String("user.id", userID),
	)
	defer span.End()

	m, err := uow.Missions().LockByName(ctx, missionName)
	if err != nil {
		return nil, fmt.Errorf("contribute: %w", err)
	}

	if m.IsFull() {
		c.logger.Info("mission already complete, contribution skipped",
			"mission_id", m.ID,
			"user_id", userID,
			"tree_count", m.CurrentTreeCount,
		)
		return &Contribution{
			MissionID: m.ID,
			TreeCount: m.CurrentTreeCount,
			Full:      true,
		}, nil
	}

	count, err := uow.Missions().IncrementTreeCount(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("contribute: %w", err)
	}

	now := c.clock()

	active, err := uow.Trees().GetActive(ctx, userID, m.ID)
	switch {
	case err == nil:
		if err := uow.Trees().MarkCompleted(ctx, active.ID, now); err != nil {
			return nil, fmt.Errorf("contribute: %w", err)
		}
	case errors.Is(err, core.ErrNotFound):
		c.logger.Warn("contributor has no active tree for mission",
			"mission_id", m.ID,
			"user_id", userID,
		)
	default:
		return nil, fmt.Errorf("contribute: %w", err)
	}

	result := &Contribution{MissionID: m.ID, TreeCount: count}

	if count%m.Frequency() != 0 {
		return result, nil
	}

	index, point, err := c.slots.NextSlot(ctx, uow.Missions(), m.ID)
	if err != nil {
		return nil, fmt.Errorf("contribute: %w", err)
	}

	planted := &ForestTree{
		MissionID: m.ID,
		SlotIndex: index,
		X:         point.X,
		Y:         point.Y,
		PlantedAt: now,
	}
	if err := uow.Missions().PlantForestTree(ctx, planted); err != nil {
		return nil, fmt.Errorf("contribute: %w", err)
	}

	core.AddSpanEvent(ctx, "forest.tree_planted",
		attribute.Int("slot.index", index),
	)

	result.Planted = planted

	if c.publisher != nil {
		publishCtx := context.WithoutCancel(ctx)
		uow.AfterCommit(func() {
			c.publisher.PublishTreePlanted(
				publishCtx,
				planted.MissionID,
				planted.X,
				planted.Y,
			)
		})
	}

	return result, nil
}
