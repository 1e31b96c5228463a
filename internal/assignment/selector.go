// AngelaMos | 2026
// selector.go

package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/ml"
	"github.com/carterperez-dev/pocketree/internal/store"
	"github.com/carterperez-dev/pocketree/internal/task"
	"github.com/carterperez-dev/pocketree/internal/user"
)

type Catalog interface {
	All(ctx context.Context) ([]task.Task, error)
}

type Options struct {
	MaxRecommended int
	Clock          core.Clock
	// Intn returns a value in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// Selector builds each user's daily task set. A user gets at most one set
// per UTC day; later calls return the stored set.
type Selector struct {
	store       store.Store
	catalog     Catalog
	recommender ml.Recommender
	maxTasks    int
	clock       core.Clock
	intn        func(n int) int
	logger      *slog.Logger
}

func NewSelector(
	st store.Store,
	catalog Catalog,
	recommender ml.Recommender,
	opts Options,
	logger *slog.Logger,
) *Selector {
	if opts.Clock == nil {
		opts.Clock = core.SystemClock
	}
	if opts.Intn == nil {
		opts.Intn = rand.IntN //nolint:gosec // G404: task shuffling is not security sensitive
	}
	if opts.MaxRecommended < 1 {
		opts.MaxRecommended = len(task.Difficulties)
	}

	return &Selector{
		store:       st,
		catalog:     catalog,
		recommender: recommender,
		maxTasks:    opts.MaxRecommended,
		clock:       opts.Clock,
		intn:        opts.Intn,
		logger:      logger,
	}
}

func (s *Selector) AssignDailyTasks(
	ctx context.Context,
	userID string,
) ([]task.AssignedTask, error) {
	ctx, span := core.StartSpan(ctx, "assignment.daily",
		attribute.String("user.id", userID),
	)
	defer span.End()

	today := core.Day(s.clock())

	existing, err := s.store.Tasks().ListAssignedOn(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("assign daily tasks: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("assign daily tasks: %w", err)
	}

	picked, err := s.pick(ctx, u, today)
	if err != nil {
		return nil, fmt.Errorf("assign daily tasks: %w", err)
	}

	var assigned []task.AssignedTask
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Users().GetForUpdate(ctx, userID); err != nil {
			return err
		}

		current, err := tx.Tasks().ListAssignedOn(ctx, userID, today)
		if err != nil {
			return err
		}
		if len(current) > 0 {
			assigned = current
			return nil
		}

		expired, err := tx.Tasks().DeleteExpired(ctx, userID, today)
		if err != nil {
			return err
		}

		records := make([]task.Assignment, 0, len(picked))
		for _, t := range picked {
			records = append(records, task.Assignment{
				UserID:     userID,
				TaskID:     t.ID,
				AssignedOn: today,
				Status:     task.StatusAssigned,
			})
		}
		if err := tx.Tasks().CreateAssignments(ctx, records); err != nil {
			return err
		}

		if err := tx.Users().AdjustTaskCounters(
			ctx,
			userID,
			len(records)-expired,
			expired,
		); err != nil {
			return err
		}

		assigned, err = tx.Tasks().ListAssignedOn(ctx, userID, today)
		return err
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("assign daily tasks: %w", err)
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf(
			"assign daily tasks: %w: %w",
			core.ErrTransactionFailed,
			err,
		)
	}

	span.SetAttributes(attribute.Int("assignment.count", len(assigned)))
	return assigned, nil
}

// pick chooses the day's tasks. Recommender failures degrade to the
// random path.
func (s *Selector) pick(
	ctx context.Context,
	u *user.User,
	today time.Time,
) ([]task.Task, error) {
	all, err := s.catalog.All(ctx)
	if err != nil {
		return nil, err
	}

	if s.recommender != nil && s.wantsRecommendation(ctx, u.ID) {
		picked, err := s.recommend(ctx, u, all)
		if err == nil && len(picked) > 0 {
			return picked, nil
		}
		s.logger.Warn("recommender unavailable, using random tasks",
			"user_id", u.ID,
			"error", err,
		)
	}

	yesterday, err := s.store.Tasks().ListTaskIDsAssignedOn(
		ctx,
		u.ID,
		today.AddDate(0, 0, -1),
	)
	if err != nil {
		return nil, err
	}

	return s.random(all, yesterday), nil
}

func (s *Selector) wantsRecommendation(ctx context.Context, userID string) bool {
	settings, err := s.store.Users().GetSettings(ctx, userID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("load settings failed", "user_id", userID, "error", err)
		}
		return false
	}
	return settings.UseRecommendation
}

func (s *Selector) recommend(
	ctx context.Context,
	u *user.User,
	all []task.Task,
) ([]task.Task, error) {
	prefs, err := s.store.Users().ListPreferences(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	req := ml.RecommendRequest{
		UserID:      u.ID,
		Preferences: make([]ml.Preference, 0, len(prefs)),
		TotalScore:  u.TotalCoins,
		Tasks:       make([]ml.Candidate, 0, len(all)),
	}
	for _, p := range prefs {
		req.Preferences = append(req.Preferences, ml.Preference{
			Category:   p.Category,
			Difficulty: p.Difficulty,
		})
	}
	byID := make(map[int64]task.Task, len(all))
	for _, t := range all {
		byID[t.ID] = t
		req.Tasks = append(req.Tasks, ml.Candidate{
			ID:          t.ID,
			Description: t.Description,
			Difficulty:  string(t.Difficulty),
			Category:    t.Category,
			CoinReward:  t.CoinReward,
		})
	}

	ranked, err := s.recommender.Recommend(ctx, req)
	if err != nil {
		return nil, err
	}

	picked := make([]task.Task, 0, s.maxTasks)
	seen := make(map[int64]struct{}, s.maxTasks)
	for _, id := range ranked {
		if len(picked) == s.maxTasks {
			break
		}
		t, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		picked = append(picked, t)
	}

	return picked, nil
}

// random takes one task per tier, skipping tasks handed out yesterday
// unless that would leave the tier empty. Empty tiers are skipped.
func (s *Selector) random(all []task.Task, yesterday []int64) []task.Task {
	picked := make([]task.Task, 0, len(task.Difficulties))

	for _, d := range task.Difficulties {
		var tier, fresh []task.Task
		for _, t := range all {
			if t.Difficulty != d {
				continue
			}
			tier = append(tier, t)
			if !slices.Contains(yesterday, t.ID) {
				fresh = append(fresh, t)
			}
		}

		if len(fresh) > 0 {
			tier = fresh
		}
		if len(tier) == 0 {
			continue
		}

		picked = append(picked, tier[s.intn(len(tier))])
	}

	return picked
}
