// AngelaMos | 2026
// processor.go

package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/mission"
	"github.com/carterperez-dev/pocketree/internal/ml"
	"github.com/carterperez-dev/pocketree/internal/progression"
	"github.com/carterperez-dev/pocketree/internal/store"
	"github.com/carterperez-dev/pocketree/internal/task"
	"github.com/carterperez-dev/pocketree/internal/tree"
	"github.com/carterperez-dev/pocketree/internal/user"
)

type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"
	OutcomeVerificationFailed Outcome = "verification_failed"
	OutcomeNoActiveAssignment Outcome = "no_active_assignment"
)

type Submission struct {
	UserID   string
	TaskID   int64
	Evidence []byte
}

// Result is the client-visible state after a submission. Only
// OutcomeCompleted changes anything besides the verification counter.
type Result struct {
	Success            bool
	Outcome            Outcome
	LevelUp            bool
	NewCoins           int
	NewLevel           int
	IsWithered         bool
	BadgesEarned       []badge.Badge
	MissionContributed bool
	TreePlanted        bool
}

type TaskSource interface {
	Get(ctx context.Context, id int64) (*task.Task, error)
}

type Config struct {
	MissionName string
	WitherAfter time.Duration
	Clock       core.Clock
}

type Processor struct {
	store       store.Store
	tasks       TaskSource
	classifier  ml.Classifier
	evaluator   *badge.Evaluator
	contributor *mission.Contributor
	missionName string
	witherAfter time.Duration
	clock       core.Clock
	logger      *slog.Logger
}

func NewProcessor(
	st store.Store,
	tasks TaskSource,
	classifier ml.Classifier,
	evaluator *badge.Evaluator,
	contributor *mission.Contributor,
	cfg Config,
	logger *slog.Logger,
) *Processor {
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock
	}
	if cfg.WitherAfter <= 0 {
		cfg.WitherAfter = tree.DefaultWitherAfter
	}

	return &Processor{
		store:       st,
		tasks:       tasks,
		classifier:  classifier,
		evaluator:   evaluator,
		contributor: contributor,
		missionName: cfg.MissionName,
		witherAfter: cfg.WitherAfter,
		clock:       cfg.Clock,
		logger:      logger,
	}
}

// Complete processes one task submission. Evidence is checked before the
// unit of work opens so a slow classifier never holds row locks. Every
// write after that lands in a single transaction.
func (p *Processor) Complete(ctx context.Context, sub Submission) (*Result, error) {
	ctx, span := core.StartSpan(ctx, "completion.complete",
		attribute.String("user.id", sub.UserID),
		attribute.Int64("task.id", sub.TaskID),
	)
	defer span.End()

	u, err := p.store.Users().GetByID(ctx, sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	t, err := p.tasks.Get(ctx, sub.TaskID)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	if t.RequiresEvidence {
		verified, err := p.verify(ctx, sub, t)
		if err != nil {
			return nil, err
		}
		if !verified {
			span.SetAttributes(attribute.String("completion.outcome", string(OutcomeVerificationFailed)))
			return p.unchanged(ctx, p.store.Trees(), u, OutcomeVerificationFailed), nil
		}
	}

	var result *Result
	err = p.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res, err := p.apply(ctx, tx, sub.UserID, t)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("complete task: %w", err)
		}
		core.SetSpanError(ctx, err)
		p.logger.Error("task completion rolled back",
			"user_id", sub.UserID,
			"task_id", sub.TaskID,
			"error", err,
		)
		return nil, fmt.Errorf(
			"complete task: %w: %w",
			core.ErrTransactionFailed,
			err,
		)
	}

	span.SetAttributes(
		attribute.String("completion.outcome", string(result.Outcome)),
		attribute.Bool("completion.level_up", result.LevelUp),
	)

	if result.Outcome == OutcomeCompleted {
		p.logger.Info("task completed",
			"user_id", sub.UserID,
			"task_id", sub.TaskID,
			"coins", result.NewCoins,
			"level", result.NewLevel,
			"level_up", result.LevelUp,
			"badges", len(result.BadgesEarned),
			"mission_contributed", result.MissionContributed,
		)
	}

	return result, nil
}

// verify reports false for missing evidence, a rejection or an unreachable
// classifier. Only an explicit rejection counts against the user.
func (p *Processor) verify(
	ctx context.Context,
	sub Submission,
	t *task.Task,
) (bool, error) {
	if len(sub.Evidence) == 0 || p.classifier == nil {
		return false, nil
	}

	verified, err := p.classifier.Classify(ctx, sub.Evidence, t.Keyword)
	if err != nil {
		p.logger.Warn("evidence classifier unavailable",
			"user_id", sub.UserID,
			"task_id", t.ID,
			"error", err,
		)
		return false, nil
	}
	if verified {
		return true, nil
	}

	err = p.store.Users().IncrementFailedVerifications(ctx, sub.UserID)
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}

	return false, nil
}

func (p *Processor) apply(
	ctx context.Context,
	tx store.Tx,
	userID string,
	t *task.Task,
) (*Result, error) {
	now := p.clock()

	u, err := tx.Users().GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	assignment, err := tx.Tasks().FindActiveAssignment(
		ctx,
		userID,
		t.ID,
		core.Day(now),
	)
	if err != nil {
		if errors.Is(err, task.ErrNoActiveAssignment) {
			return p.unchanged(ctx, tx.Trees(), u, OutcomeNoActiveAssignment), nil
		}
		return nil, err
	}

	if err := tx.Tasks().MarkCompleted(ctx, assignment.ID, now); err != nil {
		return nil, err
	}

	active, err := tx.Trees().GetActiveForUser(ctx, userID)
	switch {
	case err == nil:
		if active.IsWithered {
			if err := tx.Trees().Revive(ctx, active.ID); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, core.ErrNotFound):
	default:
		return nil, err
	}

	outcome := progression.Apply(u.TotalCoins, u.CurrentLevel, t.CoinReward)

	err = tx.Users().UpdateProgress(ctx, userID, outcome.NewCoins, outcome.NewLevel, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Users().AdjustTaskCounters(ctx, userID, -1, 0); err != nil {
		return nil, err
	}

	earned, err := p.evaluator.Evaluate(
		ctx,
		tx.Badges(),
		tx.Tasks(),
		badge.Subject{UserID: userID, Level: outcome.NewLevel},
		now,
	)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Success:      true,
		Outcome:      OutcomeCompleted,
		LevelUp:      outcome.LevelUp,
		NewCoins:     outcome.NewCoins,
		NewLevel:     outcome.NewLevel,
		IsWithered:   false,
		BadgesEarned: earned,
	}

	if outcome.TriggersContribution() && p.contributor != nil {
		contribution, err := p.contributor.Contribute(ctx, tx, userID, p.missionName)
		if err != nil {
			return nil, err
		}
		result.MissionContributed = !contribution.Full
		result.TreePlanted = contribution.Planted != nil
	}

	return result, nil
}

// unchanged reports the user's current state for a submission that did not
// pay out. trees must belong to the caller's unit of work, if any.
func (p *Processor) unchanged(
	ctx context.Context,
	trees tree.Repository,
	u *user.User,
	outcome Outcome,
) *Result {
	return &Result{
		Success:      false,
		Outcome:      outcome,
		NewCoins:     u.TotalCoins,
		NewLevel:     u.CurrentLevel,
		IsWithered:   p.withered(ctx, trees, u),
		BadgesEarned: []badge.Badge{},
	}
}

// withered prefers the active tree's stored flag, which only the sweep sets
// and only a completion clears.
func (p *Processor) withered(
	ctx context.Context,
	trees tree.Repository,
	u *user.User,
) bool {
	active, err := trees.GetActiveForUser(ctx, u.ID)
	if err == nil {
		return active.IsWithered
	}
	return u.IsWithered(p.clock(), p.witherAfter)
}
