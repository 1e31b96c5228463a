// AngelaMos | 2026
// scheduler.go

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carterperez-dev/pocketree/internal/config"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/store"
	"github.com/carterperez-dev/pocketree/internal/tree"
)

const jobTimeout = 2 * time.Minute

// SessionPurger drops refresh sessions that can no longer be used.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron        *cron.Cron
	store       store.Store
	tokens      SessionPurger
	witherAfter time.Duration
	clock       core.Clock
	logger      *slog.Logger
}

// New registers the maintenance jobs. Specs use the standard five-field
// syntax evaluated in UTC. An empty spec disables its job.
func New(
	st store.Store,
	tokens SessionPurger,
	cfg config.SchedulerConfig,
	clock core.Clock,
	logger *slog.Logger,
) (*Scheduler, error) {
	if clock == nil {
		clock = core.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WitherAfter <= 0 {
		cfg.WitherAfter = tree.DefaultWitherAfter
	}

	cronLog := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(
				cron.Recover(cronLog),
				cron.SkipIfStillRunning(cronLog),
			),
		),
		store:       st,
		tokens:      tokens,
		witherAfter: cfg.WitherAfter,
		clock:       clock,
		logger:      logger,
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) (int, error)
	}{
		{"rollover", cfg.RolloverSpec, s.Rollover},
		{"wither_sweep", cfg.WitherSpec, s.WitherSweep},
		{"token_purge", cfg.PurgeSpec, s.PurgeTokens},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}

	return s, nil
}

func (s *Scheduler) wrap(
	name string,
	run func(ctx context.Context) (int, error),
) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := run(ctx)
		if err != nil {
			s.logger.Error("scheduled job failed",
				"job", name,
				"error", err,
			)
			return
		}

		s.logger.Info("scheduled job finished",
			"job", name,
			"affected", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs or ctx, whichever
// comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// Rollover deletes every Assigned record from before today and moves
// each owner's count from uncompleted to not attempted. Returns the
// number of records expired.
func (s *Scheduler) Rollover(ctx context.Context) (int, error) {
	today := core.Day(s.clock())
	var total int

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		counts, err := tx.Tasks().ExpireAllBefore(ctx, today)
		if err != nil {
			return err
		}

		userIDs := make([]string, 0, len(counts))
		for id := range counts {
			userIDs = append(userIDs, id)
		}
		slices.Sort(userIDs)

		for _, userID := range userIDs {
			n := counts[userID]
			err := tx.Users().AdjustTaskCounters(ctx, userID, -n, n)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			total += n
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rollover: %w", err)
	}

	return total, nil
}

// WitherSweep flags active trees whose owner has not logged in within
// the wither window.
func (s *Scheduler) WitherSweep(ctx context.Context) (int, error) {
	cutoff := s.clock().Add(-s.witherAfter)

	n, err := s.store.Trees().WitherInactive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("wither sweep: %w", err)
	}

	return n, nil
}

func (s *Scheduler) PurgeTokens(ctx context.Context) (int, error) {
	if s.tokens == nil {
		return 0, nil
	}

	n, err := s.tokens.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}

	return int(n), nil
}
