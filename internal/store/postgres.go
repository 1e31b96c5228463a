// AngelaMos | 2026
// postgres.go

package store

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/mission"
	"github.com/carterperez-dev/pocketree/internal/task"
	"github.com/carterperez-dev/pocketree/internal/tree"
	"github.com/carterperez-dev/pocketree/internal/user"
)

type repos struct {
	users    user.Repository
	tasks    task.Repository
	trees    tree.Repository
	badges   badge.Repository
	missions mission.Repository
}

func bind(db core.DBTX) repos {
	return repos{
		users:    user.NewRepository(db),
		tasks:    task.NewRepository(db),
		trees:    tree.NewRepository(db),
		badges:   badge.NewRepository(db),
		missions: mission.NewRepository(db),
	}
}

func (r repos) Users() user.Repository       { return r.users }
func (r repos) Tasks() task.Repository       { return r.tasks }
func (r repos) Trees() tree.Repository       { return r.trees }
func (r repos) Badges() badge.Repository     { return r.badges }
func (r repos) Missions() mission.Repository { return r.missions }

type pgTx struct {
	repos
	hooks []func()
}

func (t *pgTx) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

type Postgres struct {
	repos
	db      *sqlx.DB
	retries int
	logger  *slog.Logger
}

func NewPostgres(db *sqlx.DB, retries int, logger *slog.Logger) *Postgres {
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		repos:   bind(db),
		db:      db,
		retries: retries,
		logger:  logger,
	}
}

// WithinTx runs fn in a read-committed transaction. Row locks taken by the
// repositories provide the mutual exclusion; serialization failures and
// deadlocks replay fn up to the configured number of retries. Hooks from
// an attempt that did not commit are discarded.
func (p *Postgres) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, tx Tx) error,
) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}

	for attempt := 0; ; attempt++ {
		tx := &pgTx{}

		err := core.InTxWithOptions(ctx, p.db, opts, func(sqlTx *sqlx.Tx) error {
			tx.repos = bind(sqlTx)
			return fn(ctx, tx)
		})
		if err == nil {
			for _, hook := range tx.hooks {
				hook()
			}
			return nil
		}

		if !core.IsRetryableTxError(err) || attempt >= p.retries {
			return err
		}

		p.logger.Warn("retrying transaction",
			"attempt", attempt+1,
			"error", err,
		)
	}
}

var _ Store = (*Postgres)(nil)
