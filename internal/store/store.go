// AngelaMos | 2026
// store.go

package store

import (
	"context"

	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/mission"
	"github.com/carterperez-dev/pocketree/internal/task"
	"github.com/carterperez-dev/pocketree/internal/tree"
	"github.com/carterperez-dev/pocketree/internal/user"
)

type Repositories interface {
	Users() user.Repository
	Tasks() task.Repository
	Trees() tree.Repository
	Badges() badge.Repository
	Missions() mission.Repository
}

// Tx is one unit of work. Hooks registered with AfterCommit run only
// when the whole unit commits, in registration order.
type Tx interface {
	Repositories
	AfterCommit(fn func())
}

// Store hands out repositories bound to the connection pool for reads and
// to a transaction for writes that must land together.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
