// AngelaMos | 2026
// catalog.go

package task

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/carterperez-dev/pocketree/internal/core"
)

const allTasksKey = "tasks:all"

type Lister interface {
	List(ctx context.Context) ([]Task, error)
}

// Catalog serves the task catalog from a short-lived in-process cache.
// Tasks are immutable so a stale entry only delays new catalog rows.
type Catalog struct {
	source Lister
	cache  *expirable.LRU[string, []Task]
	group  singleflight.Group
}

func NewCatalog(source Lister, size int, ttl time.Duration) *Catalog {
	if size < 1 {
		size = 1
	}
	return &Catalog{
		source: source,
		cache:  expirable.NewLRU[string, []Task](size, nil, ttl),
	}
}

func (c *Catalog) All(ctx context.Context) ([]Task, error) {
	if tasks, ok := c.cache.Get(allTasksKey); ok {
		return tasks, nil
	}

	v, err, _ := c.group.Do(allTasksKey, func() (any, error) {
		tasks, err := c.source.List(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Add(allTasksKey, tasks)
		return tasks, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	tasks, _ := v.([]Task) //nolint:errcheck // the group only stores []Task
	return tasks, nil
}

func (c *Catalog) Get(ctx context.Context, id int64) (*Task, error) {
	tasks, err := c.All(ctx)
	if err != nil {
		return nil, err
	}

	for i := range tasks {
		if tasks[i].ID == id {
			t := tasks[i]
			return &t, nil
		}
	}

	return nil, fmt.Errorf("get task %d: %w", id, core.ErrNotFound)
}

// ByDifficulty groups the catalog per tier.
func (c *Catalog) ByDifficulty(
	ctx context.Context,
) (map[Difficulty][]Task, error) {
	tasks, err := c.All(ctx)
	if err != nil {
		return nil, err
	}

	tiers := make(map[Difficulty][]Task, len(Difficulties))
	for _, t := range tasks {
		tiers[t.Difficulty] = append(tiers[t.Difficulty], t)
	}

	return tiers, nil
}

func (c *Catalog) Invalidate() {
	c.cache.Purge()
}
