// AngelaMos | 2026
// catalog_test.go

package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pocketree/internal/core"
)

type countingLister struct {
	calls atomic.Int32
	tasks []Task
	err   error
}

func (l *countingLister) List(context.Context) ([]Task, error) {
	l.calls.Add(1)
	return l.tasks, l.err
}

func sampleTasks() []Task {
	return []Task{
		{ID: 1, Description: "Bring a reusable bag", Difficulty: DifficultyEasy, CoinReward: 100},
		{ID: 2, Description: "Cycle to work", Difficulty: DifficultyNormal, CoinReward: 200},
		{ID: 3, Description: "Plant a sapling", Difficulty: DifficultyHard, CoinReward: 300, RequiresEvidence: true, Keyword: "plant"},
		{ID: 4, Description: "Switch off standby", Difficulty: DifficultyEasy, CoinReward: 100},
	}
}

func TestCatalogCachesList(t *testing.T) {
	lister := &countingLister{tasks: sampleTasks()}
	catalog := NewCatalog(lister, 8, time.Minute)
	ctx := context.Background()

	for range 3 {
		tasks, err := catalog.All(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 4)
	}

	assert.Equal(t, int32(1), lister.calls.Load())

	catalog.Invalidate()
	_, err := catalog.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestCatalogGet(t *testing.T) {
	catalog := NewCatalog(&countingLister{tasks: sampleTasks()}, 8, time.Minute)

	got, err := catalog.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, got.RequiresEvidence)
	assert.Equal(t, "plant", got.Keyword)

	_, err = catalog.Get(context.Background(), 99)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCatalogByDifficulty(t *testing.T) {
	catalog := NewCatalog(&countingLister{tasks: sampleTasks()}, 8, time.Minute)

	tiers, err := catalog.ByDifficulty(context.Background())
	require.NoError(t, err)
	assert.Len(t, tiers[DifficultyEasy], 2)
	assert.Len(t, tiers[DifficultyNormal], 1)
	assert.Len(t, tiers[DifficultyHard], 1)
}

func TestCatalogDoesNotCacheErrors(t *testing.T) {
	lister := &countingLister{err: errors.New("db down")}
	catalog := NewCatalog(lister, 8, time.Minute)

	_, err := catalog.All(context.Background())
	require.Error(t, err)

	lister.err = nil
	lister.tasks = sampleTasks()

	tasks, err := catalog.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 4)
}
