// AngelaMos | 2026
// evaluator_test.go

package badge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/store/memstore"
	"github.com/carterperez-dev/pocketree/internal/task"
	"github.com/carterperez-dev/pocketree/internal/user"
)

var at = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type counter map[task.Difficulty]int

func (c counter) CountCompletedByDifficulty(
	_ context.Context,
	_ string,
	d task.Difficulty,
) (int, error) {
	return c[d], nil
}

type failingCounter struct{}

func (failingCounter) CountCompletedByDifficulty(
	context.Context,
	string,
	task.Difficulty,
) (int, error) {
	return 0, errors.New("history unavailable")
}

func seeded(t *testing.T) *memstore.Store {
	t.Helper()

	ms := memstore.New()
	ms.AddUser(user.User{ID: "u1"}, "")
	ms.AddBadge(badge.Badge{ID: 1, Name: "Sapling", CriteriaType: badge.CriteriaLevelUp, RequiredCount: 2})
	ms.AddBadge(badge.Badge{ID: 2, Name: "Mighty Oak", CriteriaType: badge.CriteriaLevelUp, RequiredCount: 3})
	ms.AddBadge(badge.Badge{ID: 3, Name: "First Steps", CriteriaType: badge.CriteriaTaskCount, RequiredDifficulty: "Easy", RequiredCount: 1})
	ms.AddBadge(badge.Badge{ID: 4, Name: "Eco Warrior", CriteriaType: badge.CriteriaTaskCount, RequiredDifficulty: "Hard", RequiredCount: 3})
	ms.AddBadge(badge.Badge{ID: 5, Name: "Broken", CriteriaType: badge.CriteriaTaskCount, RequiredDifficulty: "Extreme", RequiredCount: 1})
	return ms
}

func ids(badges []badge.Badge) []int64 {
	out := make([]int64, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.ID)
	}
	return out
}

func TestEvaluateAwardsQualifyingBadges(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		history counter
		want    []int64
	}{
		{"nothing yet", 1, counter{}, []int64{}},
		{"sapling only", 2, counter{}, []int64{1}},
		{"level and easy count", 3, counter{task.DifficultyEasy: 1}, []int64{1, 2, 3}},
		{"hard threshold not met", 1, counter{task.DifficultyHard: 2}, []int64{}},
		{"hard threshold met", 1, counter{task.DifficultyHard: 3}, []int64{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := seeded(t)

			earned, err := badge.NewEvaluator().Evaluate(
				context.Background(),
				ms.Badges(),
				tt.history,
				badge.Subject{UserID: "u1", Level: tt.level},
				at,
			)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(earned))
			assert.Equal(t, len(tt.want), len(ms.BadgesOf("u1")))
		})
	}
}

func TestEvaluateNeverAwardsTwice(t *testing.T) {
	ms := seeded(t)
	ev := badge.NewEvaluator()
	subject := badge.Subject{UserID: "u1", Level: 2}

	first, err := ev.Evaluate(context.Background(), ms.Badges(), counter{}, subject, at)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := ev.Evaluate(context.Background(), ms.Badges(), counter{}, subject, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, second)

	owned, err := ms.Badges().ListOwned(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, at, owned[0].DateEarned)
}

func TestEvaluatePropagatesHistoryErrors(t *testing.T) {
	ms := seeded(t)

	_, err := badge.NewEvaluator().Evaluate(
		context.Background(),
		ms.Badges(),
		failingCounter{},
		badge.Subject{UserID: "u1", Level: 1},
		at,
	)
	require.Error(t, err)
	assert.Empty(t, ms.BadgesOf("u1"))
}

func TestEvaluateStopsOnAwardFailure(t *testing.T) {
	ms := seeded(t)
	ms.FailOn("badges.Award", core.ErrTransactionFailed)

	_, err := badge.NewEvaluator().Evaluate(
		context.Background(),
		ms.Badges(),
		counter{},
		badge.Subject{UserID: "u1", Level: 3},
		at,
	)
	require.ErrorIs(t, err, core.ErrTransactionFailed)
}
