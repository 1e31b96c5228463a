// AngelaMos | 2026
// processor_test.go

package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/mission"
	"github.com/carterperez-dev/pocketree/internal/progression"
	"github.com/carterperez-dev/pocketree/internal/store/memstore"
	"github.com/carterperez-dev/pocketree/internal/task"
	"github.com/carterperez-dev/pocketree/internal/user"
)

const (
	missionName = "Greenify Sahara"

	easyTask   int64 = 1
	normalTask int64 = 2
	hardTask   int64 = 3
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type planted struct {
	missionID int64
	x, y      float64
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []planted
}

func (p *recordingPublisher) PublishTreePlanted(
	_ context.Context,
	missionID int64,
	x, y float64,
) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, planted{missionID: missionID, x: x, y: y})
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type stubClassifier struct {
	verified bool
	err      error
	keyword  string
}

func (c *stubClassifier) Classify(
	_ context.Context,
	_ []byte,
	keyword string,
) (bool, error) {
	c.keyword = keyword
	return c.verified, c.err
}

type fixture struct {
	store      *memstore.Store
	processor  *Processor
	publisher  *recordingPublisher
	classifier *stubClassifier
	missionID  int64
}

func newFixture(t *testing.T, m mission.Mission) *fixture {
	t.Helper()

	ms := memstore.New()
	if m.Name == "" {
		m.Name = missionName
	}
	missionID := ms.AddMission(m)

	ms.AddTask(task.Task{ID: easyTask, Description: "Carry a reusable bag", Difficulty: task.DifficultyEasy, CoinReward: 100})
	ms.AddTask(task.Task{ID: normalTask, Description: "Cycle to work", Difficulty: task.DifficultyNormal, CoinReward: 200})
	ms.AddTask(task.Task{ID: hardTask, Description: "Plant a seedling", Difficulty: task.DifficultyHard, CoinReward: 300, RequiresEvidence: true, Keyword: "plant"})

	ms.AddBadge(badge.Badge{ID: 101, Name: "Sapling", CriteriaType: badge.CriteriaLevelUp, RequiredCount: progression.LevelSapling})
	ms.AddBadge(badge.Badge{ID: 102, Name: "Mighty Oak", CriteriaType: badge.CriteriaLevelUp, RequiredCount: progression.LevelMightyOak})
	ms.AddBadge(badge.Badge{ID: 103, Name: "First Steps", CriteriaType: badge.CriteriaTaskCount, RequiredDifficulty: "Easy", RequiredCount: 1})

	clock := func() time.Time { return testNow }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &recordingPublisher{}
	cls := &stubClassifier{verified: true}

	contributor := mission.NewContributor(
		mission.NewSlotAllocator(0, func() float64 { return 0.5 }),
		pub,
		clock,
		logger,
	)

	proc := NewProcessor(
		ms,
		task.NewCatalog(ms.Tasks(), 4, time.Minute),
		cls,
		badge.NewEvaluator(),
		contributor,
		Config{MissionName: missionName, Clock: clock},
		logger,
	)

	return &fixture{
		store:      ms,
		processor:  proc,
		publisher:  pub,
		classifier: cls,
		missionID:  missionID,
	}
}

func defaultMission() mission.Mission {
	return mission.Mission{TotalRequiredTrees: 1000, PlantingFrequency: 1}
}

func (f *fixture) addUser(id string, coins, level int, assigned ...int64) {
	login := testNow.Add(-time.Hour)
	f.store.AddUser(user.User{
		ID:                   id,
		Email:                id + "@example.com",
		Username:             id,
		TotalCoins:           coins,
		CurrentLevel:         level,
		UncompletedTaskCount: len(assigned),
		LastLoginAt:          &login,
		CreatedAt:            testNow.AddDate(0, -1, 0),
	}, missionName)

	for _, taskID := range assigned {
		f.store.AddAssignment(task.Assignment{
			UserID:     id,
			TaskID:     taskID,
			AssignedOn: core.Day(testNow),
		})
	}
}

func (f *fixture) assignmentStatus(userID string, taskID int64) task.Status {
	for _, a := range f.store.AssignmentsOf(userID) {
		if a.TaskID == taskID {
			return a.Status
		}
	}
	return ""
}

func TestSaplingTransitionDoesNotContribute(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 240, progression.LevelSeedling, easyTask)

	res, err := f.processor.Complete(context.Background(), Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 340, res.NewCoins)
	assert.Equal(t, progression.LevelSapling, res.NewLevel)
	assert.True(t, res.LevelUp)
	assert.False(t, res.MissionContributed)
	assert.False(t, res.IsWithered)

	assert.Zero(t, f.store.Mission(missionName).CurrentTreeCount)
	assert.Empty(t, f.store.Forest(f.missionID))
	assert.Zero(t, f.publisher.count())

	u := f.store.User("u1")
	assert.Equal(t, 340, u.TotalCoins)
	assert.Equal(t, progression.LevelSapling, u.CurrentLevel)
	assert.Zero(t, u.UncompletedTaskCount)
	require.NotNil(t, u.LastActivityAt)
	assert.Equal(t, testNow, *u.LastActivityAt)

	assert.Equal(t, task.StatusCompleted, f.assignmentStatus("u1", easyTask))
	assert.Equal(t, []int64{101, 103}, f.store.BadgesOf("u1"))
	assert.Len(t, res.BadgesEarned, 2)
}

func TestMightyOakTransitionContributesOnce(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 480, progression.LevelSapling, normalTask)

	res, err := f.processor.Complete(context.Background(), Submission{UserID: "u1", TaskID: normalTask})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 680, res.NewCoins)
	assert.Equal(t, progression.LevelMightyOak, res.NewLevel)
	assert.True(t, res.LevelUp)
	assert.True(t, res.MissionContributed)
	assert.True(t, res.TreePlanted)

	m := f.store.Mission(missionName)
	assert.Equal(t, 1, m.CurrentTreeCount)

	forest := f.store.Forest(f.missionID)
	require.Len(t, forest, 1)
	assert.Equal(t, 0, forest[0].SlotIndex)
	assert.Equal(t, 1, f.publisher.count())

	trees := f.store.TreesOf("u1")
	require.Len(t, trees, 1)
	assert.True(t, trees[0].IsCompleted)

	assert.Contains(t, f.store.BadgesOf("u1"), int64(102))
}

func TestLevelNeverDropsAfterSpending(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 20, progression.LevelMightyOak, easyTask)

	res, err := f.processor.Complete(context.Background(), Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)

	assert.Equal(t, 120, res.NewCoins)
	assert.Equal(t, progression.LevelMightyOak, res.NewLevel)
	assert.False(t, res.LevelUp)
	assert.False(t, res.MissionContributed)
	assert.Zero(t, f.store.Mission(missionName).CurrentTreeCount)
}

func TestEvidenceRequired(t *testing.T) {
	tests := []struct {
		name        string
		evidence    []byte
		verified    bool
		classifyErr error
		wantFailed  int
	}{
		{name: "missing photo", evidence: nil, verified: true, wantFailed: 0},
		{name: "rejected photo", evidence: []byte("jpeg"), verified: false, wantFailed: 1},
		{name: "classifier timeout", evidence: []byte("jpeg"), classifyErr: core.ErrExternalService, wantFailed: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultMission())
			f.addUser("u1", 240, progression.LevelSeedling, hardTask)
			f.classifier.verified = tt.verified
			f.classifier.err = tt.classifyErr

			res, err := f.processor.Complete(context.Background(), Submission{
				UserID:   "u1",
				TaskID:   hardTask,
				Evidence: tt.evidence,
			})
			require.NoError(t, err)

			assert.False(t, res.Success)
			assert.Equal(t, OutcomeVerificationFailed, res.Outcome)
			assert.Equal(t, 240, res.NewCoins)
			assert.Equal(t, progression.LevelSeedling, res.NewLevel)

			u := f.store.User("u1")
			assert.Equal(t, 240, u.TotalCoins)
			assert.Equal(t, tt.wantFailed, u.FailedVerificationCount)
			assert.Equal(t, task.StatusAssigned, f.assignmentStatus("u1", hardTask))
			assert.Empty(t, f.store.BadgesOf("u1"))
		})
	}
}

func TestVerifiedEvidenceCompletes(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 0, progression.LevelSeedling, hardTask)

	res, err := f.processor.Complete(context.Background(), Submission{
		UserID:   "u1",
		TaskID:   hardTask,
		Evidence: []byte("jpeg"),
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 300, res.NewCoins)
	assert.Equal(t, "plant", f.classifier.keyword)
}

func TestDoubleSubmitIsNoop(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 240, progression.LevelSeedling, easyTask)
	ctx := context.Background()

	_, err := f.processor.Complete(ctx, Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)

	res, err := f.processor.Complete(ctx, Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, OutcomeNoActiveAssignment, res.Outcome)
	assert.Equal(t, 340, res.NewCoins)
	assert.Equal(t, progression.LevelSapling, res.NewLevel)
	assert.Equal(t, 340, f.store.User("u1").TotalCoins)
}

func TestStaleAssignmentIsNoop(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 240, progression.LevelSeedling)
	f.store.AddAssignment(task.Assignment{
		UserID:     "u1",
		TaskID:     easyTask,
		AssignedOn: core.Day(testNow).AddDate(0, 0, -1),
	})

	res, err := f.processor.Complete(context.Background(), Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoActiveAssignment, res.Outcome)
	assert.Equal(t, 240, f.store.User("u1").TotalCoins)
}

func TestUnknownUserOrTask(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 0, progression.LevelSeedling, easyTask)

	_, err := f.processor.Complete(context.Background(), Submission{UserID: "ghost", TaskID: easyTask})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.processor.Complete(context.Background(), Submission{UserID: "u1", TaskID: 999})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCompletionRevivesWitheredTree(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 0, progression.LevelSeedling, easyTask, normalTask)
	f.store.SetWithered("u1", true)
	ctx := context.Background()

	res, err := f.processor.Complete(ctx, Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)

	assert.False(t, res.IsWithered)
	trees := f.store.TreesOf("u1")
	require.Len(t, trees, 1)
	assert.False(t, trees[0].IsWithered)
}

func TestRevivedTreeStaysGreen(t *testing.T) {
	f := newFixture(t, defaultMission())
	login := testNow.Add(-96 * time.Hour)
	f.store.AddUser(user.User{
		ID:                   "u1",
		Username:             "u1",
		UncompletedTaskCount: 1,
		LastLoginAt:          &login,
		CreatedAt:            testNow.AddDate(0, -1, 0),
	}, missionName)
	f.store.AddAssignment(task.Assignment{UserID: "u1", TaskID: easyTask, AssignedOn: core.Day(testNow)})
	f.store.SetWithered("u1", true)
	ctx := context.Background()

	res, err := f.processor.Complete(ctx, Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, res.Outcome)
	assert.False(t, res.IsWithered)

	again, err := f.processor.Complete(ctx, Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoActiveAssignment, again.Outcome)
	assert.False(t, again.IsWithered)

	withered, err := f.store.Trees().WitherInactive(ctx, testNow.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, withered)
	assert.False(t, f.store.TreesOf("u1")[0].IsWithered)

	u := f.store.User("u1")
	assert.False(t, u.IsWithered(testNow, 72*time.Hour))
}

func TestNoopReportsWitheredState(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 0, progression.LevelSeedling)
	f.store.SetWithered("u1", true)

	res, err := f.processor.Complete(context.Background(), Submission{UserID: "u1", TaskID: easyTask})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoActiveAssignment, res.Outcome)
	assert.True(t, res.IsWithered)
}

func TestFailureRollsBackEverything(t *testing.T) {
	for _, op := range []string{
		"badges.Award",
		"missions.IncrementTreeCount",
		"missions.PlantForestTree",
		"trees.MarkCompleted",
	} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t, defaultMission())
			f.addUser("u1", 480, progression.LevelSapling, normalTask)
			f.store.FailOn(op, errors.New("connection reset"))

			_, err := f.processor.Complete(context.Background(), Submission{UserID: "u1", TaskID: normalTask})
			require.ErrorIs(t, err, core.ErrTransactionFailed)

			u := f.store.User("u1")
			assert.Equal(t, 480, u.TotalCoins)
			assert.Equal(t, progression.LevelSapling, u.CurrentLevel)
			assert.Equal(t, 1, u.UncompletedTaskCount)
			assert.Equal(t, task.StatusAssigned, f.assignmentStatus("u1", normalTask))
			assert.Empty(t, f.store.BadgesOf("u1"))
			assert.Zero(t, f.store.Mission(missionName).CurrentTreeCount)
			assert.Empty(t, f.store.Forest(f.missionID))
			assert.False(t, f.store.TreesOf("u1")[0].IsCompleted)
			assert.Zero(t, f.publisher.count())
		})
	}
}

func TestFullMissionSkipsContribution(t *testing.T) {
	f := newFixture(t, mission.Mission{
		TotalRequiredTrees: 2,
		CurrentTreeCount:   2,
		PlantingFrequency:  1,
	})
	f.addUser("u1", 480, progression.LevelSapling, normalTask)

	res, err := f.processor.Complete(context.Background(), Submission{UserID: "u1", TaskID: normalTask})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.LevelUp)
	assert.False(t, res.MissionContributed)
	assert.Equal(t, 2, f.store.Mission(missionName).CurrentTreeCount)
	assert.False(t, f.store.TreesOf("u1")[0].IsCompleted)
	assert.Zero(t, f.publisher.count())
}

func TestConcurrentContributionsPlantSequentialSlots(t *testing.T) {
	const (
		users     = 12
		frequency = 3
	)

	f := newFixture(t, mission.Mission{
		TotalRequiredTrees: 1000,
		PlantingFrequency:  frequency,
	})
	for i := range users {
		f.addUser(fmt.Sprintf("u%d", i), 480, progression.LevelSapling, normalTask)
	}

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := f.processor.Complete(context.Background(), Submission{UserID: id, TaskID: normalTask})
			if err == nil && !res.MissionContributed {
				err = fmt.Errorf("%s did not contribute", id)
			}
			errs <- err
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, users, f.store.Mission(missionName).CurrentTreeCount)

	forest := f.store.Forest(f.missionID)
	require.Len(t, forest, users/frequency)
	for i, tree := range forest {
		assert.Equal(t, i, tree.SlotIndex)
	}
	assert.Equal(t, users/frequency, f.publisher.count())
}
