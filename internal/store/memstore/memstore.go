// AngelaMos | 2026
// memstore.go

// Package memstore provides an in-memory store.Store used by service tests.
//
// Units of work are fully serialized and restore a snapshot when the
// callback fails, which is enough to exercise rollback and lock ordering
// without a running Postgres.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/mission"
	"github.com/carterperez-dev/pocketree/internal/store"
	"github.com/carterperez-dev/pocketree/internal/task"
	"github.com/carterperez-dev/pocketree/internal/tree"
	"github.com/carterperez-dev/pocketree/internal/user"
)

type state struct {
	users       map[string]user.User
	settings    map[string]user.Settings
	prefs       map[string][]user.Preference
	tasks       map[int64]task.Task
	assignments map[int64]task.Assignment
	trees       map[int64]tree.Tree
	badges      map[int64]badge.Badge
	userBadges  map[string]map[int64]time.Time
	missions    map[int64]mission.Mission
	forest      map[int64]mission.ForestTree
	seq         int64
}

func newState() *state {
	return &state{
		users:       make(map[string]user.User),
		settings:    make(map[string]user.Settings),
		prefs:       make(map[string][]user.Preference),
		tasks:       make(map[int64]task.Task),
		assignments: make(map[int64]task.Assignment),
		trees:       make(map[int64]tree.Tree),
		badges:      make(map[int64]badge.Badge),
		userBadges:  make(map[string]map[int64]time.Time),
		missions:    make(map[int64]mission.Mission),
		forest:      make(map[int64]mission.ForestTree),
	}
}

func (st *state) clone() *state {
	owned := make(map[string]map[int64]time.Time, len(st.userBadges))
	for userID, badges := range st.userBadges {
		owned[userID] = maps.Clone(badges)
	}

	return &state{
		users:       maps.Clone(st.users),
		settings:    maps.Clone(st.settings),
		prefs:       maps.Clone(st.prefs),
		tasks:       maps.Clone(st.tasks),
		assignments: maps.Clone(st.assignments),
		trees:       maps.Clone(st.trees),
		badges:      maps.Clone(st.badges),
		userBadges:  owned,
		missions:    maps.Clone(st.missions),
		forest:      maps.Clone(st.forest),
		seq:         st.seq,
	}
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
	view
}

func New() *Store {
	s := &Store{
		st:     newState(),
		faults: make(map[string]error),
	}
	s.view = view{s: s}
	return s
}

// FailOn makes every later call of op return err, for example
// FailOn("badges.Award", err). Faults survive rollbacks.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, tx store.Tx) error,
) error {
	tx := &memTx{view: view{s: s, held: true}}

	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		snapshot := s.st.clone()
		if err := fn(ctx, tx); err != nil {
			s.st = snapshot
			return err
		}
		return nil
	}()
	if err != nil {
		return err
	}

	for _, hook := range tx.hooks {
		hook()
	}

	return nil
}

type memTx struct {
	view
	hooks []func()
}

func (t *memTx) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

// view is a set of repositories over the store. A view created inside
// WithinTx already holds the lock; the store's own view takes it per call.
type view struct {
	s    *Store
	held bool
}

func (v view) Users() user.Repository       { return userRepo{v} }
func (v view) Tasks() task.Repository       { return taskRepo{v} }
func (v view) Trees() tree.Repository       { return treeRepo{v} }
func (v view) Badges() badge.Repository     { return badgeRepo{v} }
func (v view) Missions() mission.Repository { return missionRepo{v} }

func (v view) do(op string, fn func(st *state) error) error {
	if !v.held {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	if err := v.s.faults[op]; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fn(v.s.st)
}

func now() time.Time {
	return time.Now().UTC()
}

// AddUser stores u as-is together with default settings and, when
// missionName names a seeded mission, an active tree for it.
func (s *Store) AddUser(u user.User, missionName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	if u.CurrentLevel == 0 {
		u.CurrentLevel = 1
	}
	if u.Role == "" {
		u.Role = user.RoleUser
	}

	s.st.users[u.ID] = u
	s.st.settings[u.ID] = user.DefaultSettings(u.ID)
	s.st.plantUserTree(u.ID, missionName, u.CreatedAt)
}

func (st *state) plantUserTree(userID, missionName string, at time.Time) {
	for _, m := range st.missions {
		if m.Name != missionName {
			continue
		}
		id := st.nextID()
		st.trees[id] = tree.Tree{
			ID:        id,
			UserID:    userID,
			MissionID: m.ID,
			CreatedAt: at,
		}
		return
	}
}

func (s *Store) AddTask(t task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.tasks[t.ID] = t
	if t.ID > s.st.seq {
		s.st.seq = t.ID
	}
}

func (s *Store) AddBadge(b badge.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.badges[b.ID] = b
	if b.ID > s.st.seq {
		s.st.seq = b.ID
	}
}

func (s *Store) AddMission(m mission.Mission) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.st.nextID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	s.st.missions[m.ID] = m
	return m.ID
}

func (s *Store) AddAssignment(a task.Assignment) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.st.nextID()
	}
	if a.Status == "" {
		a.Status = task.StatusAssigned
	}
	s.st.assignments[a.ID] = a
	return a.ID
}

// SetWithered flips the withered flag of every active tree of userID.
func (s *Store) SetWithered(userID string, withered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.st.trees {
		if t.UserID == userID && !t.IsCompleted {
			t.IsWithered = withered
			s.st.trees[id] = t
		}
	}
}

func (s *Store) User(id string) user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.users[id]
}

func (s *Store) Mission(name string) mission.Mission {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.st.missions {
		if m.Name == name {
			return m
		}
	}
	return mission.Mission{}
}

func (s *Store) Forest(missionID int64) []mission.ForestTree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.forestOf(missionID)
}

func (s *Store) TreesOf(userID string) []tree.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tree.Tree
	for _, t := range s.st.trees {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b tree.Tree) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) AssignmentsOf(userID string) []task.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.Assignment
	for _, a := range s.st.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b task.Assignment) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) BadgesOf(userID string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Collect(maps.Keys(s.st.userBadges[userID]))
	slices.Sort(ids)
	return ids
}

var _ store.Store = (*Store)(nil)
