// AngelaMos | 2026
// forest.go

package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/mission"
	"github.com/carterperez-dev/pocketree/internal/tree"
)

type treeRepo struct {
	v view
}

func (st *state) activeTrees(keep func(t tree.Tree) bool) []tree.Tree {
	var out []tree.Tree
	for _, t := range st.trees {
		if !t.IsCompleted && keep(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b tree.Tree) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (r treeRepo) first(op string, keep func(t tree.Tree) bool) (*tree.Tree, error) {
	var out tree.Tree
	err := r.v.do(op, func(st *state) error {
		active := st.activeTrees(keep)
		if len(active) == 0 {
			return fmt.Errorf("get active tree: %w", core.ErrNotFound)
		}
		out = active[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r treeRepo) GetActive(
	_ context.Context,
	userID string,
	missionID int64,
) (*tree.Tree, error) {
	return r.first("trees.GetActive", func(t tree.Tree) bool {
		return t.UserID == userID && t.MissionID == missionID
	})
}

func (r treeRepo) GetActiveForUser(
	_ context.Context,
	userID string,
) (*tree.Tree, error) {
	return r.first("trees.GetActiveForUser", func(t tree.Tree) bool {
		return t.UserID == userID
	})
}

func (r treeRepo) Revive(_ context.Context, id int64) error {
	return r.v.do("trees.Revive", func(st *state) error {
		if t, ok := st.trees[id]; ok {
			t.IsWithered = false
			st.trees[id] = t
		}
		return nil
	})
}

func (r treeRepo) MarkCompleted(_ context.Context, id int64, at time.Time) error {
	return r.v.do("trees.MarkCompleted", func(st *state) error {
		t, ok := st.trees[id]
		if !ok || t.IsCompleted {
			return fmt.Errorf("complete tree: %w", core.ErrNotFound)
		}
		t.IsCompleted = true
		t.IsWithered = false
		t.CompletedAt = &at
		st.trees[id] = t
		return nil
	})
}

func (r treeRepo) WitherInactive(_ context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.v.do("trees.WitherInactive", func(st *state) error {
		for id, t := range st.trees {
			if t.IsCompleted || t.IsWithered {
				continue
			}
			u, ok := st.activeUser(t.UserID)
			if !ok {
				continue
			}
			if u.LastSeen().Before(cutoff) {
				t.IsWithered = true
				st.trees[id] = t
				n++
			}
		}
		return nil
	})
	return n, err
}

type badgeRepo struct {
	v view
}

func (r badgeRepo) list(op string, keep func(b badge.Badge) bool) ([]badge.Badge, error) {
	var out []badge.Badge
	err := r.v.do(op, func(st *state) error {
		for _, b := range st.badges {
			if keep(b) {
				out = append(out, b)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b badge.Badge) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}

func (r badgeRepo) ListAll(_ context.Context) ([]badge.Badge, error) {
	return r.list("badges.ListAll", func(badge.Badge) bool { return true })
}

func (r badgeRepo) ListUnowned(
	_ context.Context,
	userID string,
) ([]badge.Badge, error) {
	var owned map[int64]time.Time
	return r.list("badges.ListUnowned", func(b badge.Badge) bool {
		if owned == nil {
			owned = r.v.s.st.userBadges[userID]
		}
		_, has := owned[b.ID]
		return !has
	})
}

func (r badgeRepo) ListOwned(
	_ context.Context,
	userID string,
) ([]badge.EarnedBadge, error) {
	var out []badge.EarnedBadge
	err := r.v.do("badges.ListOwned", func(st *state) error {
		for id, at := range st.userBadges[userID] {
			out = append(out, badge.EarnedBadge{Badge: st.badges[id], DateEarned: at})
		}
		return nil
	})
	slices.SortFunc(out, func(a, b badge.EarnedBadge) int {
		return cmp.Or(a.DateEarned.Compare(b.DateEarned), cmp.Compare(a.ID, b.ID))
	})
	return out, err
}

func (r badgeRepo) Award(
	_ context.Context,
	userID string,
	badgeID int64,
	at time.Time,
) (bool, error) {
	var inserted bool
	err := r.v.do("badges.Award", func(st *state) error {
		owned := st.userBadges[userID]
		if owned == nil {
			owned = make(map[int64]time.Time)
			st.userBadges[userID] = owned
		}
		if _, has := owned[badgeID]; has {
			return nil
		}
		owned[badgeID] = at
		inserted = true
		return nil
	})
	return inserted, err
}

type missionRepo struct {
	v view
}

func (st *state) missionNamed(name string) (mission.Mission, bool) {
	for _, m := range st.missions {
		if m.Name == name {
			return m, true
		}
	}
	return mission.Mission{}, false
}

func (st *state) forestOf(missionID int64) []mission.ForestTree {
	var out []mission.ForestTree
	for _, t := range st.forest {
		if t.MissionID == missionID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b mission.ForestTree) int {
		return cmp.Compare(a.SlotIndex, b.SlotIndex)
	})
	return out
}

func (r missionRepo) List(_ context.Context) ([]mission.Mission, error) {
	var out []mission.Mission
	err := r.v.do("missions.List", func(st *state) error {
		for _, m := range st.missions {
			out = append(out, m)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b mission.Mission) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}

func (r missionRepo) byName(op, name string) (*mission.Mission, error) {
	var out mission.Mission
	err := r.v.do(op, func(st *state) error {
		m, ok := st.missionNamed(name)
		if !ok {
			return fmt.Errorf("get mission: %w", core.ErrNotFound)
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r missionRepo) GetByName(_ context.Context, name string) (*mission.Mission, error) {
	return r.byName("missions.GetByName", name)
}

func (r missionRepo) LockByName(_ context.Context, name string) (*mission.Mission, error) {
	return r.byName("missions.LockByName", name)
}

func (r missionRepo) IncrementTreeCount(_ context.Context, id int64) (int, error) {
	var count int
	err := r.v.do("missions.IncrementTreeCount", func(st *state) error {
		m, ok := st.missions[id]
		if !ok || m.IsFull() {
			return fmt.Errorf("increment mission: %w", mission.ErrMissionFull)
		}
		m.CurrentTreeCount++
		st.missions[id] = m
		count = m.CurrentTreeCount
		return nil
	})
	return count, err
}

func (r missionRepo) CountForestTrees(_ context.Context, missionID int64) (int, error) {
	var n int
	err := r.v.do("missions.CountForestTrees", func(st *state) error {
		n = len(st.forestOf(missionID))
		return nil
	})
	return n, err
}

func (r missionRepo) PlantForestTree(_ context.Context, t *mission.ForestTree) error {
	return r.v.do("missions.PlantForestTree", func(st *state) error {
		for _, existing := range st.forest {
			if existing.MissionID == t.MissionID && existing.SlotIndex == t.SlotIndex {
				return fmt.Errorf("plant forest tree: %w", core.ErrDuplicateKey)
			}
		}
		t.ID = st.nextID()
		st.forest[t.ID] = *t
		return nil
	})
}

func (r missionRepo) ListForestTrees(
	_ context.Context,
	missionID int64,
) ([]mission.ForestTree, error) {
	var out []mission.ForestTree
	err := r.v.do("missions.ListForestTrees", func(st *state) error {
		out = st.forestOf(missionID)
		return nil
	})
	return out, err
}
