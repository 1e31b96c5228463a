// AngelaMos | 2026
// tasks.go

package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/task"
)

type taskRepo struct {
	v view
}

func (st *state) sortedAssignments(keep func(a task.Assignment) bool) []task.Assignment {
	var out []task.Assignment
	for _, a := range st.assignments {
		if keep(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b task.Assignment) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r taskRepo) GetByID(_ context.Context, id int64) (*task.Task, error) {
	var out task.Task
	err := r.v.do("tasks.GetByID", func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return fmt.Errorf("get task: %w", core.ErrNotFound)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r taskRepo) List(_ context.Context) ([]task.Task, error) {
	var out []task.Task
	err := r.v.do("tasks.List", func(st *state) error {
		for _, t := range st.tasks {
			out = append(out, t)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b task.Task) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}

func (r taskRepo) ListAssignedOn(
	_ context.Context,
	userID string,
	day time.Time,
) ([]task.AssignedTask, error) {
	var out []task.AssignedTask
	err := r.v.do("tasks.ListAssignedOn", func(st *state) error {
		for _, a := range st.sortedAssignments(func(a task.Assignment) bool {
			return a.UserID == userID && a.AssignedOn.Equal(day)
		}) {
			out = append(out, task.AssignedTask{
				Task:         st.tasks[a.TaskID],
				AssignmentID: a.ID,
				Status:       a.Status,
			})
		}
		return nil
	})
	return out, err
}

func (r taskRepo) ListTaskIDsAssignedOn(
	_ context.Context,
	userID string,
	day time.Time,
) ([]int64, error) {
	var ids []int64
	err := r.v.do("tasks.ListTaskIDsAssignedOn", func(st *state) error {
		for _, a := range st.sortedAssignments(func(a task.Assignment) bool {
			return a.UserID == userID && a.AssignedOn.Equal(day)
		}) {
			ids = append(ids, a.TaskID)
		}
		return nil
	})
	return ids, err
}

func (r taskRepo) CreateAssignments(
	_ context.Context,
	assignments []task.Assignment,
) error {
	return r.v.do("tasks.CreateAssignments", func(st *state) error {
	next:
		for _, a := range assignments {
			for _, existing := range st.assignments {
				if existing.UserID == a.UserID &&
					existing.TaskID == a.TaskID &&
					existing.AssignedOn.Equal(a.AssignedOn) {
					continue next
				}
			}
			a.ID = st.nextID()
			st.assignments[a.ID] = a
		}
		return nil
	})
}

func (r taskRepo) FindActiveAssignment(
	_ context.Context,
	userID string,
	taskID int64,
	day time.Time,
) (*task.Assignment, error) {
	var out task.Assignment
	err := r.v.do("tasks.FindActiveAssignment", func(st *state) error {
		for _, a := range st.assignments {
			if a.UserID == userID && a.TaskID == taskID &&
				a.AssignedOn.Equal(day) && a.Status == task.StatusAssigned {
				out = a
				return nil
			}
		}
		return fmt.Errorf("find assignment: %w", task.ErrNoActiveAssignment)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r taskRepo) MarkCompleted(
	_ context.Context,
	assignmentID int64,
	at time.Time,
) error {
	return r.v.do("tasks.MarkCompleted", func(st *state) error {
		a, ok := st.assignments[assignmentID]
		if !ok || a.Status != task.StatusAssigned {
			return fmt.Errorf("complete assignment: %w", task.ErrNoActiveAssignment)
		}
		a.Status = task.StatusCompleted
		a.CompletedAt = &at
		st.assignments[assignmentID] = a
		return nil
	})
}

func (r taskRepo) DeleteExpired(
	_ context.Context,
	userID string,
	before time.Time,
) (int, error) {
	var n int
	err := r.v.do("tasks.DeleteExpired", func(st *state) error {
		for id, a := range st.assignments {
			if a.UserID == userID && a.Status == task.StatusAssigned &&
				a.AssignedOn.Before(before) {
				delete(st.assignments, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r taskRepo) ExpireAllBefore(
	_ context.Context,
	before time.Time,
) (map[string]int, error) {
	counts := make(map[string]int)
	err := r.v.do("tasks.ExpireAllBefore", func(st *state) error {
		for id, a := range st.assignments {
			if a.Status == task.StatusAssigned && a.AssignedOn.Before(before) {
				delete(st.assignments, id)
				counts[a.UserID]++
			}
		}
		return nil
	})
	return counts, err
}

func (r taskRepo) CountCompletedByDifficulty(
	_ context.Context,
	userID string,
	difficulty task.Difficulty,
) (int, error) {
	var n int
	err := r.v.do("tasks.CountCompletedByDifficulty", func(st *state) error {
		for _, a := range st.assignments {
			if a.UserID == userID && a.Status == task.StatusCompleted &&
				st.tasks[a.TaskID].Difficulty == difficulty {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r taskRepo) ListHistory(
	_ context.Context,
	userID string,
	limit int,
) ([]task.HistoryEntry, error) {
	var out []task.HistoryEntry
	err := r.v.do("tasks.ListHistory", func(st *state) error {
		for _, a := range st.assignments {
			if a.UserID != userID || a.Status != task.StatusCompleted {
				continue
			}
			t := st.tasks[a.TaskID]
			out = append(out, task.HistoryEntry{
				TaskID:      t.ID,
				Description: t.Description,
				Difficulty:  t.Difficulty,
				CoinReward:  t.CoinReward,
				CompletedAt: *a.CompletedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b task.HistoryEntry) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
