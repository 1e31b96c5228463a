// AngelaMos | 2026
// entity.go

package task

import (
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyNormal Difficulty = "Normal"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists the tiers in the order a daily set is presented.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Task is an immutable catalog entry.
type Task struct {
	ID               int64      `db:"id"`
	Description      string     `db:"description"`
	Difficulty       Difficulty `db:"difficulty"`
	CoinReward       int        `db:"coin_reward"`
	RequiresEvidence bool       `db:"requires_evidence"`
	Keyword          string     `db:"keyword"`
	Category         string     `db:"category"`
}

type Status string

const (
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
)

// Assignment is one (user, task, day) record. It moves from assigned to
// completed at most once; assigned rows from earlier days are expired.
type Assignment struct {
	ID          int64      `db:"id"`
	UserID      string     `db:"user_id"`
	TaskID      int64      `db:"task_id"`
	AssignedOn  time.Time  `db:"assigned_on"`
	Status      Status     `db:"status"`
	CompletedAt *time.Time `db:"completed_at"`
}

func (a *Assignment) IsCompleted() bool {
	return a.Status == StatusCompleted
}

// AssignedTask is a catalog task joined with the state of today's record.
type AssignedTask struct {
	Task
	AssignmentID int64  `db:"assignment_id"`
	Status       Status `db:"status"`
}

type HistoryEntry struct {
	TaskID      int64      `db:"task_id"`
	Description string     `db:"description"`
	Difficulty  Difficulty `db:"difficulty"`
	CoinReward  int        `db:"coin_reward"`
	CompletedAt time.Time  `db:"completed_at"`
}
