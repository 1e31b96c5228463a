// AngelaMos | 2026
// entity.go

package tree

import (
	"time"
)

// Tree is a user's personal tree for one mission. A user has at most one
// tree per mission with IsCompleted false, the active one.
type Tree struct {
	ID          int64      `db:"id"`
	UserID      string     `db:"user_id"`
	MissionID   int64      `db:"mission_id"`
	IsWithered  bool       `db:"is_withered"`
	IsCompleted bool       `db:"is_completed"`
	CreatedAt   time.Time  `db:"created_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// DefaultWitherAfter is how long a user can stay away before their active
// tree withers.
const DefaultWitherAfter = 72 * time.Hour
