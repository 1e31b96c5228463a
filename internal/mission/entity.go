// AngelaMos | 2026
// entity.go

package mission

import (
	"time"
)

// Mission is the shared, capacity-limited goal every MightyOak
// transition funds. CurrentTreeCount only grows and never passes
// TotalRequiredTrees.
type Mission struct {
	ID                 int64     `db:"id"`
	Name               string    `db:"name"`
	TotalRequiredTrees int       `db:"total_required_trees"`
	CurrentTreeCount   int       `db:"current_tree_count"`
	PlantingFrequency  int       `db:"planting_frequency"`
	CreatedAt          time.Time `db:"created_at"`
}

func (m *Mission) IsFull() bool {
	return m.CurrentTreeCount >= m.TotalRequiredTrees
}

func (m *Mission) Frequency() int {
	if m.PlantingFrequency < 1 {
		return 1
	}
	return m.PlantingFrequency
}

// ForestTree is one planted communal tree. SlotIndex is the zero-based
// planting order within the mission.
type ForestTree struct {
	ID        int64     `db:"id"`
	MissionID int64     `db:"mission_id"`
	SlotIndex int       `db:"slot_index"`
	X         float64   `db:"x"`
	Y         float64   `db:"y"`
	PlantedAt time.Time `db:"planted_at"`
}
