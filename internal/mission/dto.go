// AngelaMos | 2026
// dto.go

package mission

import (
	"time"
)

type ProgressResponse struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	TotalRequiredTrees int     `json:"totalRequiredTrees"`
	CurrentTreeCount   int     `json:"currentTreeCount"`
	PlantingFrequency  int     `json:"plantingFrequency"`
	PlantedTrees       int     `json:"plantedTrees"`
	Percent            float64 `json:"percent"`
	Completed          bool    `json:"completed"`
}

type ForestTreeResponse struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	PlantedAt time.Time `json:"plantedAt"`
}

func toProgressResponse(m *Mission, planted int) *ProgressResponse {
	var percent float64
	if m.TotalRequiredTrees > 0 {
		percent = float64(m.CurrentTreeCount) * 100 /
			float64(m.TotalRequiredTrees)
	}

	return &ProgressResponse{
		ID:                 m.ID,
		Name:               m.Name,
		TotalRequiredTrees: m.TotalRequiredTrees,
		CurrentTreeCount:   m.CurrentTreeCount,
		PlantingFrequency:  m.Frequency(),
		PlantedTrees:       planted,
		Percent:            percent,
		Completed:          m.IsFull(),
	}
}
