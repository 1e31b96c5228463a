// AngelaMos | 2026
// entity.go

package badge

import (
	"time"
)

type Criteria string

const (
	CriteriaLevelUp   Criteria = "LevelUp"
	CriteriaTaskCount Criteria = "TaskCount"
)

// Badge is a catalog entry. RequiredDifficulty is only meaningful for
// TaskCount badges; for LevelUp badges RequiredCount is the level id.
type Badge struct {
	ID                 int64    `db:"id"                  json:"id"`
	Name               string   `db:"name"                json:"name"`
	Description        string   `db:"description"         json:"description"`
	CriteriaType       Criteria `db:"criteria_type"       json:"criteriaType"`
	RequiredDifficulty string   `db:"required_difficulty" json:"requiredDifficulty,omitempty"`
	RequiredCount      int      `db:"required_count"      json:"requiredCount"`
}

type EarnedBadge struct {
	Badge
	DateEarned time.Time `db:"date_earned" json:"dateEarned"`
}
