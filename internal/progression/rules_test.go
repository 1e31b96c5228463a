// AngelaMos | 2026
// rules_test.go

package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		coins      int
		level      int
		reward     int
		wantCoins  int
		wantLevel  int
		wantUp     bool
		contribute bool
	}{
		{
			name:      "easy task crosses into sapling",
			coins:     240,
			level:     LevelSeedling,
			reward:    100,
			wantCoins: 340,
			wantLevel: LevelSapling,
			wantUp:    true,
		},
		{
			name:       "normal task crosses into mighty oak",
			coins:      480,
			level:      LevelSapling,
			reward:     200,
			wantCoins:  680,
			wantLevel:  LevelMightyOak,
			wantUp:     true,
			contribute: true,
		},
		{
			name:       "seedling jumps straight to mighty oak",
			coins:      200,
			level:      LevelSeedling,
			reward:     300,
			wantCoins:  500,
			wantLevel:  LevelMightyOak,
			wantUp:     true,
			contribute: true,
		},
		{
			name:      "below threshold stays",
			coins:     0,
			level:     LevelSeedling,
			reward:    100,
			wantCoins: 100,
			wantLevel: LevelSeedling,
		},
		{
			name:      "already top level",
			coins:     900,
			level:     LevelMightyOak,
			reward:    300,
			wantCoins: 1200,
			wantLevel: LevelMightyOak,
		},
		{
			name:      "spent coins never lower the level",
			coins:     10,
			level:     LevelMightyOak,
			reward:    100,
			wantCoins: 110,
			wantLevel: LevelMightyOak,
		},
		{
			name:      "negative reward is ignored",
			coins:     100,
			level:     LevelSeedling,
			reward:    -50,
			wantCoins: 100,
			wantLevel: LevelSeedling,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Apply(tt.coins, tt.level, tt.reward)

			assert.Equal(t, tt.wantCoins, out.NewCoins)
			assert.Equal(t, tt.wantLevel, out.NewLevel)
			assert.Equal(t, tt.wantUp, out.LevelUp)
			assert.Equal(t, tt.contribute, out.TriggersContribution())
			assert.GreaterOrEqual(t, out.NewLevel, tt.level)
		})
	}
}

func TestLevelForCoins(t *testing.T) {
	assert.Equal(t, "Seedling", LevelForCoins(0).Name)
	assert.Equal(t, "Seedling", LevelForCoins(249).Name)
	assert.Equal(t, "Sapling", LevelForCoins(250).Name)
	assert.Equal(t, "Sapling", LevelForCoins(499).Name)
	assert.Equal(t, "MightyOak", LevelForCoins(500).Name)
	assert.Equal(t, LevelMightyOak, MaxLevel())
}

func TestLevelForUnknownFallsBack(t *testing.T) {
	assert.Equal(t, LevelSeedling, LevelFor(99).ID)
	assert.Equal(t, "Sapling", LevelFor(LevelSapling).Name)
}
