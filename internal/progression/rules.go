// AngelaMos | 2026
// rules.go

package progression

type Outcome struct {
	NewCoins   int
	NewLevel   int
	PrevLevel  int
	LevelUp    bool
	ReachedTop bool
}

// Apply adds reward to coins and moves the level up to whatever the new
// total reaches. The level never drops below currentLevel, so spending
// coins after a threshold has no effect on it.
func Apply(currentCoins, currentLevel, reward int) Outcome {
	if reward < 0 {
		reward = 0
	}

	newCoins := currentCoins + reward
	newLevel := currentLevel
	if reached := LevelForCoins(newCoins).ID; reached > newLevel {
		newLevel = reached
	}

	return Outcome{
		NewCoins:   newCoins,
		NewLevel:   newLevel,
		PrevLevel:  currentLevel,
		LevelUp:    newLevel > currentLevel,
		ReachedTop: currentLevel < LevelMightyOak && newLevel >= LevelMightyOak,
	}
}

// TriggersContribution reports whether the transition funds the global
// mission. Only entering MightyOak does; Sapling does not.
func (o Outcome) TriggersContribution() bool {
	return o.ReachedTop
}
