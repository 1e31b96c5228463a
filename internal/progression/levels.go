// AngelaMos | 2026
// levels.go

package progression

const (
	LevelSeedling  = 1
	LevelSapling   = 2
	LevelMightyOak = 3
)

type Level struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	MinCoins int    `json:"minCoins"`
}

// Levels is ordered by MinCoins ascending.
var Levels = []Level{
	{ID: LevelSeedling, Name: "Seedling", MinCoins: 0},
	{ID: LevelSapling, Name: "Sapling", MinCoins: 250},
	{ID: LevelMightyOak, Name: "MightyOak", MinCoins: 500},
}

// LevelFor returns the catalog entry for id, falling back to Seedling for
// unknown ids.
func LevelFor(id int) Level {
	for _, l := range Levels {
		if l.ID == id {
			return l
		}
	}
	return Levels[0]
}

// LevelForCoins is the highest level whose threshold coins reaches.
func LevelForCoins(coins int) Level {
	current := Levels[0]
	for _, l := range Levels {
		if coins >= l.MinCoins {
			current = l
		}
	}
	return current
}

func MaxLevel() int {
	return Levels[len(Levels)-1].ID
}
