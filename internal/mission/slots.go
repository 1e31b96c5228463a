// AngelaMos | 2026
// slots.go

package mission

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// Point is a map position in percent of the map's width and height.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// forestLayout is the planting order of the community forest, drawn in
// five phases from the centre of the map outwards.
var forestLayout = []Point{
	// centre
	{48, 30}, {52, 32}, {45, 35}, {55, 35}, {50, 40},
	{42, 38}, {58, 38}, {47, 45}, {53, 45}, {50, 50},
	// north and west
	{35, 25}, {40, 22}, {45, 20}, {55, 20}, {60, 22},
	{30, 30}, {32, 38}, {28, 45}, {35, 50}, {25, 35},
	// east
	{65, 30}, {70, 35}, {75, 42}, {78, 48}, {72, 52},
	{68, 45}, {62, 40}, {75, 55}, {80, 50}, {70, 60},
	// south
	{40, 60}, {45, 65}, {50, 75}, {55, 70}, {60, 65},
	{48, 80}, {52, 85}, {58, 80}, {42, 72}, {38, 65},
	// edges
	{20, 40}, {22, 50}, {25, 60}, {30, 70}, {65, 20},
	{70, 25}, {82, 55}, {55, 90}, {45, 88}, {35, 80},
}

// ForestCounter counts the trees already planted for a mission.
type ForestCounter interface {
	CountForestTrees(ctx context.Context, missionID int64) (int, error)
}

// SlotAllocator hands out layout positions in order. Once every slot has
// been used it starts again from the first one, so a mission larger than
// the layout keeps planting on top of the existing forest.
type SlotAllocator struct {
	layout []Point
	jitter float64
	rng    func() float64
}

// NewSlotAllocator spreads each point by up to ±jitter on both axes. rng
// must return values in [0, 1); nil uses math/rand/v2.
func NewSlotAllocator(jitter float64, rng func() float64) *SlotAllocator {
	if rng == nil {
		rng = rand.Float64 //nolint:gosec // G404: cosmetic jitter
	}
	if jitter < 0 {
		jitter = 0
	}
	return &SlotAllocator{
		layout: forestLayout,
		jitter: jitter,
		rng:    rng,
	}
}

func (a *SlotAllocator) Len() int {
	return len(a.layout)
}

// Slot returns the jittered position for the index-th planted tree.
func (a *SlotAllocator) Slot(index int) Point {
	if index < 0 {
		index = 0
	}
	base := a.layout[index%len(a.layout)]
	return Point{
		X: clampPercent(base.X + a.offset()),
		Y: clampPercent(base.Y + a.offset()),
	}
}

// NextSlot picks the slot following the trees already planted for the
// mission. The caller must hold the mission lock.
func (a *SlotAllocator) NextSlot(
	ctx context.Context,
	forest ForestCounter,
	missionID int64,
) (int, Point, error) {
	planted, err := forest.CountForestTrees(ctx, missionID)
	if err != nil {
		return 0, Point{}, fmt.Errorf("next slot: %w", err)
	}

	return planted, a.Slot(planted), nil
}

func (a *SlotAllocator) offset() float64 {
	return (a.rng() - 0.5) * 2 * a.jitter
}

func clampPercent(v float64) float64 {
	return max(0, min(100, v))
}
