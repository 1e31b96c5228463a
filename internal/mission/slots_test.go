// AngelaMos | 2026
// slots_test.go

package mission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter struct {
	n   int
	err error
}

func (c fixedCounter) CountForestTrees(context.Context, int64) (int, error) {
	return c.n, c.err
}

func TestSlotFollowsLayoutAndWraps(t *testing.T) {
	a := NewSlotAllocator(0, func() float64 { return 0.5 })

	require.Equal(t, 50, a.Len())
	assert.Equal(t, Point{X: 48, Y: 30}, a.Slot(0))
	assert.Equal(t, Point{X: 50, Y: 50}, a.Slot(9))
	assert.Equal(t, Point{X: 35, Y: 80}, a.Slot(49))
	assert.Equal(t, a.Slot(0), a.Slot(50))
	assert.Equal(t, a.Slot(0), a.Slot(-3))
}

func TestSlotJitterStaysInBounds(t *testing.T) {
	tests := []struct {
		name string
		rng  float64
		want Point
	}{
		{"low", 0, Point{X: 45.5, Y: 27.5}},
		{"centre", 0.5, Point{X: 48, Y: 30}},
		{"high", 0.999999, Point{X: 50.5, Y: 32.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSlotAllocator(2.5, func() float64 { return tt.rng })
			got := a.Slot(0)
			assert.InDelta(t, tt.want.X, got.X, 1e-3)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-3)
		})
	}
}

func TestSlotClampsToMap(t *testing.T) {
	a := NewSlotAllocator(50, func() float64 { return 0 })
	for i := range a.Len() {
		p := a.Slot(i)
		assert.GreaterOrEqual(t, p.X, 0.0)
		assert.GreaterOrEqual(t, p.Y, 0.0)
	}

	a = NewSlotAllocator(50, func() float64 { return 0.999 })
	for i := range a.Len() {
		p := a.Slot(i)
		assert.LessOrEqual(t, p.X, 100.0)
		assert.LessOrEqual(t, p.Y, 100.0)
	}
}

func TestNextSlotUsesPlantedCount(t *testing.T) {
	a := NewSlotAllocator(0, func() float64 { return 0.5 })

	index, p, err := a.NextSlot(context.Background(), fixedCounter{n: 52}, 1)
	require.NoError(t, err)
	assert.Equal(t, 52, index)
	assert.Equal(t, a.Slot(2), p)

	_, _, err = a.NextSlot(context.Background(), fixedCounter{err: errors.New("down")}, 1)
	require.Error(t, err)
}
