package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinate_IndexRoundTrip(t *testing.T) {
	for idx := 0; idx < 16; idx++ {
		c := FromIndex(idx, 4)
		assert.Equal(t, idx, c.ToIndex(4))
		assert.True(t, c.IsValid(4))
	}
}

func TestCoordinate_Neighbours(t *testing.T) {
	c := NewCoordinate(1, 2)
	assert.Equal(t, Coordinate{X: 2, Y: 2}, c.Right())
	assert.Equal(t, Coordinate{X: 1, Y: 3}, c.Down())
	assert.False(t, NewCoordinate(3, 3).Right().IsValid(4))
	assert.Equal(t, "(1,2)", c.String())
}

func TestPowerOfTwoHelpers(t *testing.T) {
	assert.True(t, IsPowerOfTwo(2))
	assert.True(t, IsPowerOfTwo(2048))
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(6))
	assert.True(t, IsTileValue(0))
	assert.False(t, IsTileValue(1))
	assert.True(t, IsTileValue(4))
	assert.Equal(t, 0, Log2(0))
	assert.Equal(t, 1, Log2(2))
	assert.Equal(t, 11, Log2(2048))
	assert.Equal(t, "   7", IntToStringFixedWidth(7, 4))
}
