package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoard(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"minimum board", 2},
		{"standard board", 4},
		{"large board", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := NewBoard(tt.size)

			assert.Equal(t, tt.size, board.N)
			assert.Len(t, board.T, tt.size*tt.size)
			for i, v := range board.T {
				assert.Equal(t, EmptyTile, v, "tile %d should be empty", i)
			}
		})
	}
}

func TestBoard_IdxXY(t *testing.T) {
	board := NewBoard(5)

	tests := []struct {
		x, y int
		idx  int
	}{
		{0, 0, 0},
		{4, 0, 4},
		{0, 1, 5},
		{2, 2, 12},
		{4, 4, 24},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.idx, board.Idx(tt.x, tt.y))
		x, y := board.XY(tt.idx)
		assert.Equal(t, tt.x, x)
		assert.Equal(t, tt.y, y)
	}
}

func TestBoard_InBounds(t *testing.T) {
	board := NewBoard(4)

	assert.True(t, board.InBounds(0, 0))
	assert.True(t, board.InBounds(3, 3))
	assert.False(t, board.InBounds(-1, 0))
	assert.False(t, board.InBounds(0, 4))
	assert.False(t, board.InBounds(4, 4))
}

func TestBoardFromRows(t *testing.T) {
	t.Run("valid rows", func(t *testing.T) {
		b, err := BoardFromRows([][]int{
			{2, 0},
			{4, 1024},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, b.N)
		assert.Equal(t, 1024, b.Get(1, 1))
		assert.Equal(t, 4, b.At(NewCoordinate(0, 1)))
	})

	invalid := []struct {
		name string
		rows [][]int
	}{
		{"empty", nil},
		{"single cell", [][]int{{2}}},
		{"ragged", [][]int{{2, 0}, {0}}},
		{"not power of two", [][]int{{3, 0}, {0, 0}}},
		{"negative", [][]int{{-2, 0}, {0, 0}}},
		{"one is not a tile", [][]int{{1, 0}, {0, 0}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BoardFromRows(tt.rows)
			assert.ErrorIs(t, err, ErrInvalidBoard)
		})
	}
}

func TestBoard_CloneAndEqual(t *testing.T) {
	b := NewBoard(3)
	b.Set(1, 1, 8)

	c := b.Clone()
	assert.True(t, b.Equal(c))

	c.Set(0, 0, 2)
	assert.False(t, b.Equal(c))
	assert.Equal(t, 0, b.Get(0, 0), "clone must not share storage")

	assert.False(t, b.Equal(nil))
	assert.False(t, b.Equal(NewBoard(4)))

	b.CopyFrom(c)
	assert.True(t, b.Equal(c))
}

func TestBoard_EmptyCells(t *testing.T) {
	b, err := BoardFromRows([][]int{
		{2, 0, 4},
		{0, 8, 0},
		{2, 2, 2},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 5}, b.EmptyCells(nil))
	assert.Equal(t, 3, b.CountEmpty())
	assert.False(t, b.IsFull())
	assert.Equal(t, 8, b.MaxTile())
	assert.Equal(t, 20, b.Sum())

	b.Clear()
	assert.Equal(t, 9, b.CountEmpty())
	assert.Zero(t, b.MaxTile())
}

func TestBoard_RowsIsCopy(t *testing.T) {
	b := NewBoard(2)
	b.Set(0, 0, 2)

	rows := b.Rows()
	rows[0][0] = 64
	assert.Equal(t, 2, b.Get(0, 0))
}
