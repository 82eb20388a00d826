package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBoard(t *testing.T, rows [][]int) *Board {
	t.Helper()
	b, err := BoardFromRows(rows)
	require.NoError(t, err)
	return b
}

func TestMover_Apply_Directions(t *testing.T) {
	start := [][]int{
		{2, 0, 2, 0},
		{0, 4, 0, 4},
		{2, 0, 0, 2},
		{0, 0, 0, 8},
	}

	tests := []struct {
		name     string
		action   Action
		expected [][]int
		reward   int
	}{
		{
			name:   "left",
			action: ActionLeft,
			expected: [][]int{
				{4, 0, 0, 0},
				{8, 0, 0, 0},
				{4, 0, 0, 0},
				{8, 0, 0, 0},
			},
			reward: 16,
		},
		{
			name:   "right",
			action: ActionRight,
			expected: [][]int{
				{0, 0, 0, 4},
				{0, 0, 0, 8},
				{0, 0, 0, 4},
				{0, 0, 0, 8},
			},
			reward: 16,
		},
		{
			name:   "up",
			action: ActionUp,
			expected: [][]int{
				{4, 4, 2, 4},
				{0, 0, 0, 2},
				{0, 0, 0, 8},
				{0, 0, 0, 0},
			},
			reward: 4,
		},
		{
			name:   "down",
			action: ActionDown,
			expected: [][]int{
				{0, 0, 0, 0},
				{0, 0, 0, 4},
				{0, 0, 0, 2},
				{4, 4, 2, 8},
			},
			reward: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustBoard(t, start)
			reward, changed := NewMover(4).Apply(b, tt.action)
			assert.True(t, changed)
			assert.Equal(t, tt.reward, reward)
			assert.Equal(t, tt.expected, b.Rows())
		})
	}
}

func TestMover_Apply_NoOp(t *testing.T) {
	b := mustBoard(t, [][]int{
		{2, 4, 0, 0},
		{8, 0, 0, 0},
		{0, 0, 0, 0},
		{16, 2, 4, 0},
	})
	before := b.Clone()

	reward, changed := NewMover(4).Apply(b, ActionLeft)
	assert.False(t, changed)
	assert.Zero(t, reward)
	assert.True(t, b.Equal(before))
}

func TestMover_Preview_DoesNotMutate(t *testing.T) {
	b := mustBoard(t, [][]int{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	before := b.Clone()

	reward, changed := NewMover(4).Preview(b, ActionLeft)
	assert.True(t, changed)
	assert.Equal(t, 4, reward)
	assert.True(t, b.Equal(before))
}

func TestMover_ResizesBuffer(t *testing.T) {
	m := NewMover(2)
	b := mustBoard(t, [][]int{
		{2, 0, 2},
		{0, 0, 0},
		{0, 0, 0},
	})
	reward, changed := m.Apply(b, ActionRight)
	assert.True(t, changed)
	assert.Equal(t, 4, reward)
	assert.Equal(t, []int{0, 0, 4}, b.Rows()[0])
}

func TestApplyMove_InvalidAction(t *testing.T) {
	b := mustBoard(t, [][]int{{2, 2}, {0, 0}})
	before := b.Clone()

	_, _, err := ApplyMove(b, Action(7))
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.True(t, b.Equal(before), "rejected action must not mutate the board")
}
