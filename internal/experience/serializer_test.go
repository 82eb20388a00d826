package experience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

func TestSerializer_BoardToTensor(t *testing.T) {
	s := NewSerializer()
	obs := game.Observation{
		{0, 2},
		{4, 1 << 17},
	}

	tensor := s.BoardToTensor(obs)
	require.Len(t, tensor, NumChannels*4)
	assert.Equal(t, []int32{NumChannels, 2, 2}, s.GetTensorShape(2))

	at := func(c, x, y int) float32 { return tensor[c*4+y*2+x] }
	assert.Equal(t, float32(1), at(0, 0, 0), "empty cell on channel 0")
	assert.Equal(t, float32(1), at(1, 1, 0), "2 on channel 1")
	assert.Equal(t, float32(1), at(2, 0, 1), "4 on channel 2")
	assert.Equal(t, float32(1), at(NumChannels-1, 1, 1), "huge tiles clamp to the last channel")

	var ones float32
	for _, v := range tensor {
		ones += v
	}
	assert.Equal(t, float32(4), ones, "exactly one channel per cell")
}

func TestSerializer_BoardToTensorIntoReuses(t *testing.T) {
	s := NewSerializer()
	dst := make([]float32, NumChannels*16)
	for i := range dst {
		dst[i] = 7
	}

	out := s.BoardToTensorInto(dst, game.Observation{
		{2, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	assert.Equal(t, &dst[0], &out[0])
	for _, v := range out {
		assert.Contains(t, []float32{0, 1}, v)
	}

	small := s.BoardToTensorInto(nil, game.Observation{{0, 0}, {0, 0}})
	assert.Len(t, small, NumChannels*4)
}

func TestSerializer_Batch(t *testing.T) {
	s := NewSerializer()
	batch := s.BatchBoardToTensor([]game.Observation{
		{{2, 0}, {0, 0}},
		{{0, 0}, {0, 4}},
	})
	require.Len(t, batch, 2)
	assert.NotEqual(t, batch[0], batch[1])
}

func TestSerializer_ActionMaskAndFeatures(t *testing.T) {
	s := NewSerializer()
	assert.Equal(t, []float32{1, 0, 1, 0}, s.ActionMaskToFloat([core.NumActions]bool{true, false, true, false}))

	f := s.ExtractFeatures(game.Observation{{2, 0}, {8, 0}})
	assert.Equal(t, float32(2), f["empty_cells"])
	assert.Equal(t, float32(10), f["tile_sum"])
	assert.Equal(t, float32(8), f["max_tile"])
	assert.Equal(t, float32(3), f["max_exponent"])
}
