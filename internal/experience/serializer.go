package experience

import (
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

const (
	// NumChannels is the depth of the one-hot encoding. Channel k is set
	// where the tile equals 2^k; channel 0 marks empty cells. Tiles of
	// 2^15 and above share the last channel.
	NumChannels = 16
)

// Serializer converts observations to tensor representations
type Serializer struct{}

// NewSerializer creates a new observation serializer
func NewSerializer() *Serializer {
	return &Serializer{}
}

// BoardToTensor returns a [NumChannels, N, N] one-hot tensor in row-major
// order.
func (s *Serializer) BoardToTensor(obs game.Observation) []float32 {
	n := obs.Size()
	return s.BoardToTensorInto(make([]float32, NumChannels*n*n), obs)
}

// BoardToTensorInto writes the tensor into dst, reallocating only if dst
// is too small, and returns the slice written.
func (s *Serializer) BoardToTensorInto(dst []float32, obs game.Observation) []float32 {
	n := obs.Size()
	size := NumChannels * n * n
	if cap(dst) < size {
		dst = make([]float32, size)
	}
	dst = dst[:size]
	for i := range dst {
		dst[i] = 0
	}

	plane := n * n
	for y, row := range obs {
		for x, v := range row {
			dst[s.channelIndex(core.Log2(v), plane)+y*n+x] = 1
		}
	}
	return dst
}

func (s *Serializer) channelIndex(k, plane int) int {
	if k >= NumChannels {
		k = NumChannels - 1
	}
	return k * plane
}

// BatchBoardToTensor serializes many observations
func (s *Serializer) BatchBoardToTensor(batch []game.Observation) [][]float32 {
	out := make([][]float32, len(batch))
	for i, obs := range batch {
		out[i] = s.BoardToTensor(obs)
	}
	return out
}

// GetTensorShape returns the tensor shape for an N x N board
func (s *Serializer) GetTensorShape(n int) []int32 {
	return []int32{NumChannels, int32(n), int32(n)}
}

// ActionMaskToFloat converts a legal action mask to 0/1 floats
func (s *Serializer) ActionMaskToFloat(mask [core.NumActions]bool) []float32 {
	out := make([]float32, core.NumActions)
	for i, legal := range mask {
		if legal {
			out[i] = 1
		}
	}
	return out
}

// ExtractFeatures computes scalar summary features used for monitoring
func (s *Serializer) ExtractFeatures(obs game.Observation) map[string]float32 {
	empty := 0
	sum := 0
	for _, v := range obs.Flat() {
		if v == core.EmptyTile {
			empty++
		}
		sum += v
	}
	return map[string]float32{
		"empty_cells":  float32(empty),
		"tile_sum":     float32(sum),
		"max_tile":     float32(obs.MaxTile()),
		"max_exponent": float32(core.Log2(obs.MaxTile())),
	}
}
