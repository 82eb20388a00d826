package experience

import (
	"fmt"
	"math"
)

// RewardScale selects how the raw merge reward is transformed for training
type RewardScale string

const (
	// RewardScaleRaw keeps the merge sum
	RewardScaleRaw RewardScale = "raw"
	// RewardScaleLog2 uses log2(1 + merge sum)
	RewardScaleLog2 RewardScale = "log2"
)

// RewardConfig holds configurable reward shaping values. Shaping only
// affects Transition.ShapedReward; the engine reward is never changed.
type RewardConfig struct {
	Scale RewardScale
	// NoOpPenalty is added when an action left the board unchanged
	NoOpPenalty float64
	// TerminalPenalty is added on the transition that ends the episode
	TerminalPenalty float64
}

// DefaultRewardConfig returns the identity shaping
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{Scale: RewardScaleRaw}
}

// Validate checks the scale name
func (c RewardConfig) Validate() error {
	switch c.Scale {
	case RewardScaleRaw, RewardScaleLog2, "":
		return nil
	default:
		return fmt.Errorf("unknown reward scale %q", c.Scale)
	}
}

// CalculateReward computes the shaped reward for a transition using the
// default configuration.
func CalculateReward(t Transition) float64 {
	return CalculateRewardWithConfig(t, DefaultRewardConfig())
}

// CalculateRewardWithConfig computes the shaped reward for t
func CalculateRewardWithConfig(t Transition, cfg RewardConfig) float64 {
	reward := t.Reward
	if cfg.Scale == RewardScaleLog2 {
		reward = math.Log2(1 + reward)
	}
	if !t.Changed {
		reward += cfg.NoOpPenalty
	}
	if t.Terminated {
		reward += cfg.TerminalPenalty
	}
	return reward
}
