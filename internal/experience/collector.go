package experience

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// SinkFunc receives every transition a collector records
type SinkFunc func(Transition)

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithRewardConfig sets the shaping used for ShapedReward
func WithRewardConfig(cfg RewardConfig) CollectorOption {
	return func(c *Collector) { c.rewards = cfg }
}

// WithBuffer forwards every recorded transition to buf
func WithBuffer(buf *Buffer) CollectorOption {
	return func(c *Collector) { c.buffer = buf }
}

// WithSink forwards every recorded transition to fn
func WithSink(fn SinkFunc) CollectorOption {
	return func(c *Collector) { c.sinks = append(c.sinks, fn) }
}

// WithoutRetention makes the collector forward transitions to its buffer
// and sinks without holding them itself
func WithoutRetention() CollectorOption {
	return func(c *Collector) { c.forwardOnly = true }
}

// Collector is an in-memory game.ExperienceCollector. It stops recording
// once maxSize transitions are held and logs a warning for each drop.
type Collector struct {
	mu          sync.Mutex
	transitions []Transition
	maxSize     int
	dropped     int64

	envID   string
	episode int
	step    int
	ended   []game.EpisodeStats

	rewards     RewardConfig
	buffer      *Buffer
	sinks       []SinkFunc
	forwardOnly bool
	logger      zerolog.Logger
}

var _ game.ExperienceCollector = (*Collector)(nil)

// NewCollector creates a collector holding at most maxSize transitions
func NewCollector(maxSize int, logger zerolog.Logger, opts ...CollectorOption) *Collector {
	if maxSize <= 0 {
		maxSize = defaultBufferCapacity
	}
	c := &Collector{
		transitions: make([]Transition, 0, min(maxSize, 1024)),
		maxSize:     maxSize,
		rewards:     DefaultRewardConfig(),
		logger:      logger.With().Str("component", "experience_collector").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnEpisodeStart records which episode subsequent steps belong to
func (c *Collector) OnEpisodeStart(envID string, episode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envID = envID
	c.episode = episode
	c.step = 0
}

// OnStep records one transition
func (c *Collector) OnStep(prev game.Observation, mask [core.NumActions]bool, action core.Action, result game.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.step++
	t := Transition{
		ID:          uuid.NewString(),
		EnvID:       c.envID,
		Episode:     c.episode,
		Step:        c.step,
		State:       prev,
		Action:      action,
		Reward:      result.Reward,
		NextState:   result.Observation.Clone(),
		Terminated:  result.Terminated,
		Changed:     result.Changed,
		ActionMask:  mask,
		CollectedAt: time.Now(),
	}
	t.ShapedReward = CalculateRewardWithConfig(t, c.rewards)

	if c.buffer != nil {
		if err := c.buffer.Add(t); err != nil {
			c.logger.Debug().Err(err).Msg("Buffer rejected transition")
		}
	}
	for _, sink := range c.sinks {
		sink(t)
	}
	if c.forwardOnly {
		return
	}

	if len(c.transitions) >= c.maxSize {
		c.dropped++
		c.logger.Warn().
			Int("buffer_size", len(c.transitions)).
			Int("max_size", c.maxSize).
			Msg("Experience buffer full, dropping transition")
		return
	}
	c.transitions = append(c.transitions, t)

	c.logger.Debug().
		Str("transition_id", t.ID).
		Int("episode", t.Episode).
		Int("step", t.Step).
		Float64("reward", t.Reward).
		Bool("terminated", t.Terminated).
		Msg("Collected transition")
}

// OnEpisodeEnd handles terminal states
func (c *Collector) OnEpisodeEnd(stats game.EpisodeStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = append(c.ended, stats)

	c.logger.Info().
		Str("env_id", stats.EnvID).
		Int("episode", stats.Episode).
		Int("score", stats.Score).
		Int("max_tile", stats.MaxTile).
		Int("total_transitions", len(c.transitions)).
		Msg("Episode ended")
}

// Transitions returns a copy of all collected transitions
func (c *Collector) Transitions() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Transition, len(c.transitions))
	copy(result, c.transitions)
	return result
}

// Latest returns the n most recent transitions
func (c *Collector) Latest(n int) []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > len(c.transitions) {
		n = len(c.transitions)
	}
	result := make([]Transition, n)
	copy(result, c.transitions[len(c.transitions)-n:])
	return result
}

// EndedEpisodes returns the summaries of finished episodes
func (c *Collector) EndedEpisodes() []game.EpisodeStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]game.EpisodeStats(nil), c.ended...)
}

// Count returns the number of held transitions
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transitions)
}

// Dropped returns how many transitions were refused because the collector was full
func (c *Collector) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Clear removes all transitions
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions = c.transitions[:0]
}
