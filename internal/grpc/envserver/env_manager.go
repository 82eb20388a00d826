package envserver

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events/subscribers"
)

var (
	ErrEnvNotFound        = errors.New("environment not found")
	ErrAtCapacity         = errors.New("server at capacity")
	ErrExperienceDisabled = errors.New("experience collection disabled")
)

const (
	defaultCleanupInterval = time.Minute
	defaultMaxBoardSize    = 16
	cleanupRestartDelay    = 5 * time.Second
)

// ManagerConfig configures an EnvManager
type ManagerConfig struct {
	MaxEnvs         int // 0 means unlimited
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	DefaultSize     int
	MaxBoardSize    int // 0 means 16
	FourProbability float64
	LogEvents       bool

	ExperienceEnabled bool
	BufferCapacity    int
	Rewards           experience.RewardConfig
	// Sink receives every transition from every environment, typically
	// ExperiencePipeline.Sink.
	Sink experience.SinkFunc
}

// envInstance is one environment and everything attached to it. mu
// serialises engine access; the engine itself is not safe for concurrent use.
type envInstance struct {
	id     string
	engine *game.Engine
	mu     sync.Mutex

	eventBus *events.EventBus

	createdAt    time.Time
	lastActivity time.Time

	idempotency *IdempotencyManager
	streams     *StreamManager
	buffer      *experience.Buffer
}

func (env *envInstance) touchLocked() {
	env.lastActivity = time.Now()
}

// stateLocked builds a GetStateResponse. Must be called with mu held.
func (env *envInstance) stateLocked() GetStateResponse {
	e := env.engine
	return GetStateResponse{
		EnvID:        env.id,
		Observation:  e.Observation(),
		Score:        e.Score(),
		Steps:        e.Steps(),
		Episode:      e.Episode(),
		MaxTile:      e.MaxTile(),
		Terminated:   e.IsTerminated(),
		Render:       e.Render(),
		LegalActions: e.LegalActions(),
	}
}

// EnvManager owns every live environment on the server
type EnvManager struct {
	mu      sync.RWMutex
	envs    map[string]*envInstance
	config  ManagerConfig
	buffers *experience.BufferManager
	logger  zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	now      func() time.Time
}

// NewEnvManager creates a manager. Call Start to run idle cleanup.
func NewEnvManager(cfg ManagerConfig, logger zerolog.Logger) *EnvManager {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if cfg.DefaultSize == 0 {
		cfg.DefaultSize = game.DefaultBoardSize
	}
	if cfg.MaxBoardSize <= 0 {
		cfg.MaxBoardSize = defaultMaxBoardSize
	}
	if cfg.Rewards.Scale == "" {
		cfg.Rewards = experience.DefaultRewardConfig()
	}
	m := &EnvManager{
		envs:   make(map[string]*envInstance),
		config: cfg,
		logger: logger.With().Str("component", "env_manager").Logger(),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
	if cfg.ExperienceEnabled {
		m.buffers = experience.NewBufferManager(cfg.BufferCapacity, logger)
	}
	return m
}

// Start launches the idle cleanup loop when an idle timeout is configured
func (m *EnvManager) Start() {
	if m.config.IdleTimeout > 0 {
		go m.runCleanup()
	}
}

// Stop ends the cleanup loop and closes every environment
func (m *EnvManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)

		m.mu.Lock()
		envs := m.envs
		m.envs = make(map[string]*envInstance)
		m.mu.Unlock()

		for _, env := range envs {
			m.release(env)
		}
		if m.buffers != nil {
			if err := m.buffers.CloseAll(); err != nil {
				m.logger.Error().Err(err).Msg("Failed to close experience buffers")
			}
		}
		m.logger.Info().Int("closed", len(envs)).Msg("Environment manager stopped")
	})
}

// Create builds a new environment. size 0 selects the configured default.
func (m *EnvManager) Create(size int, seed *int64) (*envInstance, error) {
	if size == 0 {
		size = m.config.DefaultSize
	}
	if size > m.config.MaxBoardSize {
		return nil, fmt.Errorf("board size %d exceeds maximum %d: %w", size, m.config.MaxBoardSize, core.ErrInvalidConfiguration)
	}
	id := uuid.NewString()
	envLogger := m.logger.With().Str("env_id", id).Logger()

	eventBus := events.NewEventBusWithLogger(envLogger)
	streams := NewStreamManager(envLogger)
	eventBus.Subscribe(newStreamSubscriber(id, streams, envLogger))
	if m.config.LogEvents {
		eventBus.Subscribe(subscribers.NewLoggerSubscriber("logger_"+id, envLogger, zerolog.DebugLevel))
	}

	env := &envInstance{
		id:          id,
		eventBus:    eventBus,
		idempotency: NewIdempotencyManager(),
		streams:     streams,
	}

	cfg := game.GameConfig{
		Size:            size,
		FourProbability: m.config.FourProbability,
		Seed:            seed,
		EnvID:           id,
		Logger:          &envLogger,
		EventBus:        eventBus,
	}
	if m.buffers != nil {
		env.buffer = m.buffers.GetOrCreateBuffer(id)
		opts := []experience.CollectorOption{
			experience.WithoutRetention(),
			experience.WithBuffer(env.buffer),
			experience.WithRewardConfig(m.config.Rewards),
		}
		if m.config.Sink != nil {
			opts = append(opts, experience.WithSink(m.config.Sink))
		}
		cfg.ExperienceCollector = experience.NewCollector(m.config.BufferCapacity, envLogger, opts...)
	}

	// Reserve the slot before building the engine so concurrent creates
	// cannot overshoot MaxEnvs.
	m.mu.Lock()
	if m.config.MaxEnvs > 0 && len(m.envs) >= m.config.MaxEnvs {
		current := len(m.envs)
		m.mu.Unlock()
		m.discardBuffer(id)
		m.logger.Warn().
			Int("current_envs", current).
			Int("max_envs", m.config.MaxEnvs).
			Msg("Rejecting environment creation - server at capacity")
		return nil, fmt.Errorf("%w: %d/%d environments active", ErrAtCapacity, current, m.config.MaxEnvs)
	}
	m.envs[id] = env
	env.mu.Lock()
	m.mu.Unlock()

	created := false
	defer func() {
		env.mu.Unlock()
		if !created {
			m.mu.Lock()
			delete(m.envs, id)
			m.mu.Unlock()
			m.discardBuffer(id)
		}
	}()

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	now := m.now()
	env.engine = engine
	env.createdAt = now
	env.lastActivity = now
	created = true

	m.logger.Info().
		Str("env_id", id).
		Int("size", size).
		Bool("seeded", seed != nil).
		Int("current_envs", m.Count()).
		Msg("Created environment")
	return env, nil
}

// newEngine turns a panic during engine construction into an error so a
// failed create never leaves a reserved slot behind.
func newEngine(cfg game.GameConfig) (engine *game.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine = nil
			err = fmt.Errorf("building engine of size %d: %v", cfg.Size, r)
		}
	}()
	return game.NewEngine(cfg)
}

// Get returns the environment with id. Callers must lock env.mu before
// touching its engine.
func (m *EnvManager) Get(id string) (*envInstance, error) {
	m.mu.RLock()
	env, ok := m.envs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEnvNotFound, id)
	}
	return env, nil
}

// Remove closes and forgets the environment with id
func (m *EnvManager) Remove(id string) error {
	m.mu.Lock()
	env, ok := m.envs[id]
	delete(m.envs, id)
	remaining := len(m.envs)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrEnvNotFound, id)
	}
	m.release(env)
	m.logger.Info().Str("env_id", id).Int("remaining", remaining).Msg("Closed environment")
	return nil
}

// Count returns the number of live environments
func (m *EnvManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.envs)
}

// Sample draws up to n transitions from env's replay buffer
func (m *EnvManager) Sample(id string, n int, seed *int64) ([]experience.Transition, error) {
	if m.buffers == nil {
		return nil, ErrExperienceDisabled
	}
	env, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewSource(*seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return env.buffer.Sample(n, rng), nil
}

func (m *EnvManager) release(env *envInstance) {
	env.streams.CloseAll()
	env.idempotency.Clear()
	m.discardBuffer(env.id)
}

func (m *EnvManager) discardBuffer(id string) {
	if m.buffers == nil {
		return
	}
	if err := m.buffers.RemoveBuffer(id); err != nil {
		m.logger.Debug().Err(err).Str("env_id", id).Msg("Failed to remove experience buffer")
	}
}

// runCleanup periodically removes idle environments
func (m *EnvManager) runCleanup() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Msg("Environment cleanup goroutine panicked - restarting")
			select {
			case <-m.stopCh:
				return
			case <-time.After(cleanupRestartDelay):
			}
			go m.runCleanup()
		}
	}()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanupIdle()
		}
	}
}

// cleanupIdle removes environments with no activity for IdleTimeout and
// returns how many were removed.
func (m *EnvManager) cleanupIdle() int {
	if m.config.IdleTimeout <= 0 {
		return 0
	}

	// Phase 1: snapshot references without holding env locks
	m.mu.RLock()
	refs := make([]*envInstance, 0, len(m.envs))
	for _, env := range m.envs {
		refs = append(refs, env)
	}
	m.mu.RUnlock()

	// Phase 2: inspect each env under its own lock
	now := m.now()
	var toDelete []*envInstance
	for _, env := range refs {
		env.mu.Lock()
		idle := now.Sub(env.lastActivity)
		createdAt := env.createdAt
		env.mu.Unlock()

		if idle > m.config.IdleTimeout {
			toDelete = append(toDelete, env)
			m.logger.Info().
				Str("env_id", env.id).
				Dur("age", now.Sub(createdAt)).
				Dur("inactive", idle).
				Msg("Cleaning up idle environment")
		}
	}
	if len(toDelete) == 0 {
		return 0
	}

	// Phase 3: drop from the map, then release outside the manager lock
	removed := make([]*envInstance, 0, len(toDelete))
	m.mu.Lock()
	for _, env := range toDelete {
		if current, ok := m.envs[env.id]; ok && current == env {
			delete(m.envs, env.id)
			removed = append(removed, env)
		}
	}
	remaining := len(m.envs)
	m.mu.Unlock()

	for _, env := range removed {
		m.release(env)
	}

	m.logger.Info().
		Int("cleaned", len(removed)).
		Int("remaining", remaining).
		Msg("Environment cleanup completed")
	return len(removed)
}
