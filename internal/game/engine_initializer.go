package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/rules"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/states"
)

// EngineInitializer handles validation and assembly of a new engine
type EngineInitializer struct {
	config GameConfig
	logger zerolog.Logger
}

// NewEngineInitializer creates a new engine initializer
func NewEngineInitializer(cfg GameConfig) *EngineInitializer {
	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	return &EngineInitializer{
		config: cfg,
		logger: base.With().Str("component", "GridEngine").Logger(),
	}
}

// Initialize validates the configuration, builds the engine and performs the
// first reset so the returned engine is ready for Step.
func (ei *EngineInitializer) Initialize() (*Engine, error) {
	if err := ei.validate(); err != nil {
		ei.logger.Error().Err(err).Int("size", ei.config.Size).Msg("Rejected engine configuration")
		return nil, err
	}

	ei.setupDefaults()
	engine := ei.createEngine()

	if ei.config.Seed != nil {
		engine.ResetWithSeed(*ei.config.Seed)
	} else {
		engine.Reset()
	}

	engine.logger.Debug().
		Int("size", ei.config.Size).
		Float64("four_probability", ei.config.FourProbability).
		Bool("seeded", ei.config.Seed != nil).
		Msg("Engine created")

	return engine, nil
}

func (ei *EngineInitializer) validate() error {
	if ei.config.Size == 0 {
		ei.config.Size = DefaultBoardSize
	}
	if ei.config.Size <= 1 {
		return fmt.Errorf("board size %d must be greater than 1: %w", ei.config.Size, core.ErrInvalidConfiguration)
	}
	p := ei.config.FourProbability
	if p < 0 || p > 1 {
		return fmt.Errorf("four probability %v outside [0, 1]: %w", p, core.ErrInvalidConfiguration)
	}
	return nil
}

// setupDefaults sets up default values for missing configuration
func (ei *EngineInitializer) setupDefaults() {
	if ei.config.FourProbability == 0 {
		ei.config.FourProbability = DefaultFourProbability
	}

	if ei.config.Rng == nil {
		ei.logger.Debug().Msg("No RNG provided, creating new time-seeded RNG")
		ei.config.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if ei.config.EnvID == "" {
		ei.config.EnvID = uuid.NewString()
	}

	if ei.config.ExperienceCollector != nil {
		ei.logger.Debug().Msg("Experience collection enabled")
	}
}

func (ei *EngineInitializer) createEngine() *Engine {
	logger := ei.logger.With().Str("env_id", ei.config.EnvID).Logger()

	var publisher events.Publisher
	if ei.config.EventBus != nil {
		publisher = ei.config.EventBus
	}

	return &Engine{
		board:               core.NewBoard(ei.config.Size),
		mover:               core.NewMover(ei.config.Size),
		spawner:             NewSpawner(ei.config.Rng, ei.config.FourProbability, ei.config.Size),
		legalMoves:          rules.NewLegalMoveCalculator(ei.config.Size),
		rng:                 ei.config.Rng,
		envID:               ei.config.EnvID,
		logger:              logger,
		eventBus:            ei.config.EventBus,
		stateMachine:        states.NewStateMachine(ei.config.EnvID, publisher, logger),
		experienceCollector: ei.config.ExperienceCollector,
	}
}
