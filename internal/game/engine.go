package game

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/rules"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/states"
)

// GameConfig holds the configuration for creating a new engine
type GameConfig struct {
	// Size is N for an N x N board. Zero means DefaultBoardSize and is never
	// rejected; any other value below 2 is core.ErrInvalidConfiguration.
	Size int
	// FourProbability is the chance a spawn is a 4. Zero means DefaultFourProbability.
	FourProbability float64
	// Seed, when set, seeds the first reset.
	Seed *int64
	// Rng is the engine's generator. A time-seeded one is created when nil.
	Rng                 *rand.Rand
	EnvID               string
	Logger              *zerolog.Logger
	EventBus            *events.EventBus
	ExperienceCollector ExperienceCollector
}

// Engine is a single 2048 episode. It owns its board and random generator
// and is not safe for concurrent use; run one engine per goroutine.
type Engine struct {
	board      *core.Board
	mover      *core.Mover
	spawner    *Spawner
	legalMoves *rules.LegalMoveCalculator
	rng        *rand.Rand

	envID   string
	episode int
	steps   int
	score   int

	logger              zerolog.Logger
	eventBus            *events.EventBus
	stateMachine        *states.StateMachine
	experienceCollector ExperienceCollector
}

// NewEngine validates cfg and returns an engine that has already been reset.
func NewEngine(cfg GameConfig) (*Engine, error) {
	return NewEngineInitializer(cfg).Initialize()
}

// Reset starts a new episode without reseeding.
func (e *Engine) Reset() Observation {
	return e.reset(false, 0)
}

// ResetWithSeed reseeds the engine's generator and starts a new episode.
// Equal seeds followed by equal actions give identical trajectories.
func (e *Engine) ResetWithSeed(seed int64) Observation {
	return e.reset(true, seed)
}

func (e *Engine) reset(seeded bool, seed int64) Observation {
	if seeded {
		e.rng.Seed(seed)
	}

	e.board.Clear()
	for i := 0; i < InitialTiles; i++ {
		e.spawner.Spawn(e.board)
	}

	e.episode++
	e.steps = 0
	e.score = 0

	if err := e.stateMachine.TransitionTo(states.PhaseActive, "reset"); err != nil {
		// Every phase may move to Active
		e.logger.Error().Err(err).Msg("Unexpected state transition failure on reset")
	}

	e.publish(events.NewEpisodeStartedEvent(e.envID, e.episode, e.board.N, seeded, seed))
	if e.experienceCollector != nil {
		e.experienceCollector.OnEpisodeStart(e.envID, e.episode)
	}

	e.logger.Debug().
		Int("episode", e.episode).
		Bool("seeded", seeded).
		Int64("seed", seed).
		Msg("Episode reset")

	return e.Observation()
}

// Step applies one action. Invalid actions are rejected before any mutation
// with an error wrapping core.ErrInvalidAction. Once the episode has
// terminated every step returns the current board, zero reward and
// Terminated=true until the next reset.
func (e *Engine) Step(a core.Action) (StepResult, error) {
	if err := a.Validate(); err != nil {
		e.logger.Warn().Int("action", int(a)).Msg("Rejected invalid action")
		e.publish(events.NewActionRejectedEvent(e.envID, e.episode, e.steps, int(a), err.Error()))
		return StepResult{}, err
	}

	if e.IsTerminated() {
		return StepResult{Observation: e.Observation(), Terminated: true}, nil
	}

	var prev Observation
	var mask [core.NumActions]bool
	if e.experienceCollector != nil {
		prev = e.Observation()
		mask = e.legalMoves.GetLegalActionMask(e.board)
	}

	gained, changed := e.mover.Apply(e.board, a)
	if !changed {
		gained = 0
	}

	e.steps++
	result := StepResult{Changed: changed}

	if changed {
		e.score += gained
		if spawn, ok := e.spawner.Spawn(e.board); ok {
			result.Spawned = &spawn
		}
	}
	result.Reward = float64(gained)

	e.publish(events.NewMoveAppliedEvent(e.envID, e.episode, e.steps, int(a), gained, changed))
	if result.Spawned != nil {
		e.publish(events.NewTileSpawnedEvent(e.envID, e.episode, e.steps,
			result.Spawned.Position.X, result.Spawned.Position.Y, result.Spawned.Value))
	}

	e.logger.Debug().
		Int("step", e.steps).
		Str("action", a.String()).
		Int("reward", gained).
		Bool("changed", changed).
		Msg("Step applied")

	result.Terminated = e.checkTerminal()
	result.Observation = e.Observation()

	if e.experienceCollector != nil {
		e.experienceCollector.OnStep(prev, mask, a, result)
		if result.Terminated {
			e.experienceCollector.OnEpisodeEnd(e.Stats())
		}
	}

	return result, nil
}

// checkTerminal moves the episode to Terminated when the board is full and
// no two orthogonal neighbours are equal.
func (e *Engine) checkTerminal() bool {
	if e.IsTerminated() {
		return true
	}
	if !rules.IsTerminal(e.board) {
		return false
	}

	if err := e.stateMachine.TransitionTo(states.PhaseTerminated, "no legal moves"); err != nil {
		e.logger.Error().Err(err).Msg("Failed to transition to terminated")
	}
	e.publish(events.NewEpisodeTerminatedEvent(e.envID, e.episode, e.steps, e.score, e.board.MaxTile()))
	e.logger.Info().
		Int("episode", e.episode).
		Int("steps", e.steps).
		Int("score", e.score).
		Int("max_tile", e.board.MaxTile()).
		Msg("Episode terminated")
	return true
}

// SetBoard replaces the board with rows, e.g. to start from a fixed
// position. The score and step counters are kept; the phase is recomputed.
func (e *Engine) SetBoard(rows [][]int) error {
	b, err := core.BoardFromRows(rows)
	if err != nil {
		return err
	}
	if b.N != e.board.N {
		return fmt.Errorf("board size %d does not match engine size %d: %w", b.N, e.board.N, core.ErrInvalidBoard)
	}

	e.board.CopyFrom(b)
	if e.IsTerminated() && !rules.IsTerminal(e.board) {
		if err := e.stateMachine.TransitionTo(states.PhaseActive, "board replaced"); err != nil {
			return err
		}
	}
	e.checkTerminal()
	return nil
}

func (e *Engine) publish(event events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(event)
	}
}

// Observation returns a fresh copy of the board
func (e *Engine) Observation() Observation {
	return NewObservation(e.board)
}

// LegalActions reports, indexed by action, which moves would change the board
func (e *Engine) LegalActions() [core.NumActions]bool {
	if e.IsTerminated() {
		return [core.NumActions]bool{}
	}
	return e.legalMoves.GetLegalActionMask(e.board)
}

func (e *Engine) IsTerminated() bool {
	return e.stateMachine.CurrentPhase().IsTerminal()
}

func (e *Engine) Phase() states.EpisodePhase { return e.stateMachine.CurrentPhase() }
func (e *Engine) StateHistory() []states.Transition {
	return e.stateMachine.GetHistory()
}

func (e *Engine) EnvID() string            { return e.envID }
func (e *Engine) Episode() int             { return e.episode }
func (e *Engine) Score() int               { return e.score }
func (e *Engine) Steps() int               { return e.steps }
func (e *Engine) MaxTile() int             { return e.board.MaxTile() }
func (e *Engine) Size() int                { return e.board.N }
func (e *Engine) ActionSpace() int         { return ActionSpace }
func (e *Engine) FourProbability() float64 { return e.spawner.FourProbability() }
