package main

import (
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/Game2048RL/internal/config"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events/subscribers"
	"github.com/mitchelldurbincs/Game2048RL/internal/ui"
)

// Command line flags and the config keys they override
var flagKeys = map[string]string{
	"seed": "game.seed",
	"size": "game.board_size",
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	agent := flag.String("agent", "human", "Who plays: human, default (always left) or random")
	flag.Int64("seed", 0, "Seed for the board, 0 for a random seed")
	flag.Int("size", 4, "Board size")
	interval := flag.Int("interval", 20, "Frames between agent moves")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if err := config.SetFromFlags(flag.CommandLine, flagKeys); err != nil {
		log.Fatal().Err(err).Msg("Invalid command line flag")
	}
	cfg := config.Get()
	setupLogging(cfg.Development.VerboseLogging)

	gameCfg := game.GameConfig{
		Size:            cfg.Game.BoardSize,
		FourProbability: cfg.Game.FourProbability,
		Rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:          &log.Logger,
	}
	if seed := cfg.Game.Seed; seed != 0 {
		gameCfg.Seed = &seed
	}
	if cfg.Development.LogEvents {
		bus := events.NewEventBusWithLogger(log.Logger)
		bus.Subscribe(subscribers.NewLoggerSubscriber("ui_logger", log.Logger, zerolog.InfoLevel))
		gameCfg.EventBus = bus
	}

	engine, err := game.NewEngine(gameCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	var g ebiten.Game
	if *agent == "human" {
		g, err = ui.NewHumanGame(engine)
	} else {
		policy, ok := game.PolicyByName(*agent, rand.New(rand.NewSource(time.Now().UnixNano())))
		if !ok {
			log.Fatal().Str("agent", *agent).Msg("Unknown agent")
		}
		g, err = ui.NewUIGame(engine, *agent, policy, *interval)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create UI")
	}

	w, h := ui.ScreenSize(engine.Size())
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle(cfg.UI.Window.Title)

	if err := ebiten.RunGame(g); err != nil {
		log.Fatal().Err(err).Msg("UI exited with error")
	}
	log.Info().Int("score", engine.Score()).Int("max_tile", engine.MaxTile()).Msg("Game closed")
}

func setupLogging(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
