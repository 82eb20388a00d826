package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mitchelldurbincs/Game2048RL/internal/config"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events/subscribers"
	"github.com/mitchelldurbincs/Game2048RL/internal/grpc/envserver"
)

// Command line flags and the config keys they override
var flagKeys = map[string]string{
	"agent":     "demo.agent",
	"max-steps": "demo.max_steps",
	"fps":       "demo.fps",
	"seed":      "game.seed",
	"size":      "game.board_size",
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.String("agent", "default", "Agent to run: default (always left) or random")
	flag.Int("max-steps", 200, "Maximum steps before truncating the episode")
	flag.Float64("fps", 2, "Rendered steps per second, 0 for no delay")
	noRender := flag.Bool("no-render", false, "Only print the total reward")
	flag.Int64("seed", 0, "Seed for the board and random agent, 0 for a random seed")
	flag.Int("size", 4, "Board size")
	script := flag.String("actions", "", "Comma separated actions to replay instead of an agent, e.g. left,up,3")
	color := flag.Bool("color", false, "Render tiles with ANSI colours")
	server := flag.String("server", "", "Play against an environment server at host:port instead of a local engine")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if *noRender {
		if err := config.Set("demo.render", false); err != nil {
			log.Fatal().Err(err).Msg("Invalid command line flag")
		}
	}
	if err := config.SetFromFlags(flag.CommandLine, flagKeys); err != nil {
		log.Fatal().Err(err).Msg("Invalid command line flag")
	}
	cfg := config.Get()

	setupLogging(cfg.Development.VerboseLogging)

	var seedPtr *int64
	policySeed := time.Now().UnixNano()
	if seed := cfg.Game.Seed; seed != 0 {
		seedPtr = &seed
		policySeed = seed
	}

	agent := cfg.Demo.Agent
	policy, ok := game.PolicyByName(agent, rand.New(rand.NewSource(policySeed)))
	if !ok {
		log.Fatal().Str("agent", agent).Msg("Unknown agent")
	}
	if *script != "" {
		actions, err := game.ParseScript(*script)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid action script")
		}
		agent, policy = "script", game.ScriptedPolicy(actions)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var env environment
	if *server != "" {
		conn, err := grpc.NewClient(*server, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Fatal().Err(err).Str("server", *server).Msg("Failed to connect")
		}
		defer conn.Close()
		env = &remoteEnv{client: envserver.NewClient(conn), size: cfg.Game.BoardSize, seed: seedPtr}
	} else {
		gameCfg := game.GameConfig{
			Size:            cfg.Game.BoardSize,
			FourProbability: cfg.Game.FourProbability,
			Seed:            seedPtr,
			Logger:          &log.Logger,
		}
		if cfg.Development.LogEvents {
			bus := events.NewEventBusWithLogger(log.Logger)
			bus.Subscribe(subscribers.NewLoggerSubscriber("demo_logger", log.Logger, zerolog.InfoLevel))
			gameCfg.EventBus = bus
		}
		engine, err := game.NewEngine(gameCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create engine")
		}
		env = &localEnv{engine: engine, seed: seedPtr, color: *color}
	}
	defer func() {
		if err := env.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to close environment")
		}
	}()

	result, err := runEpisode(ctx, env, policy, episodeOptions{
		maxSteps: cfg.Demo.MaxSteps,
		render:   cfg.Demo.Render,
		fps:      cfg.Demo.FPS,
	}, os.Stdout)
	if err != nil {
		log.Error().Err(err).Msg("Episode aborted")
		return
	}
	log.Debug().
		Str("agent", agent).
		Int("steps", result.steps).
		Bool("terminated", result.terminated).
		Float64("total_reward", result.totalReward).
		Msg("Episode complete")
}

func setupLogging(verbose bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
