package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/mitchelldurbincs/Game2048RL/internal/config"
	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/grpc/envserver"
	"github.com/mitchelldurbincs/Game2048RL/internal/monitoring"
)

// Command line flags and the config keys they override
var flagKeys = map[string]string{
	"port":               "server.env_server.port",
	"host":               "server.env_server.host",
	"log-level":          "server.env_server.log_level",
	"max-envs":           "server.env_server.max_envs",
	"enable-reflection":  "server.env_server.enable_reflection",
	"collect-experience": "server.env_server.experience.enabled",
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Int("port", 50051, "The server port")
	flag.String("host", "0.0.0.0", "The server host")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Int("max-envs", 256, "Maximum concurrent environments, 0 for unlimited")
	flag.Bool("enable-reflection", true, "Enable gRPC reflection for debugging")
	flag.Bool("collect-experience", false, "Record transitions into per-environment replay buffers")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if err := config.LoadEnvironmentConfig(os.Getenv("APP_ENV")); err != nil {
		log.Fatal().Err(err).Msg("Failed to load environment config")
	}
	// Flags given explicitly win over the file and the environment
	if err := config.SetFromFlags(flag.CommandLine, flagKeys); err != nil {
		log.Fatal().Err(err).Msg("Invalid command line flag")
	}

	cfg := config.Get()
	srvCfg := cfg.Server.EnvServer

	setupLogging(srvCfg.LogLevel, cfg.Development.VerboseLogging)

	log.Info().
		Int("port", srvCfg.Port).
		Str("host", srvCfg.Host).
		Int("max_envs", srvCfg.MaxEnvs).
		Int("board_size", cfg.Game.BoardSize).
		Bool("collect_experience", srvCfg.Experience.Enabled).
		Msg("Starting 2048 environment server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	managerCfg := envserver.ManagerConfig{
		MaxEnvs:           srvCfg.MaxEnvs,
		MaxBoardSize:      srvCfg.MaxBoardSize,
		IdleTimeout:       time.Duration(srvCfg.IdleTimeout) * time.Second,
		CleanupInterval:   time.Duration(srvCfg.CleanupInterval) * time.Second,
		DefaultSize:       cfg.Game.BoardSize,
		FourProbability:   cfg.Game.FourProbability,
		LogEvents:         cfg.Development.LogEvents,
		ExperienceEnabled: srvCfg.Experience.Enabled,
		BufferCapacity:    srvCfg.Experience.BufferCapacity,
		Rewards: experience.RewardConfig{
			Scale:       experience.RewardScale(srvCfg.Experience.RewardScale),
			NoOpPenalty: srvCfg.Experience.NoOpPenalty,
		},
	}

	var pipeline *envserver.ExperiencePipeline
	if srvCfg.Experience.Enabled {
		pipeline = newPipeline(ctx, srvCfg.Experience.Persistence)
		if pipeline != nil {
			managerCfg.Sink = pipeline.Sink
		}
	}

	manager := envserver.NewEnvManager(managerCfg, log.Logger)
	manager.Start()

	monitor := monitoring.NewMonitor(time.Duration(srvCfg.MonitorInterval)*time.Second, log.Logger)
	monitor.RegisterGauge("environments", func() int64 { return int64(manager.Count()) })
	if pipeline != nil {
		monitor.RegisterGauge("experience_written", func() int64 { return pipeline.Stats().Written })
		monitor.RegisterGauge("experience_dropped", func() int64 { return pipeline.Stats().Dropped })
	}
	if srvCfg.MonitorInterval > 0 {
		monitor.Start()
	}

	config.WatchConfig(func(c *config.Config) {
		setupLogging(c.Server.EnvServer.LogLevel, c.Development.VerboseLogging)
		log.Info().
			Str("file", config.ConfigFilePath()).
			Str("log_level", c.Server.EnvServer.LogLevel).
			Msg("Config reloaded")
	})

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", srvCfg.Host, srvCfg.Port))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	grpcServer := grpc.NewServer(envserver.ServerOptions(log.Logger)...)
	envserver.RegisterEnvironmentServiceServer(grpcServer, envserver.NewServer(manager, log.Logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(envserver.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if srvCfg.EnableReflection {
		reflection.Register(grpcServer)
		log.Info().Msg("gRPC reflection enabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(envserver.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		// Give ongoing requests time to complete
		time.Sleep(time.Duration(config.Get().Server.EnvServer.GracefulShutdownDelay) * time.Second)

		log.Info().Msg("Gracefully stopping gRPC server")
		grpcServer.GracefulStop()
		cancel()
	}()

	log.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve")
		}
	}()

	<-ctx.Done()

	monitor.Stop()
	manager.Stop()
	if pipeline != nil {
		if err := pipeline.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close experience store")
		}
	}
	log.Info().Msg("Server shutdown complete")
}

// newPipeline opens the configured store. Collection without a store keeps
// transitions in the replay buffers only.
func newPipeline(ctx context.Context, pc config.PersistenceConfig) *envserver.ExperiencePipeline {
	if pc.Type == "" || pc.Type == string(experience.PersistenceTypeNone) {
		return nil
	}
	storeCfg := experience.DefaultPersistenceConfig()
	storeCfg.Type = experience.PersistenceType(pc.Type)
	if pc.BaseDir != "" {
		storeCfg.BaseDir = pc.BaseDir
	}
	if pc.SQLitePath != "" {
		storeCfg.SQLitePath = pc.SQLitePath
	}
	if pc.BatchSize > 0 {
		storeCfg.BatchSize = pc.BatchSize
	}
	if pc.FlushInterval > 0 {
		storeCfg.FlushInterval = time.Duration(pc.FlushInterval) * time.Second
	}

	store, err := experience.NewPersistenceLayer(ctx, storeCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("type", pc.Type).Msg("Failed to open experience store")
	}
	log.Info().
		Str("type", pc.Type).
		Int("batch_size", storeCfg.BatchSize).
		Dur("flush_interval", storeCfg.FlushInterval).
		Msg("Persisting experience")

	pipeline := envserver.NewExperiencePipeline(store, storeCfg.BatchSize, storeCfg.FlushInterval, log.Logger)
	pipeline.Start()
	return pipeline
}

func setupLogging(level string, verbose bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	if verbose {
		logLevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if os.Getenv("APP_ENV") == "production" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}
