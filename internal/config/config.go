package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Game        GameConfig        `mapstructure:"game"`
	Server      ServerConfig      `mapstructure:"server"`
	Demo        DemoConfig        `mapstructure:"demo"`
	UI          UIConfig          `mapstructure:"ui"`
	Colors      ColorsConfig      `mapstructure:"colors"`
	Development DevelopmentConfig `mapstructure:"development"`
}

// GameConfig holds engine settings
type GameConfig struct {
	BoardSize       int     `mapstructure:"board_size"`
	FourProbability float64 `mapstructure:"four_probability"`
	// Seed of 0 means a time-seeded generator
	Seed int64 `mapstructure:"seed"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	EnvServer EnvServerConfig `mapstructure:"env_server"`
}

// EnvServerConfig holds environment server configuration
type EnvServerConfig struct {
	Host                  string           `mapstructure:"host"`
	Port                  int              `mapstructure:"port"`
	LogLevel              string           `mapstructure:"log_level"`
	MaxEnvs               int              `mapstructure:"max_envs"`
	MaxBoardSize          int              `mapstructure:"max_board_size"`
	IdleTimeout           int              `mapstructure:"idle_timeout"`
	CleanupInterval       int              `mapstructure:"cleanup_interval"`
	EnableReflection      bool             `mapstructure:"enable_reflection"`
	GracefulShutdownDelay int              `mapstructure:"graceful_shutdown_delay"`
	MonitorInterval       int              `mapstructure:"monitor_interval"`
	Experience            ExperienceConfig `mapstructure:"experience"`
}

// ExperienceConfig controls transition collection on the environment server
type ExperienceConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	BufferCapacity int               `mapstructure:"buffer_capacity"`
	RewardScale    string            `mapstructure:"reward_scale"`
	NoOpPenalty    float64           `mapstructure:"noop_penalty"`
	Persistence    PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig selects where collected transitions are stored
type PersistenceConfig struct {
	Type          string `mapstructure:"type"`
	BaseDir       string `mapstructure:"base_dir"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	BatchSize     int    `mapstructure:"batch_size"`
	FlushInterval int    `mapstructure:"flush_interval"`
}

// DemoConfig holds terminal demo settings
type DemoConfig struct {
	Agent    string  `mapstructure:"agent"`
	MaxSteps int     `mapstructure:"max_steps"`
	FPS      float64 `mapstructure:"fps"`
	Render   bool    `mapstructure:"render"`
}

// UIConfig holds UI/client configuration
type UIConfig struct {
	Window   WindowConfig `mapstructure:"window"`
	TileSize int          `mapstructure:"tile_size"`
	TileGap  int          `mapstructure:"tile_gap"`
}

// WindowConfig holds window settings
type WindowConfig struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Title  string `mapstructure:"title"`
}

// ColorsConfig holds the UI palette
type ColorsConfig struct {
	Background [3]int `mapstructure:"background"`
	EmptyTile  [3]int `mapstructure:"empty_tile"`
	DarkText   [3]int `mapstructure:"dark_text"`
	LightText  [3]int `mapstructure:"light_text"`
}

// DevelopmentConfig holds development settings
type DevelopmentConfig struct {
	VerboseLogging bool `mapstructure:"verbose_logging"`
	LogEvents      bool `mapstructure:"log_events"`
}

var (
	// Global config instance. cfg is replaced, never mutated, so a pointer
	// returned by Get stays a consistent snapshot.
	mu  sync.RWMutex
	cfg *Config
	v   *viper.Viper
)

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("game.board_size", 4)
	v.SetDefault("game.four_probability", 0.1)
	v.SetDefault("game.seed", 0)

	v.SetDefault("server.env_server.host", "0.0.0.0")
	v.SetDefault("server.env_server.port", 50051)
	v.SetDefault("server.env_server.log_level", "info")
	v.SetDefault("server.env_server.max_envs", 256)
	v.SetDefault("server.env_server.max_board_size", 16)
	v.SetDefault("server.env_server.idle_timeout", 1800)
	v.SetDefault("server.env_server.cleanup_interval", 60)
	v.SetDefault("server.env_server.enable_reflection", true)
	v.SetDefault("server.env_server.graceful_shutdown_delay", 5)
	v.SetDefault("server.env_server.monitor_interval", 30)

	v.SetDefault("server.env_server.experience.enabled", false)
	v.SetDefault("server.env_server.experience.buffer_capacity", 10000)
	v.SetDefault("server.env_server.experience.reward_scale", "raw")
	v.SetDefault("server.env_server.experience.noop_penalty", 0.0)
	v.SetDefault("server.env_server.experience.persistence.type", "none")
	v.SetDefault("server.env_server.experience.persistence.base_dir", "experiences")
	v.SetDefault("server.env_server.experience.persistence.sqlite_path", "experiences.db")
	v.SetDefault("server.env_server.experience.persistence.batch_size", 256)
	v.SetDefault("server.env_server.experience.persistence.flush_interval", 5)

	v.SetDefault("demo.agent", "default")
	v.SetDefault("demo.max_steps", 200)
	v.SetDefault("demo.fps", 2.0)
	v.SetDefault("demo.render", true)

	v.SetDefault("ui.window.width", 480)
	v.SetDefault("ui.window.height", 560)
	v.SetDefault("ui.window.title", "2048")
	v.SetDefault("ui.tile_size", 100)
	v.SetDefault("ui.tile_gap", 12)

	v.SetDefault("colors.background", []int{187, 173, 160})
	v.SetDefault("colors.empty_tile", []int{205, 193, 180})
	v.SetDefault("colors.dark_text", []int{119, 110, 101})
	v.SetDefault("colors.light_text", []int{249, 246, 242})

	v.SetDefault("development.verbose_logging", false)
	v.SetDefault("development.log_events", false)
}

// Init initializes the configuration. A missing file falls back to the
// defaults; a file that exists but cannot be read or parsed is an error.
func Init(configPath string) error {
	nv := viper.New()

	setViperDefaults(nv)

	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath(".")
		nv.AddConfigPath("./config")
		nv.AddConfigPath("/etc/game2048-rl")
	}

	nv.SetEnvPrefix("G2048")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	next, err := decode(nv)
	if err != nil {
		return err
	}

	mu.Lock()
	v, cfg = nv, next
	mu.Unlock()
	return nil
}

func decode(from *viper.Viper) (*Config, error) {
	next := &Config{}
	if err := from.Unmarshal(next); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(next); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return next, nil
}

// Get returns the current config. Treat it as read-only; use Set to change
// values.
func Get() *Config {
	mu.RLock()
	c := cfg
	mu.RUnlock()
	if c != nil {
		return c
	}
	if err := Init(""); err != nil {
		panic("failed to initialize config with defaults: " + err.Error())
	}
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// LoadEnvironmentConfig merges config.<env>.yaml over the loaded config. The
// overlay is looked up next to the base file and skipped when absent; the
// base file stays the one WatchConfig follows.
func LoadEnvironmentConfig(env string) error {
	if env == "" {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()

	base := v.ConfigFileUsed()
	envFile := fmt.Sprintf("config.%s.yaml", env)
	if base != "" {
		envFile = filepath.Join(filepath.Dir(base), envFile)
	}
	if _, err := os.Stat(envFile); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	v.SetConfigFile(envFile)
	err := v.MergeInConfig()
	if base != "" {
		v.SetConfigFile(base)
	}
	if err != nil {
		return fmt.Errorf("error merging environment config %s: %w", envFile, err)
	}

	next, err := decode(v)
	if err != nil {
		return err
	}
	cfg = next
	return nil
}

// Set overrides key at runtime. The override outlives file reloads. An
// invalid value is rejected and the previous config kept.
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	prev := v.Get(key)
	v.Set(key, value)
	next, err := decode(v)
	if err != nil {
		v.Set(key, prev)
		return fmt.Errorf("setting %s: %w", key, err)
	}
	cfg = next
	return nil
}

// SetFromFlags applies every flag given on the command line that keys maps
// to a config key, so explicit flags win over files and the environment.
func SetFromFlags(flags *flag.FlagSet, keys map[string]string) error {
	var err error
	flags.Visit(func(f *flag.Flag) {
		key, ok := keys[f.Name]
		if !ok || err != nil {
			return
		}
		getter, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		err = Set(key, getter.Get())
	})
	return err
}

// ConfigFilePath returns the path of the loaded config file
func ConfigFilePath() string {
	mu.RLock()
	defer mu.RUnlock()
	return v.ConfigFileUsed()
}

// WatchConfig enables hot-reloading of config file. onChange runs after the
// new values have been decoded and validated; invalid edits are ignored.
func WatchConfig(onChange func(*Config)) {
	mu.RLock()
	watched := v
	mu.RUnlock()

	watched.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		next, err := decode(watched)
		applied := err == nil && watched == v
		if applied {
			cfg = next
		}
		mu.Unlock()
		if applied && onChange != nil {
			onChange(next)
		}
	})
	watched.WatchConfig()
}

// Validate validates the configuration values
func Validate(c *Config) error {
	if c.Game.BoardSize <= 1 {
		return fmt.Errorf("game.board_size must be greater than 1")
	}
	if c.Game.FourProbability < 0 || c.Game.FourProbability > 1 {
		return fmt.Errorf("game.four_probability must be between 0 and 1")
	}

	s := c.Server.EnvServer
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server.env_server.port must be between 1 and 65535")
	}
	if s.MaxEnvs < 0 {
		return fmt.Errorf("server.env_server.max_envs must be non-negative")
	}
	if s.MaxBoardSize < 2 {
		return fmt.Errorf("server.env_server.max_board_size must be greater than 1")
	}
	if s.IdleTimeout < 0 {
		return fmt.Errorf("server.env_server.idle_timeout must be non-negative")
	}
	if s.CleanupInterval < 0 {
		return fmt.Errorf("server.env_server.cleanup_interval must be non-negative")
	}
	if s.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.env_server.graceful_shutdown_delay must be non-negative")
	}
	if s.MonitorInterval < 0 {
		return fmt.Errorf("server.env_server.monitor_interval must be non-negative")
	}
	if s.Experience.BufferCapacity < 0 {
		return fmt.Errorf("server.env_server.experience.buffer_capacity must be non-negative")
	}
	switch s.Experience.RewardScale {
	case "", "raw", "log2":
	default:
		return fmt.Errorf("server.env_server.experience.reward_scale must be raw or log2")
	}
	switch s.Experience.Persistence.Type {
	case "", "none", "file", "sqlite":
	default:
		return fmt.Errorf("server.env_server.experience.persistence.type must be none, file or sqlite")
	}

	switch c.Demo.Agent {
	case "default", "random":
	default:
		return fmt.Errorf("demo.agent must be default or random")
	}
	if c.Demo.MaxSteps < 0 {
		return fmt.Errorf("demo.max_steps must be non-negative")
	}
	if c.Demo.FPS < 0 {
		return fmt.Errorf("demo.fps must be non-negative")
	}

	if c.UI.Window.Width <= 0 || c.UI.Window.Height <= 0 {
		return fmt.Errorf("ui.window dimensions must be positive")
	}
	if c.UI.TileSize <= 0 {
		return fmt.Errorf("ui.tile_size must be positive")
	}
	if c.UI.TileGap < 0 {
		return fmt.Errorf("ui.tile_gap must be non-negative")
	}

	validateRGB := func(rgb [3]int, name string) error {
		for i, v := range rgb {
			if v < 0 || v > 255 {
				return fmt.Errorf("%s[%d] must be between 0 and 255", name, i)
			}
		}
		return nil
	}
	for name, rgb := range map[string][3]int{
		"colors.background": c.Colors.Background,
		"colors.empty_tile": c.Colors.EmptyTile,
		"colors.dark_text":  c.Colors.DarkText,
		"colors.light_text": c.Colors.LightText,
	} {
		if err := validateRGB(rgb, name); err != nil {
			return err
		}
	}

	return nil
}
