package config

import (
	"flag"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobals() {
	cfg = nil
	v = nil
}

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
game:
  board_size: 5
  four_probability: 0.2
  seed: 42
server:
  env_server:
    port: 8080
    max_envs: 16
demo:
  agent: random
  max_steps: 50
ui:
  window:
    width: 1024
    height: 768
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	resetGlobals()
	require.NoError(t, Init(configFile))

	c := Get()
	assert.Equal(t, 5, c.Game.BoardSize)
	assert.Equal(t, 0.2, c.Game.FourProbability)
	assert.Equal(t, int64(42), c.Game.Seed)
	assert.Equal(t, 8080, c.Server.EnvServer.Port)
	assert.Equal(t, 16, c.Server.EnvServer.MaxEnvs)
	assert.Equal(t, "random", c.Demo.Agent)
	assert.Equal(t, 50, c.Demo.MaxSteps)
	assert.Equal(t, 1024, c.UI.Window.Width)
	assert.Equal(t, 768, c.UI.Window.Height)
	assert.Equal(t, configFile, ConfigFilePath())
}

func TestInitWithDefaults(t *testing.T) {
	resetGlobals()

	require.NoError(t, Init("/non/existent/path/config.yaml"))

	c := Get()
	assert.Equal(t, 4, c.Game.BoardSize)
	assert.Equal(t, 0.1, c.Game.FourProbability)
	assert.Equal(t, int64(0), c.Game.Seed)
	assert.Equal(t, 50051, c.Server.EnvServer.Port)
	assert.Equal(t, "default", c.Demo.Agent)
	assert.Equal(t, 200, c.Demo.MaxSteps)
	assert.Equal(t, 2.0, c.Demo.FPS)
	assert.True(t, c.Demo.Render)
	assert.Equal(t, "none", c.Server.EnvServer.Experience.Persistence.Type)
	assert.Equal(t, [3]int{187, 173, 160}, c.Colors.Background)
}

func TestEnvironmentVariables(t *testing.T) {
	resetGlobals()

	t.Setenv("G2048_GAME_BOARD_SIZE", "6")
	t.Setenv("G2048_SERVER_ENV_SERVER_PORT", "9090")

	require.NoError(t, Init(""))

	c := Get()
	assert.Equal(t, 6, c.Game.BoardSize)
	assert.Equal(t, 9090, c.Server.EnvServer.Port)
}

func TestInitRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"board size one", "game:\n  board_size: 1\n"},
		{"probability", "game:\n  four_probability: 1.5\n"},
		{"port", "server:\n  env_server:\n    port: 70000\n"},
		{"agent", "demo:\n  agent: greedy\n"},
		{"persistence", "server:\n  env_server:\n    experience:\n      persistence:\n        type: s3\n"},
		{"color", "colors:\n  background: [300, 0, 0]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			resetGlobals()
			err := Init(path)
			assert.Error(t, err)
		})
	}
}

func TestSet(t *testing.T) {
	resetGlobals()
	require.NoError(t, Init(""))
	before := Get()

	require.NoError(t, Set("game.board_size", 8))
	require.NoError(t, Set("ui.window.width", 1280))

	c := Get()
	assert.Equal(t, 8, c.Game.BoardSize)
	assert.Equal(t, 1280, c.UI.Window.Width)
	assert.Equal(t, 4, before.Game.BoardSize, "earlier snapshots are not modified")
}

func TestSet_RejectsInvalidValue(t *testing.T) {
	resetGlobals()
	require.NoError(t, Init(""))

	assert.Error(t, Set("game.board_size", 1))
	assert.Equal(t, 4, Get().Game.BoardSize)

	require.NoError(t, Set("game.board_size", 5), "a rejected value must not stick")
	assert.Equal(t, 5, Get().Game.BoardSize)
}

func TestSetFromFlags(t *testing.T) {
	resetGlobals()
	require.NoError(t, Init(""))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	port := fs.Int("port", 0, "")
	fs.String("host", "", "")
	fs.Bool("verbose", false, "")
	require.NoError(t, fs.Parse([]string{"-port", "6000", "-verbose"}))

	require.NoError(t, SetFromFlags(fs, map[string]string{
		"port":    "server.env_server.port",
		"host":    "server.env_server.host",
		"verbose": "development.verbose_logging",
	}))

	c := Get()
	assert.Equal(t, *port, c.Server.EnvServer.Port)
	assert.Equal(t, "0.0.0.0", c.Server.EnvServer.Host, "flags left unset keep the config value")
	assert.True(t, c.Development.VerboseLogging)

	bad := flag.NewFlagSet("bad", flag.ContinueOnError)
	bad.Int("port", 0, "")
	require.NoError(t, bad.Parse([]string{"-port", "70000"}))
	assert.Error(t, SetFromFlags(bad, map[string]string{"port": "server.env_server.port"}))
}

func TestInit_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game: [board_size: 4\n"), 0644))

	resetGlobals()
	assert.Error(t, Init(path))
}

func TestLoadEnvironmentConfig(t *testing.T) {
	tmpDir := t.TempDir()

	baseConfig := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(baseConfig, []byte(`
game:
  board_size: 4
server:
  env_server:
    port: 50051
`), 0644))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.prod.yaml"), []byte(`
game:
  board_size: 5
server:
  env_server:
    port: 8080
    log_level: "error"
`), 0644))

	t.Chdir(tmpDir)

	resetGlobals()
	require.NoError(t, Init(baseConfig))
	require.NoError(t, LoadEnvironmentConfig("prod"))

	c := Get()
	assert.Equal(t, 5, c.Game.BoardSize)
	assert.Equal(t, 8080, c.Server.EnvServer.Port)
	assert.Equal(t, "error", c.Server.EnvServer.LogLevel)

	assert.NoError(t, LoadEnvironmentConfig(""))
	assert.NoError(t, LoadEnvironmentConfig("staging"), "missing overlays are skipped")
	assert.Equal(t, baseConfig, ConfigFilePath())
}

func TestWatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  board_size: 4\n"), 0644))

	resetGlobals()
	require.NoError(t, Init(path))

	var seen atomic.Int64
	WatchConfig(func(c *Config) {
		seen.Store(int64(c.Game.BoardSize))
	})

	// Give the watcher a moment to register before editing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("game:\n  board_size: 7\n"), 0644))

	assert.Eventually(t, func() bool { return seen.Load() == 7 }, 3*time.Second, 20*time.Millisecond)
}
