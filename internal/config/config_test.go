package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestMustLoad(t *testing.T) {
	t.Run("Fills defaults", func(t *testing.T) {
		// Given: a config file that only sets the log level
		path := writeConfig(t, "log-level: debug\n")

		// When: it is loaded
		conf := MustLoad(path)

		// Then: every other field has its default
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "9090", conf.HTTPPort)
		assert.Equal(t, "8080", conf.SocketPort)
		assert.Equal(t, MemoryStorage, conf.Storage)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
		assert.Equal(t, 30*time.Minute, conf.Session.TTL)
		assert.Equal(t, Timings{}, conf.Game.Classic)
		assert.Equal(t, Timings{}, conf.Game.Vanish)
		assert.Equal(t, 5, conf.Game.VanishDepth)
		assert.InDelta(t, 0.4, conf.Game.MediumSearchChance, 1e-9)
	})

	t.Run("Reads nested values", func(t *testing.T) {
		path := writeConfig(t, `
storage: redis
redis:
  host: cache
  port: "6380"
game:
  classic:
    bot-delay: 500ms
    reset-delay: 2s
  vanish:
    bot-delay: 1s
`)

		conf := MustLoad(path)

		assert.Equal(t, RedisStorage, conf.Storage)
		assert.Equal(t, "cache:6380", conf.Redis.GetRedisAddr())
		assert.Equal(t, Timings{BotDelay: 500 * time.Millisecond, ResetDelay: 2 * time.Second}, conf.Game.Classic)
		assert.Equal(t, Timings{BotDelay: time.Second}, conf.Game.Vanish)
	})

	t.Run("Panics on a negative vanish depth", func(t *testing.T) {
		path := writeConfig(t, "game:\n  vanish-depth: -1\n")

		assert.Panics(t, func() { MustLoad(path) })
	})

	t.Run("Panics on unknown storage", func(t *testing.T) {
		path := writeConfig(t, "storage: etcd\n")

		assert.Panics(t, func() { MustLoad(path) })
	})

	t.Run("Panics on a missing file", func(t *testing.T) {
		assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "absent.yml")) })
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{Storage: MemoryStorage, Game: Game{VanishDepth: 5, MediumSearchChance: 0.4}}
	}

	tests := []struct {
		name    string
		mutate  func(conf *Config)
		wantErr bool
	}{
		{name: "Defaults are valid", mutate: func(*Config) {}},
		{name: "Search chance of one is valid", mutate: func(conf *Config) { conf.Game.MediumSearchChance = 1 }},
		{name: "Search chance above one", mutate: func(conf *Config) { conf.Game.MediumSearchChance = 1.5 }, wantErr: true},
		{name: "Negative search chance", mutate: func(conf *Config) { conf.Game.MediumSearchChance = -0.1 }, wantErr: true},
		{name: "Vanish depth of one is valid", mutate: func(conf *Config) { conf.Game.VanishDepth = 1 }},
		{name: "Vanish depth of zero", mutate: func(conf *Config) { conf.Game.VanishDepth = 0 }, wantErr: true},
		{name: "Negative vanish depth", mutate: func(conf *Config) { conf.Game.VanishDepth = -1 }, wantErr: true},
		{name: "Negative bot delay", mutate: func(conf *Config) { conf.Game.Classic.BotDelay = -time.Second }, wantErr: true},
		{name: "Negative reset delay", mutate: func(conf *Config) { conf.Game.Vanish.ResetDelay = -time.Second }, wantErr: true},
		{name: "Unknown storage", mutate: func(conf *Config) { conf.Storage = "etcd" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := valid()
			tt.mutate(&conf)

			err := conf.Validate()

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
