package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	MemoryStorage = "memory"
	RedisStorage  = "redis"
)

type Config struct {
	LogLevel   string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string  `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	Storage    string  `yaml:"storage" env:"STORAGE" env-default:"memory"`
	Redis      Redis   `yaml:"redis"`
	Session    Session `yaml:"session"`
	Game       Game    `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Session struct {
	TTL time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"30m"`
}

// Game holds the bot and round timings per variant and the vanish search tuning.
type Game struct {
	Classic Timings `yaml:"classic" env-prefix:"GAME_CLASSIC_"`
	Vanish  Timings `yaml:"vanish" env-prefix:"GAME_VANISH_"`

	VanishDepth        int     `yaml:"vanish-depth" env:"GAME_VANISH_DEPTH" env-default:"5"`
	MediumSearchChance float64 `yaml:"medium-search-chance" env:"GAME_MEDIUM_SEARCH_CHANCE" env-default:"0.4"`
}

// Timings left at zero fall back to the variant's defaults.
type Timings struct {
	BotDelay   time.Duration `yaml:"bot-delay" env:"BOT_DELAY"`
	ResetDelay time.Duration `yaml:"reset-delay" env:"RESET_DELAY"`
}

// MustLoad - load all configurations in config.yml file, environment overrides it.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid config: %w", err))
	}

	return config
}

func (that *Config) Validate() error {
	if that.Storage != MemoryStorage && that.Storage != RedisStorage {
		return fmt.Errorf("unknown storage %q", that.Storage)
	}

	if that.Game.VanishDepth < 1 {
		return fmt.Errorf("vanish-depth must be at least 1, got %d", that.Game.VanishDepth)
	}

	if err := that.Game.Classic.validate(); err != nil {
		return fmt.Errorf("classic: %w", err)
	}

	if err := that.Game.Vanish.validate(); err != nil {
		return fmt.Errorf("vanish: %w", err)
	}

	if that.Game.MediumSearchChance < 0 || that.Game.MediumSearchChance > 1 {
		return fmt.Errorf("medium-search-chance must be within [0, 1], got %v", that.Game.MediumSearchChance)
	}

	return nil
}

func (that Timings) validate() error {
	if that.BotDelay < 0 || that.ResetDelay < 0 {
		return fmt.Errorf("delays must not be negative, got bot %v and reset %v", that.BotDelay, that.ResetDelay)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
