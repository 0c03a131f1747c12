package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int           `mapstructure:"port" validate:"min=1,max=65535"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit" validate:"min=512"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	PongWait   time.Duration `mapstructure:"pong_wait" validate:"gtfield=PingPeriod"`
	WriteWait  time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	SendBuffer int           `mapstructure:"send_buffer" validate:"min=1"`

	Log       LogConfig       `mapstructure:"log"`
	Vibe      VibeConfig      `mapstructure:"vibe"`
	Reactions ReactionsConfig `mapstructure:"reactions"`
	History   HistoryConfig   `mapstructure:"history"`
	Store     StoreConfig     `mapstructure:"store"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

type VibeConfig struct {
	Tick           time.Duration `mapstructure:"tick" validate:"gt=0"`
	DecayPerSecond float64       `mapstructure:"decay_per_second" validate:"gt=0"`
	History        int           `mapstructure:"history" validate:"min=1"`
}

type ReactionsConfig struct {
	PerSecond int `mapstructure:"per_second" validate:"min=1"`
}

type HistoryConfig struct {
	Messages int `mapstructure:"messages" validate:"min=1"`
}

type StoreConfig struct {
	Driver      string        `mapstructure:"driver" validate:"oneof=memory redis sqlite postgres"`
	RedisURL    string        `mapstructure:"redis_url" validate:"required_if=Driver redis"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	PostgresURL string        `mapstructure:"postgres_url" validate:"required_if=Driver postgres"`
	Workers     int           `mapstructure:"workers" validate:"min=1"`
	Queue       int           `mapstructure:"queue" validate:"min=1"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

var validate = validator.New()

// Load reads config/config.<CONFIG_ENV>.yaml. A .env file, if present, is
// loaded first; VIBE_* variables override file values.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("read .env")
	}
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile loads fileName over defaults. A missing file is not an error.
func LoadFile(fileName string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("VIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Secret == "" {
		// Sessions do not survive a restart without a configured secret.
		cfg.Secret = uuid.NewString()
		v.Set("secret", cfg.Secret)
		log.Warn().Str("module", "config").Msg("no secret configured, generated one for this process")
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).
		Msg("config ready")
	return cfg, v, nil
}

// Watch calls onChange with each valid reload of the file behind v.
// Invalid edits are logged and ignored.
func Watch(v *viper.Viper, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("reload rejected")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("vibe.tick", "1s")
	v.SetDefault("vibe.decay_per_second", 2.0)
	v.SetDefault("vibe.history", 256)
	v.SetDefault("reactions.per_second", 1)
	v.SetDefault("history.messages", 50)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.sqlite_path", "./data/vibe.db")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("store.workers", 4)
	v.SetDefault("store.queue", 1024)
	v.SetDefault("store.timeout", "2s")
}
