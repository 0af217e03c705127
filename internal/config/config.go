package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/lo"

	"relayWs/internal/shared/logging"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Logging   LoggingConfig   `envPrefix:"LOG_"`
	Security  SecurityConfig  `envPrefix:"JWT_"`
	Storage   StorageConfig   `envPrefix:"STORAGE_"`
	Websocket WebsocketConfig `envPrefix:"WS_"`
	Chat      ChatConfig      `envPrefix:"CHAT_"`
	Kafka     KafkaConfig     `envPrefix:"KAFKA_"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

type LoggingConfig struct {
	Directory string `env:"DIRECTORY" envDefault:"./logs"`
	Level     string `env:"LEVEL" envDefault:"info"`
	Format    string `env:"FORMAT" envDefault:"text"`
}

// Logger converts the LOG_* settings into the logging package's config.
func (l LoggingConfig) Logger() logging.Config {
	return logging.Config{Directory: l.Directory, Level: l.Level, Format: l.Format, AddSource: true}
}

// SecurityConfig holds the key material used to validate identity tokens.
// PublicKey takes precedence over Secret when both are set.
type SecurityConfig struct {
	Secret    string `env:"SECRET"`
	PublicKey string `env:"PUBLIC_KEY"`
}

type StorageConfig struct {
	Directory string `env:"DIRECTORY" envDefault:"./data"`
	InMemory  bool   `env:"IN_MEMORY" envDefault:"false"`
}

type WebsocketConfig struct {
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	SendBuffer     int           `env:"SEND_BUFFER" envDefault:"32"`
	ReadLimit      int64         `env:"READ_LIMIT" envDefault:"65536"`
	PingInterval   time.Duration `env:"PING_INTERVAL" envDefault:"30s"`
	PongWait       time.Duration `env:"PONG_WAIT" envDefault:"60s"`
	WriteWait      time.Duration `env:"WRITE_WAIT" envDefault:"10s"`
}

type ChatConfig struct {
	Room             string `env:"ROOM" envDefault:"public_chat_room"`
	HistoryLimit     int    `env:"HISTORY_LIMIT" envDefault:"100"`
	MaxMessageLength int    `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
}

type KafkaConfig struct {
	Brokers           []string `env:"BROKERS" envSeparator:","`
	GroupID           string   `env:"GROUP_ID" envDefault:"relay-ws"`
	NotificationTopic string   `env:"NOTIFICATION_TOPIC" envDefault:"notifications.trigger"`
}

// Load reads the process environment into a Config and applies sanity checks.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Websocket.AllowedOrigins = cleanList(c.Websocket.AllowedOrigins)
	c.Kafka.Brokers = cleanList(c.Kafka.Brokers)
	c.Chat.Room = strings.TrimSpace(c.Chat.Room)
	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Security.Secret) == "" && strings.TrimSpace(c.Security.PublicKey) == "" {
		return fmt.Errorf("%w: JWT_SECRET or JWT_PUBLIC_KEY is required", ErrInvalidConfig)
	}
	if err := c.Logging.Logger().Validate(); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL/LOG_FORMAT: %w", ErrInvalidConfig, err)
	}
	if c.Chat.Room == "" {
		return fmt.Errorf("%w: CHAT_ROOM must not be empty", ErrInvalidConfig)
	}
	if c.Chat.HistoryLimit < 0 {
		return fmt.Errorf("%w: CHAT_HISTORY_LIMIT must be >= 0", ErrInvalidConfig)
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("%w: CHAT_MAX_MESSAGE_LENGTH must be > 0", ErrInvalidConfig)
	}
	if c.Websocket.SendBuffer <= 0 {
		return fmt.Errorf("%w: WS_SEND_BUFFER must be > 0", ErrInvalidConfig)
	}
	if c.Websocket.PingInterval >= c.Websocket.PongWait {
		return fmt.Errorf("%w: WS_PING_INTERVAL must be shorter than WS_PONG_WAIT", ErrInvalidConfig)
	}
	return nil
}

func cleanList(values []string) []string {
	trimmed := lo.Map(values, func(v string, _ int) string { return strings.TrimSpace(v) })
	return lo.Uniq(lo.Compact(trimmed))
}
