// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Vasu1712/bookmate-backend/internal/ws"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"

	DirectoryStatic   = "static"
	DirectoryPostgres = "postgres"
)

// Config is read from BOOKMATE_* variables.
type Config struct {
	HTTPAddr   string `envconfig:"HTTP_ADDR" default:":8000" validate:"required"`
	JWTSecret  string `envconfig:"JWT_SECRET" required:"true" validate:"required"`
	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"http://127.0.0.1:5173"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory" validate:"oneof=memory postgres badger"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" validate:"required_if=StoreDriver postgres,required_if=DirectoryDriver postgres"`
	BadgerPath  string `envconfig:"BADGER_PATH" validate:"required_if=StoreDriver badger"`

	DirectoryDriver string            `envconfig:"DIRECTORY_DRIVER" default:"static" validate:"oneof=static postgres"`
	DirectoryUsers  map[string]string `envconfig:"DIRECTORY_USERS"`

	ValkeyAddr    string `envconfig:"VALKEY_ADDR"`
	ValkeyChannel string `envconfig:"VALKEY_CHANNEL" default:"bookmate:messages" validate:"required_with=ValkeyAddr"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	WSSendBuffer      int           `envconfig:"WS_SEND_BUFFER" default:"256" validate:"gt=0"`
	WSWriteWait       time.Duration `envconfig:"WS_WRITE_WAIT" default:"10s" validate:"gt=0"`
	WSPongWait        time.Duration `envconfig:"WS_PONG_WAIT" default:"60s" validate:"gt=0"`
	WSPingPeriod      time.Duration `envconfig:"WS_PING_PERIOD" default:"54s" validate:"gt=0,ltfield=WSPongWait"`
	WSMaxMessageBytes int64         `envconfig:"WS_MAX_MESSAGE_BYTES" default:"65536" validate:"gt=0"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("bookmate", &cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Session() ws.SessionConfig {
	return ws.SessionConfig{
		SendBuffer:      c.WSSendBuffer,
		WriteWait:       c.WSWriteWait,
		PongWait:        c.WSPongWait,
		PingPeriod:      c.WSPingPeriod,
		MaxMessageBytes: c.WSMaxMessageBytes,
	}
}

// Logger builds the root logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel)))
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// ClientConfig is read from BOOKMATE_CLIENT_* variables by the terminal client.
type ClientConfig struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8000" validate:"required,url"`
	Token     string `envconfig:"TOKEN" required:"true" validate:"required"`
	UserID    string `envconfig:"USER_ID" required:"true" validate:"required"`
}

func LoadClient() (*ClientConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	var cfg ClientConfig
	if err := envconfig.Process("bookmate_client", &cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	return &cfg, nil
}
