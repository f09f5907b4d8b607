package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BOOKMATE_JWT_SECRET", "s3cret")

	cfg, err := Load()

	req.NoError(err)
	req.Equal(":8000", cfg.HTTPAddr)
	req.Equal(StoreMemory, cfg.StoreDriver)
	req.Equal(DirectoryStatic, cfg.DirectoryDriver)
	req.Empty(cfg.ValkeyAddr)
	req.Equal(54*time.Second, cfg.Session().PingPeriod)
	req.Equal(256, cfg.Session().SendBuffer)
	req.Equal(int64(64<<10), cfg.Session().MaxMessageBytes)
	req.True(cfg.Logger().Enabled(t.Context(), slog.LevelInfo))
	req.False(cfg.Logger().Enabled(t.Context(), slog.LevelDebug))
}

func TestLoadParsesDirectoryUsers(t *testing.T) {
	req := require.New(t)
	t.Setenv("BOOKMATE_JWT_SECRET", "s3cret")
	t.Setenv("BOOKMATE_DIRECTORY_USERS", "u1:Ada,u2:Grace")
	t.Setenv("BOOKMATE_LOG_LEVEL", "debug")

	cfg, err := Load()

	req.NoError(err)
	req.Equal(map[string]string{"u1": "Ada", "u2": "Grace"}, cfg.DirectoryUsers)
	req.True(cfg.Logger().Enabled(t.Context(), slog.LevelDebug))
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":        {},
		"unknown driver":        {"BOOKMATE_JWT_SECRET": "x", "BOOKMATE_STORE_DRIVER": "mongo"},
		"postgres without dsn":  {"BOOKMATE_JWT_SECRET": "x", "BOOKMATE_STORE_DRIVER": "postgres"},
		"badger without path":   {"BOOKMATE_JWT_SECRET": "x", "BOOKMATE_STORE_DRIVER": "badger"},
		"directory without dsn": {"BOOKMATE_JWT_SECRET": "x", "BOOKMATE_DIRECTORY_DRIVER": "postgres"},
		"ping after pong":       {"BOOKMATE_JWT_SECRET": "x", "BOOKMATE_WS_PING_PERIOD": "2m"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("BOOKMATE_JWT_SECRET", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
