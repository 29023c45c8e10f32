package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	cfg, err := Load(writeConfig(t, "http:\n  addr: \":8080\"\n"))
	req.NoError(err)

	req.Equal(":8080", cfg.HTTP.Addr)
	req.Equal(15*time.Second, cfg.HTTP.WriteTimeout)
	req.Equal([]string{"*"}, cfg.HTTP.AllowedOrigins)
	req.Equal("memory", cfg.Storage.Driver)
	req.Equal(time.Hour, cfg.Reaper.Interval)
	req.Equal(24*time.Hour, cfg.Reaper.Retention)
	req.Equal(256, cfg.Session.SendBuffer)
	req.Equal("whiteboard-service", cfg.Logging.Service)
	req.Equal("std", cfg.Logging.Backend)
	req.Empty(cfg.GRPC.Addr)
}

func TestLoad_ShippedFile(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, ":9090", cfg.GRPC.Addr)
	require.Equal(t, int64(1<<20), cfg.Session.MaxMessageSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("WHITEBOARD_HTTP_ADDR", ":9999")
	t.Setenv("WHITEBOARD_HTTP_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("WHITEBOARD_STORAGE_DRIVER", "Postgres")
	t.Setenv("WHITEBOARD_STORAGE_POSTGRES_DSN", "postgres://localhost/wb")
	t.Setenv("WHITEBOARD_REAPER_RETENTION", "48h")

	cfg, err := Load(writeConfig(t, "http:\n  addr: \":8080\"\nreaper:\n  retention: 24h\n"))
	req.NoError(err)
	req.Equal(":9999", cfg.HTTP.Addr)
	req.Equal([]string{"http://a.test", "http://b.test"}, cfg.HTTP.AllowedOrigins)
	req.Equal("postgres", cfg.Storage.Driver)
	req.Equal("postgres://localhost/wb", cfg.Storage.Postgres.DSN)
	req.Equal(48*time.Hour, cfg.Reaper.Retention)
}

func TestLoad_EnvAliases(t *testing.T) {
	cases := map[string]string{
		"production": "prod",
		"Staging":    "stage",
		"preprod":    "stage",
		"dev":        "dev",
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "http:\n  addr: \":8080\"\nlogging:\n  env: "+raw+"\n"))
			require.NoError(t, err)
			require.Equal(t, want, cfg.Logging.Env)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing http addr":  "storage:\n  driver: memory\n",
		"unknown driver":     "http:\n  addr: \":8080\"\nstorage:\n  driver: mongo\n",
		"postgres needs dsn": "http:\n  addr: \":8080\"\nstorage:\n  driver: postgres\n",
		"bad backend":        "http:\n  addr: \":8080\"\nlogging:\n  backend: logrus\n",
		"unknown env":        "http:\n  addr: \":8080\"\nlogging:\n  env: qa\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_ConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "http:\n  addr: \":7070\"\n"))
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.HTTP.Addr)
}
