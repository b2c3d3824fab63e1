package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_SQLiteDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("INSTANCE_ID", "node-1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	require.Equal(t, "node-1", cfg.InstanceID)
	require.Equal(t, "chat:delivery", cfg.FanoutChannel)
	require.Equal(t, 5, cfg.MaxSessionsPerUser)
	require.True(t, cfg.RunMigrations)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/db")
	t.Setenv("MAX_SESSIONS_PER_USER", "2")
	t.Setenv("REPLAY_BATCH_SIZE", "50")
	t.Setenv("PROFILE_CACHE_TTL", "30s")
	t.Setenv("RUN_MIGRATIONS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.MaxSessionsPerUser)
	require.Equal(t, 50, cfg.ReplayBatchSize)
	require.Equal(t, 30*time.Second, cfg.ProfileCacheTTL)
	require.False(t, cfg.RunMigrations)
	require.NotEmpty(t, cfg.InstanceID)
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_URL", "")

	_, err := Load()
	require.ErrorContains(t, err, "DB_URL")
}

func TestLoad_RejectsBadNumbers(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("MAX_SESSIONS", "lots")

	_, err := Load()
	require.ErrorContains(t, err, "MAX_SESSIONS")
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := &Config{StoreDriver: "oracle", RedisURL: "redis://x", MaxSessions: 1, MaxSessionsPerUser: 1, ReplayBatchSize: 1}
	require.ErrorContains(t, cfg.Validate(), "unsupported STORE_DRIVER")
}
