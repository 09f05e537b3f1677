package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventease/internal/config"
	"github.com/Togather-Foundation/eventease/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunServerBootstrapsAdminAndStopsOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "serve.db")
	cfg := config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: config.StorageConfig{Backend: config.BackendSQLite, SQLitePath: dbPath},
		Auth:    config.AuthConfig{JWTSecret: "serve-test-secret-at-least-32-bytes!", JWTExpiry: time.Hour, Issuer: "eventease"},
		AdminBootstrap: config.AdminBootstrapConfig{
			Username: "root",
			Password: "correct-horse-battery",
			Email:    "root@example.com",
		},
		Approvals: config.ApprovalsConfig{MaxPendingAge: time.Hour, ExpiryEvery: time.Minute},
		Events:    config.EventsConfig{TimeZone: "UTC", Location: time.UTC},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, cfg, zerolog.Nop()) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}

	store, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	admin, err := store.Users().GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Role)
}
