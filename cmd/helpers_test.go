package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratix-platform/initiative-import/internal/config"
	"github.com/stratix-platform/initiative-import/internal/model"
)

// useTestConfig points the global config at a fresh SQLite catalog.
func useTestConfig(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "catalog.db")
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: dsn},
		Server: config.ServerConfig{
			Port:        8080,
			MaxUploadMB: 20,
			CORSOrigins: []string{"*"},
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
		Import: config.ImportConfig{
			MaxRows:                  10000,
			ProgressCeilingUpload:    100,
			ProgressCeilingPreParsed: 150,
			HistoryThreshold:         5,
			HeaderScanRows:           5,
			DefaultTenant:            "t1",
			DateFallback:             "null",
		},
		Retry: config.RetryConfig{MaxAttempts: 2, InitialBackoffMs: 1},
	}
	return dsn
}

func seedArea(t *testing.T, name string) *model.Area {
	t.Helper()
	ctx := context.Background()
	st, err := openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	a, err := st.CreateArea(ctx, model.Area{TenantID: cfg.Import.DefaultTenant, Name: name})
	require.NoError(t, err)
	return a
}
