package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/metasim/ogcapi/internal/config"
	storeMemory "github.com/metasim/ogcapi/internal/storage/memory"
)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:           0,
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 5,
		},
		Paging: config.PagingConfig{DefaultLimit: 10, MaxLimit: 1000},
		DB:     config.DBConfig{Provider: "memory"},
		Jobs: config.JobsConfig{
			Workers:            2,
			QueueDepth:         16,
			MaxDurationSeconds: 60,
			SyncWaitMaxSeconds: 5,
			PollIntervalMs:     10,
		},
	}
}

func TestNewApp_MemoryProvider(t *testing.T) {
	t.Parallel()

	a, err := NewApp(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a)
	require.IsType(t, &storeMemory.JobStore{}, a.store)
	require.Nil(t, a.pgStore)
}

func TestNewApp_UnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DB.Provider = "bogus"
	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown db.provider")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	a, err := NewApp(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}
