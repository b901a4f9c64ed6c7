package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/trogers1052/paper-trader/internal/config"
	"github.com/trogers1052/paper-trader/internal/market"
)

func setupConfig(t *testing.T) *config.Config {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("papertrader"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Database.Host = host
	cfg.Database.Port = port.Port()
	cfg.Database.User = "testuser"
	cfg.Database.Password = "testpass"
	cfg.Portfolio.StartingCash = "2500"
	return cfg
}

func TestApp(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := setupConfig(t)
	mr := miniredis.RunT(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NoError(t, a.DB.Migrate())
	require.NoError(t, a.DB.Migrate(), "second migrate is a no-op")

	assert.IsType(t, &market.CachedQuoter{}, a.Quoter)
	assert.Nil(t, a.Producer)
	assert.Nil(t, a.OrderConsumer())

	ctx := context.Background()

	t.Run("view creates the configured portfolio", func(t *testing.T) {
		view, err := a.Trader.ViewPortfolio(ctx)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(2500).Equal(view.Cash))
		assert.True(t, decimal.NewFromInt(2500).Equal(view.TotalValue))
	})

	t.Run("reset replaces it", func(t *testing.T) {
		res, err := a.Trader.Reset(ctx, decimal.NewFromInt(5000))
		require.NoError(t, err)
		assert.Equal(t, "Portfolio reset to $5,000.00", res.Message)

		history, err := a.Trader.ListTransactions(ctx, 0)
		require.NoError(t, err)
		assert.Zero(t, history.Count)
	})

	t.Run("scheduler records through the service", func(t *testing.T) {
		snap, err := a.Trader.RecordSnapshot(ctx)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(5000).Equal(snap.Value))

		s := a.Scheduler()
		require.NotNil(t, s)
	})
}

func TestNewRejectsBadMarketHours(t *testing.T) {
	cfg := config.Default()
	cfg.Market.Open = "17:00"

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "invalid market hours")
}
