// Package app wires configuration into the record store, quote source,
// ledger and services shared by the server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/paper-trader/internal/config"
	"github.com/trogers1052/paper-trader/internal/database"
	"github.com/trogers1052/paper-trader/internal/kafka"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/market"
	"github.com/trogers1052/paper-trader/internal/scheduler"
	"github.com/trogers1052/paper-trader/internal/trader"
	"github.com/trogers1052/paper-trader/internal/valuation"
)

// App holds the long-lived components of the process
type App struct {
	Config   *config.Config
	Log      *slog.Logger
	DB       *database.DB
	Redis    *redis.Client
	Producer *kafka.Producer
	Session  *market.Session
	Bars     market.BarSource
	Quoter   market.Quoter
	Trader   *trader.Service
}

// New connects to Postgres and, when enabled, Redis and Kafka, then builds
// the trading service. Callers own the returned App and must Close it.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	session, err := market.NewSession(cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close)
	if err != nil {
		return nil, fmt.Errorf("invalid market hours: %w", err)
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		DB:      db,
		Session: session,
	}

	a.Bars = market.NewAlpacaSource(market.AlpacaConfig{
		APIKey:    cfg.Quotes.APIKey,
		APISecret: cfg.Quotes.APISecret,
		DataURL:   cfg.Quotes.DataURL,
		Feed:      cfg.Quotes.Feed,
		Timeout:   cfg.Quotes.Timeout,
	}, log)
	a.Quoter = market.NewSourceQuoter(a.Bars, cfg.Quotes.Timeout)

	if cfg.Redis.Enabled {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, quotes will bypass the cache until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
		a.Quoter = market.NewCachedQuoter(a.Quoter, a.Redis, cfg.Redis.QuoteTTL, log)
	}

	var publisher trader.Publisher
	if cfg.Kafka.Enabled {
		a.Producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		publisher = a.Producer
	}

	a.Trader = trader.New(trader.Dependencies{
		Store:        db,
		Ledger:       ledger.New(db, log),
		Engine:       valuation.New(a.Quoter, db, log),
		Quoter:       a.Quoter,
		Bars:         a.Bars,
		Session:      session,
		Publisher:    publisher,
		StartingCash: cfg.Portfolio.StartingCashAmount(),
		QuoteTimeout: cfg.Quotes.Timeout,
	}, log)

	return a, nil
}

// Scheduler returns the snapshot scheduler over the trading service
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(a.Trader, a.Session, a.Config.Portfolio.SnapshotInterval, a.Log)
}

// OrderConsumer returns the Kafka order consumer, or nil when Kafka is disabled
func (a *App) OrderConsumer() *kafka.Consumer {
	if !a.Config.Kafka.Enabled {
		return nil
	}
	k := a.Config.Kafka
	return kafka.NewConsumer(k.Brokers, k.OrdersTopic, k.GroupID, a.Trader, a.Log)
}

// Close releases every connection the App opened
func (a *App) Close() error {
	var errs []error
	if a.Producer != nil {
		errs = append(errs, a.Producer.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
