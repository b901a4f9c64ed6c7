package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/trogers1052/paper-trader/internal/models"
)

// AlpacaConfig holds credentials and endpoints for the Alpaca market-data API
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	DataURL   string
	Feed      string
	Timeout   time.Duration
}

// AlpacaSource implements BarSource using the Alpaca market-data API
type AlpacaSource struct {
	client *marketdata.Client
	feed   string
	now    func() time.Time
	log    *slog.Logger
}

var _ BarSource = (*AlpacaSource)(nil)

// NewAlpacaSource creates an AlpacaSource. Feed defaults to "iex".
func NewAlpacaSource(cfg AlpacaConfig, log *slog.Logger) *AlpacaSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := marketdata.ClientOpts{
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	feed := cfg.Feed
	if feed == "" {
		feed = "iex"
	}

	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		feed:   feed,
		now:    time.Now,
		log:    log.With("component", "alpaca"),
	}
}

// Bars fetches the bars of ticker over the window, oldest first
func (s *AlpacaSource) Bars(ctx context.Context, ticker string, w Window) ([]models.Bar, error) {
	period, err := ParsePeriod(w.Period)
	if err != nil {
		return nil, err
	}
	interval, err := ParseInterval(w.Interval)
	if err != nil {
		return nil, err
	}
	timeFrame, err := alpacaTimeFrame(interval)
	if err != nil {
		return nil, err
	}

	end := s.now()
	req := marketdata.GetBarsRequest{
		TimeFrame: timeFrame,
		Start:     period.Start(end),
		End:       end,
		Feed:      s.feed,
	}

	type result struct {
		bars []marketdata.Bar
		err  error
	}
	done := make(chan result, 1)
	go func() {
		bars, err := s.client.GetBars(ticker, req)
		done <- result{bars: bars, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, ticker, w, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", ticker, res.err)
	}

	bars := make([]models.Bar, 0, len(res.bars))
	for _, ab := range res.bars {
		bars = append(bars, models.Bar{
			Timestamp: ab.Timestamp,
			Open:      PriceFromFloat(ab.Open),
			High:      PriceFromFloat(ab.High),
			Low:       PriceFromFloat(ab.Low),
			Close:     PriceFromFloat(ab.Close),
			Volume:    int64(ab.Volume),
		})
	}
	s.log.Debug("fetched bars", "ticker", ticker, "window", w.String(), "count", len(bars))
	return bars, nil
}

func alpacaTimeFrame(span Span) (marketdata.TimeFrame, error) {
	switch span.Unit {
	case Minute:
		return marketdata.NewTimeFrame(span.N, marketdata.Min), nil
	case Hour:
		return marketdata.NewTimeFrame(span.N, marketdata.Hour), nil
	case Day:
		return marketdata.NewTimeFrame(span.N, marketdata.Day), nil
	case Week:
		return marketdata.NewTimeFrame(span.N, marketdata.Week), nil
	case Month:
		return marketdata.NewTimeFrame(span.N, marketdata.Month), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported bar size")
}
