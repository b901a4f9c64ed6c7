package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/models"
)

// ErrUnavailable is returned when the provider has no data for a ticker,
// the request failed, or the request timed out.
var ErrUnavailable = errors.New("quote unavailable")

// DefaultTimeout bounds a single quote request
const DefaultTimeout = 10 * time.Second

// Quoter resolves the last close of a ticker over a window
type Quoter interface {
	LastClose(ctx context.Context, ticker string, w Window) (decimal.Decimal, error)
}

// BarSource returns the OHLCV series of a ticker over a window, oldest first.
// An empty series is not an error.
type BarSource interface {
	Bars(ctx context.Context, ticker string, w Window) ([]models.Bar, error)
}

// SourceQuoter turns a BarSource into a Quoter, bounding every call with a timeout
type SourceQuoter struct {
	source  BarSource
	timeout time.Duration
}

var _ Quoter = (*SourceQuoter)(nil)

// NewSourceQuoter creates a SourceQuoter. A non-positive timeout uses DefaultTimeout.
func NewSourceQuoter(source BarSource, timeout time.Duration) *SourceQuoter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SourceQuoter{source: source, timeout: timeout}
}

// LastClose returns the close of the most recent bar in the window
func (q *SourceQuoter) LastClose(ctx context.Context, ticker string, w Window) (decimal.Decimal, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return decimal.Zero, fmt.Errorf("%w: empty ticker", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	bars, err := q.source.Bars(ctx, ticker, w)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, ticker, w, err)
	}
	if len(bars) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no data for %s over %s", ErrUnavailable, ticker, w)
	}

	last := bars[len(bars)-1].Close
	if !last.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive close for %s", ErrUnavailable, ticker)
	}
	return last, nil
}

// PriceFromFloat converts a provider price to a decimal through its shortest
// text representation, so 193.42 becomes exactly "193.42".
func PriceFromFloat(f float64) decimal.Decimal {
	d, err := decimal.NewFromString(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		return decimal.Zero
	}
	return d
}
