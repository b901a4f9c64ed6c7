// Package market resolves prices for tickers from an external data provider
// and answers whether the reference exchange is currently trading.
package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is the calendar or clock unit of a Span
type Unit int

const (
	Minute Unit = iota
	Hour
	Day
	Week
	Month
	Year
)

// Span is a parsed period or interval such as "7d" or "15m"
type Span struct {
	N    int
	Unit Unit
}

// Window is the caller-chosen slice of history a quote is taken from:
// Period is how far back to look, Interval is the bar size.
type Window struct {
	Period   string `json:"period"`
	Interval string `json:"interval"`
}

// Standard windows
var (
	// FreshWindow gives the most recent price available, used for valuation.
	FreshWindow = Window{Period: "1d", Interval: "1m"}
	// SellWindow prices a sell against the latest daily bar.
	SellWindow = Window{Period: "1d", Interval: "1d"}
)

// Period constants for windows built around a caller interval
const (
	BuyPeriod   = "7d"
	ChartPeriod = "60d"
)

// DefaultInterval is used when the caller does not choose one
const DefaultInterval = "1d"

// Intervals lists the bar sizes accepted from callers
var Intervals = []string{"1m", "5m", "15m", "1h", "4h", "1d", "1wk", "1mo"}

// BuyWindow returns the window used to price a buy at the given interval
func BuyWindow(interval string) Window {
	if interval == "" {
		interval = DefaultInterval
	}
	return Window{Period: BuyPeriod, Interval: interval}
}

// ChartWindow returns the window used for the quote chart at the given interval
func ChartWindow(interval string) Window {
	if interval == "" {
		interval = DefaultInterval
	}
	return Window{Period: ChartPeriod, Interval: interval}
}

// ValidInterval reports whether interval is one of Intervals
func ValidInterval(interval string) bool {
	for _, i := range Intervals {
		if i == interval {
			return true
		}
	}
	return false
}

// String returns "period/interval"
func (w Window) String() string {
	return w.Period + "/" + w.Interval
}

// ParsePeriod parses a lookback period: Nd, Nwk, Nmo or Ny
func ParsePeriod(s string) (Span, error) {
	span, err := parseSpan(s)
	if err != nil {
		return Span{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	if span.Unit < Day {
		return Span{}, fmt.Errorf("invalid period %q: must be days or longer", s)
	}
	return span, nil
}

// ParseInterval parses a bar size: Nm, Nh, Nd, Nwk or Nmo
func ParseInterval(s string) (Span, error) {
	span, err := parseSpan(s)
	if err != nil {
		return Span{}, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if span.Unit == Year {
		return Span{}, fmt.Errorf("invalid interval %q: yearly bars are not supported", s)
	}
	return span, nil
}

func parseSpan(s string) (Span, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	// "mo" must be checked before "m"
	suffixes := []struct {
		suffix string
		unit   Unit
	}{
		{"mo", Month},
		{"wk", Week},
		{"m", Minute},
		{"h", Hour},
		{"d", Day},
		{"y", Year},
	}

	for _, sfx := range suffixes {
		if !strings.HasSuffix(s, sfx.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(s, sfx.suffix))
		if err != nil {
			return Span{}, fmt.Errorf("bad count: %w", err)
		}
		if n <= 0 {
			return Span{}, fmt.Errorf("count must be positive")
		}
		return Span{N: n, Unit: sfx.unit}, nil
	}
	return Span{}, fmt.Errorf("unknown unit")
}

// Start returns the beginning of the lookback period ending at end.
// Day-based periods are widened backwards over weekends so the last
// trading session is always covered.
func (s Span) Start(end time.Time) time.Time {
	var start time.Time
	switch s.Unit {
	case Day:
		start = end.AddDate(0, 0, -s.N)
		for start.Weekday() == time.Saturday || start.Weekday() == time.Sunday {
			start = start.AddDate(0, 0, -1)
		}
	case Week:
		start = end.AddDate(0, 0, -7*s.N)
	case Month:
		start = end.AddDate(0, -s.N, 0)
	case Year:
		start = end.AddDate(-s.N, 0, 0)
	default:
		start = end.Add(-s.Duration())
	}
	return start
}

// Duration is the clock length of minute and hour spans; zero for calendar units
func (s Span) Duration() time.Duration {
	switch s.Unit {
	case Minute:
		return time.Duration(s.N) * time.Minute
	case Hour:
		return time.Duration(s.N) * time.Hour
	}
	return 0
}
