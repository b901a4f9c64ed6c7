package market

import (
	"fmt"
	"time"
)

// Reference exchange defaults (NYSE regular session)
const (
	DefaultTimezone = "America/New_York"
	DefaultOpen     = "09:30"
	DefaultClose    = "16:00"
)

// Session is the regular trading window of the reference exchange.
// It is the single market-hours predicate used by both the snapshot
// scheduler and the portfolio view.
type Session struct {
	loc   *time.Location
	open  int // minutes after local midnight
	close int
}

// NewSession builds a Session from a timezone name and "HH:MM" open/close times
func NewSession(timezone, open, close string) (*Session, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", timezone, err)
	}
	openMin, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("invalid open time: %w", err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("invalid close time: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("close %s must be after open %s", close, open)
	}
	return &Session{loc: loc, open: openMin, close: closeMin}, nil
}

// DefaultSession returns the NYSE regular session
func DefaultSession() (*Session, error) {
	return NewSession(DefaultTimezone, DefaultOpen, DefaultClose)
}

// Location returns the exchange timezone
func (s *Session) Location() *time.Location {
	return s.loc
}

// IsOpen reports whether t falls on a weekday inside [open, close],
// both ends inclusive, in exchange local time. Holidays are not modeled.
func (s *Session) IsOpen(t time.Time) bool {
	local := t.In(s.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}

	openAt := time.Date(local.Year(), local.Month(), local.Day(), s.open/60, s.open%60, 0, 0, s.loc)
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), s.close/60, s.close%60, 0, 0, s.loc)
	return !local.Before(openAt) && !local.After(closeAt)
}

// Day returns the start and end of the exchange-local calendar day containing t
func (s *Session) Day(t time.Time) (time.Time, time.Time) {
	local := t.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// Noon returns 12:00 exchange-local on the day containing t
func (s *Session) Noon(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, s.loc)
}

func parseClock(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
