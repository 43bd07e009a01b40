package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday tokens used in SendingConfig.AllowedDays, Sunday first to line up
// with time.Weekday values.
var dayTokens = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// DayToken returns the lowercase three-letter token for a weekday.
func DayToken(d time.Weekday) string {
	return dayTokens[int(d)%7]
}

// SendingConfig is the per-account throughput policy. The scheduler reads
// it on every step; it is written only by account settings management.
type SendingConfig struct {
	BaseIntervalSeconds int      `json:"base_interval_seconds"`
	Randomize           bool     `json:"randomize"`
	HourlyCap           int      `json:"hourly_cap"`
	DailyCap            int      `json:"daily_cap"`
	AllowedStart        string   `json:"allowed_start"` // "HH:MM", inclusive
	AllowedEnd          string   `json:"allowed_end"`   // "HH:MM", inclusive
	AllowedDays         []string `json:"allowed_days"`
	AutoPauseOnLimit    bool     `json:"auto_pause_on_limit"`
}

// AllowsDay reports whether the weekday token is in the allowed set.
func (c *SendingConfig) AllowsDay(token string) bool {
	for _, d := range c.AllowedDays {
		if d == token {
			return true
		}
	}
	return false
}

// MinuteOfDay parses a zero-padded "HH:MM" string into minutes since
// midnight. Boundary comparisons on minute-of-day integers agree with
// string comparison of zero-padded "HH:MM", so either representation may
// gate the window with the same tie-break (boundaries inclusive).
func MinuteOfDay(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return h*60 + m, nil
}

// Validate rejects malformed configuration before anything is persisted.
func (c *SendingConfig) Validate() error {
	if c.BaseIntervalSeconds <= 0 {
		return fmt.Errorf("%w: base interval must be positive", ErrInvalidConfig)
	}
	if c.HourlyCap <= 0 || c.DailyCap <= 0 {
		return fmt.Errorf("%w: hourly and daily caps must be positive", ErrInvalidConfig)
	}
	start, err := MinuteOfDay(c.AllowedStart)
	if err != nil {
		return fmt.Errorf("%w: allowed start: %v", ErrInvalidConfig, err)
	}
	end, err := MinuteOfDay(c.AllowedEnd)
	if err != nil {
		return fmt.Errorf("%w: allowed end: %v", ErrInvalidConfig, err)
	}
	if end < start {
		return fmt.Errorf("%w: allowed window ends before it starts", ErrInvalidConfig)
	}
	if len(c.AllowedDays) == 0 {
		return fmt.Errorf("%w: allowed days must not be empty", ErrInvalidConfig)
	}
	for _, d := range c.AllowedDays {
		valid := false
		for _, t := range dayTokens {
			if d == t {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: unknown weekday token %q", ErrInvalidConfig, d)
		}
	}
	return nil
}
