// Package schedule holds the pure scheduling math: randomized pacing
// intervals, allowed-window checks, and schedule previews. No I/O happens
// here; time and randomness are injected so every function is deterministic
// under test.
package schedule

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

// Calculator produces randomized pacing intervals. Production uses a
// time-seeded source; tests inject a fixed seed.
type Calculator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCalculator returns a calculator seeded from the wall clock.
func NewCalculator() *Calculator {
	return NewCalculatorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewCalculatorWithSource returns a calculator over the given source.
func NewCalculatorWithSource(src rand.Source) *Calculator {
	return &Calculator{rng: rand.New(src)}
}

// RandomizedInterval returns base when randomize is off, otherwise a uniform
// integer in [round(0.8*base), round(1.2*base)].
func (c *Calculator) RandomizedInterval(base int, randomize bool) int {
	if !randomize || base <= 0 {
		return base
	}
	lo := int(math.Round(float64(base) * 0.8))
	hi := int(math.Round(float64(base) * 1.2))
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo + c.rng.Intn(hi-lo+1)
}

// IsWithinAllowedWindow reports whether now's weekday is allowed and its
// time of day falls inside [AllowedStart, AllowedEnd], both boundaries
// inclusive.
func IsWithinAllowedWindow(cfg *domain.SendingConfig, now time.Time) bool {
	if !cfg.AllowsDay(domain.DayToken(now.Weekday())) {
		return false
	}
	start, err := domain.MinuteOfDay(cfg.AllowedStart)
	if err != nil {
		return false
	}
	end, err := domain.MinuteOfDay(cfg.AllowedEnd)
	if err != nil {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	return minute >= start && minute <= end
}

// NextAllowedInstant returns today's window start when today is allowed and
// now precedes it, otherwise the start of the next allowed weekday within a
// seven-day scan. The tomorrow fallback cannot trigger once AllowedDays is
// non-empty but keeps the function total.
func NextAllowedInstant(cfg *domain.SendingConfig, now time.Time) time.Time {
	start, err := domain.MinuteOfDay(cfg.AllowedStart)
	if err != nil {
		start = 0
	}
	if cfg.AllowsDay(domain.DayToken(now.Weekday())) && now.Hour()*60+now.Minute() < start {
		return dayStart(now, start)
	}
	for i := 1; i <= 7; i++ {
		day := now.AddDate(0, 0, i)
		if cfg.AllowsDay(domain.DayToken(day.Weekday())) {
			return dayStart(day, start)
		}
	}
	return dayStart(now.AddDate(0, 0, 1), start)
}

func dayStart(day time.Time, startMinute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), startMinute/60, startMinute%60, 0, 0, day.Location())
}

// Plan computes one scheduled_for timestamp per item as the cumulative sum
// of randomized intervals, starting at from when it is inside the allowed
// window and at NextAllowedInstant otherwise. The first item gets the start
// instant itself. Enqueue, Resume, and AdjustSpeed all reschedule through
// this single path.
func (c *Calculator) Plan(n int, baseInterval int, randomize bool, cfg *domain.SendingConfig, from time.Time) []time.Time {
	if n <= 0 {
		return nil
	}
	start := from
	if !IsWithinAllowedWindow(cfg, from) {
		start = NextAllowedInstant(cfg, from)
	}
	times := make([]time.Time, n)
	at := start
	for i := 0; i < n; i++ {
		times[i] = at
		at = at.Add(time.Duration(c.RandomizedInterval(baseInterval, randomize)) * time.Second)
	}
	return times
}

// Preview is a user-facing throughput estimate. It never gates actual
// sends; the rate/window gate does that at dispatch time.
type Preview struct {
	EstimatedEnd  time.Time `json:"estimated_end"`
	MsgsPerHour   int       `json:"msgs_per_hour"`
	MsgsPerDay    int       `json:"msgs_per_day"`
	EstimatedDays int       `json:"estimated_days"`
}

// BuildPreview estimates the campaign end from the item count and the
// account policy: per-hour throughput bounded by the hourly cap, per-day by
// the window length and the daily cap.
func BuildPreview(totalItems int, baseInterval int, cfg *domain.SendingConfig, now time.Time) Preview {
	if totalItems <= 0 || baseInterval <= 0 {
		return Preview{EstimatedEnd: now}
	}
	perHour := 3600 / baseInterval
	if perHour > cfg.HourlyCap {
		perHour = cfg.HourlyCap
	}
	if perHour < 1 {
		perHour = 1
	}

	startMin, _ := domain.MinuteOfDay(cfg.AllowedStart)
	endMin, _ := domain.MinuteOfDay(cfg.AllowedEnd)
	windowHours := float64(endMin-startMin) / 60.0
	perDay := int(float64(perHour) * windowHours)
	if perDay > cfg.DailyCap {
		perDay = cfg.DailyCap
	}
	if perDay < 1 {
		perDay = 1
	}

	days := (totalItems + perDay - 1) / perDay
	return Preview{
		EstimatedEnd:  now.Add(time.Duration(days) * 24 * time.Hour),
		MsgsPerHour:   perHour,
		MsgsPerDay:    perDay,
		EstimatedDays: days,
	}
}
