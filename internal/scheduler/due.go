package scheduler

import (
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// Frequency values accepted on a scout. "custom:<expr>" carries a 5-field
// cron expression evaluated against the last run time.
const (
	FreqHourly     = "hourly"
	FreqEvery3Days = "every-3-days"
	FreqWeekly     = "weekly"
	customPrefix   = "custom:"
)

// Eligible reports whether a scout is complete enough to dispatch: a title, a
// goal and at least one non-blank search query. Incomplete scouts are skipped
// silently, never failed.
func Eligible(title, goal string, queries []string) bool {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(goal) == "" {
		return false
	}
	for _, q := range queries {
		if strings.TrimSpace(q) != "" {
			return true
		}
	}
	return false
}

// IsDue reports whether a scout with the given frequency should run at now,
// based on when it last ran. A scout that has never run is always due.
// Invalid frequencies fall back to weekly rather than silently never running.
func IsDue(frequency string, last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	switch frequency {
	case FreqHourly:
		return now.Sub(*last) >= time.Hour
	case FreqEvery3Days:
		return now.Sub(*last) >= 72*time.Hour
	case FreqWeekly:
		return now.Sub(*last) >= 168*time.Hour
	}
	if spec, ok := strings.CutPrefix(frequency, customPrefix); ok {
		expr, err := cronexpr.Parse(spec)
		if err == nil {
			next := expr.Next(*last)
			return !next.IsZero() && !next.After(now)
		}
	}
	return now.Sub(*last) >= 168*time.Hour
}
