package scheduler

import (
	"testing"
	"time"
)

func TestIsDueNeverRun(t *testing.T) {
	now := time.Now()
	for _, freq := range []string{FreqHourly, FreqEvery3Days, FreqWeekly, "custom:0 * * * *", "garbage"} {
		if !IsDue(freq, nil, now) {
			t.Errorf("never-run scout with frequency %q should be due", freq)
		}
	}
}

func TestEligible(t *testing.T) {
	cases := []struct {
		name    string
		title   string
		goal    string
		queries []string
		want    bool
	}{
		{"complete", "Prices", "track prices", []string{"gadget prices"}, true},
		{"no title", "", "track prices", []string{"gadget prices"}, false},
		{"no goal", "Prices", "", []string{"gadget prices"}, false},
		{"no queries", "Prices", "track prices", nil, false},
		{"only blank queries", "Prices", "track prices", []string{"", "  "}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Eligible(tc.title, tc.goal, tc.queries); got != tc.want {
				t.Errorf("Eligible(%q, %q, %v) = %v, want %v", tc.title, tc.goal, tc.queries, got, tc.want)
			}
		})
	}
}

func TestIsDueIntervals(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		freq string
		ago  time.Duration
		want bool
	}{
		{"hourly just under", FreqHourly, 59 * time.Minute, false},
		{"hourly exact", FreqHourly, time.Hour, true},
		{"hourly over", FreqHourly, 2 * time.Hour, true},
		{"every-3-days under", FreqEvery3Days, 71 * time.Hour, false},
		{"every-3-days exact", FreqEvery3Days, 72 * time.Hour, true},
		{"weekly under", FreqWeekly, 167 * time.Hour, false},
		{"weekly exact", FreqWeekly, 168 * time.Hour, true},
		{"invalid falls back to weekly, under", "fortnightly", 100 * time.Hour, false},
		{"invalid falls back to weekly, over", "fortnightly", 200 * time.Hour, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			last := now.Add(-tc.ago)
			if got := IsDue(tc.freq, &last, now); got != tc.want {
				t.Errorf("IsDue(%q, now-%v) = %v, want %v", tc.freq, tc.ago, got, tc.want)
			}
		})
	}
}

func TestIsDueCustomCron(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)

	// Daily at midnight: last ran yesterday noon, next fire was midnight.
	last := now.Add(-24 * time.Hour)
	if !IsDue("custom:0 0 * * *", &last, now) {
		t.Error("daily cron with a missed midnight fire should be due")
	}

	// Last ran an hour ago; next midnight has not arrived.
	last = now.Add(-time.Hour)
	if IsDue("custom:0 0 * * *", &last, now) {
		t.Error("daily cron should not be due before the next fire time")
	}

	// Unparseable cron falls back to weekly.
	last = now.Add(-2 * time.Hour)
	if IsDue("custom:not a cron", &last, now) {
		t.Error("invalid cron should fall back to weekly")
	}
}
