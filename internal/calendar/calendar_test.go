package calendar

import (
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
holidays:
  - date: 2024-12-02
    name: National Day
  - date: 2024-12-03
    name: National Day Holiday
observancePeriods:
  - name: Ramadan
    start: 2024-03-11
    end: 2024-04-09
prayerTimes:
  - date: 2024-03-15
    windows:
      - 12:15-12:45
      - 15:30-16:00
`

func mustParse(t *testing.T, raw string) *Calendar {
	t.Helper()
	cal, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return cal
}

func TestParseRecognizesHolidays(t *testing.T) {
	cal := mustParse(t, sampleYAML)

	ok, name := cal.IsHoliday(time.Date(2024, 12, 2, 10, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("december 2 should be a holiday")
	}
	if name != "National Day" {
		t.Fatalf("holiday name = %q", name)
	}

	if ok, _ := cal.IsHoliday(time.Date(2024, 12, 4, 10, 0, 0, 0, time.UTC)); ok {
		t.Fatal("december 4 should not be a holiday")
	}
}

func TestObservancePeriodIsDateInclusive(t *testing.T) {
	cal := mustParse(t, sampleYAML)

	cases := []struct {
		date time.Time
		want bool
	}{
		{time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC), false},
		{time.Date(2024, 3, 11, 0, 30, 0, 0, time.UTC), true},
		{time.Date(2024, 3, 25, 12, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 4, 9, 23, 59, 0, 0, time.UTC), true},
		{time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := cal.InObservancePeriod(tc.date); got != tc.want {
			t.Errorf("InObservancePeriod(%s) = %v, want %v", tc.date.Format("2006-01-02 15:04"), got, tc.want)
		}
	}
}

func TestPrayerWindowsAnchorToQueryDate(t *testing.T) {
	cal := mustParse(t, sampleYAML)

	date := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	windows := cal.PrayerWindows(date)
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}

	first := windows[0]
	if first.Start.Hour() != 12 || first.Start.Minute() != 15 {
		t.Fatalf("first window start = %s", first.Start.Format("15:04"))
	}
	if first.End.Hour() != 12 || first.End.Minute() != 45 {
		t.Fatalf("first window end = %s", first.End.Format("15:04"))
	}
	if !first.Start.Truncate(24 * time.Hour).Equal(date.Truncate(24 * time.Hour)) {
		t.Fatal("window should fall on the query date")
	}

	if got := cal.PrayerWindows(time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)); got != nil {
		t.Fatalf("unexpected windows on a date without entries: %v", got)
	}
}

func TestParseRejectsMalformedEntries(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"bad holiday date", "holidays:\n  - date: 02-12-2024\n    name: X\n"},
		{"period ends before start", "observancePeriods:\n  - name: X\n    start: 2024-04-09\n    end: 2024-03-11\n"},
		{"bad prayer window", "prayerTimes:\n  - date: 2024-03-15\n    windows:\n      - noonish\n"},
		{"window out of range", "prayerTimes:\n  - date: 2024-03-15\n    windows:\n      - 25:00-26:00\n"},
		{"not yaml", ": : :"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.raw)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestLoadMissingFileYieldsEmptyCalendar(t *testing.T) {
	cal, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok, _ := cal.IsHoliday(time.Now()); ok {
		t.Fatal("empty calendar should have no holidays")
	}
	if cal.InObservancePeriod(time.Now()) {
		t.Fatal("empty calendar should have no observance periods")
	}
}
