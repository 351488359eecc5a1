package schedule

import (
	"errors"
	"testing"
	"time"
)

// stubCalendar is a calendar with fixed holidays, prayer windows and
// observance dates, keyed by date string.
type stubCalendar struct {
	holidays   map[string]string
	prayers    map[string][]Window
	observance map[string]bool
}

func dateKey(t time.Time) string { return t.Format("2006-01-02") }

func (c *stubCalendar) IsHoliday(date time.Time) (bool, string) {
	name, ok := c.holidays[dateKey(date)]
	return ok, name
}

func (c *stubCalendar) PrayerWindows(date time.Time) []Window {
	return c.prayers[dateKey(date)]
}

func (c *stubCalendar) InObservancePeriod(date time.Time) bool {
	return c.observance[dateKey(date)]
}

func emptyCalendar() *stubCalendar {
	return &stubCalendar{
		holidays:   map[string]string{},
		prayers:    map[string][]Window{},
		observance: map[string]bool{},
	}
}

func newTestScheduler(cal Calendar) *Scheduler {
	return New(DefaultConfig(), cal)
}

// 2024-01-07 is a Sunday (working day in the default config).
var (
	sunday   = time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	friday   = time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	saturday = time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC)
)

func TestNextIdentityWithoutConstraints(t *testing.T) {
	s := newTestScheduler(emptyCalendar())

	inputs := []time.Time{sunday, friday, saturday.Add(14 * time.Hour)}
	for _, in := range inputs {
		got, err := s.Next(in, Constraints{})
		if err != nil {
			t.Fatalf("Next(%s): %v", in, err)
		}
		if !got.Equal(in) {
			t.Errorf("Next(%s) = %s, want identity", in, got)
		}
	}
}

func TestNextWeekendMovesToWorkingDayWindowStart(t *testing.T) {
	s := newTestScheduler(emptyCalendar())

	got, err := s.Next(saturday, Constraints{AvoidWeekends: true})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	want := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC) // Sunday 09:00
	if !got.Equal(want) {
		t.Errorf("Next(Saturday 10:00) = %s, want %s", got, want)
	}
}

func TestNextBusinessHoursAlwaysWithinWindow(t *testing.T) {
	s := newTestScheduler(emptyCalendar())
	c := Constraints{RespectBusinessHours: true}

	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"before window", time.Date(2024, 1, 8, 6, 30, 0, 0, time.UTC), time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)},
		{"inside window unchanged", time.Date(2024, 1, 8, 11, 15, 0, 0, time.UTC), time.Date(2024, 1, 8, 11, 15, 0, 0, time.UTC)},
		{"at window end", time.Date(2024, 1, 8, 18, 0, 0, 0, time.UTC), time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)},
		{"after window", time.Date(2024, 1, 8, 21, 0, 0, 0, time.UTC), time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)},
		{"thursday evening rolls over weekend", time.Date(2024, 1, 11, 19, 0, 0, 0, time.UTC), time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)},
		{"weekend inside hours still moves", saturday, time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)},
	}

	cfg := DefaultConfig()
	for _, tc := range cases {
		got, err := s.Next(tc.in, c)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("%s: Next(%s) = %s, want %s", tc.name, tc.in, got, tc.want)
		}
		if !cfg.WorkingDays[got.Weekday()] {
			t.Errorf("%s: result lands on non-working %s", tc.name, got.Weekday())
		}
		if got.Hour() < cfg.WindowStartHour || got.Hour() >= cfg.WindowEndHour {
			t.Errorf("%s: result %s outside business window", tc.name, got)
		}
	}
}

func TestNextObservancePeriodShortensWindow(t *testing.T) {
	cal := emptyCalendar()
	cal.observance["2024-01-08"] = true // Monday
	s := newTestScheduler(cal)

	// 16:00 is inside normal hours but past the shortened 15:00 end.
	in := time.Date(2024, 1, 8, 16, 0, 0, 0, time.UTC)
	got, err := s.Next(in, Constraints{RespectBusinessHours: true})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next(%s) = %s, want next day %s", in, got, want)
	}
}

func TestNextSkipsHolidays(t *testing.T) {
	cal := emptyCalendar()
	cal.holidays["2024-01-07"] = "National Day observed" // Sunday
	cal.holidays["2024-01-08"] = "National Day holiday"  // Monday
	s := newTestScheduler(cal)

	got, err := s.Next(sunday, Constraints{RespectBusinessHours: true, AvoidHolidays: true})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC) // Tuesday
	if !got.Equal(want) {
		t.Errorf("Next = %s, want %s", got, want)
	}
}

func TestNextAvoidsPrayerWindows(t *testing.T) {
	cal := emptyCalendar()
	cal.prayers["2024-01-07"] = []Window{
		{
			Start: time.Date(2024, 1, 7, 12, 15, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 7, 12, 45, 0, 0, time.UTC),
		},
	}
	s := newTestScheduler(cal)

	in := time.Date(2024, 1, 7, 12, 20, 0, 0, time.UTC)
	got, err := s.Next(in, Constraints{RespectBusinessHours: true, AvoidPrayerTimes: true})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := time.Date(2024, 1, 7, 12, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next = %s, want prayer window end %s", got, want)
	}
}

func TestNextPrayerWindowAtEndOfDayRolls(t *testing.T) {
	cal := emptyCalendar()
	// Window runs through the end of business hours on Sunday.
	cal.prayers["2024-01-07"] = []Window{
		{
			Start: time.Date(2024, 1, 7, 17, 30, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 7, 18, 30, 0, 0, time.UTC),
		},
	}
	s := newTestScheduler(cal)

	in := time.Date(2024, 1, 7, 17, 45, 0, 0, time.UTC)
	got, err := s.Next(in, Constraints{RespectBusinessHours: true, AvoidPrayerTimes: true})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC) // Monday 09:00
	if !got.Equal(want) {
		t.Errorf("Next = %s, want %s", got, want)
	}
}

func TestNextBoundedSearchFails(t *testing.T) {
	cal := emptyCalendar()
	// Every day for a month is a holiday; no slot can exist.
	for d := 0; d < 31; d++ {
		cal.holidays[dateKey(sunday.AddDate(0, 0, d))] = "shutdown"
	}
	s := newTestScheduler(cal)

	_, err := s.Next(sunday, Constraints{AvoidHolidays: true})
	if err == nil {
		t.Fatal("expected SchedulingError")
	}

	var schedErr *SchedulingError
	if !errors.As(err, &schedErr) {
		t.Fatalf("error type = %T, want *SchedulingError", err)
	}
	if schedErr.Advances != maxDayAdvances {
		t.Errorf("Advances = %d, want %d", schedErr.Advances, maxDayAdvances)
	}
}

func TestNextNeverRoundsDown(t *testing.T) {
	cal := emptyCalendar()
	cal.holidays["2024-01-08"] = "holiday"
	cal.prayers["2024-01-09"] = []Window{
		{
			Start: time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 9, 9, 30, 0, 0, time.UTC),
		},
	}
	s := newTestScheduler(cal)

	all := Constraints{
		RespectBusinessHours: true,
		AvoidWeekends:        true,
		AvoidHolidays:        true,
		AvoidPrayerTimes:     true,
	}

	for hour := 0; hour < 24; hour++ {
		in := time.Date(2024, 1, 6, hour, 0, 0, 0, time.UTC) // Saturday
		got, err := s.Next(in, all)
		if err != nil {
			t.Fatalf("Next(hour %d): %v", hour, err)
		}
		if got.Before(in) {
			t.Errorf("Next(%s) = %s rounded down", in, got)
		}
	}
}
