// Package schedule computes the earliest valid send time for outbound
// contact under business-hours, weekend, holiday and prayer-time
// constraints. The computation is pure: all calendar data comes from the
// Calendar collaborator and the result depends only on the inputs.
package schedule

import (
	"fmt"
	"time"
)

// maxDayAdvances bounds the slot search. Fourteen days covers the longest
// realistic holiday cluster plus weekends; past that the calendar data is
// suspect and the caller should handle the error.
const maxDayAdvances = 14

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Calendar supplies non-working dates and prayer-time windows. The data
// itself is external; the scheduler only consumes it.
type Calendar interface {
	// IsHoliday reports whether the date (in its own location) is a
	// configured holiday, and the holiday's name when it is.
	IsHoliday(date time.Time) (bool, string)
	// PrayerWindows returns the prayer intervals for the date, as absolute
	// times on that date.
	PrayerWindows(date time.Time) []Window
	// InObservancePeriod reports whether the date falls in an observance
	// period with shortened business hours.
	InObservancePeriod(date time.Time) bool
}

// Constraints selects which scheduling rules apply to one computation.
// The zero value disables everything, making Next the identity.
type Constraints struct {
	RespectBusinessHours bool
	AvoidWeekends        bool
	AvoidHolidays        bool
	AvoidPrayerTimes     bool
}

func (c Constraints) any() bool {
	return c.RespectBusinessHours || c.AvoidWeekends || c.AvoidHolidays || c.AvoidPrayerTimes
}

// Config holds the business-hours shape. The zero value is not usable;
// construct through DefaultConfig and override as needed.
type Config struct {
	// WorkingDays maps weekdays to whether outbound contact is allowed.
	WorkingDays map[time.Weekday]bool
	// WindowStartHour and WindowEndHour bound the business-hours window.
	WindowStartHour int
	WindowEndHour   int
	// ObservanceEndHour replaces WindowEndHour during observance periods.
	ObservanceEndHour int
}

// DefaultConfig returns the standard UAE working week: Sunday through
// Thursday, 09:00-18:00, shortened to 15:00 during observance periods.
func DefaultConfig() Config {
	return Config{
		WorkingDays: map[time.Weekday]bool{
			time.Sunday:    true,
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
		},
		WindowStartHour:   9,
		WindowEndHour:     18,
		ObservanceEndHour: 15,
	}
}

// SchedulingError is returned when no valid slot exists within the bounded
// search. It is recoverable: callers skip the item, log, and continue.
type SchedulingError struct {
	Base     time.Time
	Advances int
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("no valid scheduling slot within %d days of %s", e.Advances, e.Base.Format(time.RFC3339))
}

// Scheduler computes valid send times against a calendar.
type Scheduler struct {
	cfg Config
	cal Calendar
}

// New creates a scheduler with the given config and calendar.
func New(cfg Config, cal Calendar) *Scheduler {
	return &Scheduler{cfg: cfg, cal: cal}
}

// Next returns the earliest timestamp >= base that satisfies every enabled
// constraint. It only rounds up, never back. With all constraints disabled
// the input is returned unchanged.
func (s *Scheduler) Next(base time.Time, c Constraints) (time.Time, error) {
	if !c.any() {
		return base, nil
	}

	t := base
	advances := 0

	for {
		if advances > maxDayAdvances {
			return time.Time{}, &SchedulingError{Base: base, Advances: maxDayAdvances}
		}

		// Non-working weekday. RespectBusinessHours implies weekend
		// avoidance: a business-hours send can only land on a working day.
		if (c.AvoidWeekends || c.RespectBusinessHours) && !s.workingDay(t) {
			t = s.windowStart(nextDay(t))
			advances++
			continue
		}

		// Business-hours window, possibly shortened during an observance
		// period.
		if c.RespectBusinessHours {
			start := s.windowStart(t)
			end := s.windowEnd(t)

			if t.Before(start) {
				t = start
				continue
			}
			if !t.Before(end) {
				t = s.windowStart(nextDay(t))
				advances++
				continue
			}
		}

		// Configured holiday: advance one day and re-check everything.
		if c.AvoidHolidays {
			if holiday, _ := s.cal.IsHoliday(t); holiday {
				t = s.windowStart(nextDay(t))
				advances++
				continue
			}
		}

		// Prayer windows: move to the end of a conflicting interval; if
		// that escapes the business window, roll to the next day.
		if c.AvoidPrayerTimes {
			if conflict, ok := s.prayerConflict(t); ok {
				t = conflict.End
				if c.RespectBusinessHours && !t.Before(s.windowEnd(t)) {
					t = s.windowStart(nextDay(t))
					advances++
				}
				continue
			}
		}

		return t, nil
	}
}

func (s *Scheduler) workingDay(t time.Time) bool {
	return s.cfg.WorkingDays[t.Weekday()]
}

func (s *Scheduler) windowStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), s.cfg.WindowStartHour, 0, 0, 0, t.Location())
}

func (s *Scheduler) windowEnd(t time.Time) time.Time {
	endHour := s.cfg.WindowEndHour
	if s.cal.InObservancePeriod(t) && s.cfg.ObservanceEndHour > 0 {
		endHour = s.cfg.ObservanceEndHour
	}
	return time.Date(t.Year(), t.Month(), t.Day(), endHour, 0, 0, 0, t.Location())
}

func (s *Scheduler) prayerConflict(t time.Time) (Window, bool) {
	for _, w := range s.cal.PrayerWindows(t) {
		if w.Contains(t) {
			return w, true
		}
	}
	return Window{}, false
}

func nextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
