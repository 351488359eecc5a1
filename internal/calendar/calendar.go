// Package calendar supplies non-working dates, prayer-time windows and
// observance periods to the scheduler. The data lives in a YAML file so
// operations can refresh it yearly without a deploy; the engine only
// consumes it through the schedule.Calendar interface.
package calendar

import (
	"fmt"
	"os"
	"time"

	"reminder_backend/internal/followup/schedule"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// file is the on-disk YAML shape.
type file struct {
	Holidays []holidayEntry     `yaml:"holidays"`
	Periods  []periodEntry      `yaml:"observancePeriods"`
	Prayers  []prayerTimesEntry `yaml:"prayerTimes"`
}

type holidayEntry struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

type periodEntry struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// prayerTimesEntry lists prayer windows for one date as "HH:MM-HH:MM" ranges.
type prayerTimesEntry struct {
	Date    string   `yaml:"date"`
	Windows []string `yaml:"windows"`
}

type period struct {
	start time.Time
	end   time.Time
}

type clockRange struct {
	startHour, startMin int
	endHour, endMin     int
}

// Calendar is a schedule.Calendar backed by static YAML data.
type Calendar struct {
	holidays map[string]string
	periods  []period
	prayers  map[string][]clockRange
}

// Empty returns a calendar with no holidays, periods or prayer windows.
func Empty() *Calendar {
	return &Calendar{
		holidays: map[string]string{},
		prayers:  map[string][]clockRange{},
	}
}

// Load reads calendar data from the YAML file at path. A missing file is
// not an error: it yields an empty calendar so the engine degrades to
// plain business-hours scheduling.
func Load(path string) (*Calendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("read calendar file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a calendar from raw YAML.
func Parse(raw []byte) (*Calendar, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse calendar yaml: %w", err)
	}

	cal := Empty()

	for _, h := range f.Holidays {
		if _, err := time.Parse(dateLayout, h.Date); err != nil {
			return nil, fmt.Errorf("holiday date %q: %w", h.Date, err)
		}
		cal.holidays[h.Date] = h.Name
	}

	for _, p := range f.Periods {
		start, err := time.Parse(dateLayout, p.Start)
		if err != nil {
			return nil, fmt.Errorf("observance period %q start: %w", p.Name, err)
		}
		end, err := time.Parse(dateLayout, p.End)
		if err != nil {
			return nil, fmt.Errorf("observance period %q end: %w", p.Name, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("observance period %q ends before it starts", p.Name)
		}
		cal.periods = append(cal.periods, period{start: start, end: end})
	}

	for _, p := range f.Prayers {
		if _, err := time.Parse(dateLayout, p.Date); err != nil {
			return nil, fmt.Errorf("prayer date %q: %w", p.Date, err)
		}
		for _, w := range p.Windows {
			cr, err := parseClockRange(w)
			if err != nil {
				return nil, fmt.Errorf("prayer window %q on %s: %w", w, p.Date, err)
			}
			cal.prayers[p.Date] = append(cal.prayers[p.Date], cr)
		}
	}

	return cal, nil
}

// IsHoliday implements schedule.Calendar.
func (c *Calendar) IsHoliday(date time.Time) (bool, string) {
	name, ok := c.holidays[date.Format(dateLayout)]
	return ok, name
}

// PrayerWindows implements schedule.Calendar.
func (c *Calendar) PrayerWindows(date time.Time) []schedule.Window {
	ranges := c.prayers[date.Format(dateLayout)]
	if len(ranges) == 0 {
		return nil
	}

	windows := make([]schedule.Window, 0, len(ranges))
	for _, r := range ranges {
		windows = append(windows, schedule.Window{
			Start: time.Date(date.Year(), date.Month(), date.Day(), r.startHour, r.startMin, 0, 0, date.Location()),
			End:   time.Date(date.Year(), date.Month(), date.Day(), r.endHour, r.endMin, 0, 0, date.Location()),
		})
	}
	return windows
}

// InObservancePeriod implements schedule.Calendar.
func (c *Calendar) InObservancePeriod(date time.Time) bool {
	day, _ := time.Parse(dateLayout, date.Format(dateLayout))
	for _, p := range c.periods {
		if !day.Before(p.start) && !day.After(p.end) {
			return true
		}
	}
	return false
}

func parseClockRange(raw string) (clockRange, error) {
	var cr clockRange
	n, err := fmt.Sscanf(raw, "%d:%d-%d:%d", &cr.startHour, &cr.startMin, &cr.endHour, &cr.endMin)
	if err != nil || n != 4 {
		return clockRange{}, fmt.Errorf("want HH:MM-HH:MM")
	}
	if cr.startHour < 0 || cr.startHour > 23 || cr.endHour < 0 || cr.endHour > 23 ||
		cr.startMin < 0 || cr.startMin > 59 || cr.endMin < 0 || cr.endMin > 59 {
		return clockRange{}, fmt.Errorf("clock values out of range")
	}
	return cr, nil
}

// Interface check
var _ schedule.Calendar = (*Calendar)(nil)
