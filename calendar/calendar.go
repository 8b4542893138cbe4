// Package calendar anchors every daily boundary of the engine to one reference timezone.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jonboulle/clockwork"
)

// WeekDays is the length of the trailing weekly window, today inclusive.
const WeekDays = 7

type Calendar struct {
	clock clockwork.Clock
	loc   *time.Location
}

func New(clock clockwork.Clock, loc *time.Location) *Calendar {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{clock: clock, loc: loc}
}

// LoadLocation resolves a timezone name. Names of the form "+09:00" or "UTC+9" become fixed zones.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc, nil
	}
	offset := strings.TrimPrefix(strings.TrimPrefix(name, "UTC"), "GMT")
	if t, err := time.Parse("-07:00", offset); err == nil {
		_, secs := t.Zone()
		return time.FixedZone(name, secs), nil
	}
	var hours int
	if _, err := fmt.Sscanf(offset, "%d", &hours); err == nil && hours >= -12 && hours <= 14 {
		return time.FixedZone(name, hours*3600), nil
	}
	return nil, fmt.Errorf("unknown timezone %q", name)
}

func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) Clock() clockwork.Clock { return c.clock }

func (c *Calendar) Now() time.Time { return c.clock.Now().In(c.loc) }

// Today is the current calendar day in the reference timezone.
func (c *Calendar) Today() civil.Date { return civil.DateOf(c.Now()) }

// DateOf maps an instant to its reference-timezone calendar day.
func (c *Calendar) DateOf(t time.Time) civil.Date { return civil.DateOf(t.In(c.loc)) }

// WeekWindow returns the inclusive trailing window [today-6, today].
func (c *Calendar) WeekWindow() (from, to civil.Date) {
	to = c.Today()
	return to.AddDays(-(WeekDays - 1)), to
}

// StartOfDay is midnight of d in the reference timezone.
func (c *Calendar) StartOfDay(d civil.Date) time.Time {
	return d.In(c.loc)
}

// Seed is the 8-digit numeral of d, e.g. 2025-12-10 -> 20251210.
func Seed(d civil.Date) int64 {
	return int64(d.Year)*10000 + int64(d.Month)*100 + int64(d.Day)
}

// ParseDate accepts "2006-01-02" or "20060102".
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) == 8 && !strings.Contains(s, "-") {
		t, err := time.Parse("20060102", s)
		if err != nil {
			return civil.Date{}, err
		}
		return civil.DateOf(t), nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, err
	}
	if !d.IsValid() {
		return civil.Date{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// ToTime stores a calendar day as UTC midnight, the representation used by date columns.
func ToTime(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// FromTime reads back a date column value written by ToTime.
func FromTime(t time.Time) civil.Date {
	return civil.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}
