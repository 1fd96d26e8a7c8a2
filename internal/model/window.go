package model

import (
	"fmt"
	"time"
)

// DateLayout and TimeLayout are the textual forms of a slot unit.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// WindowKind tags the variant held by a Window.
type WindowKind string

const (
	// WindowDateRange spans nights [CheckIn, CheckOut).
	WindowDateRange WindowKind = "date_range"
	// WindowInstant is a single date, optionally with a time of day.
	WindowInstant WindowKind = "instant"
)

// Window is the requested span of slots for a booking.  Exactly one
// variant is meaningful depending on Kind: CheckIn/CheckOut for date
// ranges, Date/Time for instants.  All dates are UTC midnights.
type Window struct {
	Kind     WindowKind `json:"kind"`
	CheckIn  time.Time  `json:"check_in,omitempty"`  // date range: first night
	CheckOut time.Time  `json:"check_out,omitempty"` // date range: departure day, not consumed
	Date     time.Time  `json:"date,omitempty"`      // instant: day of the slot
	Time     string     `json:"time,omitempty"`      // instant: "15:04", empty for a whole-day slot
}

// StayWindow builds a date-range window.  Times of day are discarded.
func StayWindow(checkIn, checkOut time.Time) Window {
	return Window{Kind: WindowDateRange, CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
}

// InstantWindow builds a single-slot window.  clock may be empty.
func InstantWindow(date time.Time, clock string) Window {
	return Window{Kind: WindowInstant, Date: Day(date), Time: clock}
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a "2006-01-02" string into a UTC day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Nights returns the number of nights a date-range window covers.
func (w Window) Nights() int {
	if w.Kind != WindowDateRange {
		return 0
	}
	return int(w.CheckOut.Sub(w.CheckIn).Hours() / 24)
}

// Start returns the first instant the window occupies.
func (w Window) Start() time.Time {
	if w.Kind == WindowDateRange {
		return w.CheckIn
	}
	if w.Time == "" {
		return w.Date
	}
	t, err := time.Parse(TimeLayout, w.Time)
	if err != nil {
		return w.Date
	}
	return w.Date.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

// Validate checks the structural consistency of the window.  It does not
// look at the clock; "not in the past" rules belong to the caller.
func (w Window) Validate() error {
	switch w.Kind {
	case WindowDateRange:
		if w.CheckIn.IsZero() || w.CheckOut.IsZero() {
			return fmt.Errorf("check-in and check-out dates are required")
		}
		if !w.CheckOut.After(w.CheckIn) {
			return fmt.Errorf("check-out date must be after check-in date")
		}
	case WindowInstant:
		if w.Date.IsZero() {
			return fmt.Errorf("date is required")
		}
		if w.Time != "" {
			if _, err := time.Parse(TimeLayout, w.Time); err != nil {
				return fmt.Errorf("time must be HH:MM")
			}
		}
	default:
		return fmt.Errorf("unknown window kind %q", w.Kind)
	}
	return nil
}

// Units expands the window into the slot units it consumes, in
// chronological order.  The checkout day of a stay is not consumed.
func (w Window) Units() ([]SlotUnit, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if w.Kind == WindowInstant {
		return []SlotUnit{{Date: w.Date.Format(DateLayout), Time: w.Time}}, nil
	}
	units := make([]SlotUnit, 0, w.Nights())
	for d := w.CheckIn; d.Before(w.CheckOut); d = d.AddDate(0, 0, 1) {
		units = append(units, SlotUnit{Date: d.Format(DateLayout)})
	}
	return units, nil
}
