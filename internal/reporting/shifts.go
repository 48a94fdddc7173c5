package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Lokman32/leadprep/internal/apperr"
)

type Shift string

const (
	Morning   Shift = "morning"
	Afternoon Shift = "afternoon"
	Night     Shift = "night"
)

// Shifts lists the shifts of a production day in order.
var Shifts = []Shift{Morning, Afternoon, Night}

const dateLayout = "2006-01-02"

// Window is a half-open [Start, End) interval of facility-local time.
type Window struct {
	Shift Shift     `json:"shift"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ParseShift accepts shift names case-insensitively.
func ParseShift(s string) (Shift, error) {
	switch Shift(strings.ToLower(strings.TrimSpace(s))) {
	case Morning:
		return Morning, nil
	case Afternoon:
		return Afternoon, nil
	case Night:
		return Night, nil
	}
	return "", apperr.Validation("unknown shift %q", s)
}

// ParseDate reads a YYYY-MM-DD calendar day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

// ShiftWindow returns the bounds of shift on the calendar day of date.
// Morning runs 06:00-14:00, Afternoon 14:00-22:00 and Night 22:00 until
// 06:00 the next day.
func ShiftWindow(date time.Time, shift Shift, loc *time.Location) (Window, error) {
	y, m, d := date.In(loc).Date()
	at := func(day, hour int) time.Time { return time.Date(y, m, day, hour, 0, 0, 0, loc) }
	switch shift {
	case Morning:
		return Window{Shift: shift, Start: at(d, 6), End: at(d, 14)}, nil
	case Afternoon:
		return Window{Shift: shift, Start: at(d, 14), End: at(d, 22)}, nil
	case Night:
		return Window{Shift: shift, Start: at(d, 22), End: at(d+1, 6)}, nil
	}
	return Window{}, fmt.Errorf("unknown shift %q", shift)
}

// DayWindow returns midnight to midnight of date's calendar day.
func DayWindow(date time.Time, loc *time.Location) Window {
	y, m, d := date.In(loc).Date()
	return Window{Start: time.Date(y, m, d, 0, 0, 0, 0, loc), End: time.Date(y, m, d+1, 0, 0, 0, 0, loc)}
}

// ShiftAt returns the shift that contains t and the production day it
// belongs to. Times before 06:00 belong to the previous day's night shift.
func ShiftAt(t time.Time, loc *time.Location) (Shift, time.Time) {
	lt := t.In(loc)
	y, m, d := lt.Date()
	switch h := lt.Hour(); {
	case h < 6:
		return Night, time.Date(y, m, d-1, 0, 0, 0, 0, loc)
	case h < 14:
		return Morning, time.Date(y, m, d, 0, 0, 0, 0, loc)
	case h < 22:
		return Afternoon, time.Date(y, m, d, 0, 0, 0, 0, loc)
	default:
		return Night, time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}
