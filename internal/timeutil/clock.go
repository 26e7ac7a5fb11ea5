package timeutil

import (
	"time"
)

// Local is the business timezone used for document dates and calendar days.
var Local = mustLoad("Europe/Madrid")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// tzdata missing in the image; keep UTC
		return time.UTC
	}
	return loc
}

// SetLocation switches the business timezone. Unknown names leave it unchanged.
func SetLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	Local = loc
	return nil
}

// Now returns the current time in the business timezone
func Now() time.Time {
	return time.Now().In(Local)
}

// ParseDate parses a YYYY-MM-DD date as midnight in the business timezone
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, Local)
}

// StartOfDay returns 00:00:00 of t's day in the business timezone
func StartOfDay(t time.Time) time.Time {
	lt := t.In(Local)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, Local)
}

// EndOfDay returns the last instant of t's day in the business timezone
func EndOfDay(t time.Time) time.Time {
	lt := t.In(Local)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 23, 59, 59, 999999999, Local)
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02/01/2006"
)
