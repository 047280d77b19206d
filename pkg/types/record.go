package types

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date. The year is stored but ignored by matching.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// MonthDay is a year-agnostic calendar day used as a match target.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseDate parses a strict YYYY-MM-DD string into a Date.
// Returns an error wrapping ErrInvalidDate when s is not a real calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	// time.Parse accepts some non-canonical forms; require an exact round trip.
	if t.Format(time.DateOnly) != s {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Valid reports whether d names a real calendar date.
func (d Date) Valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == d.Day && t.Month() == d.Month
}

// MonthDay drops the year.
func (d Date) MonthDay() MonthDay {
	return MonthDay{Month: d.Month, Day: d.Day}
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MonthDayOf returns the month and day of t in t's location.
func MonthDayOf(t time.Time) MonthDay {
	_, m, d := t.Date()
	return MonthDay{Month: m, Day: d}
}

// String formats md as MM-DD.
func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// Record is a registered event owned by exactly one user.
// Records are immutable after creation; replace via delete and re-add.
type Record struct {
	RecordID  string    // UUID v7, assigned by the store.
	OwnerID   string    // Owning user (required).
	Label     string    // Display name, e.g. "Surname Name" (required, not unique).
	Date      Date      // Event date; matching uses month and day only.
	Group     *string   // Optional classification; nil means none.
	Details   *string   // Optional note; nil means none.
	CreatedAt time.Time // Set by the store on insert.
}

// NewRecord carries the caller-supplied fields for RecordStore.Add.
// Date is the raw YYYY-MM-DD text as entered by the user.
type NewRecord struct {
	OwnerID string
	Label   string
	Date    string
	Group   *string
	Details *string
}

// Validate checks the owner and label and parses the date.
func (n NewRecord) Validate() (Date, error) {
	if strings.TrimSpace(n.OwnerID) == "" {
		return Date{}, ErrInvalidOwner
	}
	if strings.TrimSpace(n.Label) == "" {
		return Date{}, ErrInvalidLabel
	}
	return ParseDate(n.Date)
}

// Optional returns a pointer to s, or nil when s is blank.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
