// Package calendar implements the pure scheduling core: a timezone-agnostic
// calendar date type, recurrence expansion, and overlap detection. Nothing in
// this package touches the database or the clock - callers pass plain values
// in and get plain values back.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrMalformedTime indicates a date or time string that failed to parse.
var ErrMalformedTime = errors.New("malformed date or time")

// Date is a calendar date without a timezone. The zero value is not a valid
// date and can be used as "unset".
type Date struct {
	Year  int
	Month int
	Day   int
}

// ParseDate parses a strict "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return Date{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrMalformedTime, s)
	}
	year, err1 := strconv.Atoi(s[0:4])
	month, err2 := strconv.Atoi(s[5:7])
	day, err3 := strconv.Atoi(s[8:10])
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrMalformedTime, s)
	}
	d := Date{Year: year, Month: month, Day: day}
	if month < 1 || month > 12 || day < 1 || day > daysInMonth(year, month) {
		return Date{}, fmt.Errorf("%w: %q is not a real calendar date", ErrMalformedTime, s)
	}
	return d, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

// Compare returns -1, 0, or 1 as d is before, equal to, or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(d.Month - o.Month)
	default:
		return sign(d.Day - o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// AddDays returns the date n days after d. Month and year boundaries are
// normalized through the proleptic Gregorian calendar (UTC, so no DST gaps).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, time.Month(d.Month), d.Day+n, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// addMonths returns the year/month n months after the given year/month,
// deliberately without picking a day: whether the anchor day exists in the
// target month is the caller's decision.
func addMonths(year, month, n int) (int, int) {
	m := year*12 + (month - 1) + n
	return m / 12, m%12 + 1
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 0
	}
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses a strict zero-padded 24h "HH:MM" string. Events compare
// times lexicographically, which is only sound for strings of this shape.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return Clock{}, fmt.Errorf("%w: %q is not a HH:MM time", ErrMalformedTime, s)
	}
	hour, err1 := strconv.Atoi(s[0:2])
	minute, err2 := strconv.Atoi(s[3:5])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q is not a HH:MM time", ErrMalformedTime, s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }
