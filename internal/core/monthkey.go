package core

import (
	"errors"
	"fmt"
	"time"
)

// MonthKey identifies a calendar month in the canonical YYYY-MM form.
// Zero-padding makes string comparison agree with calendar order.
type MonthKey string

var ErrInvalidMonthKey = errors.New("invalid month key")

// MonthKeyOf derives the key from a timestamp's own year and month
// components, never from a textual prefix of a formatted timestamp.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// NewMonthKey builds a key from explicit year and month.
func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// ParseMonthKey validates and normalizes a YYYY-MM string.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKeyOf(t), nil
}

func (mk MonthKey) Validate() error {
	parsed, err := ParseMonthKey(string(mk))
	if err != nil {
		return err
	}
	if parsed != mk {
		return fmt.Errorf("%w: %q not canonical", ErrInvalidMonthKey, string(mk))
	}
	return nil
}

// Date returns the year and month denoted by the key. Callers must only
// invoke it on validated keys; a malformed key yields the zero values.
func (mk MonthKey) Date() (int, time.Month) {
	t, err := time.Parse("2006-01", string(mk))
	if err != nil {
		return 0, 0
	}
	return t.Year(), t.Month()
}

// Contains reports whether the timestamp falls within the calendar month,
// comparing date components so stored-timestamp formatting cannot drift
// from key derivation.
func (mk MonthKey) Contains(t time.Time) bool {
	year, month := mk.Date()
	return t.Year() == year && t.Month() == month
}

// Prev returns the key of the preceding calendar month.
func (mk MonthKey) Prev() MonthKey {
	year, month := mk.Date()
	return MonthKeyOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0))
}

// Next returns the key of the following calendar month.
func (mk MonthKey) Next() MonthKey {
	year, month := mk.Date()
	return MonthKeyOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0))
}

// Human renders the key as MM/YYYY for summary texts.
func (mk MonthKey) Human() string {
	year, month := mk.Date()
	return fmt.Sprintf("%02d/%04d", int(month), year)
}

func (mk MonthKey) String() string {
	return string(mk)
}
