package models

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// PeriodLength is the width of a canonical YYYYMM period.
	PeriodLength = 6

	// SentinelPeriod replaces periods that are missing or too short to repair.
	SentinelPeriod = "000001"
)

// InvalidPeriodError is returned when a period cannot be split into year and month.
type InvalidPeriodError struct {
	Value   string
	Message string
}

func (e *InvalidPeriodError) Error() string {
	if e.Value == "" {
		return "invalid period: " + e.Message
	}
	return fmt.Sprintf("invalid period %q: %s", e.Value, e.Message)
}

// IsTransient returns false; a bad period stays bad.
func (e *InvalidPeriodError) IsTransient() bool {
	return false
}

// ParsePeriod splits a YYYYMM period into its year and month.
func ParsePeriod(p string) (int, time.Month, error) {
	if len(p) != PeriodLength {
		return 0, 0, &InvalidPeriodError{
			Value:   p,
			Message: fmt.Sprintf("expected %d characters, got %d", PeriodLength, len(p)),
		}
	}

	year, err := strconv.Atoi(p[:4])
	if err != nil || year < 0 {
		return 0, 0, &InvalidPeriodError{Value: p, Message: "year is not a number"}
	}

	month, err := strconv.Atoi(p[4:])
	if err != nil {
		return 0, 0, &InvalidPeriodError{Value: p, Message: "month is not a number"}
	}
	if month < 1 || month > 12 {
		return 0, 0, &InvalidPeriodError{Value: p, Message: "month out of range"}
	}

	return year, time.Month(month), nil
}

// FormatPeriod renders a year and month as YYYYMM.
func FormatPeriod(year int, month time.Month) string {
	return fmt.Sprintf("%04d%02d", year, int(month))
}

// MonthName converts a zero-based month index (0 = January) to its English name.
// ok is false for indices outside 0-11.
func MonthName(index int) (string, bool) {
	if index < 0 || index > 11 {
		return "", false
	}
	return time.Month(index + 1).String(), true
}
