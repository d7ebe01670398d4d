package ledger

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidMonth is returned for month keys or year/month pairs outside the calendar
var ErrInvalidMonth = errors.New("invalid month")

// ValidMonth reports whether year/month can be rendered as a month key
func ValidMonth(year, month int) bool {
	return year >= 0 && year <= 9999 && month >= 1 && month <= 12
}

// IsLeapYear applies the proleptic Gregorian rule
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in a 1-based month, 0 for an invalid month
func DaysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	}
	return 0
}

// MonthKey formats year/month as "YYYY-MM"
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParseMonthKey is the inverse of MonthKey
func ParseMonthKey(key string) (int, int, error) {
	if len(key) != 7 || key[4] != '-' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, key)
	}
	year, err := strconv.Atoi(key[:4])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, key)
	}
	month, err := strconv.Atoi(key[5:])
	if err != nil || !ValidMonth(year, month) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, key)
	}
	return year, month, nil
}

// PreviousMonth steps back one month, rolling the year over at January
func PreviousMonth(year, month int) (int, int) {
	month--
	if month < 1 {
		month = 12
		year--
	}
	return year, month
}

// NextMonth steps forward one month, rolling the year over at December
func NextMonth(year, month int) (int, int) {
	month++
	if month > 12 {
		month = 1
		year++
	}
	return year, month
}
