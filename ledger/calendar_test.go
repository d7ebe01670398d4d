package ledger

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{2024, 2, 29},
		{2023, 2, 28},
		{2000, 2, 29},
		{1900, 2, 28},
		{2025, 1, 31},
		{2025, 4, 30},
		{2025, 11, 30},
		{2025, 12, 31},
		{2025, 0, 0},
		{2025, 13, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, DaysInMonth(tc.year, tc.month), "%d-%d", tc.year, tc.month)
	}
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2025-03", MonthKey(2025, 3))
	assert.Equal(t, "2025-11", MonthKey(2025, 11))
	assert.Equal(t, "0999-01", MonthKey(999, 1))
}

func TestMonthKey_SortsChronologically(t *testing.T) {
	type ym struct{ y, m int }
	var months []ym
	for _, y := range []int{999, 1900, 2024, 2025} {
		for m := 1; m <= 12; m++ {
			months = append(months, ym{y, m})
		}
	}
	keys := make([]string, len(months))
	for i, v := range months {
		keys[i] = MonthKey(v.y, v.m)
	}
	assert.True(t, sort.StringsAreSorted(keys))
}

func TestParseMonthKey(t *testing.T) {
	y, m, err := ParseMonthKey("2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2025, y)
	assert.Equal(t, 3, m)

	for _, bad := range []string{"", "2025-3", "2025-13", "2025/03", "abcd-01", "2025-00"} {
		_, _, err := ParseMonthKey(bad)
		assert.ErrorIs(t, err, ErrInvalidMonth, bad)
	}
}

func TestMonthNavigation(t *testing.T) {
	y, m := NextMonth(2025, 12)
	assert.Equal(t, [2]int{2026, 1}, [2]int{y, m})

	y, m = PreviousMonth(2025, 1)
	assert.Equal(t, [2]int{2024, 12}, [2]int{y, m})

	y, m = NextMonth(2025, 5)
	assert.Equal(t, [2]int{2025, 6}, [2]int{y, m})

	y, m = PreviousMonth(NextMonth(2025, 12))
	assert.Equal(t, [2]int{2025, 12}, [2]int{y, m})
}
