// Package ledger keeps the per-month record of marked absence days.
//
// Every function treats its input Ledger as an immutable snapshot: the
// result shares untouched months with the input but never writes into it.
package ledger

import (
	"sort"

	"attendance-server-go/models"
)

// Toggle flips day in the student's set for year/month.
// Invalid months and out-of-range days return l unchanged.
func Toggle(l models.Ledger, studentID string, year, month, day int) models.Ledger {
	if !ValidMonth(year, month) || day < 1 || day > DaysInMonth(year, month) {
		return l
	}
	key := MonthKey(year, month)

	out := shallowCopy(l)
	monthMap := make(map[string][]int, len(l[key])+1)
	for id, days := range l[key] {
		monthMap[id] = days
	}

	current := l[key][studentID]
	next := make([]int, 0, len(current)+1)
	found := false
	for _, d := range current {
		if d == day {
			found = true
			continue
		}
		next = append(next, d)
	}
	if !found {
		next = append(next, day)
		sort.Ints(next)
	}
	monthMap[studentID] = next
	out[key] = monthMap
	return out
}

// ClearMonth replaces one month's mapping with an empty one
func ClearMonth(l models.Ledger, year, month int) models.Ledger {
	if !ValidMonth(year, month) {
		return l
	}
	out := shallowCopy(l)
	out[MonthKey(year, month)] = map[string][]int{}
	return out
}

// RemoveStudent drops the student from every month
func RemoveStudent(l models.Ledger, studentID string) models.Ledger {
	out := make(models.Ledger, len(l))
	for key, month := range l {
		if _, ok := month[studentID]; !ok {
			out[key] = month
			continue
		}
		m := make(map[string][]int, len(month))
		for id, days := range month {
			if id != studentID {
				m[id] = days
			}
		}
		out[key] = m
	}
	return out
}

// Days returns a copy of the student's marked days for year/month
func Days(l models.Ledger, studentID string, year, month int) []int {
	days := l[MonthKey(year, month)][studentID]
	return append([]int{}, days...)
}

// Has reports whether day is marked
func Has(l models.Ledger, studentID string, year, month, day int) bool {
	for _, d := range l[MonthKey(year, month)][studentID] {
		if d == day {
			return true
		}
	}
	return false
}

// MonthSummary lists every rostered student with their marked days for the month
func MonthSummary(l models.Ledger, students []models.Student, year, month int) []models.SummaryRow {
	rows := make([]models.SummaryRow, 0, len(students))
	for _, s := range students {
		days := Days(l, s.ID, year, month)
		rows = append(rows, models.SummaryRow{
			ID:       s.ID,
			Name:     s.Name,
			Days:     days,
			Absences: len(days),
		})
	}
	return rows
}

func shallowCopy(l models.Ledger) models.Ledger {
	out := make(models.Ledger, len(l)+1)
	for key, month := range l {
		out[key] = month
	}
	return out
}
