// Package export projects the roster and ledger into files for spreadsheets.
// Nothing here mutates the state it is given.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"

	"attendance-server-go/ledger"
	"attendance-server-go/models"
)

// AbsentMark is written in a day cell marked absent
const AbsentMark = "ABS"

// ErrEmptyRoster means there is nothing to export
var ErrEmptyRoster = errors.New("roster is empty, nothing to export")

// CSVFilename is attendance_<YYYY-MM>.csv
func CSVFilename(year, month int) string {
	return fmt.Sprintf("attendance_%s.csv", ledger.MonthKey(year, month))
}

// MonthGrid returns the header "Name, 1..N" and one row per student with
// AbsentMark or "" per day, in roster order
func MonthGrid(students []models.Student, l models.Ledger, year, month int) ([]string, [][]string, error) {
	if len(students) == 0 {
		return nil, nil, ErrEmptyRoster
	}
	if !ledger.ValidMonth(year, month) {
		return nil, nil, fmt.Errorf("%w: %d-%d", ledger.ErrInvalidMonth, year, month)
	}
	days := ledger.DaysInMonth(year, month)

	header := make([]string, 0, days+1)
	header = append(header, "Name")
	for d := 1; d <= days; d++ {
		header = append(header, strconv.Itoa(d))
	}

	rows := make([][]string, 0, len(students))
	for _, s := range students {
		row := make([]string, days+1)
		row[0] = s.Name
		for _, d := range ledger.Days(l, s.ID, year, month) {
			row[d] = AbsentMark
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// CSV renders the month grid. Names containing commas or quotes are quoted.
func CSV(students []models.Student, l models.Ledger, year, month int) (string, error) {
	header, rows, err := MonthGrid(students, l, year, month)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write csv rows: %w", err)
	}
	return buf.String(), nil
}
