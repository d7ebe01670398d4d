package export

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"attendance-server-go/ledger"
	"attendance-server-go/models"
	"attendance-server-go/roster"
)

// FeeHeader is the column layout of the fee workbook
var FeeHeader = []any{"Name", "AbsenceCount", "AbsenceDates", "RemainingFee", "AttendanceCount"}

// FeeWorkbookFilename always contains the brand
func FeeWorkbookFilename(brand string) string {
	return brand + " students and fees.xlsx"
}

// MonthWorkbookFilename mirrors CSVFilename
func MonthWorkbookFilename(year, month int) string {
	return fmt.Sprintf("attendance_%s.xlsx", ledger.MonthKey(year, month))
}

// SpreadsheetRows builds the fee sheet: the header then one row per student
func SpreadsheetRows(students []models.Student, rules roster.Rules) [][]any {
	rows := make([][]any, 0, len(students)+1)
	rows = append(rows, FeeHeader)
	for _, s := range students {
		rows = append(rows, []any{
			s.Name,
			len(s.Dates),
			strings.Join(s.Dates, ", "),
			s.TotalFee,
			roster.AttendanceCount(s, rules),
		})
	}
	return rows
}

// WriteFeeWorkbook writes a one-sheet workbook named after brand
func WriteFeeWorkbook(w io.Writer, students []models.Student, rules roster.Rules, brand string) error {
	if len(students) == 0 {
		return ErrEmptyRoster
	}
	return writeWorkbook(w, SheetName(brand), SpreadsheetRows(students, rules))
}

// maxSheetName is the longest sheet name Excel accepts, in characters
const maxSheetName = 31

// SheetName turns brand into a name Excel accepts: forbidden characters
// become '_', edge apostrophes are dropped and the result is cut to 31 runes.
func SheetName(brand string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, brand)
	name = strings.Trim(name, "'")
	if runes := []rune(name); len(runes) > maxSheetName {
		name = strings.TrimRight(string(runes[:maxSheetName]), "'")
	}
	if strings.TrimSpace(name) == "" {
		return "Sheet1"
	}
	return name
}

// WriteMonthWorkbook writes the CSV grid plus a Total column as .xlsx
func WriteMonthWorkbook(w io.Writer, students []models.Student, l models.Ledger, year, month int) error {
	header, grid, err := MonthGrid(students, l, year, month)
	if err != nil {
		return err
	}
	rows := make([][]any, 0, len(grid)+1)
	rows = append(rows, append(toAny(header), "Total"))
	for i, row := range grid {
		total := len(ledger.Days(l, students[i].ID, year, month))
		rows = append(rows, append(toAny(row), total))
	}
	return writeWorkbook(w, ledger.MonthKey(year, month), rows)
}

func writeWorkbook(w io.Writer, sheet string, rows [][]any) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet %q: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ImportNames reads student names from column A of the first sheet, skipping the header row
func ImportNames(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		log.Printf("Error opening Excel reader: %v", err)
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		log.Printf("Error getting rows from sheet '%s': %v", sheetName, err)
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	names := []string{}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			log.Printf("Skipping row %d due to missing name", i+1)
			continue
		}
		names = append(names, strings.TrimSpace(row[0]))
	}
	return names, nil
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
