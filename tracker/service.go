// Package tracker owns the application state and runs every operation as
// "mutate, then persist": the state is changed first, then the latest full
// state is written to the store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"attendance-server-go/db"
	"attendance-server-go/export"
	"attendance-server-go/ledger"
	"attendance-server-go/models"
	"attendance-server-go/roster"
)

var ErrInvalidDay = errors.New("invalid day")

// Persister is the part of db.Store the service needs
type Persister interface {
	Load(ctx context.Context) (models.State, error)
	Save(ctx context.Context, state models.State) error
}

// Service serializes mutations so there is a single writer of the state
type Service struct {
	mu    sync.Mutex
	state models.State
	store Persister
	rules roster.Rules
	brand string

	Now   func() time.Time
	NewID func() string
}

func NewService(store Persister, rules roster.Rules, brand string) *Service {
	now := time.Now
	return &Service{
		state: db.EmptyState(now()),
		store: store,
		rules: rules,
		brand: brand,
		Now:   now,
		NewID: roster.NewID,
	}
}

// Rules returns the billing constants in use
func (s *Service) Rules() roster.Rules { return s.rules }

// Load replaces the in-memory state with the persisted one
func (s *Service) Load(ctx context.Context) error {
	state, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	log.Printf("Loaded %d students, %d months of attendance", len(state.Students), len(state.Attendance))
	return nil
}

// Snapshot returns a deep copy of the current state
func (s *Service) Snapshot() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// apply runs fn on the current state and persists the result when changed is true
func (s *Service) apply(ctx context.Context, fn func(st models.State) (models.State, bool, error)) (models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := fn(s.state)
	if err != nil {
		return s.state.Clone(), err
	}
	if !changed {
		return s.state.Clone(), nil
	}
	s.state = next
	if err := s.store.Save(ctx, s.state); err != nil {
		log.Printf("Error saving state: %v", err)
		return s.state.Clone(), err
	}
	return s.state.Clone(), nil
}

// AddStudents adds one student per comma-separated name and returns the new students
func (s *Service) AddStudents(ctx context.Context, raw string) ([]models.Student, error) {
	return s.addNames(ctx, roster.ParseNames(raw))
}

// ImportStudents adds the names found in an .xlsx roster
func (s *Service) ImportStudents(ctx context.Context, r io.Reader) ([]models.Student, error) {
	names, err := export.ImportNames(r)
	if err != nil {
		return nil, err
	}
	return s.addNames(ctx, names)
}

func (s *Service) addNames(ctx context.Context, names []string) ([]models.Student, error) {
	var added []models.Student
	_, err := s.apply(ctx, func(st models.State) (models.State, bool, error) {
		before := len(st.Students)
		st.Students = roster.AddNames(st.Students, names, s.rules, s.NewID)
		added = append([]models.Student{}, st.Students[before:]...)
		return st, len(added) > 0, nil
	})
	if err == nil && len(added) > 0 {
		log.Printf("Added %d students", len(added))
	}
	return added, err
}

// RemoveStudent deletes the student and their attendance in every month.
// Unknown ids are a no-op.
func (s *Service) RemoveStudent(ctx context.Context, id string) (bool, error) {
	var removed bool
	_, err := s.apply(ctx, func(st models.State) (models.State, bool, error) {
		st.Students, removed = roster.RemoveStudent(st.Students, id)
		if removed {
			st.Attendance = ledger.RemoveStudent(st.Attendance, id)
		}
		return st, removed, nil
	})
	return removed, err
}

// MarkAbsence records today's absence for the student.
// roster.ErrAbsenceAlreadyRecorded is returned for a second mark on the same day.
func (s *Service) MarkAbsence(ctx context.Context, id string) (models.Student, error) {
	date := s.rules.FormatDate(s.Now())
	st, err := s.apply(ctx, func(st models.State) (models.State, bool, error) {
		students, err := roster.MarkAbsence(st.Students, id, date, s.rules)
		if err != nil {
			return st, false, err
		}
		st.Students = students
		return st, true, nil
	})
	student, _ := roster.Find(st.Students, id)
	return student, err
}

// ToggleDay flips one ledger cell. Unknown students, invalid months and
// out-of-range days leave the state untouched.
func (s *Service) ToggleDay(ctx context.Context, id string, year, month, day int) ([]int, error) {
	if !ledger.ValidMonth(year, month) {
		return nil, fmt.Errorf("%w: %d-%d", ledger.ErrInvalidMonth, year, month)
	}
	if day < 1 || day > ledger.DaysInMonth(year, month) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	st, err := s.apply(ctx, func(st models.State) (models.State, bool, error) {
		if _, ok := roster.Find(st.Students, id); !ok {
			return st, false, roster.ErrStudentNotFound
		}
		st.Attendance = ledger.Toggle(st.Attendance, id, year, month, day)
		return st, true, nil
	})
	return ledger.Days(st.Attendance, id, year, month), err
}

// ClearMonth empties one month of the ledger
func (s *Service) ClearMonth(ctx context.Context, year, month int) error {
	if !ledger.ValidMonth(year, month) {
		return fmt.Errorf("%w: %d-%d", ledger.ErrInvalidMonth, year, month)
	}
	_, err := s.apply(ctx, func(st models.State) (models.State, bool, error) {
		st.Attendance = ledger.ClearMonth(st.Attendance, year, month)
		return st, true, nil
	})
	if err == nil {
		log.Printf("Cleared attendance for %s", ledger.MonthKey(year, month))
	}
	return err
}

// SetView checkpoints the displayed month
func (s *Service) SetView(ctx context.Context, year, month int) (models.View, error) {
	if !ledger.ValidMonth(year, month) {
		return models.View{}, fmt.Errorf("%w: %d-%d", ledger.ErrInvalidMonth, year, month)
	}
	return s.moveView(ctx, func(models.View) (int, int) { return year, month })
}

func (s *Service) PreviousMonth(ctx context.Context) (models.View, error) {
	return s.moveView(ctx, func(v models.View) (int, int) { return ledger.PreviousMonth(v.Year, v.Month) })
}

func (s *Service) NextMonth(ctx context.Context) (models.View, error) {
	return s.moveView(ctx, func(v models.View) (int, int) { return ledger.NextMonth(v.Year, v.Month) })
}

func (s *Service) moveView(ctx context.Context, step func(models.View) (int, int)) (models.View, error) {
	st, err := s.apply(ctx, func(st models.State) (models.State, bool, error) {
		year, month := step(st.View)
		if !ledger.ValidMonth(year, month) {
			return st, false, fmt.Errorf("%w: %d-%d", ledger.ErrInvalidMonth, year, month)
		}
		changed := st.View.Year != year || st.View.Month != month
		st.View = models.View{Year: year, Month: month}
		return st, changed, nil
	})
	return st.View, err
}

// MonthSummary lists each student's marked days and total for the month
func (s *Service) MonthSummary(year, month int) ([]models.SummaryRow, error) {
	if !ledger.ValidMonth(year, month) {
		return nil, fmt.Errorf("%w: %d-%d", ledger.ErrInvalidMonth, year, month)
	}
	st := s.Snapshot()
	return ledger.MonthSummary(st.Attendance, st.Students, year, month), nil
}

// ExportCSV returns the month grid as CSV along with its filename
func (s *Service) ExportCSV(year, month int) (string, string, error) {
	st := s.Snapshot()
	csv, err := export.CSV(st.Students, st.Attendance, year, month)
	if err != nil {
		return "", "", err
	}
	return export.CSVFilename(year, month), csv, nil
}

// ExportMonthWorkbook writes the month grid as .xlsx and returns its filename
func (s *Service) ExportMonthWorkbook(w io.Writer, year, month int) (string, error) {
	st := s.Snapshot()
	if err := export.WriteMonthWorkbook(w, st.Students, st.Attendance, year, month); err != nil {
		return "", err
	}
	return export.MonthWorkbookFilename(year, month), nil
}

// ExportFeeWorkbook writes the fee sheet and returns its filename
func (s *Service) ExportFeeWorkbook(w io.Writer) (string, error) {
	st := s.Snapshot()
	if err := export.WriteFeeWorkbook(w, st.Students, s.rules, s.brand); err != nil {
		return "", err
	}
	return export.FeeWorkbookFilename(s.brand), nil
}

var _ Persister = (*db.Store)(nil)
