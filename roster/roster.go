package roster

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"attendance-server-go/models"
)

var (
	// ErrAbsenceAlreadyRecorded is the user-facing rejection for a second mark on the same date
	ErrAbsenceAlreadyRecorded = errors.New("absence for today already recorded")
	ErrStudentNotFound        = errors.New("student not found")
)

// Rules holds the billing constants
type Rules struct {
	DefaultFee      int
	AbsencePenalty  int
	SessionsPerWeek int
	DateLayout      string // Go layout used to render "today" for MarkAbsence
}

// DefaultRules returns the class defaults: 60 fee, 10 per absence, 6 sessions
func DefaultRules() Rules {
	return Rules{
		DefaultFee:      60,
		AbsencePenalty:  10,
		SessionsPerWeek: 6,
		DateLayout:      "02.01.2006",
	}
}

// FormatDate renders t the way absence dates are stored
func (r Rules) FormatDate(t time.Time) string {
	return t.Format(r.DateLayout)
}

// NewID generates a student id
func NewID() string {
	return uuid.NewString()
}

// ParseNames splits comma-separated input into trimmed, non-empty names
func ParseNames(raw string) []string {
	names := []string{}
	for _, token := range strings.Split(raw, ",") {
		name := strings.TrimSpace(token)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// AddStudents appends one student per name in raw, keeping input order.
// Empty input is a no-op.
func AddStudents(students []models.Student, raw string, rules Rules, newID func() string) []models.Student {
	return AddNames(students, ParseNames(raw), rules, newID)
}

// AddNames appends already-split names, skipping blank ones
func AddNames(students []models.Student, names []string, rules Rules, newID func() string) []models.Student {
	out := append([]models.Student{}, students...)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, models.Student{
			ID:       newID(),
			Name:     name,
			TotalFee: rules.DefaultFee,
			Dates:    []string{},
		})
	}
	return out
}

// RemoveStudent deletes the student with id. Missing ids return the roster unchanged and false.
func RemoveStudent(students []models.Student, id string) ([]models.Student, bool) {
	out := make([]models.Student, 0, len(students))
	removed := false
	for _, s := range students {
		if s.ID == id {
			removed = true
			continue
		}
		out = append(out, s)
	}
	if !removed {
		return students, false
	}
	return out, true
}

// Find returns the student with id
func Find(students []models.Student, id string) (models.Student, bool) {
	for _, s := range students {
		if s.ID == id {
			return s, true
		}
	}
	return models.Student{}, false
}

// MarkAbsence records an absence on date and charges the penalty, floored at 0.
// A date already present is rejected with ErrAbsenceAlreadyRecorded and nothing changes.
func MarkAbsence(students []models.Student, id, date string, rules Rules) ([]models.Student, error) {
	idx := -1
	for i, s := range students {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return students, ErrStudentNotFound
	}
	for _, d := range students[idx].Dates {
		if d == date {
			return students, ErrAbsenceAlreadyRecorded
		}
	}

	out := append([]models.Student{}, students...)
	s := out[idx]
	s.Dates = append(append([]string{}, s.Dates...), date)
	s.TotalFee -= rules.AbsencePenalty
	if s.TotalFee < 0 {
		s.TotalFee = 0
	}
	out[idx] = s
	return out, nil
}

// AttendanceCount is the sessions attended out of the weekly allowance
func AttendanceCount(s models.Student, rules Rules) int {
	n := rules.SessionsPerWeek - len(s.Dates)
	if n < 0 {
		return 0
	}
	return n
}
