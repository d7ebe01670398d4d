package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-server-go/db"
	"attendance-server-go/export"
	"attendance-server-go/ledger"
	"attendance-server-go/models"
	"attendance-server-go/roster"
)

// memSlot keeps the last saved envelope bytes, like a real slot would
type memSlot struct {
	data   []byte
	saves  int
	failOn error
}

func (m *memSlot) Get(_ context.Context, _ string) ([]byte, error) {
	if m.data == nil {
		return nil, db.ErrSlotEmpty
	}
	return m.data, nil
}

func (m *memSlot) Set(_ context.Context, _ string, data []byte) error {
	if m.failOn != nil {
		return m.failOn
	}
	m.saves++
	m.data = append([]byte{}, data...)
	return nil
}

var today = time.Date(2025, 11, 18, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memSlot, *db.Store) {
	t.Helper()
	slot := &memSlot{}
	store := db.NewStore(slot, "", roster.DefaultRules())
	store.Now = func() time.Time { return today }

	n := 0
	svc := NewService(store, roster.DefaultRules(), "Masaru")
	svc.Now = func() time.Time { return today }
	svc.NewID = func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
	require.NoError(t, svc.Load(context.Background()))
	return svc, slot, store
}

func persisted(t *testing.T, store *db.Store) models.State {
	t.Helper()
	st, err := store.Load(context.Background())
	require.NoError(t, err)
	return st
}

func TestService_AddStudents(t *testing.T) {
	svc, slot, store := setup(t)
	ctx := context.Background()

	added, err := svc.AddStudents(ctx, "Ana, Boris,  , Ana")
	require.NoError(t, err)
	require.Len(t, added, 3)
	assert.Equal(t, []string{"Ana", "Boris", "Ana"}, []string{added[0].Name, added[1].Name, added[2].Name})
	assert.Equal(t, 1, slot.saves)
	assert.Equal(t, svc.Snapshot(), persisted(t, store))

	added, err = svc.AddStudents(ctx, " , ")
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 1, slot.saves)
}

func TestService_MarkAbsenceTwiceSameDay(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	_, err := svc.AddStudents(ctx, "Ana")
	require.NoError(t, err)

	st, err := svc.MarkAbsence(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 50, st.TotalFee)
	assert.Equal(t, []string{"18.11.2025"}, st.Dates)

	st, err = svc.MarkAbsence(ctx, "s1")
	assert.ErrorIs(t, err, roster.ErrAbsenceAlreadyRecorded)
	assert.Equal(t, 50, st.TotalFee)
	assert.Equal(t, []string{"18.11.2025"}, st.Dates)
	assert.Equal(t, svc.Snapshot(), persisted(t, store))

	svc.Now = func() time.Time { return today.AddDate(0, 0, 1) }
	st, err = svc.MarkAbsence(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 40, st.TotalFee)
	assert.Len(t, st.Dates, 2)

	_, err = svc.MarkAbsence(ctx, "missing")
	assert.ErrorIs(t, err, roster.ErrStudentNotFound)
}

func TestService_RemoveStudentCascades(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	_, err := svc.AddStudents(ctx, "Ana, Boris")
	require.NoError(t, err)

	_, err = svc.ToggleDay(ctx, "s1", 2025, 10, 3)
	require.NoError(t, err)
	_, err = svc.ToggleDay(ctx, "s1", 2025, 11, 5)
	require.NoError(t, err)
	_, err = svc.ToggleDay(ctx, "s2", 2025, 11, 6)
	require.NoError(t, err)

	removed, err := svc.RemoveStudent(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, removed)

	for _, st := range []models.State{svc.Snapshot(), persisted(t, store)} {
		require.Len(t, st.Students, 1)
		for key, month := range st.Attendance {
			assert.NotContains(t, month, "s1", key)
		}
		assert.Equal(t, []int{6}, st.Attendance["2025-11"]["s2"])
	}

	removed, err = svc.RemoveStudent(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestService_ToggleDay(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	_, err := svc.AddStudents(ctx, "Ana")
	require.NoError(t, err)

	before := svc.Snapshot()
	days, err := svc.ToggleDay(ctx, "s1", 2025, 11, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, days)
	assert.Empty(t, before.Attendance)

	days, err = svc.ToggleDay(ctx, "s1", 2025, 11, 5)
	require.NoError(t, err)
	assert.Empty(t, days)
	assert.Equal(t, svc.Snapshot(), persisted(t, store))

	_, err = svc.ToggleDay(ctx, "s1", 2025, 11, 31)
	assert.ErrorIs(t, err, ErrInvalidDay)
	_, err = svc.ToggleDay(ctx, "s1", 2025, 13, 1)
	assert.ErrorIs(t, err, ledger.ErrInvalidMonth)
	_, err = svc.ToggleDay(ctx, "ghost", 2025, 11, 1)
	assert.ErrorIs(t, err, roster.ErrStudentNotFound)
	assert.NotContains(t, svc.Snapshot().Attendance["2025-11"], "ghost")
}

func TestService_ClearMonth(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	_, err := svc.AddStudents(ctx, "Ana")
	require.NoError(t, err)
	_, err = svc.ToggleDay(ctx, "s1", 2025, 10, 3)
	require.NoError(t, err)
	_, err = svc.ToggleDay(ctx, "s1", 2025, 11, 5)
	require.NoError(t, err)

	require.NoError(t, svc.ClearMonth(ctx, 2025, 11))
	st := persisted(t, store)
	assert.Empty(t, st.Attendance["2025-11"])
	assert.Equal(t, []int{3}, st.Attendance["2025-10"]["s1"])
}

func TestService_ViewNavigation(t *testing.T) {
	svc, slot, store := setup(t)
	ctx := context.Background()
	assert.Equal(t, models.View{Year: 2025, Month: 11}, svc.Snapshot().View)

	v, err := svc.NextMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.View{Year: 2025, Month: 12}, v)

	v, err = svc.NextMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.View{Year: 2026, Month: 1}, v)

	v, err = svc.PreviousMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.View{Year: 2025, Month: 12}, v)
	assert.Equal(t, v, persisted(t, store).View)

	saves := slot.saves
	_, err = svc.SetView(ctx, 2025, 12)
	require.NoError(t, err)
	assert.Equal(t, saves, slot.saves)

	_, err = svc.SetView(ctx, 2025, 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidMonth)
}

func TestService_SaveFailureKeepsState(t *testing.T) {
	svc, slot, _ := setup(t)
	ctx := context.Background()
	slot.failOn = errors.New("disk full")

	_, err := svc.AddStudents(ctx, "Ana")
	assert.Error(t, err)
	assert.Len(t, svc.Snapshot().Students, 1)

	slot.failOn = nil
	_, err = svc.AddStudents(ctx, "Boris")
	require.NoError(t, err)
	st := db.Decode(slot.data, roster.DefaultRules(), today, roster.NewID)
	assert.Len(t, st.Students, 2)
}

func TestService_LoadRestoresState(t *testing.T) {
	svc, slot, store := setup(t)
	ctx := context.Background()
	_, err := svc.AddStudents(ctx, "Ana")
	require.NoError(t, err)
	_, err = svc.ToggleDay(ctx, "s1", 2025, 11, 5)
	require.NoError(t, err)

	other := NewService(store, roster.DefaultRules(), "Masaru")
	require.NoError(t, other.Load(ctx))
	assert.Equal(t, svc.Snapshot(), other.Snapshot())
	assert.NotNil(t, slot.data)
}

func TestService_Exports(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, _, err := svc.ExportCSV(2025, 11)
	assert.ErrorIs(t, err, export.ErrEmptyRoster)
	_, err = svc.ExportFeeWorkbook(&bytes.Buffer{})
	assert.ErrorIs(t, err, export.ErrEmptyRoster)

	_, err = svc.AddStudents(ctx, "Ana, Boris")
	require.NoError(t, err)
	_, err = svc.ToggleDay(ctx, "s1", 2025, 11, 5)
	require.NoError(t, err)

	name, csv, err := svc.ExportCSV(2025, 11)
	require.NoError(t, err)
	assert.Equal(t, "attendance_2025-11.csv", name)
	assert.True(t, strings.HasPrefix(strings.Split(csv, "\n")[1], "Ana,,,,,ABS,"))

	var buf bytes.Buffer
	name, err = svc.ExportFeeWorkbook(&buf)
	require.NoError(t, err)
	assert.Contains(t, name, "Masaru")
	assert.NotZero(t, buf.Len())

	buf.Reset()
	name, err = svc.ExportMonthWorkbook(&buf, 2025, 11)
	require.NoError(t, err)
	assert.Equal(t, "attendance_2025-11.xlsx", name)

	rows, err := svc.MonthSummary(2025, 11)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Absences)
}
