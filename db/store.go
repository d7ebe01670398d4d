package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"attendance-server-go/ledger"
	"attendance-server-go/models"
	"attendance-server-go/roster"
)

// DefaultKey is the Redis key / file name of the envelope
const DefaultKey = "kb_attendance_v1"

// ErrSlotEmpty is returned by a Slot when nothing has been saved under the key yet
var ErrSlotEmpty = errors.New("slot is empty")

// Slot is a durable single-key value store
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Store mirrors models.State to a Slot. It never keeps its own copy of the state.
type Store struct {
	Slot  Slot
	Key   string
	Rules roster.Rules
	Now   func() time.Time
	NewID func() string
}

func NewStore(slot Slot, key string, rules roster.Rules) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		Slot:  slot,
		Key:   key,
		Rules: rules,
		Now:   time.Now,
		NewID: roster.NewID,
	}
}

// Load reads the envelope. An empty slot gives the default state and a
// malformed envelope is repaired; only slot I/O failures are errors.
func (s *Store) Load(ctx context.Context) (models.State, error) {
	raw, err := s.Slot.Get(ctx, s.Key)
	if err != nil {
		if errors.Is(err, ErrSlotEmpty) {
			return EmptyState(s.Now()), nil
		}
		return models.State{}, fmt.Errorf("failed to load state: %w", err)
	}
	state, regenerated := decode(raw, s.Rules, s.Now(), s.NewID)
	if regenerated {
		// pin the new ids so the next Load hands out the same ones
		if err := s.Save(ctx, state); err != nil {
			log.Printf("Error saving repaired state: %v", err)
		}
	}
	return state, nil
}

// Save overwrites the slot with the full state
func (s *Store) Save(ctx context.Context, state models.State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	if err := s.Slot.Set(ctx, s.Key, data); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Seeded reports whether an envelope has been written before
func (s *Store) Seeded(ctx context.Context) (bool, error) {
	_, err := s.Slot.Get(ctx, s.Key)
	if err != nil {
		if errors.Is(err, ErrSlotEmpty) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EmptyState is the state of a fresh install, viewing the month of now
func EmptyState(now time.Time) models.State {
	return models.State{
		Students:   []models.Student{},
		Attendance: models.Ledger{},
		View:       models.View{Year: now.Year(), Month: int(now.Month())},
	}
}

// Encode serializes the state, writing empty lists instead of null
func Encode(state models.State) ([]byte, error) {
	out := state.Clone()
	for i := range out.Students {
		if out.Students[i].Dates == nil {
			out.Students[i].Dates = []string{}
		}
	}
	for _, month := range out.Attendance {
		for id, days := range month {
			if days == nil {
				month[id] = []int{}
			}
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// Decode rebuilds a state from raw, falling back to defaults field by field.
// A top-level array is the older fee-only envelope and is upgraded in place.
func Decode(raw []byte, rules roster.Rules, now time.Time, newID func() string) models.State {
	state, _ := decode(raw, rules, now, newID)
	return state
}

// decode also reports whether any student id had to be generated
func decode(raw []byte, rules roster.Rules, now time.Time, newID func() string) (models.State, bool) {
	state := EmptyState(now)
	regenerated := false

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Printf("Discarding unreadable saved state: %v", err)
		return state, false
	}

	switch v := doc.(type) {
	case []any:
		state.Students, regenerated = decodeStudents(v, rules, newID)
	case map[string]any:
		if list, ok := v["students"].([]any); ok {
			state.Students, regenerated = decodeStudents(list, rules, newID)
		}
		if att, ok := v["attendance"].(map[string]any); ok {
			state.Attendance = decodeLedger(att, state.Students)
		}
		if view, ok := v["view"].(map[string]any); ok {
			state.View = decodeView(view, state.View)
		}
	default:
		log.Printf("Discarding saved state of unexpected shape %T", doc)
	}
	return state, regenerated
}

// maxFee bounds a decoded fee so the float to int conversion cannot wrap
const maxFee = math.MaxInt32

func decodeStudents(list []any, rules roster.Rules, newID func() string) ([]models.Student, bool) {
	regenerated := false
	students := make([]models.Student, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s := models.Student{
			TotalFee: rules.DefaultFee,
			Dates:    []string{},
		}
		if name, ok := obj["name"].(string); ok {
			s.Name = name
		}
		if id, ok := obj["id"].(string); ok && id != "" && !seen[id] {
			s.ID = id
		} else {
			s.ID = newID()
			regenerated = true
		}
		seen[s.ID] = true
		if fee, ok := obj["totalFee"].(float64); ok && !math.IsNaN(fee) && fee <= maxFee {
			s.TotalFee = int(math.Max(0, math.Round(fee)))
		}
		if dates, ok := obj["dates"].([]any); ok {
			have := make(map[string]bool, len(dates))
			for _, d := range dates {
				ds, ok := d.(string)
				if !ok || have[ds] {
					continue
				}
				have[ds] = true
				s.Dates = append(s.Dates, ds)
			}
		}
		students = append(students, s)
	}
	return students, regenerated
}

func decodeLedger(att map[string]any, students []models.Student) models.Ledger {
	known := make(map[string]bool, len(students))
	for _, s := range students {
		known[s.ID] = true
	}

	l := models.Ledger{}
	for key, rawMonth := range att {
		year, month, err := ledger.ParseMonthKey(key)
		if err != nil {
			continue
		}
		monthObj, ok := rawMonth.(map[string]any)
		if !ok {
			l[key] = map[string][]int{}
			continue
		}
		limit := ledger.DaysInMonth(year, month)
		m := make(map[string][]int, len(monthObj))
		for id, rawDays := range monthObj {
			if !known[id] {
				continue
			}
			days := []int{}
			if list, ok := rawDays.([]any); ok {
				have := make(map[int]bool, len(list))
				for _, d := range list {
					f, ok := d.(float64)
					if !ok || f != math.Trunc(f) || f < 1 || f > float64(limit) {
						continue
					}
					day := int(f)
					if have[day] {
						continue
					}
					have[day] = true
					days = append(days, day)
				}
				sort.Ints(days)
			}
			m[id] = days
		}
		l[key] = m
	}
	return l
}

func decodeView(view map[string]any, fallback models.View) models.View {
	out := fallback
	if y, ok := view["year"].(float64); ok && y == math.Trunc(y) && y >= 0 && y <= 9999 {
		out.Year = int(y)
	}
	if m, ok := view["month"].(float64); ok && m == math.Trunc(m) && m >= 1 && m <= 12 {
		out.Month = int(m)
	}
	return out
}
