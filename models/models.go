package models

// Student represents an enrolled student
type Student struct {
	ID       string   `json:"id"`       // Generated id, stable across renames
	Name     string   `json:"name"`     // Display name, duplicates allowed
	TotalFee int      `json:"totalFee"` // Remaining fee, never below zero
	Dates    []string `json:"dates"`    // Distinct absence dates, insertion order
}

// View is the last displayed month (month is 1-12)
type View struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Ledger maps a month key ("YYYY-MM") to student id -> ascending marked days
type Ledger map[string]map[string][]int

// State is the whole application state mirrored to the durable slot
type State struct {
	Students   []Student `json:"students"`
	Attendance Ledger    `json:"attendance"`
	View       View      `json:"view"`
}

// Clone returns a deep copy so callers can hand out snapshots safely
func (s State) Clone() State {
	out := State{
		Students:   make([]Student, len(s.Students)),
		Attendance: make(Ledger, len(s.Attendance)),
		View:       s.View,
	}
	for i, st := range s.Students {
		st.Dates = append([]string{}, st.Dates...)
		out.Students[i] = st
	}
	for key, month := range s.Attendance {
		m := make(map[string][]int, len(month))
		for id, days := range month {
			m[id] = append([]int{}, days...)
		}
		out.Attendance[key] = m
	}
	return out
}

// SummaryRow is one student's absence total for a month
type SummaryRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Days     []int  `json:"days"`
	Absences int    `json:"absences"`
}
