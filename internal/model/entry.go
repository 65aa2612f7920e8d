package model

import "time"

// TimeInterval is one contiguous span of tracked work as reported by the
// tracking provider.
type TimeInterval struct {
	Start           time.Time `json:"start"`
	DurationSeconds int64     `json:"duration_seconds"`
}

// End returns Start plus the interval's duration.
func (i TimeInterval) End() time.Time {
	return i.Start.Add(time.Duration(i.DurationSeconds) * time.Second)
}

// User is a tracked person. Email is the case-insensitive key used for team
// lookup; LastActiveAt feeds only the idle heuristic.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

// Status classifies a user's attendance for the day.
type Status string

const (
	StatusNoLogs     Status = "no_logs"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// AttendanceSummary is derived from a user's intervals on every run and is
// never persisted. ClockOut stays nil while the user is considered active.
type AttendanceSummary struct {
	ClockIn      *time.Time `json:"clock_in"`
	ClockOut     *time.Time `json:"clock_out"`
	TotalSeconds int64      `json:"total_seconds"`
	Status       Status     `json:"status"`
}

// Period is a half-month reporting window.
type Period struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Container is the external per-period board holding grouped records.
type Container struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Column is a physical column of a container.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FieldMapping maps the logical attendance fields to column IDs of one
// container.
type FieldMapping struct {
	ClockIn          string `json:"clock_in"`
	ClockOut         string `json:"clock_out"`
	Date             string `json:"date"`
	TotalWorkedHours string `json:"total_worked_hours"`
}

// ColumnIDs returns the mapped column IDs in a fixed order.
func (m FieldMapping) ColumnIDs() []string {
	return []string{m.ClockIn, m.ClockOut, m.Date, m.TotalWorkedHours}
}
