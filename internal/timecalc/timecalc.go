package timecalc

import (
	"fmt"
	"time"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the wire format for a time of day.
	ClockLayout = "15:04:05"
	// RecordNameLayout names the per-day record, e.g. "Mar 5".
	RecordNameLayout = "Jan 2"
)

// FormatDuration formats seconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
// b is compared in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// LastDayOfMonth returns the number of days in t's month.
func LastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// HalfMonthLabel renders the label of a half-month window of month m.
// A first half is always "<M> 1 - <M> 15"; a second half ends on lastDay.
func HalfMonthLabel(m time.Month, secondHalf bool, lastDay int) string {
	name := m.String()
	if !secondHalf {
		return fmt.Sprintf("%s 1 - %s 15", name, name)
	}
	return fmt.Sprintf("%s 16 - %s %d", name, name, lastDay)
}

// PeriodFor returns the half-month period containing t, in t's location.
func PeriodFor(t time.Time) model.Period {
	loc := t.Location()
	last := LastDayOfMonth(t)
	if t.Day() <= 15 {
		return model.Period{
			Label: HalfMonthLabel(t.Month(), false, last),
			Start: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc),
			End:   time.Date(t.Year(), t.Month(), 15, 23, 59, 59, 0, loc),
		}
	}
	return model.Period{
		Label: HalfMonthLabel(t.Month(), true, last),
		Start: time.Date(t.Year(), t.Month(), 16, 0, 0, 0, 0, loc),
		End:   time.Date(t.Year(), t.Month(), last, 23, 59, 59, 0, loc),
	}
}

// RecordName returns the per-day record name for t, e.g. "Mar 5".
func RecordName(t time.Time) string {
	return t.Format(RecordNameLayout)
}
