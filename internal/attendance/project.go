package attendance

import (
	"strconv"
	"strings"
	"time"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/timecalc"
)

// HourValue is the column value for a time-of-day column.
type HourValue struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// DateValue is the column value for a date column.
type DateValue struct {
	Date string `json:"date"`
	Time string `json:"time,omitempty"`
}

// ExistingFields holds the text currently shown in a record's attendance
// columns. Empty means unset.
type ExistingFields struct {
	ClockIn          string
	ClockOut         string
	Date             string
	TotalWorkedHours string
}

// Writes maps column IDs to the values that should be written.
type Writes map[string]any

// ExistingFrom picks the attendance fields out of a record's column texts.
func ExistingFrom(mapping model.FieldMapping, values map[string]string) ExistingFields {
	return ExistingFields{
		ClockIn:          values[mapping.ClockIn],
		ClockOut:         values[mapping.ClockOut],
		Date:             values[mapping.Date],
		TotalWorkedHours: values[mapping.TotalWorkedHours],
	}
}

// Project computes the minimal set of writes for a record.
//
// Clock in, clock out and date are fill-only: they are written only while
// the record's value is empty. Total worked hours is refreshed whenever the
// summary has a positive total. Times are rendered in periodDate's location.
func Project(existing ExistingFields, summary model.AttendanceSummary, mapping model.FieldMapping, periodDate time.Time) Writes {
	loc := periodDate.Location()
	writes := Writes{}

	if isEmpty(existing.ClockIn) && summary.ClockIn != nil {
		writes[mapping.ClockIn] = hourValue(summary.ClockIn.In(loc))
	}
	if isEmpty(existing.ClockOut) && summary.ClockOut != nil {
		writes[mapping.ClockOut] = hourValue(summary.ClockOut.In(loc))
	}
	if isEmpty(existing.Date) {
		writes[mapping.Date] = DateValue{
			Date: periodDate.Format(timecalc.DateLayout),
			Time: periodDate.Format(timecalc.ClockLayout),
		}
	}
	if summary.TotalSeconds > 0 {
		writes[mapping.TotalWorkedHours] = FormatHours(summary.TotalSeconds)
	}
	return writes
}

// FormatHours renders seconds as decimal hours with two fractional digits.
func FormatHours(seconds int64) string {
	return strconv.FormatFloat(float64(seconds)/3600, 'f', 2, 64)
}

func hourValue(t time.Time) HourValue {
	return HourValue{Hour: t.Hour(), Minute: t.Minute()}
}

func isEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Logical re-keys w by logical field name ("clock_in", "clock_out", "date",
// "total_worked_hours") for reporting.
func (w Writes) Logical(mapping model.FieldMapping) map[string]any {
	names := map[string]string{
		mapping.ClockIn:          "clock_in",
		mapping.ClockOut:         "clock_out",
		mapping.Date:             "date",
		mapping.TotalWorkedHours: "total_worked_hours",
	}
	out := make(map[string]any, len(w))
	for col, v := range w {
		name, ok := names[col]
		if !ok {
			name = col
		}
		out[name] = v
	}
	return out
}
