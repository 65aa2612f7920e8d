// Package attendance derives per-day attendance facts from worklog intervals
// and projects them onto board records without clobbering existing values.
package attendance

import (
	"sort"
	"time"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/timecalc"
)

// DefaultIdleThresholdMinutes is how long a user may be inactive before the
// day is considered finished.
const DefaultIdleThresholdMinutes = 180

// Aggregate folds one user's intervals for a day into a summary.
//
// The user is still working when lastActiveAt is on now's calendar day and
// no more than idleThresholdMinutes in the past; a nil lastActiveAt counts as
// idle forever. Otherwise ClockOut is the latest interval end. All returned
// instants are in now's location. intervals is not modified.
func Aggregate(intervals []model.TimeInterval, lastActiveAt *time.Time, now time.Time, idleThresholdMinutes int) model.AttendanceSummary {
	if len(intervals) == 0 {
		return model.AttendanceSummary{Status: model.StatusNoLogs}
	}

	sorted := make([]model.TimeInterval, len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	loc := now.Location()
	clockIn := sorted[0].Start.In(loc)

	var total int64
	latestEnd := sorted[0].End()
	for _, iv := range sorted {
		total += iv.DurationSeconds
		if end := iv.End(); end.After(latestEnd) {
			latestEnd = end
		}
	}

	summary := model.AttendanceSummary{
		ClockIn:      &clockIn,
		TotalSeconds: total,
	}

	if stillWorking(lastActiveAt, now, idleThresholdMinutes) {
		summary.Status = model.StatusInProgress
		return summary
	}

	clockOut := latestEnd.In(loc)
	summary.ClockOut = &clockOut
	summary.Status = model.StatusCompleted
	return summary
}

func stillWorking(lastActiveAt *time.Time, now time.Time, idleThresholdMinutes int) bool {
	if lastActiveAt == nil {
		return false
	}
	if !timecalc.SameDay(now, *lastActiveAt) {
		return false
	}
	idleMinutes := int64(now.Sub(*lastActiveAt) / time.Minute)
	return idleMinutes <= int64(idleThresholdMinutes)
}
