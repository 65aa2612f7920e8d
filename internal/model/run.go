package model

import "time"

// Result is what happened to one user in a run.
type Result string

const (
	// ResultWritten means at least one field was written.
	ResultWritten Result = "written"
	// ResultUnchanged means the record already held every derived value.
	ResultUnchanged Result = "unchanged"
	// ResultPlanned is a dry run's would-be write.
	ResultPlanned Result = "planned"
	// ResultSkipped covers missing groupings and ineligible records.
	ResultSkipped Result = "skipped"
	ResultFailed  Result = "failed"
	// ResultNoLogs means the user tracked nothing on the reference day.
	ResultNoLogs Result = "no_logs"
)

// Outcome records what a run did for one user.
type Outcome struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Group    string `json:"group,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Result   Result `json:"result"`
	// Fields holds the values written (or planned), keyed by logical field name.
	Fields map[string]any `json:"fields,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// Run is one reconciliation pass as kept in the ledger.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Period     string     `json:"period"`
	Reference  time.Time  `json:"reference"`
	DryRun     bool       `json:"dry_run"`
	Written    int        `json:"written"`
	Unchanged  int        `json:"unchanged"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	NoLogs     int        `json:"no_logs"`
	Error      string     `json:"error,omitempty"`
}

// Count tallies an outcome into the run's counters. Planned writes count
// as written.
func (r *Run) Count(res Result) {
	switch res {
	case ResultWritten, ResultPlanned:
		r.Written++
	case ResultUnchanged:
		r.Unchanged++
	case ResultSkipped:
		r.Skipped++
	case ResultFailed:
		r.Failed++
	case ResultNoLogs:
		r.NoLogs++
	}
}
