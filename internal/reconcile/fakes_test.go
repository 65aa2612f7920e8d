package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/attendance"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/runlock"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/timecalc"
)

type fakeTracker struct {
	users []model.User
	logs  map[string][]model.TimeInterval
	from  time.Time
	to    time.Time
}

func (f *fakeTracker) ListUsers(context.Context) ([]model.User, error) { return f.users, nil }

func (f *fakeTracker) ListWorklogs(_ context.Context, ids []string, from, to time.Time) (map[string][]model.TimeInterval, error) {
	f.from, f.to = from, to
	out := make(map[string][]model.TimeInterval)
	for _, id := range ids {
		if l, ok := f.logs[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

type fakeContainers struct {
	container model.Container
	err       error
}

func (f *fakeContainers) Period(now time.Time) model.Period { return timecalc.PeriodFor(now) }

func (f *fakeContainers) ResolveContainer(context.Context, time.Time) (model.Container, error) {
	return f.container, f.err
}

type fakeFields struct{ mapping model.FieldMapping }

func (f fakeFields) Resolve(context.Context, model.Container) (model.FieldMapping, error) {
	return f.mapping, nil
}

type teams map[string]string

func (t teams) GroupForUser(email string) (string, bool) {
	g, ok := t[strings.ToLower(email)]
	return g, ok
}

// fakeBoard is an in-memory board.
type fakeBoard struct {
	groups      map[string]string // title -> id
	records     map[string]string // groupID/name -> id
	values      map[string]map[string]string
	writeErr    map[string]error // record id -> error
	ensureCalls int
	created     []string
	writes      []map[string]any
	nextID      int
}

func newBoard() *fakeBoard {
	return &fakeBoard{
		groups:   map[string]string{},
		records:  map[string]string{},
		values:   map[string]map[string]string{},
		writeErr: map[string]error{},
	}
}

func (b *fakeBoard) id(prefix string) string {
	b.nextID++
	return fmt.Sprintf("%s%d", prefix, b.nextID)
}

func (b *fakeBoard) FindGroup(_ context.Context, _ string, title string) (string, bool, error) {
	id, ok := b.groups[title]
	return id, ok, nil
}

func (b *fakeBoard) EnsureGroup(ctx context.Context, boardID, title string) (string, error) {
	b.ensureCalls++
	if id, ok, _ := b.FindGroup(ctx, boardID, title); ok {
		return id, nil
	}
	id := b.id("g")
	b.groups[title] = id
	return id, nil
}

func (b *fakeBoard) FindRecord(_ context.Context, _ string, groupID, name string) (string, bool, error) {
	id, ok := b.records[groupID+"/"+name]
	return id, ok, nil
}

func (b *fakeBoard) CreateRecord(_ context.Context, _ string, groupID, name string) (string, error) {
	id := b.id("r")
	b.records[groupID+"/"+name] = id
	b.created = append(b.created, groupID+"/"+name)
	return id, nil
}

func (b *fakeBoard) GetFieldValues(_ context.Context, recordID string, columnIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(columnIDs))
	for _, c := range columnIDs {
		out[c] = b.values[recordID][c]
	}
	return out, nil
}

func (b *fakeBoard) WriteFields(_ context.Context, _ string, recordID string, writes map[string]any) error {
	if err := b.writeErr[recordID]; err != nil {
		return err
	}
	b.writes = append(b.writes, writes)
	if b.values[recordID] == nil {
		b.values[recordID] = map[string]string{}
	}
	for col, v := range writes {
		b.values[recordID][col] = render(v)
	}
	return nil
}

// render mimics the text monday.com shows for a written value.
func render(v any) string {
	switch v := v.(type) {
	case attendance.HourValue:
		return fmt.Sprintf("%02d:%02d", v.Hour, v.Minute)
	case attendance.DateValue:
		return v.Date
	case string:
		return v
	}
	return fmt.Sprint(v)
}

type fakeRecorder struct {
	begun    []model.Run
	finished []model.Run
	outcomes map[string][]model.Outcome
}

func (r *fakeRecorder) BeginRun(_ context.Context, run model.Run) (model.Run, error) {
	run.ID = fmt.Sprintf("run-%d", len(r.begun)+1)
	r.begun = append(r.begun, run)
	return run, nil
}

func (r *fakeRecorder) RecordOutcome(_ context.Context, runID string, o model.Outcome) error {
	if r.outcomes == nil {
		r.outcomes = map[string][]model.Outcome{}
	}
	r.outcomes[runID] = append(r.outcomes[runID], o)
	return nil
}

func (r *fakeRecorder) FinishRun(_ context.Context, run model.Run) error {
	r.finished = append(r.finished, run)
	return nil
}

type lockedLocker struct{}

func (lockedLocker) Acquire(context.Context, string, time.Duration) (runlock.Lease, error) {
	return nil, fmt.Errorf("%w: held", runlock.ErrLocked)
}

var errWrite = errors.New("column is read only")
