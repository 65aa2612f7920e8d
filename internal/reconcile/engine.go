// Package reconcile runs one attendance reconciliation pass: it reads the
// reference day's worklogs and fills each user's record on the period board.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/attendance"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/runlock"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/timecalc"
)

// Tracker reads users and their worklogs.
type Tracker interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	ListWorklogs(ctx context.Context, userIDs []string, from, to time.Time) (map[string][]model.TimeInterval, error)
}

// Containers resolves the board of the period containing a reference instant.
type Containers interface {
	Period(now time.Time) model.Period
	ResolveContainer(ctx context.Context, now time.Time) (model.Container, error)
}

// Fields maps a board's columns to the attendance fields.
type Fields interface {
	Resolve(ctx context.Context, container model.Container) (model.FieldMapping, error)
}

// RecordStore reads and writes groups and records on a board.
type RecordStore interface {
	FindGroup(ctx context.Context, boardID, title string) (string, bool, error)
	EnsureGroup(ctx context.Context, boardID, title string) (string, error)
	FindRecord(ctx context.Context, boardID, groupID, name string) (string, bool, error)
	CreateRecord(ctx context.Context, boardID, groupID, name string) (string, error)
	GetFieldValues(ctx context.Context, recordID string, columnIDs []string) (map[string]string, error)
	WriteFields(ctx context.Context, boardID, recordID string, writes map[string]any) error
}

// TeamResolver maps a user to the title of their group.
type TeamResolver interface {
	GroupForUser(email string) (string, bool)
}

// Recorder persists runs and outcomes.
type Recorder interface {
	BeginRun(ctx context.Context, run model.Run) (model.Run, error)
	RecordOutcome(ctx context.Context, runID string, o model.Outcome) error
	FinishRun(ctx context.Context, run model.Run) error
}

// Deps are the engine's collaborators. Recorder and Locker are optional.
type Deps struct {
	Tracker    Tracker
	Containers Containers
	Fields     Fields
	Records    RecordStore
	Teams      TeamResolver
	Recorder   Recorder
	Locker     runlock.Locker
}

// Options tunes a run.
type Options struct {
	Location             *time.Location
	IdleThresholdMinutes int
	// DryRun computes writes without creating or changing anything.
	DryRun  bool
	LockTTL time.Duration
	// Clock returns the wall-clock time; defaults to time.Now.
	Clock func() time.Time
}

// Engine runs reconciliation passes.
type Engine struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New creates an Engine.
func New(deps Deps, opts Options, logger *zap.Logger) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.IdleThresholdMinutes <= 0 {
		opts.IdleThresholdMinutes = attendance.DefaultIdleThresholdMinutes
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = runlock.Nop{}
	}
	return &Engine{deps: deps, opts: opts, logger: logger}
}

// Report is the result of a run.
type Report struct {
	Run       model.Run
	Container model.Container
	Outcomes  []model.Outcome
}

// Filter returns the outcomes with the given result.
func (r Report) Filter(res model.Result) []model.Outcome {
	var out []model.Outcome
	for _, o := range r.Outcomes {
		if o.Result == res {
			out = append(out, o)
		}
	}
	return out
}

// userDay is one user's worklogs for the reference day, merged across
// tracker accounts sharing an email.
type userDay struct {
	email        string
	name         string
	intervals    []model.TimeInterval
	lastActiveAt *time.Time
}

// Run reconciles the day containing ref. A zero ref means now. The
// returned error is fatal; per-user problems are reported as outcomes.
func (e *Engine) Run(ctx context.Context, ref time.Time) (report Report, err error) {
	now := e.opts.Clock().In(e.opts.Location)
	if ref.IsZero() {
		ref = now
	}
	ref = ref.In(e.opts.Location)

	report.Run = model.Run{
		Period:    e.deps.Containers.Period(ref).Label,
		Reference: ref,
		DryRun:    e.opts.DryRun,
	}
	log := e.logger.With(zap.String("period", report.Run.Period), zap.Time("reference", ref))

	lease, err := e.deps.Locker.Acquire(ctx, report.Run.Period, e.opts.LockTTL)
	if err != nil {
		return report, err
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			log.Warn("releasing run lock", zap.Error(relErr))
		}
	}()

	if e.deps.Recorder != nil {
		begun, beginErr := e.deps.Recorder.BeginRun(ctx, report.Run)
		if beginErr != nil {
			return report, fmt.Errorf("starting run record: %w", beginErr)
		}
		report.Run = begun
		log = log.With(zap.String("run_id", begun.ID))
		// err is the named result of Run.
		defer func() {
			if err != nil {
				report.Run.Error = err.Error()
			}
			if finErr := e.deps.Recorder.FinishRun(context.WithoutCancel(ctx), report.Run); finErr != nil {
				log.Warn("finishing run record", zap.Error(finErr))
			}
		}()
	}

	container, err := e.deps.Containers.ResolveContainer(ctx, ref)
	if err != nil {
		return report, fmt.Errorf("resolving board: %w", err)
	}
	report.Container = container

	mapping, err := e.deps.Fields.Resolve(ctx, container)
	if err != nil {
		return report, fmt.Errorf("resolving columns: %w", err)
	}

	days, err := e.loadDays(ctx, ref)
	if err != nil {
		return report, err
	}
	log.Info("reconciling", zap.String("board", container.Label), zap.Int("users", len(days)), zap.Bool("dry_run", e.opts.DryRun))

	p := pass{
		engine:    e,
		container: container,
		mapping:   mapping,
		ref:       ref,
		// Records are only created for the current day.
		canCreate: timecalc.SameDay(ref, now),
		groups:    make(map[string]string),
		log:       log,
	}
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		o := p.reconcile(ctx, day)
		report.Outcomes = append(report.Outcomes, o)
		report.Run.Count(o.Result)

		if e.deps.Recorder != nil {
			if recErr := e.deps.Recorder.RecordOutcome(ctx, report.Run.ID, o); recErr != nil {
				log.Warn("recording outcome", zap.String("user", o.Email), zap.Error(recErr))
			}
		}
	}

	log.Info("run finished",
		zap.Int("written", report.Run.Written),
		zap.Int("unchanged", report.Run.Unchanged),
		zap.Int("skipped", report.Run.Skipped),
		zap.Int("failed", report.Run.Failed),
		zap.Int("no_logs", report.Run.NoLogs),
	)
	return report, nil
}

// loadDays fetches users and the reference day's worklogs and folds them
// by lower-cased email, sorted for a stable processing order.
func (e *Engine) loadDays(ctx context.Context, ref time.Time) ([]userDay, error) {
	users, err := e.deps.Tracker.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	from := timecalc.StartOfDay(ref)
	to := from.AddDate(0, 0, 1)
	logs, err := e.deps.Tracker.ListWorklogs(ctx, ids, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing worklogs: %w", err)
	}

	byEmail := make(map[string]*userDay)
	var order []string
	for _, u := range users {
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if key == "" {
			key = u.ID
		}
		d, ok := byEmail[key]
		if !ok {
			d = &userDay{email: key, name: u.Name}
			byEmail[key] = d
			order = append(order, key)
		}
		d.intervals = append(d.intervals, logs[u.ID]...)
		if u.LastActiveAt != nil && (d.lastActiveAt == nil || u.LastActiveAt.After(*d.lastActiveAt)) {
			t := *u.LastActiveAt
			d.lastActiveAt = &t
		}
	}
	sort.Strings(order)

	days := make([]userDay, 0, len(order))
	for _, key := range order {
		days = append(days, *byEmail[key])
	}
	return days, nil
}

// pass holds the state shared by the users of one run.
type pass struct {
	engine    *Engine
	container model.Container
	mapping   model.FieldMapping
	ref       time.Time
	canCreate bool
	// groups caches group ids by lower-cased title.
	groups map[string]string
	log    *zap.Logger
}

func (p *pass) reconcile(ctx context.Context, day userDay) model.Outcome {
	o := model.Outcome{Email: day.email, Name: day.name}
	if len(day.intervals) == 0 {
		o.Result = model.ResultNoLogs
		return o
	}

	err := p.apply(ctx, day, &o)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrMissingMapping):
		o.Result = model.ResultSkipped
		o.Reason = err.Error()
		p.log.Warn("skipping user", zap.String("user", day.email), zap.Error(err))
	default:
		o.Result = model.ResultFailed
		o.Reason = err.Error()
		p.log.Error("user failed", zap.String("user", day.email), zap.Error(err))
	}
	return o
}

// apply finds or creates the user's record and writes the missing fields,
// filling o as it goes.
func (p *pass) apply(ctx context.Context, day userDay, o *model.Outcome) error {
	e := p.engine
	title, ok := e.deps.Teams.GroupForUser(day.email)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrNoGrouping, day.email)
	}
	o.Group = title

	summary := attendance.Aggregate(day.intervals, day.lastActiveAt, p.ref, e.opts.IdleThresholdMinutes)

	groupID, ok, err := p.group(ctx, title)
	if err != nil {
		return err
	}
	name := timecalc.RecordName(p.ref)
	if !ok {
		// Dry run against a board without the group yet.
		if !p.canCreate {
			return fmt.Errorf("%w: group %q has no record %q and it is not today", model.ErrRecordNotEligible, title, name)
		}
		return p.plan(summary, attendance.ExistingFields{}, o, fmt.Sprintf("group %q would be created", title))
	}

	recordID, found, err := e.deps.Records.FindRecord(ctx, p.container.ID, groupID, name)
	if err != nil {
		return fmt.Errorf("finding record %q: %w", name, err)
	}
	if !found {
		if !p.canCreate {
			return fmt.Errorf("%w: %q does not exist and is not today", model.ErrRecordNotEligible, name)
		}
		if e.opts.DryRun {
			return p.plan(summary, attendance.ExistingFields{}, o, fmt.Sprintf("record %q would be created", name))
		}
		if recordID, err = e.deps.Records.CreateRecord(ctx, p.container.ID, groupID, name); err != nil {
			return fmt.Errorf("creating record %q: %w", name, err)
		}
		p.log.Info("created record", zap.String("user", day.email), zap.String("group", title), zap.String("record", name))
	}
	o.RecordID = recordID

	values, err := e.deps.Records.GetFieldValues(ctx, recordID, p.mapping.ColumnIDs())
	if err != nil {
		return fmt.Errorf("reading record %s: %w", recordID, err)
	}
	existing := attendance.ExistingFrom(p.mapping, values)

	if e.opts.DryRun {
		return p.plan(summary, existing, o, "")
	}

	writes := attendance.Project(existing, summary, p.mapping, p.ref)
	if len(writes) == 0 {
		o.Result = model.ResultUnchanged
		return nil
	}
	if err := e.deps.Records.WriteFields(ctx, p.container.ID, recordID, writes); err != nil {
		return fmt.Errorf("writing record %s: %w", recordID, err)
	}
	o.Result = model.ResultWritten
	o.Fields = writes.Logical(p.mapping)
	p.log.Info("wrote record",
		zap.String("user", day.email),
		zap.String("status", string(summary.Status)),
		zap.String("tracked", timecalc.FormatDuration(summary.TotalSeconds)),
		zap.Int("fields", len(writes)),
	)
	return nil
}

// plan fills o with the writes a dry run would make.
func (p *pass) plan(summary model.AttendanceSummary, existing attendance.ExistingFields, o *model.Outcome, reason string) error {
	writes := attendance.Project(existing, summary, p.mapping, p.ref)
	o.Reason = reason
	if len(writes) == 0 {
		o.Result = model.ResultUnchanged
		return nil
	}
	o.Result = model.ResultPlanned
	o.Fields = writes.Logical(p.mapping)
	return nil
}

// group returns the id of the group titled title. Outside dry runs a
// missing group is created; in dry runs ok is false instead.
func (p *pass) group(ctx context.Context, title string) (string, bool, error) {
	key := strings.ToLower(strings.TrimSpace(title))
	if id, ok := p.groups[key]; ok {
		return id, true, nil
	}

	records := p.engine.deps.Records
	if p.engine.opts.DryRun {
		id, ok, err := records.FindGroup(ctx, p.container.ID, title)
		if err != nil {
			return "", false, fmt.Errorf("finding group %q: %w", title, err)
		}
		if ok {
			p.groups[key] = id
		}
		return id, ok, nil
	}

	id, err := records.EnsureGroup(ctx, p.container.ID, title)
	if err != nil {
		return "", false, fmt.Errorf("resolving group %q: %w", title, err)
	}
	p.groups[key] = id
	return id, true, nil
}
