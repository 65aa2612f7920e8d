// Package period resolves the board that backs the current half-month
// reporting period, cloning the previous month's board when it is missing.
package period

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/timecalc"
)

// ContainerStore finds and clones boards.
type ContainerStore interface {
	// FindContainerByLabel returns nil, nil when no board has exactly label.
	FindContainerByLabel(ctx context.Context, label string) (*model.Container, error)
	CloneContainer(ctx context.Context, template model.Container, label string) (model.Container, error)
}

// Options tunes a Resolver.
type Options struct {
	// Location is the zone the period is computed in.
	Location *time.Location
	// AllowYearRollover lets a January board be cloned from December.
	AllowYearRollover bool
	// DryRun forbids cloning; a missing board becomes ErrContainerMissing.
	DryRun bool
}

// Resolver maps a reference instant to its board.
type Resolver struct {
	store  ContainerStore
	opts   Options
	logger *zap.Logger
}

// NewResolver creates a Resolver. A nil Location means UTC.
func NewResolver(store ContainerStore, opts Options, logger *zap.Logger) *Resolver {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Resolver{store: store, opts: opts, logger: logger}
}

// Period returns the period containing now in the resolver's zone.
func (r *Resolver) Period(now time.Time) model.Period {
	return timecalc.PeriodFor(now.In(r.opts.Location))
}

// ResolveContainer returns the board for now's period, cloning the previous
// month's board of the same half when it does not exist yet.
func (r *Resolver) ResolveContainer(ctx context.Context, now time.Time) (model.Container, error) {
	label := r.Period(now).Label

	existing, err := r.store.FindContainerByLabel(ctx, label)
	if err != nil {
		return model.Container{}, fmt.Errorf("looking up board %q: %w", label, err)
	}
	if existing != nil {
		return *existing, nil
	}

	if r.opts.DryRun {
		return model.Container{}, fmt.Errorf("%w: %q (dry run does not clone)", model.ErrContainerMissing, label)
	}

	r.logger.Info("board not found, looking for template", zap.String("board", label))

	parsed, err := ParseLabel(label)
	if err != nil {
		return model.Container{}, err
	}
	candidates, err := r.templateLabels(parsed, now.In(r.opts.Location).Year())
	if err != nil {
		return model.Container{}, err
	}

	var template *model.Container
	for _, candidate := range candidates {
		template, err = r.store.FindContainerByLabel(ctx, candidate)
		if err != nil {
			return model.Container{}, fmt.Errorf("looking up template board %q: %w", candidate, err)
		}
		if template != nil {
			break
		}
	}
	if template == nil {
		return model.Container{}, fmt.Errorf("%w: tried %s", model.ErrTemplateNotFound, strings.Join(candidates, ", "))
	}

	r.logger.Info("duplicating template board",
		zap.String("template", template.Label),
		zap.String("board", label),
	)
	created, err := r.store.CloneContainer(ctx, *template, label)
	if err != nil {
		return model.Container{}, fmt.Errorf("duplicating board %q as %q: %w", template.Label, label, err)
	}
	return created, nil
}

// templateLabels lists the labels to try as template, most literal first.
// The literal form keeps the day range and swaps the month name; for a
// second half it is followed by the previous month's real last day.
func (r *Resolver) templateLabels(l Label, year int) ([]string, error) {
	prev, prevYear, err := previousMonth(l.Month, year, r.opts.AllowYearRollover)
	if err != nil {
		return nil, err
	}

	prevName := prev.String()
	literal := prevName + " " + strings.ReplaceAll(l.Range, l.Month.String(), prevName)
	labels := []string{literal}

	if l.SecondHalf {
		last := timecalc.LastDayOfMonth(time.Date(prevYear, prev, 1, 0, 0, 0, 0, r.opts.Location))
		if actual := timecalc.HalfMonthLabel(prev, true, last); actual != literal {
			labels = append(labels, actual)
		}
	}
	return labels, nil
}

func previousMonth(m time.Month, year int, allowRollover bool) (time.Month, int, error) {
	if m == time.January {
		if !allowRollover {
			return 0, 0, fmt.Errorf("%w: %s is the first month and year rollover is disabled", model.ErrNoPriorMonth, m)
		}
		return time.December, year - 1, nil
	}
	return m - 1, year, nil
}

// Label is a parsed period label.
type Label struct {
	Month      time.Month
	Range      string // everything after the leading month name, e.g. "1 - March 15"
	SecondHalf bool
	LastDay    int
}

var labelPattern = regexp.MustCompile(`^([A-Za-z]+) (1 - ([A-Za-z]+) 15|16 - ([A-Za-z]+) (\d{1,2}))$`)

// ParseLabel parses "<Month> 1 - <Month> 15" or "<Month> 16 - <Month> <day>".
// Both month names must be the same month.
func ParseLabel(label string) (Label, error) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return Label{}, fmt.Errorf("%w: %q", model.ErrMalformedPeriodLabel, label)
	}

	second := m[4] != ""
	inner := m[3]
	if second {
		inner = m[4]
	}
	if !strings.EqualFold(inner, m[1]) {
		return Label{}, fmt.Errorf("%w: %q names two months", model.ErrMalformedPeriodLabel, label)
	}

	month, ok := monthByName(m[1])
	if !ok {
		return Label{}, fmt.Errorf("%w: unknown month %q", model.ErrMalformedPeriodLabel, m[1])
	}

	l := Label{Month: month, Range: m[2], SecondHalf: second, LastDay: 15}
	if second {
		day, err := strconv.Atoi(m[5])
		if err != nil || day < 16 || day > 31 {
			return Label{}, fmt.Errorf("%w: bad end day in %q", model.ErrMalformedPeriodLabel, label)
		}
		l.LastDay = day
	}
	// Normalise the range to the canonical month spelling.
	l.Range = strings.ReplaceAll(l.Range, inner, month.String())
	return l, nil
}

func monthByName(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), name) {
			return m, true
		}
	}
	return 0, false
}
