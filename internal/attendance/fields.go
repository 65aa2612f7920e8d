package attendance

import (
	"context"
	"fmt"
	"strings"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

// ColumnTitles names the board columns that hold each attendance field.
type ColumnTitles struct {
	ClockIn          string
	ClockOut         string
	Date             string
	TotalWorkedHours string
}

// DefaultColumnTitles returns the column titles used by the stock board template.
func DefaultColumnTitles() ColumnTitles {
	return ColumnTitles{
		ClockIn:          "Clock In",
		ClockOut:         "Clock Out",
		Date:             "Date",
		TotalWorkedHours: "Total Worked Hours",
	}
}

// ColumnLister lists the columns of a container.
type ColumnLister interface {
	ListColumns(ctx context.Context, containerID string) ([]model.Column, error)
}

// FieldMapper resolves column IDs for the attendance fields. Results are
// cached per container for the mapper's lifetime, which is one run.
type FieldMapper struct {
	lister ColumnLister
	titles ColumnTitles
	cache  map[string]model.FieldMapping
}

// NewFieldMapper creates a FieldMapper.
func NewFieldMapper(lister ColumnLister, titles ColumnTitles) *FieldMapper {
	return &FieldMapper{
		lister: lister,
		titles: titles,
		cache:  map[string]model.FieldMapping{},
	}
}

// Resolve returns the field mapping for container. Titles match after
// trimming and case folding. A missing column is a configuration error.
func (f *FieldMapper) Resolve(ctx context.Context, container model.Container) (model.FieldMapping, error) {
	if m, ok := f.cache[container.ID]; ok {
		return m, nil
	}

	columns, err := f.lister.ListColumns(ctx, container.ID)
	if err != nil {
		return model.FieldMapping{}, fmt.Errorf("listing columns of board %q: %w", container.Label, err)
	}

	var m model.FieldMapping
	for _, want := range []struct {
		title string
		dst   *string
	}{
		{f.titles.ClockIn, &m.ClockIn},
		{f.titles.ClockOut, &m.ClockOut},
		{f.titles.Date, &m.Date},
		{f.titles.TotalWorkedHours, &m.TotalWorkedHours},
	} {
		id, ok := findColumn(columns, want.title)
		if !ok {
			return model.FieldMapping{}, fmt.Errorf("%w: %q on board %q", model.ErrColumnNotFound, want.title, container.Label)
		}
		*want.dst = id
	}

	f.cache[container.ID] = m
	return m, nil
}

func findColumn(columns []model.Column, title string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(title))
	for _, c := range columns {
		if strings.ToLower(strings.TrimSpace(c.Title)) == want {
			return c.ID, true
		}
	}
	return "", false
}
