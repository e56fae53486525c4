// Package sourcetest provides an in-memory source.Inspector for tests.
package sourcetest

import (
	"context"
	"fmt"

	"github.com/alexanderjulianmartinez/data-census/internal/source"
)

var _ source.Inspector = (*Fake)(nil)

// Fake serves fixed catalog answers. Months is keyed by ColumnRef.Key().
type Fake struct {
	SchemaName string
	Columns    []source.ColumnRef
	Tables     []source.TableDescriptor
	Months     map[string][]source.MonthCount

	// Err* force the matching call to fail with source.ErrQuery.
	ErrColumns error
	ErrTables  error
	ErrMonths  map[string]error

	Calls  []string
	Closed bool
}

func (f *Fake) Name() string {
	return "fake"
}

func (f *Fake) Schema() string {
	return f.SchemaName
}

func (f *Fake) TimeColumns(ctx context.Context) ([]source.ColumnRef, error) {
	f.Calls = append(f.Calls, "TimeColumns")
	if f.ErrColumns != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrQuery, f.ErrColumns)
	}
	return f.Columns, nil
}

func (f *Fake) TableMetrics(ctx context.Context) ([]source.TableDescriptor, error) {
	f.Calls = append(f.Calls, "TableMetrics")
	if f.ErrTables != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrQuery, f.ErrTables)
	}
	out := make([]source.TableDescriptor, len(f.Tables))
	copy(out, f.Tables)
	return out, nil
}

func (f *Fake) MonthDistribution(ctx context.Context, col source.ColumnRef) ([]source.MonthCount, error) {
	f.Calls = append(f.Calls, "MonthDistribution:"+col.Key())
	if err := f.ErrMonths[col.Key()]; err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrQuery, err)
	}
	return f.Months[col.Key()], nil
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// Events returns the single-table fixture: events.created_at with rows in
// 2023-01 (two) and 2023-03 (one).
func Events() *Fake {
	col := source.ColumnRef{Schema: "public", Table: "events", Column: "created_at", DataType: "timestamp without time zone"}
	return &Fake{
		SchemaName: "public",
		Columns:    []source.ColumnRef{col},
		Tables: []source.TableDescriptor{
			{Schema: "public", Name: "events", RowCount: 3, ColumnCount: 2, ByteSize: 8192},
		},
		Months: map[string][]source.MonthCount{
			col.Key(): {{Month: "2023-01", Rows: 2}, {Month: "2023-03", Rows: 1}},
		},
	}
}
