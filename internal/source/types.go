package source

import "context"

// ColumnRef identifies a date or timestamp column found in the catalog.
type ColumnRef struct {
	Schema   string
	Table    string
	Column   string
	DataType string
}

// Key returns the "table.column" label used as a report column header.
func (c ColumnRef) Key() string {
	return c.Table + "." + c.Column
}

type TableDescriptor struct {
	Schema      string
	Name        string
	RowCount    int64
	ColumnCount int64
	ByteSize    int64
}

// MonthCount is one bucket of a grouped count. Month is formatted YYYY-MM.
type MonthCount struct {
	Month string
	Rows  int64
}

// Inspector reads catalog metadata and per-column month distributions from
// a single namespace. Implementations only issue read queries.
type Inspector interface {
	Name() string
	Schema() string
	TimeColumns(ctx context.Context) ([]ColumnRef, error)
	TableMetrics(ctx context.Context) ([]TableDescriptor, error)
	MonthDistribution(ctx context.Context, col ColumnRef) ([]MonthCount, error)
	Close() error
}
