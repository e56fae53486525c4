package census

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/data-census/internal/source"
)

// Distribution is a sparse month x column matrix of row counts. A missing
// cell means the column had no rows in that month; it is never stored as 0.
type Distribution struct {
	cells   map[string]map[string]int64
	keys    []string
	hasData map[string]bool
	tracked []source.ColumnRef
	seen    map[string]bool
}

func NewDistribution() *Distribution {
	return &Distribution{
		cells:   map[string]map[string]int64{},
		hasData: map[string]bool{},
		seen:    map[string]bool{},
	}
}

// Track records that col was inspected, whether or not it has data.
func (d *Distribution) Track(col source.ColumnRef) {
	if d.seen[col.Key()] {
		return
	}
	d.seen[col.Key()] = true
	d.tracked = append(d.tracked, col)
}

// Add accumulates rows for col in month. Empty month labels are ignored.
func (d *Distribution) Add(col source.ColumnRef, month string, rows int64) {
	d.Track(col)
	if month == "" {
		return
	}
	key := col.Key()
	if !d.hasData[key] {
		d.hasData[key] = true
		d.keys = append(d.keys, key)
	}
	byKey, ok := d.cells[month]
	if !ok {
		byKey = map[string]int64{}
		d.cells[month] = byKey
	}
	byKey[key] += rows
}

// Months returns the distinct months in ascending order.
func (d *Distribution) Months() []string {
	months := make([]string, 0, len(d.cells))
	for m := range d.cells {
		months = append(months, m)
	}
	slices.Sort(months)
	return months
}

// Columns returns the "table.column" keys that have at least one month, in
// the order they were first added.
func (d *Distribution) Columns() []string {
	return slices.Clone(d.keys)
}

// Tracked returns every inspected column, including those without data.
func (d *Distribution) Tracked() []source.ColumnRef {
	return slices.Clone(d.tracked)
}

// Count reports the rows for key in month and whether the cell is present.
func (d *Distribution) Count(month, key string) (int64, bool) {
	rows, ok := d.cells[month][key]
	return rows, ok
}

// Total sums all months for key.
func (d *Distribution) Total(key string) int64 {
	var total int64
	for _, byKey := range d.cells {
		total += byKey[key]
	}
	return total
}

// Len is the number of month rows.
func (d *Distribution) Len() int {
	return len(d.cells)
}

// BuildDistribution runs one grouped count per time column, sequentially, and
// pivots the results by month.
func BuildDistribution(ctx context.Context, insp source.Inspector, logger *zap.Logger) (*Distribution, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cols, err := insp.TimeColumns(ctx)
	if err != nil {
		return nil, err
	}

	dist := NewDistribution()
	for _, col := range cols {
		start := time.Now()
		months, err := insp.MonthDistribution(ctx, col)
		if err != nil {
			return nil, err
		}

		dist.Track(col)
		for _, m := range months {
			dist.Add(col, m.Month, m.Rows)
		}
		logger.Debug("column distribution collected",
			zap.String("table", col.Table),
			zap.String("column", col.Column),
			zap.Int("months", len(months)),
			zap.Duration("elapsed", time.Since(start)))
	}
	return dist, nil
}
