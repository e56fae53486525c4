package drift

import (
	"github.com/alexanderjulianmartinez/data-census/internal/source"
)

// ColumnTotal is the sum of all month counts for one time column.
type ColumnTotal struct {
	Table  string
	Column string
	Rows   int64
}

type Issue struct {
	Kind     string
	Severity string
	Table    string
	Column   string
	Rows     int64
	Expected int64
	Message  string
}

type Report struct {
	Issues []Issue
}

// Count returns how many issues carry the given severity.
func (r *Report) Count(severity string) int {
	n := 0
	for _, iss := range r.Issues {
		if iss.Severity == severity {
			n++
		}
	}
	return n
}

func Validate(tables []source.TableDescriptor, columns []ColumnTotal) *Report {
	report := &Report{}
	byName := map[string]source.TableDescriptor{}
	for _, table := range tables {
		byName[table.Name] = table
	}

	for _, col := range columns {
		table, ok := byName[col.Table]
		switch {
		case !ok:
			report.add(KindTableMissing, col, 0)
		case col.Rows > table.RowCount:
			report.add(KindColumnTotalExceedsRows, col, table.RowCount)
		case col.Rows == 0 && table.RowCount > 0:
			report.add(KindColumnAllNull, col, table.RowCount)
		}
	}
	return report
}

func (r *Report) add(kind string, col ColumnTotal, expected int64) {
	r.Issues = append(r.Issues, Issue{
		Kind:     kind,
		Severity: SeverityForChange(kind),
		Table:    col.Table,
		Column:   col.Column,
		Rows:     col.Rows,
		Expected: expected,
		Message:  MessageForChange(kind),
	})
}
