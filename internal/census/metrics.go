package census

import (
	"cmp"
	"context"
	"slices"

	"github.com/alexanderjulianmartinez/data-census/internal/source"
)

// TableMetrics is one row of the Metrics sheet.
type TableMetrics struct {
	source.TableDescriptor
	HumanSize string
}

// BuildMetrics collects per-table metrics, largest tables first. Tables of
// equal size keep the order the inspector returned them in.
func BuildMetrics(ctx context.Context, insp source.Inspector) ([]TableMetrics, error) {
	tables, err := insp.TableMetrics(ctx)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(tables, func(a, b source.TableDescriptor) int {
		return cmp.Compare(b.ByteSize, a.ByteSize)
	})

	out := make([]TableMetrics, 0, len(tables))
	for _, t := range tables {
		out = append(out, TableMetrics{
			TableDescriptor: t,
			HumanSize:       FormatSize(t.ByteSize),
		})
	}
	return out, nil
}
