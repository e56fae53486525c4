package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/data-census/internal/census"
	"github.com/alexanderjulianmartinez/data-census/internal/config"
	"github.com/alexanderjulianmartinez/data-census/internal/drift"
	"github.com/alexanderjulianmartinez/data-census/internal/report"
	"github.com/alexanderjulianmartinez/data-census/internal/source"
	"github.com/alexanderjulianmartinez/data-census/internal/source/mysql"
	"github.com/alexanderjulianmartinez/data-census/internal/source/postgres"
	"github.com/alexanderjulianmartinez/data-census/pkg/types"
)

// OpenInspector connects to the database named by cfg.
func OpenInspector(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (source.Inspector, error) {
	switch cfg.Type {
	case config.DriverPostgres:
		insp, err := postgres.NewInspector(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return insp, nil
	case config.DriverMySQL:
		insp, err := mysql.NewInspector(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return insp, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q", cfg.Type)
	}
}

// Run connects to the configured database and writes the report.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*types.RunResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	insp, err := OpenInspector(ctx, cfg.Source, logger)
	if err != nil {
		return nil, err
	}
	defer insp.Close()

	return Generate(ctx, insp, cfg.Output, logger)
}

// Generate builds the Metrics sheet, then the Time Distributions sheet, and
// saves the workbook. Nothing is written to disk unless both succeed.
func Generate(ctx context.Context, insp source.Inspector, out config.OutputConfig, logger *zap.Logger) (*types.RunResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	wb, err := report.New(out.ColumnWidth)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	metrics, err := census.BuildMetrics(ctx, insp)
	if err != nil {
		return nil, fmt.Errorf("build metrics: %w", err)
	}
	if err := wb.WriteMetrics(metrics); err != nil {
		return nil, err
	}
	logger.Info("metrics sheet written", zap.Int("tables", len(metrics)))

	dist, err := census.BuildDistribution(ctx, insp, logger)
	if err != nil {
		return nil, fmt.Errorf("build time distributions: %w", err)
	}
	if err := wb.WriteDistribution(dist); err != nil {
		return nil, err
	}
	logger.Info("time distributions sheet written",
		zap.Int("columns", len(dist.Columns())),
		zap.Int("months", dist.Len()))

	issues := checkDrift(metrics, dist, logger)

	if err := wb.SaveAs(out.Path); err != nil {
		return nil, err
	}

	res := &types.RunResult{
		Driver:      insp.Name(),
		Schema:      insp.Schema(),
		Output:      out.Path,
		Tables:      len(metrics),
		TimeColumns: len(dist.Tracked()),
		Months:      dist.Len(),
		Warnings:    issues.Count(drift.SeverityWarn),
		Elapsed:     time.Since(start),
	}
	logger.Info("report saved", zap.String("output", out.Path), zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func checkDrift(metrics []census.TableMetrics, dist *census.Distribution, logger *zap.Logger) *drift.Report {
	tables := make([]source.TableDescriptor, 0, len(metrics))
	for _, m := range metrics {
		tables = append(tables, m.TableDescriptor)
	}
	var totals []drift.ColumnTotal
	for _, col := range dist.Tracked() {
		totals = append(totals, drift.ColumnTotal{
			Table:  col.Table,
			Column: col.Column,
			Rows:   dist.Total(col.Key()),
		})
	}

	rep := drift.Validate(tables, totals)
	for _, iss := range rep.Issues {
		fields := []zap.Field{
			zap.String("table", iss.Table),
			zap.String("column", iss.Column),
			zap.Int64("rows", iss.Rows),
			zap.Int64("table_rows", iss.Expected),
		}
		if iss.Severity == drift.SeverityWarn {
			logger.Warn(iss.Message, fields...)
		} else {
			logger.Info(iss.Message, fields...)
		}
	}
	return rep
}
