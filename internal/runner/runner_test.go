package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alexanderjulianmartinez/data-census/internal/config"
	"github.com/alexanderjulianmartinez/data-census/internal/report"
	"github.com/alexanderjulianmartinez/data-census/internal/source"
	"github.com/alexanderjulianmartinez/data-census/internal/source/sourcetest"
)

func output(t *testing.T) config.OutputConfig {
	t.Helper()
	return config.OutputConfig{Path: filepath.Join(t.TempDir(), "census.xlsx"), ColumnWidth: 18}
}

func readRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return rows
}

func TestGenerate_EventsScenario(t *testing.T) {
	out := output(t)
	fake := sourcetest.Events()

	res, err := Generate(context.Background(), fake, out, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Tables)
	assert.Equal(t, 1, res.TimeColumns)
	assert.Equal(t, 2, res.Months)
	assert.Equal(t, 0, res.Warnings)
	assert.Equal(t, "public", res.Schema)
	assert.Equal(t, out.Path, res.Output)

	metrics := readRows(t, out.Path, report.MetricsSheet)
	require.Len(t, metrics, 2)
	assert.Equal(t, []string{"public", "events", "3", "2", "8192", "8 KiB"}, metrics[1])

	dist := readRows(t, out.Path, report.DistributionSheet)
	assert.Equal(t, [][]string{
		{"month", "events.created_at"},
		{"2023-01", "2"},
		{"2023-03", "1"},
	}, dist)
}

func TestGenerate_MetricsBeforeDistributions(t *testing.T) {
	fake := sourcetest.Events()
	_, err := Generate(context.Background(), fake, output(t), nil)
	require.NoError(t, err)
	require.NotEmpty(t, fake.Calls)
	assert.Equal(t, "TableMetrics", fake.Calls[0])
	assert.Equal(t, "TimeColumns", fake.Calls[1])
}

func TestGenerate_ZeroTables(t *testing.T) {
	out := output(t)
	res, err := Generate(context.Background(), &sourcetest.Fake{SchemaName: "public"}, out, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Tables)

	assert.Len(t, readRows(t, out.Path, report.MetricsSheet), 1)
	assert.Len(t, readRows(t, out.Path, report.DistributionSheet), 1)
}

func TestGenerate_QueryFailureAbortsWithoutFile(t *testing.T) {
	cases := map[string]*sourcetest.Fake{
		"metrics": {ErrTables: errors.New("permission denied")},
		"columns": {ErrColumns: errors.New("permission denied")},
	}
	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			out := output(t)
			_, err := Generate(context.Background(), fake, out, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, source.ErrQuery)

			_, statErr := os.Stat(out.Path)
			assert.True(t, os.IsNotExist(statErr), "no output on failure")
		})
	}
}

func TestGenerate_WriteFailure(t *testing.T) {
	out := config.OutputConfig{Path: filepath.Join(t.TempDir(), "no", "such", "dir.xlsx"), ColumnWidth: 18}
	_, err := Generate(context.Background(), sourcetest.Events(), out, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, report.ErrWrite)
}

func TestGenerate_LogsDriftWarnings(t *testing.T) {
	fake := sourcetest.Events()
	fake.Tables[0].RowCount = 1 // rows were deleted between the two queries

	core, logs := observer.New(zapcore.InfoLevel)
	res, err := Generate(context.Background(), fake, output(t), zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Warnings)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "events", warnings[0].ContextMap()["table"])
}

func TestGenerate_Idempotent(t *testing.T) {
	first := output(t)
	second := output(t)
	_, err := Generate(context.Background(), sourcetest.Events(), first, nil)
	require.NoError(t, err)
	_, err = Generate(context.Background(), sourcetest.Events(), second, nil)
	require.NoError(t, err)

	for _, sheet := range []string{report.MetricsSheet, report.DistributionSheet} {
		assert.Equal(t, readRows(t, first.Path, sheet), readRows(t, second.Path, sheet))
	}
}

func TestOpenInspector_UnknownType(t *testing.T) {
	_, err := OpenInspector(context.Background(), config.SourceConfig{Type: "oracle"}, nil)
	require.Error(t, err)
}

func TestRun_ConnectionFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Source.DSN = "postgres://census@127.0.0.1:1/postgres?sslmode=disable&connect_timeout=1"
	require.NoError(t, cfg.Validate())
	cfg.Output = output(t)

	_, err := Run(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrConnection)
}
