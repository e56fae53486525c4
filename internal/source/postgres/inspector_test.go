package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderjulianmartinez/data-census/internal/source"
)

func newMock(t *testing.T) (*Inspector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newInspector(db, "public", 0, nil), mock
}

func TestTimeColumns(t *testing.T) {
	insp, mock := newMock(t)
	mock.ExpectQuery(timeColumnsQuery).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "column_name", "data_type"}).
			AddRow("public", "events", "created_at", "timestamp without time zone").
			AddRow("public", "invoices", "due_on", "date"))

	cols, err := insp.TimeColumns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []source.ColumnRef{
		{Schema: "public", Table: "events", Column: "created_at", DataType: "timestamp without time zone"},
		{Schema: "public", Table: "invoices", Column: "due_on", DataType: "date"},
	}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeColumns_QueryFailure(t *testing.T) {
	insp, mock := newMock(t)
	mock.ExpectQuery(timeColumnsQuery).
		WithArgs("public").
		WillReturnError(errors.New(`permission denied for schema public`))

	_, err := insp.TimeColumns(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrQuery))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestTableMetrics(t *testing.T) {
	insp, mock := newMock(t)
	mock.ExpectQuery(tableMetricsQuery).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "row_count", "column_count", "byte_size"}).
			AddRow("public", "events", int64(3), int64(4), int64(8192)).
			AddRow("public", "users", int64(0), int64(2), int64(0)))

	tables, err := insp.TableMetrics(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, source.TableDescriptor{Schema: "public", Name: "events", RowCount: 3, ColumnCount: 4, ByteSize: 8192}, tables[0])
	assert.Equal(t, "users", tables[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableMetrics_EmptySchema(t *testing.T) {
	insp, mock := newMock(t)
	mock.ExpectQuery(tableMetricsQuery).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "row_count", "column_count", "byte_size"}))

	tables, err := insp.TableMetrics(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestMonthDistribution(t *testing.T) {
	insp, mock := newMock(t)
	col := source.ColumnRef{Schema: "public", Table: "events", Column: "created_at"}
	mock.ExpectQuery(`SELECT to_char("created_at", 'YYYY-MM') AS yyyy_mm, count(*) AS row_count FROM "public"."events" WHERE "created_at" IS NOT NULL GROUP BY 1 ORDER BY 1`).
		WillReturnRows(sqlmock.NewRows([]string{"yyyy_mm", "row_count"}).
			AddRow("2023-01", int64(2)).
			AddRow("2023-03", int64(1)))

	months, err := insp.MonthDistribution(context.Background(), col)
	require.NoError(t, err)
	assert.Equal(t, []source.MonthCount{{Month: "2023-01", Rows: 2}, {Month: "2023-03", Rows: 1}}, months)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonthDistribution_SkipsInfiniteTimestamps(t *testing.T) {
	insp, mock := newMock(t)
	col := source.ColumnRef{Schema: "public", Table: "contracts", Column: "valid_to"}
	mock.ExpectQuery(monthDistributionQuery(col)).
		WillReturnRows(sqlmock.NewRows([]string{"yyyy_mm", "row_count"}).
			AddRow("2023-01", int64(4)).
			AddRow(nil, int64(2)))

	months, err := insp.MonthDistribution(context.Background(), col)
	require.NoError(t, err)
	assert.Equal(t, []source.MonthCount{{Month: "2023-01", Rows: 4}}, months)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonthDistribution_QueryFailureNamesColumn(t *testing.T) {
	insp, mock := newMock(t)
	col := source.ColumnRef{Schema: "public", Table: "events", Column: "created_at"}
	mock.ExpectQuery(monthDistributionQuery(col)).WillReturnError(errors.New("relation does not exist"))

	_, err := insp.MonthDistribution(context.Background(), col)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrQuery)
	assert.Contains(t, err.Error(), "events.created_at")
}

func TestMonthDistributionQuery_QuotesIdentifiers(t *testing.T) {
	col := source.ColumnRef{Schema: "sales", Table: `odd"name`, Column: "Created At"}
	got := monthDistributionQuery(col)
	assert.Contains(t, got, `FROM "sales"."odd""name"`)
	assert.Contains(t, got, `to_char("Created At", 'YYYY-MM')`)
	assert.Contains(t, got, `WHERE "Created At" IS NOT NULL`)
}

func TestQueryTimeoutApplied(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	insp := newInspector(db, "public", 10*time.Millisecond, nil)

	mock.ExpectQuery(timeColumnsQuery).
		WithArgs("public").
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "column_name", "data_type"}))

	_, err = insp.TimeColumns(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrQuery)
}

func TestNameSchemaClose(t *testing.T) {
	insp, mock := newMock(t)
	mock.ExpectClose()
	assert.Equal(t, "postgres", insp.Name())
	assert.Equal(t, "public", insp.Schema())
	require.NoError(t, insp.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
