package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/data-census/internal/config"
	"github.com/alexanderjulianmartinez/data-census/internal/source"
)

const pingTimeout = 5 * time.Second

const timeColumnsQuery = `
	SELECT c.table_schema, c.table_name, c.column_name, c.data_type
	FROM information_schema.columns c
	JOIN information_schema.tables t
	  ON t.table_schema = c.table_schema
	 AND t.table_name = c.table_name
	WHERE c.table_schema = $1
	  AND t.table_type = 'BASE TABLE'
	  AND (c.data_type = 'date' OR c.data_type LIKE 'timestamp%')
	ORDER BY c.table_name, c.ordinal_position
`

// The live row count goes through query_to_xml so that every table is
// counted by this single statement.
const tableMetricsQuery = `
	SELECT table_schema, table_name, row_count, column_count, byte_size
	FROM (
		SELECT t.table_schema,
		       t.table_name,
		       (xpath('/row/cnt/text()',
		              query_to_xml(format('SELECT count(*) AS cnt FROM %I.%I', t.table_schema, t.table_name),
		                           false, true, '')))[1]::text::bigint AS row_count,
		       (SELECT count(*)
		        FROM information_schema.columns c
		        WHERE c.table_schema = t.table_schema
		          AND c.table_name = t.table_name) AS column_count,
		       pg_relation_size(format('%I.%I', t.table_schema, t.table_name)::regclass) AS byte_size
		FROM information_schema.tables t
		WHERE t.table_schema = $1
		  AND t.table_type = 'BASE TABLE'
	) m
	ORDER BY byte_size DESC, table_name
`

type Inspector struct {
	db      *sql.DB
	schema  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewInspector opens a single-connection pool to the PostgreSQL server
// described by cfg and verifies it answers.
func NewInspector(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (*Inspector, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", source.ErrConnection, err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: postgres ping failed: %w", source.ErrConnection, err)
	}

	return newInspector(db, cfg.Schema, cfg.QueryTimeout, logger), nil
}

func newInspector(db *sql.DB, schema string, timeout time.Duration, logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{
		db:      db,
		schema:  schema,
		timeout: timeout,
		logger:  logger.With(zap.String("driver", "postgres"), zap.String("schema", schema)),
	}
}

func (i *Inspector) Name() string {
	return "postgres"
}

func (i *Inspector) Schema() string {
	return i.schema
}

func (i *Inspector) Close() error {
	return i.db.Close()
}

func (i *Inspector) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout > 0 {
		return context.WithTimeout(ctx, i.timeout)
	}
	return context.WithCancel(ctx)
}

func (i *Inspector) TimeColumns(ctx context.Context) ([]source.ColumnRef, error) {
	ctx, cancel := i.queryContext(ctx)
	defer cancel()

	rows, err := i.db.QueryContext(ctx, timeColumnsQuery, i.schema)
	if err != nil {
		return nil, fmt.Errorf("%w: list time columns: %w", source.ErrQuery, err)
	}
	defer rows.Close()

	var cols []source.ColumnRef
	for rows.Next() {
		var col source.ColumnRef
		if err := rows.Scan(&col.Schema, &col.Table, &col.Column, &col.DataType); err != nil {
			return nil, fmt.Errorf("%w: scan time column: %w", source.ErrQuery, err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list time columns: %w", source.ErrQuery, err)
	}
	i.logger.Debug("time columns listed", zap.Int("columns", len(cols)))
	return cols, nil
}

func (i *Inspector) TableMetrics(ctx context.Context) ([]source.TableDescriptor, error) {
	ctx, cancel := i.queryContext(ctx)
	defer cancel()

	rows, err := i.db.QueryContext(ctx, tableMetricsQuery, i.schema)
	if err != nil {
		return nil, fmt.Errorf("%w: table metrics: %w", source.ErrQuery, err)
	}
	defer rows.Close()

	var tables []source.TableDescriptor
	for rows.Next() {
		var t source.TableDescriptor
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowCount, &t.ColumnCount, &t.ByteSize); err != nil {
			return nil, fmt.Errorf("%w: scan table metrics: %w", source.ErrQuery, err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: table metrics: %w", source.ErrQuery, err)
	}
	i.logger.Debug("table metrics collected", zap.Int("tables", len(tables)))
	return tables, nil
}

func (i *Inspector) MonthDistribution(ctx context.Context, col source.ColumnRef) ([]source.MonthCount, error) {
	ctx, cancel := i.queryContext(ctx)
	defer cancel()

	rows, err := i.db.QueryContext(ctx, monthDistributionQuery(col))
	if err != nil {
		return nil, fmt.Errorf("%w: month distribution of %s: %w", source.ErrQuery, col.Key(), err)
	}
	defer rows.Close()

	var months []source.MonthCount
	for rows.Next() {
		var (
			month sql.NullString
			count int64
		)
		if err := rows.Scan(&month, &count); err != nil {
			return nil, fmt.Errorf("%w: scan month of %s: %w", source.ErrQuery, col.Key(), err)
		}
		// to_char yields NULL for infinity and -infinity
		if !month.Valid {
			i.logger.Debug("rows without a month skipped", zap.String("column", col.Key()), zap.Int64("rows", count))
			continue
		}
		months = append(months, source.MonthCount{Month: month.String, Rows: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: month distribution of %s: %w", source.ErrQuery, col.Key(), err)
	}
	return months, nil
}

// monthDistributionQuery builds the grouped count for one column. Names come
// from the catalog and are quoted; nothing user supplied reaches the SQL.
func monthDistributionQuery(col source.ColumnRef) string {
	column := pq.QuoteIdentifier(col.Column)
	table := pq.QuoteIdentifier(col.Schema) + "." + pq.QuoteIdentifier(col.Table)
	return "SELECT to_char(" + column + ", 'YYYY-MM') AS yyyy_mm, count(*) AS row_count" +
		" FROM " + table +
		" WHERE " + column + " IS NOT NULL" +
		" GROUP BY 1 ORDER BY 1"
}
