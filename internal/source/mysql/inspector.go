package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/data-census/internal/config"
	"github.com/alexanderjulianmartinez/data-census/internal/source"
)

const timeColumnsQuery = `
	SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE
	FROM INFORMATION_SCHEMA.COLUMNS c
	JOIN INFORMATION_SCHEMA.TABLES t
	  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA
	 AND t.TABLE_NAME = c.TABLE_NAME
	WHERE c.TABLE_SCHEMA = ?
	  AND t.TABLE_TYPE = 'BASE TABLE'
	  AND c.DATA_TYPE IN ('date', 'datetime', 'timestamp')
	ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
`

// TABLE_ROWS is only an estimate for InnoDB, so row counts are taken live
// per table after this query.
const tableCatalogQuery = `
	SELECT t.TABLE_SCHEMA,
	       t.TABLE_NAME,
	       (SELECT COUNT(*)
	        FROM INFORMATION_SCHEMA.COLUMNS c
	        WHERE c.TABLE_SCHEMA = t.TABLE_SCHEMA
	          AND c.TABLE_NAME = t.TABLE_NAME) AS COLUMN_COUNT,
	       COALESCE(t.DATA_LENGTH, 0) AS BYTE_SIZE
	FROM INFORMATION_SCHEMA.TABLES t
	WHERE t.TABLE_SCHEMA = ?
	  AND t.TABLE_TYPE = 'BASE TABLE'
	ORDER BY BYTE_SIZE DESC, t.TABLE_NAME
`

type Inspector struct {
	db      *sql.DB
	schema  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewInspector(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (*Inspector, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: open mysql: %w", source.ErrConnection, err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: mysql ping failed: %w", source.ErrConnection, err)
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
		logger:  logger.With(zap.String("driver", "mysql"), zap.String("schema", schema)),
	}
}

func (i *Inspector) Name() string {
	return "mysql"
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
	return cols, nil
}

func (i *Inspector) TableMetrics(ctx context.Context) ([]source.TableDescriptor, error) {
	tables, err := i.fetchTableCatalog(ctx)
	if err != nil {
		return nil, err
	}

	for idx := range tables {
		count, err := i.FetchRowCount(ctx, tables[idx].Name)
		if err != nil {
			return nil, err
		}
		tables[idx].RowCount = count
	}
	i.logger.Debug("table metrics collected", zap.Int("tables", len(tables)))
	return tables, nil
}

func (i *Inspector) fetchTableCatalog(ctx context.Context) ([]source.TableDescriptor, error) {
	ctx, cancel := i.queryContext(ctx)
	defer cancel()

	rows, err := i.db.QueryContext(ctx, tableCatalogQuery, i.schema)
	if err != nil {
		return nil, fmt.Errorf("%w: table catalog: %w", source.ErrQuery, err)
	}
	defer rows.Close()

	var tables []source.TableDescriptor
	for rows.Next() {
		var t source.TableDescriptor
		if err := rows.Scan(&t.Schema, &t.Name, &t.ColumnCount, &t.ByteSize); err != nil {
			return nil, fmt.Errorf("%w: scan table catalog: %w", source.ErrQuery, err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: table catalog: %w", source.ErrQuery, err)
	}
	return tables, nil
}

// FetchRowCount runs a live COUNT(*) against one table of the schema.
func (i *Inspector) FetchRowCount(ctx context.Context, tableName string) (int64, error) {
	ctx, cancel := i.queryContext(ctx)
	defer cancel()

	var count int64
	query := "SELECT COUNT(*) FROM " + quoteIdent(i.schema) + "." + quoteIdent(tableName)
	if err := i.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count rows of %s: %w", source.ErrQuery, tableName, err)
	}
	return count, nil
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
		// DATE_FORMAT yields NULL for zero or invalid dates
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

func monthDistributionQuery(col source.ColumnRef) string {
	column := quoteIdent(col.Column)
	return "SELECT DATE_FORMAT(" + column + ", '%Y-%m') AS yyyy_mm, COUNT(*) AS row_count" +
		" FROM " + quoteIdent(col.Schema) + "." + quoteIdent(col.Table) +
		" WHERE " + column + " IS NOT NULL" +
		" GROUP BY yyyy_mm ORDER BY yyyy_mm"
}

// quoteIdent wraps a catalog name in backticks, doubling embedded backticks.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
