package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/normalize"
)

// SQLWarehouse implements domain.Warehouse using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLWarehouse struct {
	db     *sql.DB
	driver string
}

// NewSQL opens a SQL warehouse replica.
func NewSQL(cfg domain.WarehouseConfig) (*SQLWarehouse, error) {
	db, err := openReplica(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSec) * time.Second)
	}

	w := &SQLWarehouse{
		db:     db,
		driver: cfg.Driver,
	}

	if cfg.InitSchema {
		if err := w.migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create local schema: %w", err)
		}
	}

	return w, nil
}

func (w *SQLWarehouse) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := w.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Query runs a read query and returns normalized rows.
func (w *SQLWarehouse) Query(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := w.db.QueryContext(ctx, w.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	var raw []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col.Name()] = sqlValue(col.DatabaseTypeName(), values[i])
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return normalize.Records(raw), nil
}

// Exec runs a write statement. Used to seed local replicas.
func (w *SQLWarehouse) Exec(ctx context.Context, stmt string, args ...any) error {
	_, err := w.db.ExecContext(ctx, w.rebind(stmt), args...)
	return err
}

// Ping checks database connectivity.
func (w *SQLWarehouse) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Close closes the database connection.
func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}

// sqlValue decodes driver values that arrive as raw bytes.
func sqlValue(dbType string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	switch strings.ToUpper(dbType) {
	case "NUMERIC", "DECIMAL":
		if d, err := decimal.NewFromString(string(b)); err == nil {
			return d
		}
	}
	return string(b)
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (w *SQLWarehouse) rebind(query string) string {
	if w.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
