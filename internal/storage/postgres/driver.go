// Package postgres implements storage.Store on PostgreSQL via pgxpool.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/incisive-io/tabled/internal/storage"
)

// Driver is a PostgreSQL implementation of storage.Store backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *storage.Config) (*Driver, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, &storage.Error{Code: storage.CodeConnectionFailed, Message: "invalid DSN", Cause: err}
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &storage.Error{Code: storage.CodeConnectionFailed, Message: "failed to create connection pool", Cause: err}
	}

	d := &Driver{pool: pool}

	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// --- storage.Store implementation ---

// Ping verifies the database is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (d *Driver) Close() {
	d.pool.Close()
}

// Dialect identifies the SQL flavor.
func (d *Driver) Dialect() storage.Dialect {
	return storage.DialectPostgres
}

// Select executes the spec and returns the matching rows.
func (d *Driver) Select(ctx context.Context, spec storage.QuerySpec) ([]storage.Row, error) {
	sql, args := storage.BuildSelect(spec, storage.DialectPostgres)
	return d.Query(ctx, sql, args...)
}

// Count returns the number of rows matching the spec's predicates.
func (d *Driver) Count(ctx context.Context, spec storage.QuerySpec) (int, error) {
	sql, args := storage.BuildCount(spec, storage.DialectPostgres)

	var n int64
	if err := d.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, mapError(err, "count failed")
	}
	return int(n), nil
}

// Get returns the single row matching key, or nil when absent.
func (d *Driver) Get(ctx context.Context, table string, key storage.Row, columns []string) (storage.Row, error) {
	sql, args := storage.BuildGet(table, key, columns, storage.DialectPostgres)

	rows, err := d.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Insert stores a new row and returns it as stored, defaults included.
func (d *Driver) Insert(ctx context.Context, table string, values storage.Row, pk []string) (storage.Row, error) {
	sql, args := storage.BuildInsert(table, values, storage.DialectPostgres, true)

	rows, err := d.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &storage.Error{Code: storage.CodeQueryFailed, Message: "insert returned no row"}
	}
	return rows[0], nil
}

// Update mutates the rows matching key and returns one stored row, or nil
// when no row matched.
func (d *Driver) Update(ctx context.Context, table string, key, values storage.Row) (storage.Row, error) {
	sql, args := storage.BuildUpdate(table, key, values, storage.DialectPostgres, true)

	rows, err := d.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Delete removes the rows matching key and returns the count removed.
func (d *Driver) Delete(ctx context.Context, table string, key storage.Row) (int, error) {
	sql, args := storage.BuildDelete(table, key, storage.DialectPostgres)

	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "delete failed")
	}
	return int(tag.RowsAffected()), nil
}

// Query executes a SQL statement and scans all rows into maps.
func (d *Driver) Query(ctx context.Context, sql string, args ...any) ([]storage.Row, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return storage.ScanRows(&pgxRows{rows: rows})
}

// --- pgx type wrapper ---

// pgxRows wraps pgx.Rows to satisfy storage.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, fd := range descs {
		cols[i] = fd.Name
	}
	return cols, nil
}
