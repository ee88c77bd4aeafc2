// Package mysql implements storage.Store on MySQL via database/sql and
// go-sql-driver.
package mysql

import (
	"context"
	"database/sql"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/incisive-io/tabled/internal/storage"
)

// Driver is a MySQL implementation of storage.Store backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sql.DB
}

// New opens a MySQL connection pool using the provided Config and returns a
// Driver. It calls Ping to validate the connection before returning.
//
// The session runs with ANSI_QUOTES so the shared query builder's
// double-quoted identifiers work on both engines.
func New(ctx context.Context, cfg *storage.Config) (*Driver, error) {
	dsn, err := formatDSN(cfg.DSN)
	if err != nil {
		return nil, &storage.Error{Code: storage.CodeConnectionFailed, Message: "invalid DSN", Cause: err}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, &storage.Error{Code: storage.CodeConnectionFailed, Message: "failed to open connection pool", Cause: err}
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := &Driver{db: db}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

// formatDSN normalizes the caller's DSN for the session the query builder
// expects. ANSI_QUOTES is appended to the server's sql_mode rather than
// replacing it, so strict modes like STRICT_TRANS_TABLES stay active and
// invalid values keep raising errors instead of truncating with warnings.
func formatDSN(dsn string) (string, error) {
	dsnCfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	if dsnCfg.Params == nil {
		dsnCfg.Params = map[string]string{}
	}
	dsnCfg.Params["sql_mode"] = "CONCAT(@@sql_mode,',ANSI_QUOTES')"
	dsnCfg.ParseTime = true
	return dsnCfg.FormatDSN(), nil
}

// --- storage.Store implementation ---

// Ping verifies the database is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool.
func (d *Driver) Close() {
	_ = d.db.Close()
}

// Dialect identifies the SQL flavor.
func (d *Driver) Dialect() storage.Dialect {
	return storage.DialectMySQL
}

// Select executes the spec and returns the matching rows.
func (d *Driver) Select(ctx context.Context, spec storage.QuerySpec) ([]storage.Row, error) {
	sqlText, args := storage.BuildSelect(spec, storage.DialectMySQL)
	return d.Query(ctx, sqlText, args...)
}

// Count returns the number of rows matching the spec's predicates.
func (d *Driver) Count(ctx context.Context, spec storage.QuerySpec) (int, error) {
	sqlText, args := storage.BuildCount(spec, storage.DialectMySQL)

	var n int64
	if err := d.db.QueryRowContext(ctx, sqlText, args...).Scan(&n); err != nil {
		return 0, mapError(err, "count failed")
	}
	return int(n), nil
}

// Get returns the single row matching key, or nil when absent.
func (d *Driver) Get(ctx context.Context, table string, key storage.Row, columns []string) (storage.Row, error) {
	sqlText, args := storage.BuildGet(table, key, columns, storage.DialectMySQL)

	rows, err := d.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Insert stores a new row. MySQL has no INSERT … RETURNING, so the stored
// row is read back by primary key; a generated key is recovered from
// LastInsertId when the payload did not carry it.
func (d *Driver) Insert(ctx context.Context, table string, values storage.Row, pk []string) (storage.Row, error) {
	sqlText, args := storage.BuildInsert(table, values, storage.DialectMySQL, false)

	res, err := d.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return nil, mapError(err, "insert failed")
	}

	key := make(storage.Row, len(pk))
	complete := len(pk) > 0
	for _, col := range pk {
		v, ok := values[col]
		if !ok || v == nil {
			complete = false
			continue
		}
		key[col] = v
	}

	if !complete && len(pk) == 1 {
		if id, err := res.LastInsertId(); err == nil && id > 0 {
			key[pk[0]] = id
			complete = true
		}
	}

	if complete {
		row, err := d.Get(ctx, table, key, nil)
		if err == nil && row != nil {
			return row, nil
		}
	}

	// Without an addressable key the submitted values are the best
	// representation of the stored row.
	row := make(storage.Row, len(values))
	for k, v := range values {
		row[k] = v
	}
	return row, nil
}

// Update mutates the rows matching key and returns one stored row, or nil
// when no row matched.
func (d *Driver) Update(ctx context.Context, table string, key, values storage.Row) (storage.Row, error) {
	sqlText, args := storage.BuildUpdate(table, key, values, storage.DialectMySQL, false)

	res, err := d.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return nil, mapError(err, "update failed")
	}
	// MySQL reports 0 affected rows for no-op updates, so matched rows are
	// detected by reading back rather than by RowsAffected.
	_ = res

	return d.Get(ctx, table, key, nil)
}

// Delete removes the rows matching key and returns the count removed.
func (d *Driver) Delete(ctx context.Context, table string, key storage.Row) (int, error) {
	sqlText, args := storage.BuildDelete(table, key, storage.DialectMySQL)

	res, err := d.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, mapError(err, "delete failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "delete failed")
	}
	return int(n), nil
}

// Query executes a SQL statement and scans all rows into maps.
func (d *Driver) Query(ctx context.Context, sqlText string, args ...any) ([]storage.Row, error) {
	rows, err := d.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return storage.ScanRows(&sqlRows{rows: rows})
}

// --- database/sql type wrapper ---

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }
func (r *sqlRows) Err() error                 { return r.rows.Err() }
