// Package storage defines the driver-agnostic contract the table engine
// executes against. All layers above this package talk only to Store —
// they never import the postgres or mysql packages directly.
package storage

import (
	"context"
	"fmt"
)

// Dialect controls which SQL placeholder and matching style a driver uses.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and ILIKE.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and collation-insensitive LIKE.
	DialectMySQL
)

// Row is one result row keyed by column name.
type Row = map[string]any

// Op is a comparison operator in a query predicate.
type Op int

const (
	// OpEq is exact equality; a nil value renders as IS NULL.
	OpEq Op = iota

	// OpContains is a case-insensitive substring match on a string column.
	OpContains
)

// Cond is one predicate of a query.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// QuerySpec is a validated filter/sort/pagination specification.
// Filters combine by conjunction; Search is a disjunction group ANDed with
// the filters. Built fresh per request, never shared.
type QuerySpec struct {
	Table   string
	Columns []string // empty means all columns
	Filters []Cond
	Search  []Cond
	OrderBy string // empty means no ordering
	Desc    bool
	Skip    int
	Take    int // 0 means no limit
}

// Store executes structured queries against one database. Implementations
// are safe for concurrent use. Constraint failures are raised as *Error.
type Store interface {
	// Select executes the spec and returns the matching rows.
	Select(ctx context.Context, spec QuerySpec) ([]Row, error)

	// Count returns the number of rows matching the spec's predicates,
	// ignoring ordering and pagination.
	Count(ctx context.Context, spec QuerySpec) (int, error)

	// Get returns the single row matching key, or nil when absent.
	// An empty columns slice selects all columns.
	Get(ctx context.Context, table string, key Row, columns []string) (Row, error)

	// Insert stores values as a new row and returns the stored row.
	// pk names the primary-key columns, used to read back the stored row
	// on engines without an INSERT … RETURNING form.
	Insert(ctx context.Context, table string, values Row, pk []string) (Row, error)

	// Update mutates the rows matching key and returns one stored row.
	Update(ctx context.Context, table string, key, values Row) (Row, error)

	// Delete removes all rows matching key and returns the count removed.
	Delete(ctx context.Context, table string, key Row) (int, error)

	// Query executes a fixed parameterized SQL template. Reserved for the
	// named aggregation operations whose row shape the generic path cannot
	// represent.
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)

	// Dialect identifies the SQL flavor for template selection.
	Dialect() Dialect

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close()
}

// Stable constraint codes. Drivers normalise their native error codes into
// this vocabulary; the constraint translator consumes it.
const (
	CodeUniqueViolation     = "unique_violation"
	CodeForeignKeyViolation = "foreign_key_violation"
	CodeCheckViolation      = "check_violation"
	CodeInvalidValue        = "invalid_value"
	CodeQueryFailed         = "query_failed"
	CodeConnectionFailed    = "connection_failed"
)

// Meta carries the constraint details a driver could extract.
type Meta struct {
	// Target lists the violating column names for a unique violation.
	Target []string

	// FieldName is the constraint identifier for foreign-key and check
	// violations, e.g. "lab_product_mapping_incisive_product_id_fkey".
	FieldName string
}

// Error is the storage failure shape: a stable code, the backend's free-text
// message, and optional constraint metadata.
type Error struct {
	Code    string
	Message string
	Meta    Meta
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("storage [%s]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
