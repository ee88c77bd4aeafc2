package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/incisive-io/tabled/internal/storage"
)

// PostgreSQL SQLSTATE error codes.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrNotNullViolation    = "23502"
	pgErrForeignKeyViolation = "23503"
	pgErrUniqueViolation     = "23505"
	pgErrCheckViolation      = "23514"
)

// detailKeyRe extracts column names from a unique-violation detail line:
// `Key (email)=(x@y.z) already exists.`
var detailKeyRe = regexp.MustCompile(`Key \(([^)]+)\)=`)

// mapError translates pgx / pgconn native errors into *storage.Error with
// the stable code vocabulary.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &storage.Error{Code: storage.CodeConnectionFailed, Message: msg, Cause: err}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &storage.Error{Code: storage.CodeQueryFailed, Message: msg, Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr, err)
	}

	// Connection-level errors (TLS, network, auth).
	return &storage.Error{Code: storage.CodeConnectionFailed, Message: msg, Cause: err}
}

func mapPgError(pgErr *pgconn.PgError, cause error) *storage.Error {
	message := pgErr.Message
	if pgErr.Detail != "" {
		message = fmt.Sprintf("%s: %s", pgErr.Message, pgErr.Detail)
	}

	switch pgErr.Code {
	case pgErrUniqueViolation:
		return &storage.Error{
			Code:    storage.CodeUniqueViolation,
			Message: message,
			Meta:    storage.Meta{Target: uniqueTarget(pgErr)},
			Cause:   cause,
		}
	case pgErrForeignKeyViolation:
		return &storage.Error{
			Code:    storage.CodeForeignKeyViolation,
			Message: message,
			Meta:    storage.Meta{FieldName: pgErr.ConstraintName},
			Cause:   cause,
		}
	case pgErrCheckViolation:
		return &storage.Error{
			Code:    storage.CodeCheckViolation,
			Message: message,
			Meta:    storage.Meta{FieldName: pgErr.ConstraintName},
			Cause:   cause,
		}
	case pgErrNotNullViolation:
		return &storage.Error{Code: storage.CodeInvalidValue, Message: message, Cause: cause}
	}

	// Class 22 — data exceptions (bad text representation, out of range, …)
	// are payload problems, not server faults.
	if strings.HasPrefix(pgErr.Code, "22") {
		return &storage.Error{Code: storage.CodeInvalidValue, Message: message, Cause: cause}
	}

	// Class 08 — connection exceptions.
	if strings.HasPrefix(pgErr.Code, "08") {
		return &storage.Error{Code: storage.CodeConnectionFailed, Message: message, Cause: cause}
	}

	return &storage.Error{Code: storage.CodeQueryFailed, Message: message, Cause: cause}
}

// uniqueTarget recovers the violating column list. The detail line names the
// columns directly; failing that, the constraint name is stripped of its
// table prefix and _key suffix.
func uniqueTarget(pgErr *pgconn.PgError) []string {
	if m := detailKeyRe.FindStringSubmatch(pgErr.Detail); m != nil {
		cols := strings.Split(m[1], ",")
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		return cols
	}

	name := pgErr.ConstraintName
	name = strings.TrimPrefix(name, pgErr.TableName+"_")
	name = strings.TrimSuffix(name, "_key")
	if name == "" {
		return nil
	}
	return []string{name}
}
