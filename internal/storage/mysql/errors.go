package mysql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/incisive-io/tabled/internal/storage"
)

// MySQL error numbers.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDuplicateEntry  = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
	errBadNullColumn   = 1048
	errDataOutOfRange  = 1264
	errIncorrectValue  = 1366
	errCheckViolated   = 3819
	errAccessDenied    = 1045
	errUnknownDatabase = 1049
)

// dupKeyRe extracts the key name from a duplicate-entry message:
// `Duplicate entry 'x@y.z' for key 'users.users_email_key'`
var dupKeyRe = regexp.MustCompile(`for key '([^']+)'`)

// fkColumnRe extracts the column from a foreign-key message:
// `... FOREIGN KEY (`lab_id`) REFERENCES ...`
var fkColumnRe = regexp.MustCompile("FOREIGN KEY \\(`([^`]+)`\\)")

// checkNameRe extracts the constraint from a check-violation message:
// `Check constraint 'labs_partner_model_check' is violated.`
var checkNameRe = regexp.MustCompile(`Check constraint '([^']+)'`)

// mapError translates go-sql-driver errors into *storage.Error with the
// stable code vocabulary.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &storage.Error{Code: storage.CodeConnectionFailed, Message: msg, Cause: err}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &storage.Error{Code: storage.CodeQueryFailed, Message: msg, Cause: err}
	}

	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return mapMySQLError(myErr, err)
	}

	return &storage.Error{Code: storage.CodeConnectionFailed, Message: msg, Cause: err}
}

func mapMySQLError(myErr *gomysql.MySQLError, cause error) *storage.Error {
	switch myErr.Number {
	case errDuplicateEntry:
		return &storage.Error{
			Code:    storage.CodeUniqueViolation,
			Message: myErr.Message,
			Meta:    storage.Meta{Target: duplicateTarget(myErr.Message)},
			Cause:   cause,
		}
	case errNoReferencedRow, errRowIsReferenced:
		meta := storage.Meta{}
		if m := fkColumnRe.FindStringSubmatch(myErr.Message); m != nil {
			meta.FieldName = m[1]
		}
		return &storage.Error{
			Code:    storage.CodeForeignKeyViolation,
			Message: myErr.Message,
			Meta:    meta,
			Cause:   cause,
		}
	case errCheckViolated:
		meta := storage.Meta{}
		if m := checkNameRe.FindStringSubmatch(myErr.Message); m != nil {
			meta.FieldName = m[1]
		}
		return &storage.Error{
			Code:    storage.CodeCheckViolation,
			Message: myErr.Message,
			Meta:    meta,
			Cause:   cause,
		}
	case errBadNullColumn, errDataOutOfRange, errIncorrectValue:
		return &storage.Error{Code: storage.CodeInvalidValue, Message: myErr.Message, Cause: cause}
	case errAccessDenied, errUnknownDatabase:
		return &storage.Error{Code: storage.CodeConnectionFailed, Message: myErr.Message, Cause: cause}
	default:
		return &storage.Error{Code: storage.CodeQueryFailed, Message: myErr.Message, Cause: cause}
	}
}

// duplicateTarget recovers the violating column from the duplicate-entry
// message. MySQL reports the key name, usually table.constraint; the table
// prefix and _key suffix are stripped to leave the column list.
func duplicateTarget(message string) []string {
	m := dupKeyRe.FindStringSubmatch(message)
	if m == nil {
		return nil
	}
	name := m[1]
	if i := strings.LastIndex(name, "."); i >= 0 {
		table := name[:i]
		name = name[i+1:]
		name = strings.TrimPrefix(name, table+"_")
	}
	name = strings.TrimSuffix(name, "_key")
	if name == "" || name == "PRIMARY" {
		return nil
	}
	return []string{name}
}
