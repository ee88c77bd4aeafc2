// Package translate converts storage constraint violations into the
// user-facing errors the API returns. It consumes the stable error codes
// and metadata the storage drivers produce, falling back to message
// pattern matching when metadata is absent.
package translate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/incisive-io/tabled/internal/errs"
	"github.com/incisive-io/tabled/internal/storage"
)

var (
	// fkConstraintRe recovers the referencing column from a conventional
	// foreign-key constraint name: orders_lab_id_fkey -> lab_id.
	fkConstraintRe = regexp.MustCompile(`_([a-z0-9_]+?_id)_fkey$`)

	// fkTableRe recovers the referencing table from the same convention:
	// orders_lab_id_fkey -> orders.
	fkTableRe = regexp.MustCompile(`^(.*)_[^_]+_fkey$`)

	// checkConstraintRe recovers the checked column from a conventional
	// check constraint name: labs_partner_model_check -> partner_model.
	checkConstraintRe = regexp.MustCompile(`^[^_]+_(.+)_check$`)

	// checkMessageRe extracts the constraint name from a raw
	// check-violation message when metadata is missing.
	checkMessageRe = regexp.MustCompile(`violates check constraint "([^"]+)"|Check constraint '([^']+)'`)
)

// Write converts a storage error from an insert or update into the
// user-facing error. Errors that are not constraint violations come back
// unchanged.
func Write(err error, payload map[string]any) error {
	serr, ok := storageError(err)
	if !ok {
		return err
	}

	switch serr.Code {
	case storage.CodeUniqueViolation:
		return uniqueConflict(serr, payload)
	case storage.CodeForeignKeyViolation:
		return foreignKeyBadRequest(serr)
	case storage.CodeCheckViolation:
		return checkBadRequest(serr)
	case storage.CodeInvalidValue:
		return errs.BadRequest("%s", lastLine(serr.Message))
	}

	if strings.Contains(serr.Message, "foreign key constraint") {
		return foreignKeyBadRequest(serr)
	}
	if checkMessageRe.MatchString(serr.Message) {
		return checkBadRequest(serr)
	}
	return err
}

// Delete converts a storage error from a delete into the user-facing
// error. A foreign-key violation here means the row is still referenced.
func Delete(err error) error {
	serr, ok := storageError(err)
	if !ok {
		return err
	}
	if serr.Code != storage.CodeForeignKeyViolation &&
		!strings.Contains(serr.Message, "foreign key constraint") {
		return err
	}

	related := "other records"
	if m := fkTableRe.FindStringSubmatch(serr.Meta.FieldName); m != nil && m[1] != "" {
		related = m[1]
	}
	return errs.BadRequest("Cannot delete this record. It is referenced by %s.", related)
}

func uniqueConflict(serr *storage.Error, payload map[string]any) error {
	fields := serr.Meta.Target
	if len(fields) == 0 {
		return errs.Conflict("A record with these values already exists")
	}

	values := make([]string, 0, len(fields))
	for _, f := range fields {
		if v, ok := payload[f]; ok && v != nil {
			values = append(values, fmt.Sprint(v))
		}
	}
	what := strings.Join(fields, ", ")
	if len(values) > 0 {
		return errs.Conflict("'%s' for %s already exists", strings.Join(values, ", "), what).
			WithFields(fields...)
	}
	return errs.Conflict("A record with this %s already exists", what).WithFields(fields...)
}

func foreignKeyBadRequest(serr *storage.Error) error {
	field := serr.Meta.FieldName
	if m := fkConstraintRe.FindStringSubmatch(field); m != nil {
		field = m[1]
	}
	if field == "" {
		return errs.BadRequest("Invalid reference. The referenced record does not exist.")
	}
	return errs.BadRequest("Invalid value for '%s'. The referenced record does not exist.", field).
		WithFields(field)
}

func checkBadRequest(serr *storage.Error) error {
	name := serr.Meta.FieldName
	if name == "" {
		if m := checkMessageRe.FindStringSubmatch(serr.Message); m != nil {
			if m[1] != "" {
				name = m[1]
			} else {
				name = m[2]
			}
		}
	}

	field := name
	if m := checkConstraintRe.FindStringSubmatch(name); m != nil {
		field = m[1]
	}
	if field == "" {
		return errs.BadRequest("Invalid value. Please check allowed values.")
	}
	return errs.BadRequest("Invalid value for '%s'. Please check allowed values.", field).
		WithFields(field)
}

func storageError(err error) (*storage.Error, bool) {
	var serr *storage.Error
	ok := errors.As(err, &serr)
	return serr, ok
}

// lastLine returns the last non-blank line of a multi-line driver message,
// trimmed. Driver messages put the actionable detail last.
func lastLine(msg string) string {
	lines := strings.Split(msg, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return strings.TrimSpace(msg)
}
