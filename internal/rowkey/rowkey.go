// Package rowkey converts between URL row identifiers and primary-key
// value maps. Single-column keys travel as the bare value; composite keys
// travel as a JSON object keyed by column name.
package rowkey

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/incisive-io/tabled/internal/catalog"
	"github.com/incisive-io/tabled/internal/errs"
)

// Decode parses the raw identifier from the URL into a primary-key value
// map for desc. A malformed or incomplete identifier is reported as
// NotFound so it is indistinguishable from an identifier that matches
// nothing.
func Decode(desc *catalog.TableDescriptor, rawID string) (map[string]any, error) {
	if len(desc.PrimaryKey) == 0 {
		return nil, errs.NotFound("Table '%s' has no primary key", desc.Name)
	}

	if !desc.HasCompositeKey() {
		col := desc.PrimaryKey[0]
		field, _ := desc.Field(col)
		v, err := convert(field, rawID)
		if err != nil {
			return nil, errs.NotFound("Record with id '%s' not found in table '%s'", rawID, desc.Name)
		}
		return map[string]any{col: v}, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(rawID), &parsed); err != nil {
		return nil, errs.NotFound(
			"Invalid composite key format for table '%s'. Expected JSON object with fields: %s",
			desc.Name, strings.Join(desc.PrimaryKey, ", "))
	}

	key := make(map[string]any, len(desc.PrimaryKey))
	var missing []string
	for _, col := range desc.PrimaryKey {
		raw, ok := parsed[col]
		if !ok || raw == nil {
			missing = append(missing, col)
			continue
		}
		field, _ := desc.Field(col)
		v, err := convert(field, fmt.Sprint(raw))
		if err != nil {
			missing = append(missing, col)
			continue
		}
		key[col] = v
	}
	if len(missing) > 0 {
		return nil, errs.NotFound(
			"Composite key for table '%s' is missing fields: %s",
			desc.Name, strings.Join(missing, ", "))
	}
	return key, nil
}

// Encode renders a stored row's identity in the form Decode accepts: the
// bare value for single-column keys, a JSON object for composite ones.
func Encode(desc *catalog.TableDescriptor, row map[string]any) string {
	if len(desc.PrimaryKey) == 0 {
		return ""
	}
	if !desc.HasCompositeKey() {
		return fmt.Sprint(row[desc.PrimaryKey[0]])
	}

	key := make(map[string]any, len(desc.PrimaryKey))
	for _, col := range desc.PrimaryKey {
		key[col] = row[col]
	}
	b, err := json.Marshal(key)
	if err != nil {
		return ""
	}
	return string(b)
}

// convert parses a key segment into the field's logical type. Unknown
// fields keep the string form.
func convert(field *catalog.FieldDescriptor, raw string) (any, error) {
	if field == nil {
		return raw, nil
	}
	switch field.Type {
	case catalog.TypeInt32, catalog.TypeInt64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case catalog.TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return raw, nil
	}
}
