// Package coerce normalises loosely-typed JSON payload values into the
// logical type the catalog declares for each field. Coercion is lenient:
// a value that cannot be interpreted becomes nil (or keeps its original
// form for timestamps) rather than failing the request — storage-level
// constraints have the final word.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/incisive-io/tabled/internal/catalog"
)

// Payload coerces every known field of payload in place of a new map.
// Keys that are not declared on the table pass through untouched.
func Payload(desc *catalog.TableDescriptor, payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for name, v := range payload {
		if field, ok := desc.Field(name); ok {
			out[name] = Value(field, v)
		} else {
			out[name] = v
		}
	}
	return out
}

// Value coerces a single value to the field's logical type. Coercion is
// idempotent: applying it to an already-coerced value returns the value
// unchanged.
func Value(field *catalog.FieldDescriptor, v any) any {
	// Booleans never become nil: anything that is not an affirmative
	// true collapses to false, including null and empty string.
	if field.Type == catalog.TypeBoolean {
		return toBool(v)
	}

	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && s == "" {
		return nil
	}

	switch field.Type {
	case catalog.TypeInt32, catalog.TypeInt64:
		return toInt(v)
	case catalog.TypeFloat:
		return toFloat(v)
	case catalog.TypeString:
		return toString(v)
	case catalog.TypeTimestamp:
		return toTimestamp(v)
	default:
		// json and unknown types pass through.
		return v
	}
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		// Exact match only: "TRUE" and " true " are false.
		return t == "true"
	default:
		return false
	}
}

func toInt(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(math.Trunc(t))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil
		}
		return n
	default:
		return nil
	}
}

func toFloat(v any) any {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

func toString(v any) any {
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return nil
	}
	return s
}

func toTimestamp(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts
		}
		if ts, err := time.Parse("2006-01-02", s); err == nil {
			return ts
		}
		// Unparseable: keep the original value so storage reports the
		// failure with its own message.
		return v
	default:
		return v
	}
}
