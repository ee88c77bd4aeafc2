package storage

// Rows abstracts a driver result set so row scanning lives in one place.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}

// ScanRows reads all rows from the result set into maps keyed by column
// name. The returned slice is always non-nil (empty on zero rows), and the
// Rows is always closed.
func ScanRows(rows Rows) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &Error{Code: CodeQueryFailed, Message: "failed to read column names", Cause: err}
	}

	result := make([]Row, 0)

	for rows.Next() {
		// Scan targets are *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, &Error{Code: CodeQueryFailed, Message: "failed to scan row", Cause: err}
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalize(dest[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, &Error{Code: CodeQueryFailed, Message: "error during row iteration", Cause: err}
	}

	return result, nil
}

// normalize converts driver-specific scan results into plain Go values.
// database/sql hands text columns back as []byte.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
