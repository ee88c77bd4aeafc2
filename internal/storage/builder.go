package storage

import (
	"fmt"
	"sort"
	"strings"
)

// SQL rendering shared by both drivers. Identifiers are always quoted and
// values are never interpolated into the SQL string — always passed as args.

// argList accumulates query arguments and emits dialect-correct placeholders.
type argList struct {
	dialect Dialect
	args    []any
}

func (a *argList) next(v any) string {
	a.args = append(a.args, v)
	if a.dialect == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", len(a.args))
}

// BuildSelect renders a QuerySpec into a SELECT statement.
func BuildSelect(spec QuerySpec, d Dialect) (string, []any) {
	al := &argList{dialect: d}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(columnList(spec.Columns))
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdent(spec.Table))

	writeWhere(&sb, al, spec, d)

	if spec.OrderBy != "" {
		dir := "ASC"
		if spec.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", QuoteIdent(spec.OrderBy), dir)
	}

	if spec.Take > 0 {
		fmt.Fprintf(&sb, " LIMIT %s", al.next(spec.Take))
	}
	if spec.Skip > 0 {
		fmt.Fprintf(&sb, " OFFSET %s", al.next(spec.Skip))
	}

	return sb.String(), al.args
}

// BuildCount renders a QuerySpec into a COUNT(*) statement, ignoring
// ordering and pagination.
func BuildCount(spec QuerySpec, d Dialect) (string, []any) {
	al := &argList{dialect: d}

	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(QuoteIdent(spec.Table))
	writeWhere(&sb, al, spec, d)

	return sb.String(), al.args
}

// BuildGet renders a point lookup by key equality.
func BuildGet(table string, key Row, columns []string, d Dialect) (string, []any) {
	al := &argList{dialect: d}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(columnList(columns))
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdent(table))
	sb.WriteString(" WHERE ")
	sb.WriteString(keyPredicate(al, key, d))
	sb.WriteString(" LIMIT ")
	sb.WriteString(al.next(1))

	return sb.String(), al.args
}

// BuildInsert renders an INSERT. With returning, a RETURNING * clause is
// appended (Postgres only — MySQL drivers read the row back instead).
func BuildInsert(table string, values Row, d Dialect, returning bool) (string, []any) {
	al := &argList{dialect: d}
	cols := sortedKeys(values)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
		placeholders[i] = al.next(values[c])
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
	if returning {
		sql += " RETURNING *"
	}
	return sql, al.args
}

// BuildUpdate renders an UPDATE of the rows matching key.
func BuildUpdate(table string, key, values Row, d Dialect, returning bool) (string, []any) {
	al := &argList{dialect: d}

	sets := make([]string, 0, len(values))
	for _, c := range sortedKeys(values) {
		sets = append(sets, fmt.Sprintf("%s = %s", QuoteIdent(c), al.next(values[c])))
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		QuoteIdent(table),
		strings.Join(sets, ", "),
		keyPredicate(al, key, d),
	)
	if returning {
		sql += " RETURNING *"
	}
	return sql, al.args
}

// BuildDelete renders a DELETE of the rows matching key.
func BuildDelete(table string, key Row, d Dialect) (string, []any) {
	al := &argList{dialect: d}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s",
		QuoteIdent(table),
		keyPredicate(al, key, d),
	)
	return sql, al.args
}

// writeWhere appends the WHERE clause: filters ANDed together, the search
// disjunction ANDed in as one parenthesised OR group.
func writeWhere(sb *strings.Builder, al *argList, spec QuerySpec, d Dialect) {
	var parts []string

	for _, c := range spec.Filters {
		parts = append(parts, renderCond(al, c, d))
	}

	if len(spec.Search) > 0 {
		or := make([]string, len(spec.Search))
		for i, c := range spec.Search {
			or[i] = renderCond(al, c, d)
		}
		parts = append(parts, "("+strings.Join(or, " OR ")+")")
	}

	if len(parts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}
}

func renderCond(al *argList, c Cond, d Dialect) string {
	ident := QuoteIdent(c.Field)
	switch c.Op {
	case OpContains:
		pattern := "%" + fmt.Sprint(c.Value) + "%"
		if d == DialectPostgres {
			return fmt.Sprintf("%s ILIKE %s", ident, al.next(pattern))
		}
		// MySQL string comparisons are case-insensitive under the default
		// collations, so a plain LIKE matches ILIKE semantics.
		return fmt.Sprintf("%s LIKE %s", ident, al.next(pattern))
	default:
		if c.Value == nil {
			return ident + " IS NULL"
		}
		return fmt.Sprintf("%s = %s", ident, al.next(c.Value))
	}
}

func keyPredicate(al *argList, key Row, d Dialect) string {
	parts := make([]string, 0, len(key))
	for _, c := range sortedKeys(key) {
		parts = append(parts, renderCond(al, Cond{Field: c, Op: OpEq, Value: key[c]}, d))
	}
	return strings.Join(parts, " AND ")
}

func columnList(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func sortedKeys(m Row) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// QuoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
// This safely handles reserved words and mixed-case names. MySQL accepts
// double-quoted identifiers under ANSI_QUOTES, which the driver enables.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
