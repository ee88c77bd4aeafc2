package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		spec     QuerySpec
		dialect  Dialect
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "all columns no predicates",
			spec:     QuerySpec{Table: "users"},
			dialect:  DialectPostgres,
			wantSQL:  `SELECT * FROM "users"`,
			wantArgs: nil,
		},
		{
			name: "projection with order and paging",
			spec: QuerySpec{
				Table:   "users",
				Columns: []string{"id", "email"},
				OrderBy: "created_at",
				Desc:    true,
				Skip:    20,
				Take:    10,
			},
			dialect:  DialectPostgres,
			wantSQL:  `SELECT "id", "email" FROM "users" ORDER BY "created_at" DESC LIMIT $1 OFFSET $2`,
			wantArgs: []any{10, 20},
		},
		{
			name: "filters are conjoined",
			spec: QuerySpec{
				Table: "users",
				Filters: []Cond{
					{Field: "role", Op: OpEq, Value: "ADMIN"},
					{Field: "is_active", Op: OpEq, Value: true},
				},
			},
			dialect:  DialectPostgres,
			wantSQL:  `SELECT * FROM "users" WHERE "role" = $1 AND "is_active" = $2`,
			wantArgs: []any{"ADMIN", true},
		},
		{
			name: "nil filter renders IS NULL without an argument",
			spec: QuerySpec{
				Table:   "users",
				Filters: []Cond{{Field: "deleted_at", Op: OpEq, Value: nil}},
			},
			dialect:  DialectPostgres,
			wantSQL:  `SELECT * FROM "users" WHERE "deleted_at" IS NULL`,
			wantArgs: nil,
		},
		{
			name: "search group is parenthesised and ANDed with filters",
			spec: QuerySpec{
				Table:   "users",
				Filters: []Cond{{Field: "role", Op: OpEq, Value: "USER"}},
				Search: []Cond{
					{Field: "email", Op: OpContains, Value: "smith"},
					{Field: "name", Op: OpContains, Value: "smith"},
				},
			},
			dialect:  DialectPostgres,
			wantSQL:  `SELECT * FROM "users" WHERE "role" = $1 AND ("email" ILIKE $2 OR "name" ILIKE $3)`,
			wantArgs: []any{"USER", "%smith%", "%smith%"},
		},
		{
			name: "mysql placeholders and LIKE",
			spec: QuerySpec{
				Table:  "users",
				Search: []Cond{{Field: "email", Op: OpContains, Value: "smith"}},
				Take:   5,
			},
			dialect:  DialectMySQL,
			wantSQL:  `SELECT * FROM "users" WHERE ("email" LIKE ?) LIMIT ?`,
			wantArgs: []any{"%smith%", 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := BuildSelect(tt.spec, tt.dialect)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildCount(t *testing.T) {
	sql, args := BuildCount(QuerySpec{
		Table:   "users",
		Filters: []Cond{{Field: "role", Op: OpEq, Value: "ADMIN"}},
		OrderBy: "created_at",
		Skip:    20,
		Take:    10,
	}, DialectPostgres)

	assert.Equal(t, `SELECT COUNT(*) FROM "users" WHERE "role" = $1`, sql)
	assert.Equal(t, []any{"ADMIN"}, args)
}

func TestBuildGet(t *testing.T) {
	sql, args := BuildGet("users", Row{"id": "abc"}, []string{"id", "email"}, DialectPostgres)
	assert.Equal(t, `SELECT "id", "email" FROM "users" WHERE "id" = $1 LIMIT $2`, sql)
	assert.Equal(t, []any{"abc", 1}, args)
}

func TestBuildGet_CompositeKeyDeterministicOrder(t *testing.T) {
	key := Row{"lab_id": int64(4), "fee_schedule_name": "A", "lab_product_id": "p1"}
	sql, args := BuildGet("product_lab_rev_share", key, nil, DialectMySQL)

	// Key columns render in sorted order regardless of map iteration.
	assert.Equal(t,
		`SELECT * FROM "product_lab_rev_share" WHERE "fee_schedule_name" = ? AND "lab_id" = ? AND "lab_product_id" = ? LIMIT ?`,
		sql)
	assert.Equal(t, []any{"A", int64(4), "p1", 1}, args)
}

func TestBuildInsert(t *testing.T) {
	sql, args := BuildInsert("users", Row{"email": "x@y.z", "role": "USER"}, DialectPostgres, true)
	assert.Equal(t, `INSERT INTO "users" ("email", "role") VALUES ($1, $2) RETURNING *`, sql)
	assert.Equal(t, []any{"x@y.z", "USER"}, args)

	sql, _ = BuildInsert("users", Row{"email": "x@y.z"}, DialectMySQL, false)
	assert.Equal(t, `INSERT INTO "users" ("email") VALUES (?)`, sql)
}

func TestBuildUpdate(t *testing.T) {
	sql, args := BuildUpdate("users", Row{"id": "u1"}, Row{"email": "new@y.z"}, DialectPostgres, true)
	assert.Equal(t, `UPDATE "users" SET "email" = $1 WHERE "id" = $2 RETURNING *`, sql)
	assert.Equal(t, []any{"new@y.z", "u1"}, args)
}

func TestBuildDelete(t *testing.T) {
	sql, args := BuildDelete("users", Row{"id": "u1"}, DialectMySQL)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = ?`, sql)
	assert.Equal(t, []any{"u1"}, args)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdent("users"))
	assert.Equal(t, `"weird""name"`, QuoteIdent(`weird"name`))
}
