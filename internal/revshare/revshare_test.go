package revshare

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incisive-io/tabled/internal/audit"
	"github.com/incisive-io/tabled/internal/errs"
	"github.com/incisive-io/tabled/internal/storage"
)

// fakeStore implements storage.Store over in-memory relation rows.
type fakeStore struct {
	dialect   storage.Dialect
	schedules []string
	rows      []storage.Row // product_lab_rev_share contents

	inserts []storage.Row
	updates []storage.Row
	deletes []storage.Row

	queryFn func(sql string, args ...any) ([]storage.Row, error)
}

func (f *fakeStore) Select(_ context.Context, spec storage.QuerySpec) ([]storage.Row, error) {
	if spec.Table == "fee_schedules" {
		out := make([]storage.Row, 0, len(f.schedules))
		for _, s := range f.schedules {
			out = append(out, storage.Row{"schedule_name": s})
		}
		return out, nil
	}
	return []storage.Row{}, nil
}

func (f *fakeStore) Count(_ context.Context, spec storage.QuerySpec) (int, error) {
	n := 0
	for _, row := range f.rows {
		if matches(row, spec.Filters) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Get(_ context.Context, _ string, key storage.Row, _ []string) (storage.Row, error) {
	for _, row := range f.rows {
		if rowMatchesKey(row, key) {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Insert(_ context.Context, _ string, values storage.Row, _ []string) (storage.Row, error) {
	f.inserts = append(f.inserts, values)
	f.rows = append(f.rows, values)
	return values, nil
}

func (f *fakeStore) Update(_ context.Context, _ string, key, values storage.Row) (storage.Row, error) {
	f.updates = append(f.updates, values)
	for _, row := range f.rows {
		if rowMatchesKey(row, key) {
			for k, v := range values {
				row[k] = v
			}
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, key storage.Row) (int, error) {
	f.deletes = append(f.deletes, key)
	var kept []storage.Row
	n := 0
	for _, row := range f.rows {
		if rowMatchesKey(row, key) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeStore) Query(_ context.Context, sql string, args ...any) ([]storage.Row, error) {
	if f.queryFn != nil {
		return f.queryFn(sql, args...)
	}
	return []storage.Row{}, nil
}

func (f *fakeStore) Dialect() storage.Dialect   { return f.dialect }
func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close()                     {}

func matches(row storage.Row, filters []storage.Cond) bool {
	for _, c := range filters {
		if row[c.Field] != c.Value {
			return false
		}
	}
	return true
}

func rowMatchesKey(row, key storage.Row) bool {
	for k, v := range key {
		if row[k] != v {
			return false
		}
	}
	return true
}

func newExtension(store *fakeStore) *Extension {
	return New(store, audit.NopSink{})
}

func TestSeedCreate(t *testing.T) {
	store := &fakeStore{schedules: []string{"Standard", "Premium", "NF"}}
	ext := newExtension(store)

	count, err := ext.SeedCreate(context.Background(), map[string]any{
		"lab_id":         float64(4),
		"lab_product_id": "crown-x",
	}, "actor")
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	require.Len(t, store.inserts, 3)
	for _, row := range store.inserts {
		assert.Equal(t, int64(4), row["lab_id"])
		assert.Equal(t, "crown-x", row["lab_product_id"])
	}
}

func TestSeedCreate_Validation(t *testing.T) {
	ext := newExtension(&fakeStore{schedules: []string{"Standard"}})

	_, err := ext.SeedCreate(context.Background(), map[string]any{"lab_product_id": "p"}, "actor")
	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "lab_id is required")

	_, err = ext.SeedCreate(context.Background(), map[string]any{"lab_id": 1}, "actor")
	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "lab_product_id is required")
}

func TestSeedCreate_NoSchedules(t *testing.T) {
	ext := newExtension(&fakeStore{})

	_, err := ext.SeedCreate(context.Background(), map[string]any{
		"lab_id": 1, "lab_product_id": "p",
	}, "actor")
	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "No fee schedules found")
}

func TestSeedCreate_ExistingPairConflicts(t *testing.T) {
	store := &fakeStore{
		schedules: []string{"Standard"},
		rows: []storage.Row{
			{"lab_id": int64(4), "lab_product_id": "crown-x", "fee_schedule_name": "Standard"},
		},
	}
	ext := newExtension(store)

	_, err := ext.SeedCreate(context.Background(), map[string]any{
		"lab_id": 4, "lab_product_id": "crown-x",
	}, "actor")
	require.True(t, errs.IsConflict(err))
	assert.Contains(t, err.Error(), "already exist")
	assert.Empty(t, store.inserts)
}

func TestUpsert_SingleSchedule(t *testing.T) {
	store := &fakeStore{
		rows: []storage.Row{
			{"lab_id": int64(4), "lab_product_id": "p1", "fee_schedule_name": "Standard", "revenue_share": 0.1},
		},
	}
	ext := newExtension(store)

	_, err := ext.Upsert(context.Background(), map[string]any{
		"lab_id":         4,
		"lab_product_id": "p1",
		"schedule_name":  "Standard",
		"revenue_share":  0.25,
	}, "actor")
	require.NoError(t, err)

	// Existing entry is updated in place, not duplicated.
	require.Len(t, store.updates, 1)
	assert.Equal(t, 0.25, store.updates[0]["revenue_share"])
	assert.Empty(t, store.inserts)
}

func TestUpsert_SingleScheduleInsertsWhenAbsent(t *testing.T) {
	store := &fakeStore{}
	ext := newExtension(store)

	_, err := ext.Upsert(context.Background(), map[string]any{
		"lab_id":         4,
		"lab_product_id": "p1",
		"schedule_name":  "Premium",
		"revenue_share":  "0.3",
	}, "actor")
	require.NoError(t, err)

	require.Len(t, store.inserts, 1)
	assert.Equal(t, "Premium", store.inserts[0]["fee_schedule_name"])
	assert.Equal(t, 0.3, store.inserts[0]["revenue_share"])
	assert.Empty(t, store.updates)
}

func TestUpsert_SingleScheduleWithoutShareLeavesValue(t *testing.T) {
	store := &fakeStore{
		rows: []storage.Row{
			{"lab_id": int64(1), "lab_product_id": "p1", "fee_schedule_name": "A", "revenue_share": 0.15},
		},
	}
	ext := newExtension(store)

	_, err := ext.Upsert(context.Background(), map[string]any{
		"lab_id":         1,
		"lab_product_id": "p1",
		"schedule_name":  "A",
	}, "actor")
	require.NoError(t, err)

	// No revenue_share in the payload means the stored value stays put.
	assert.Empty(t, store.updates)
	assert.Empty(t, store.inserts)
	assert.Equal(t, 0.15, store.rows[0]["revenue_share"])
}

func TestUpsert_SingleScheduleWithoutShareInsertsBareRow(t *testing.T) {
	store := &fakeStore{}
	ext := newExtension(store)

	_, err := ext.Upsert(context.Background(), map[string]any{
		"lab_id":         1,
		"lab_product_id": "p1",
		"schedule_name":  "A",
	}, "actor")
	require.NoError(t, err)

	require.Len(t, store.inserts, 1)
	assert.Equal(t, "A", store.inserts[0]["fee_schedule_name"])
	assert.NotContains(t, store.inserts[0], "revenue_share")
}

func TestUpsert_BulkSchedules(t *testing.T) {
	store := &fakeStore{
		rows: []storage.Row{
			{"lab_id": int64(4), "lab_product_id": "p1", "fee_schedule_name": "Standard", "revenue_share": 0.1},
		},
	}
	ext := newExtension(store)

	_, err := ext.Upsert(context.Background(), map[string]any{
		"lab_id":         4,
		"lab_product_id": "p1",
		"schedule_name": map[string]any{
			"Standard": 0.15,
			"Premium":  nil, // explicit null clears the value
		},
	}, "actor")
	require.NoError(t, err)

	assert.Len(t, store.updates, 1)
	assert.Len(t, store.inserts, 1)

	for _, values := range store.updates {
		assert.Equal(t, 0.15, values["revenue_share"])
	}
	assert.Nil(t, store.inserts[0]["revenue_share"])
}

func TestUpsert_Validation(t *testing.T) {
	ext := newExtension(&fakeStore{})
	base := map[string]any{"lab_id": 4, "lab_product_id": "p1"}

	_, err := ext.Upsert(context.Background(), base, "actor")
	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "schedule_name is required")

	withEmpty := map[string]any{"lab_id": 4, "lab_product_id": "p1", "schedule_name": map[string]any{}}
	_, err = ext.Upsert(context.Background(), withEmpty, "actor")
	require.True(t, errs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "cannot be empty")

	withBlank := map[string]any{"lab_id": 4, "lab_product_id": "p1", "schedule_name": "  "}
	_, err = ext.Upsert(context.Background(), withBlank, "actor")
	assert.True(t, errs.IsBadRequest(err))
}

func TestDeletePair(t *testing.T) {
	store := &fakeStore{
		rows: []storage.Row{
			{"lab_id": int64(4), "lab_product_id": "p1", "fee_schedule_name": "Standard"},
			{"lab_id": int64(4), "lab_product_id": "p1", "fee_schedule_name": "Premium"},
			{"lab_id": int64(4), "lab_product_id": "other", "fee_schedule_name": "Standard"},
		},
	}
	ext := newExtension(store)

	count, err := ext.DeletePair(context.Background(), map[string]any{
		"lab_id": 4, "lab_product_id": "p1",
	}, "actor")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, store.rows, 1) // the other pair survives
}

func TestDeletePair_NothingMatched(t *testing.T) {
	ext := newExtension(&fakeStore{})

	_, err := ext.DeletePair(context.Background(), map[string]any{
		"lab_id": 9, "lab_product_id": "ghost",
	}, "actor")
	require.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), "No records found to delete")
}

func TestList_PostgresParams(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	store := &fakeStore{
		dialect: storage.DialectPostgres,
		queryFn: func(sql string, args ...any) ([]storage.Row, error) {
			if strings.Contains(sql, "COUNT(*)") {
				return []storage.Row{{"count": int64(7)}}, nil
			}
			gotSQL = sql
			gotArgs = args
			return []storage.Row{
				{"lab_id": int64(4), "lab_product_id": "p1", "schedule_name": map[string]any{"Standard": 0.1}},
			}, nil
		},
	}
	ext := newExtension(store)

	result, err := ext.List(context.Background(), ListParams{
		Page:    2,
		Limit:   5,
		Search:  "42",
		Filters: `{"lab_id": 4}`,
	})
	require.NoError(t, err)

	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 2, result.Page)
	require.Len(t, result.Rows, 1)

	assert.Contains(t, gotSQL, "jsonb_object_agg")
	require.Len(t, gotArgs, 6)
	assert.Equal(t, int64(4), gotArgs[0])  // lab_id filter
	assert.Nil(t, gotArgs[1])              // no lab_product_id filter
	assert.Equal(t, "%42%", gotArgs[2])    // search pattern
	assert.Equal(t, int64(42), gotArgs[3]) // numeric search matches lab_id
	assert.Equal(t, 5, gotArgs[4])         // limit
	assert.Equal(t, 5, gotArgs[5])         // offset

	assert.Equal(t, map[string]any{"lab_id": "4"}, result.FiltersApplied)
}

func TestList_MySQLNormalizesScheduleJSON(t *testing.T) {
	store := &fakeStore{
		dialect: storage.DialectMySQL,
		queryFn: func(sql string, args ...any) ([]storage.Row, error) {
			if strings.Contains(sql, "COUNT(*)") {
				return []storage.Row{{"count": "1"}}, nil
			}
			assert.Contains(t, sql, "JSON_OBJECTAGG")
			return []storage.Row{
				// database/sql hands JSON columns back as text
				{"lab_id": int64(4), "lab_product_id": "p1", "schedule_name": `{"Standard": 0.1, "Premium": null}`},
			}, nil
		},
	}
	ext := newExtension(store)

	result, err := ext.List(context.Background(), ListParams{})
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	schedule, ok := result.Rows[0]["schedule_name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.1, schedule["Standard"])
	assert.Nil(t, schedule["Premium"])
	assert.Contains(t, schedule, "Premium") // absent cells are explicit nulls
}

func TestList_MalformedFiltersIgnored(t *testing.T) {
	store := &fakeStore{
		dialect: storage.DialectPostgres,
		queryFn: func(sql string, args ...any) ([]storage.Row, error) {
			if strings.Contains(sql, "COUNT(*)") {
				return []storage.Row{{"count": int64(0)}}, nil
			}
			assert.Nil(t, args[0])
			assert.Nil(t, args[1])
			return []storage.Row{}, nil
		},
	}
	ext := newExtension(store)

	result, err := ext.List(context.Background(), ListParams{Filters: `{broken`})
	require.NoError(t, err)
	assert.Empty(t, result.FiltersApplied)
}

func TestMarkupUpdate(t *testing.T) {
	store := &fakeStore{
		rows: []storage.Row{
			{"lab_id": int64(4), "lab_product_id": "p1", "cost": 10.0},
		},
	}
	ext := newExtension(store)

	row, err := ext.MarkupUpdate(context.Background(), map[string]any{
		"lab_id":              4,
		"lab_product_id":      "p1",
		"cost":                "12.5",
		"nf_price":            nil,
		"commitment_eligible": "true",
	}, "actor")
	require.NoError(t, err)

	require.Len(t, store.updates, 1)
	values := store.updates[0]
	assert.Equal(t, 12.5, values["cost"])
	assert.Nil(t, values["nf_price"])
	assert.Equal(t, true, values["commitment_eligible"])
	assert.NotContains(t, values, "standard_price") // absent means untouched
	assert.Equal(t, 12.5, row["cost"])
}

func TestMarkupUpdate_PairOnlyPayloadIsNoOp(t *testing.T) {
	store := &fakeStore{
		rows: []storage.Row{
			{"lab_id": int64(4), "lab_product_id": "p1", "cost": 10.0},
		},
	}
	ext := newExtension(store)

	row, err := ext.MarkupUpdate(context.Background(), map[string]any{
		"lab_id": 4, "lab_product_id": "p1",
	}, "actor")
	require.NoError(t, err)

	// No writable field in the payload: the stored row comes back and no
	// UPDATE is issued.
	assert.Empty(t, store.updates)
	assert.Equal(t, 10.0, row["cost"])
}

func TestMarkupUpdate_PairOnlyPayloadMissingRow(t *testing.T) {
	ext := newExtension(&fakeStore{})

	_, err := ext.MarkupUpdate(context.Background(), map[string]any{
		"lab_id": 9, "lab_product_id": "ghost",
	}, "actor")
	require.True(t, errs.IsNotFound(err))
}

func TestMarkupUpdate_NotFound(t *testing.T) {
	ext := newExtension(&fakeStore{})

	_, err := ext.MarkupUpdate(context.Background(), map[string]any{
		"lab_id": 9, "lab_product_id": "ghost", "cost": 1,
	}, "actor")
	require.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), "product_lab_markup")
}

func TestMarkupDelete(t *testing.T) {
	store := &fakeStore{
		rows: []storage.Row{{"lab_id": int64(4), "lab_product_id": "p1"}},
	}
	ext := newExtension(store)

	err := ext.MarkupDelete(context.Background(), map[string]any{
		"lab_id": 4, "lab_product_id": "p1",
	}, "actor")
	require.NoError(t, err)
	assert.Empty(t, store.rows)

	err = ext.MarkupDelete(context.Background(), map[string]any{
		"lab_id": 4, "lab_product_id": "p1",
	}, "actor")
	assert.True(t, errs.IsNotFound(err))
}
