package engine

import (
	"context"
	"strings"

	"github.com/incisive-io/tabled/internal/storage"
)

// Lookup endpoints serve small reference-data reads the UI uses to
// populate select options: an identifier plus a display name, active-only
// where the underlying table tracks activity, ordered by identifier. The
// search variants cap at 15 rows.

const lookupSearchLimit = 15

// LookupLabs lists the active labs.
func (e *Engine) LookupLabs(ctx context.Context) ([]storage.Row, error) {
	return e.lookup(ctx, storage.QuerySpec{
		Table:   "public_labs",
		Columns: []string{"lab_id", "lab_name"},
		Filters: []storage.Cond{{Field: "is_active", Op: storage.OpEq, Value: true}},
		OrderBy: "lab_id",
	})
}

// LookupProducts lists the active catalog products, optionally narrowed by
// a name search.
func (e *Engine) LookupProducts(ctx context.Context, search string) ([]storage.Row, error) {
	spec := storage.QuerySpec{
		Table:   "incisive_product_catalog",
		Columns: []string{"incisive_id", "incisive_name"},
		Filters: []storage.Cond{{Field: "is_active", Op: storage.OpEq, Value: true}},
		OrderBy: "incisive_id",
	}
	if term := strings.TrimSpace(search); term != "" {
		spec.Filters = append(spec.Filters,
			storage.Cond{Field: "incisive_name", Op: storage.OpContains, Value: term})
		spec.Take = lookupSearchLimit
	}
	return e.lookup(ctx, spec)
}

// LookupPractices lists the dental practices, optionally narrowed by a
// group-name search.
func (e *Engine) LookupPractices(ctx context.Context, search string) ([]storage.Row, error) {
	spec := storage.QuerySpec{
		Table:   "dental_practices",
		Columns: []string{"practice_id", "dental_group_name"},
		OrderBy: "practice_id",
	}
	if term := strings.TrimSpace(search); term != "" {
		spec.Filters = append(spec.Filters,
			storage.Cond{Field: "dental_group_name", Op: storage.OpContains, Value: term})
		spec.Take = lookupSearchLimit
	}
	return e.lookup(ctx, spec)
}

// LookupDentalGroups lists the active dental groups.
func (e *Engine) LookupDentalGroups(ctx context.Context) ([]storage.Row, error) {
	return e.lookup(ctx, storage.QuerySpec{
		Table:   "dental_groups",
		Columns: []string{"dental_group_id", "name"},
		Filters: []storage.Cond{{Field: "is_active", Op: storage.OpEq, Value: true}},
		OrderBy: "dental_group_id",
	})
}

func (e *Engine) lookup(ctx context.Context, spec storage.QuerySpec) ([]storage.Row, error) {
	rows, err := e.store.Select(ctx, spec)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []storage.Row{}
	}
	return rows, nil
}
