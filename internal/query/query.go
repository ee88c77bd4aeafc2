// Package query turns list-endpoint parameters (pagination, search, sort,
// filter JSON) into a storage.QuerySpec for one table. Parsing is lenient:
// malformed filter JSON, unknown fields, and invalid sort columns are
// dropped or defaulted, never rejected.
package query

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/incisive-io/tabled/internal/catalog"
	"github.com/incisive-io/tabled/internal/coerce"
	"github.com/incisive-io/tabled/internal/storage"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// ListParams are the raw list-endpoint parameters as received from the
// caller, before validation.
type ListParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
	Filters   string // JSON object, field name -> value
}

// Built is the resolved query: the storage spec plus the effective
// values echoed back to the caller.
type Built struct {
	Spec           storage.QuerySpec
	FiltersApplied map[string]any
	SortColumn     string
	SortOrder      string
	Page           int
	Limit          int
}

// Build resolves params against the table descriptor. hidden names the
// fields excluded from the projection (and from search).
func Build(desc *catalog.TableDescriptor, params ListParams, hidden map[string]bool) Built {
	page := params.Page
	if page < 1 {
		page = defaultPage
	}
	limit := params.Limit
	if limit < 1 {
		limit = defaultLimit
	}

	sortColumn, sortOrder := resolveSort(desc, params.SortBy, params.SortOrder)

	spec := storage.QuerySpec{
		Table:   desc.Name,
		Columns: projection(desc, hidden),
		OrderBy: sortColumn,
		Desc:    sortOrder == "desc",
		Skip:    (page - 1) * limit,
		Take:    limit,
	}

	applied := map[string]any{}
	for _, cond := range parseFilters(desc, params.Filters) {
		spec.Filters = append(spec.Filters, cond)
		applied[cond.Field] = cond.Value
	}

	spec.Search = searchConds(desc, params.Search, hidden)

	return Built{
		Spec:           spec,
		FiltersApplied: applied,
		SortColumn:     sortColumn,
		SortOrder:      sortOrder,
		Page:           page,
		Limit:          limit,
	}
}

// projection returns the visible columns: every non-relation field except
// the hidden ones, in declaration order.
func projection(desc *catalog.TableDescriptor, hidden map[string]bool) []string {
	var cols []string
	for _, f := range desc.DataFields() {
		if hidden[strings.ToLower(f.Name)] {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// resolveSort validates the requested sort column and falls back to the
// conventional audit columns, then the first declared field. Any order
// value other than "asc" means descending.
func resolveSort(desc *catalog.TableDescriptor, sortBy, sortOrder string) (string, string) {
	order := "desc"
	if strings.EqualFold(strings.TrimSpace(sortOrder), "asc") {
		order = "asc"
	}

	if sortBy != "" && desc.HasField(sortBy) {
		return sortBy, order
	}
	for _, candidate := range []string{"created_at", "updated_at", "id"} {
		if desc.HasField(candidate) {
			return candidate, order
		}
	}
	if fields := desc.DataFields(); len(fields) > 0 {
		return fields[0].Name, order
	}
	return "", order
}

// parseFilters decodes the filter JSON into equality conditions. The whole
// clause is ignored when it does not parse; unknown fields and empty
// strings are skipped; explicit null filters for IS NULL.
func parseFilters(desc *catalog.TableDescriptor, raw string) []storage.Cond {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}

	var conds []storage.Cond
	for _, f := range desc.DataFields() {
		v, ok := parsed[f.Name]
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		field := f
		conds = append(conds, storage.Cond{
			Field: f.Name,
			Op:    storage.OpEq,
			Value: coerce.Value(&field, v),
		})
	}
	return conds
}

// searchConds expands a free-text search term into an OR group: substring
// match over every visible string field, plus exact match over integer
// fields when the term itself is an integer.
func searchConds(desc *catalog.TableDescriptor, search string, hidden map[string]bool) []storage.Cond {
	term := strings.TrimSpace(search)
	if term == "" {
		return nil
	}

	asInt, isInt := parseInt(term)

	var conds []storage.Cond
	for _, f := range desc.DataFields() {
		if hidden[strings.ToLower(f.Name)] {
			continue
		}
		switch f.Type {
		case catalog.TypeString:
			conds = append(conds, storage.Cond{Field: f.Name, Op: storage.OpContains, Value: term})
		case catalog.TypeInt32, catalog.TypeInt64:
			if isInt {
				conds = append(conds, storage.Cond{Field: f.Name, Op: storage.OpEq, Value: asInt})
			}
		}
	}
	return conds
}

func parseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}
