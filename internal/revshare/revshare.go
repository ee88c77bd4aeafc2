// Package revshare implements the product/lab/fee-schedule aggregation
// operations. The relation is many-to-many (one row per lab, product, and
// fee schedule); reads pivot it into one row per (lab, product) pair with
// a schedule-name → value map, which the generic single-table row shape
// cannot represent, so these operations carry their own SQL templates.
package revshare

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/incisive-io/tabled/internal/audit"
	"github.com/incisive-io/tabled/internal/errs"
	"github.com/incisive-io/tabled/internal/storage"
)

const (
	revShareTable = "product_lab_rev_share"
	markupTable   = "product_lab_markup"
	schedulesTbl  = "fee_schedules"
)

// Extension executes the aggregation operations against one store.
type Extension struct {
	store storage.Store
	audit audit.Sink
}

// New returns an Extension over store reporting writes to sink.
func New(store storage.Store, sink audit.Sink) *Extension {
	return &Extension{store: store, audit: sink}
}

// ListParams are the pivot-listing parameters. Filters is the raw filter
// JSON; only lab_id and lab_product_id are honoured.
type ListParams struct {
	Page    int
	Limit   int
	Search  string
	Filters string
}

// ListResult is the pivoted page: one row per (lab, product) pair, with
// the full schedule map under schedule_name. Total counts distinct pairs.
type ListResult struct {
	Rows           []storage.Row
	Total          int
	Page           int
	Limit          int
	FiltersApplied map[string]any
}

// Pivot queries. The pair set is selected first (with filters and search),
// then cross-joined against the full schedule list and left-joined back to
// the relation, so every schedule appears in every row; unset cells are
// explicit nulls.
const (
	pgCountSQL = `
		SELECT COUNT(*) FROM (
			SELECT DISTINCT lab_id, lab_product_id
			FROM product_lab_rev_share
			WHERE ($1::bigint IS NULL OR lab_id = $1)
			  AND ($2::text IS NULL OR lab_product_id = $2)
			  AND ($3::text IS NULL
			       OR lab_product_id ILIKE $3
			       OR ($4::bigint IS NOT NULL AND lab_id = $4))
		) AS total`

	pgListSQL = `
		SELECT lab_id, lab_product_id, schedule_name FROM (
			SELECT
				pl.lab_id,
				pl.lab_product_id,
				jsonb_object_agg(
					fs.schedule_name,
					plrs.revenue_share
					ORDER BY fs.schedule_name
				) AS schedule_name
			FROM (
				SELECT DISTINCT lab_id, lab_product_id
				FROM product_lab_rev_share
				WHERE ($1::bigint IS NULL OR lab_id = $1)
				  AND ($2::text IS NULL OR lab_product_id = $2)
				  AND ($3::text IS NULL
				       OR lab_product_id ILIKE $3
				       OR ($4::bigint IS NOT NULL AND lab_id = $4))
			) pl
			CROSS JOIN fee_schedules fs
			LEFT JOIN product_lab_rev_share plrs
				ON plrs.lab_id = pl.lab_id
			   AND plrs.lab_product_id = pl.lab_product_id
			   AND plrs.fee_schedule_name = fs.schedule_name
			GROUP BY pl.lab_id, pl.lab_product_id
		) grouped
		ORDER BY lab_product_id
		LIMIT $5 OFFSET $6`

	pgPairSQL = `
		SELECT
			pl.lab_id,
			pl.lab_product_id,
			jsonb_object_agg(
				fs.schedule_name,
				plrs.revenue_share
				ORDER BY fs.schedule_name
			) AS schedule_name
		FROM (
			SELECT DISTINCT lab_id, lab_product_id
			FROM product_lab_rev_share
			WHERE lab_id = $1 AND lab_product_id = $2
		) pl
		CROSS JOIN fee_schedules fs
		LEFT JOIN product_lab_rev_share plrs
			ON plrs.lab_id = pl.lab_id
		   AND plrs.lab_product_id = pl.lab_product_id
		   AND plrs.fee_schedule_name = fs.schedule_name
		GROUP BY pl.lab_id, pl.lab_product_id`

	// MySQL cannot reuse a positional parameter, so each nullable filter
	// appears twice in the argument list.
	myCountSQL = `
		SELECT COUNT(*) FROM (
			SELECT DISTINCT lab_id, lab_product_id
			FROM product_lab_rev_share
			WHERE (? IS NULL OR lab_id = ?)
			  AND (? IS NULL OR lab_product_id = ?)
			  AND (? IS NULL
			       OR lab_product_id LIKE ?
			       OR (? IS NOT NULL AND lab_id = ?))
		) AS total`

	myListSQL = `
		SELECT lab_id, lab_product_id, schedule_name FROM (
			SELECT
				pl.lab_id,
				pl.lab_product_id,
				JSON_OBJECTAGG(fs.schedule_name, plrs.revenue_share) AS schedule_name
			FROM (
				SELECT DISTINCT lab_id, lab_product_id
				FROM product_lab_rev_share
				WHERE (? IS NULL OR lab_id = ?)
				  AND (? IS NULL OR lab_product_id = ?)
				  AND (? IS NULL
				       OR lab_product_id LIKE ?
				       OR (? IS NOT NULL AND lab_id = ?))
			) pl
			CROSS JOIN fee_schedules fs
			LEFT JOIN product_lab_rev_share plrs
				ON plrs.lab_id = pl.lab_id
			   AND plrs.lab_product_id = pl.lab_product_id
			   AND plrs.fee_schedule_name = fs.schedule_name
			GROUP BY pl.lab_id, pl.lab_product_id
		) grouped
		ORDER BY lab_product_id
		LIMIT ? OFFSET ?`

	myPairSQL = `
		SELECT
			pl.lab_id,
			pl.lab_product_id,
			JSON_OBJECTAGG(fs.schedule_name, plrs.revenue_share) AS schedule_name
		FROM (
			SELECT DISTINCT lab_id, lab_product_id
			FROM product_lab_rev_share
			WHERE lab_id = ? AND lab_product_id = ?
		) pl
		CROSS JOIN fee_schedules fs
		LEFT JOIN product_lab_rev_share plrs
			ON plrs.lab_id = pl.lab_id
		   AND plrs.lab_product_id = pl.lab_product_id
		   AND plrs.fee_schedule_name = fs.schedule_name
		GROUP BY pl.lab_id, pl.lab_product_id`
)

// List returns the pivoted page for params.
func (e *Extension) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}

	labID, productID, applied := parsePairFilters(params.Filters)

	var pattern any
	var searchLabID any
	if term := strings.TrimSpace(params.Search); term != "" {
		pattern = "%" + term + "%"
		if n, err := strconv.ParseInt(term, 10, 64); err == nil {
			searchLabID = n
		}
	}

	var (
		countSQL, listSQL   string
		countArgs, listArgs []any
	)
	if e.store.Dialect() == storage.DialectPostgres {
		countSQL = pgCountSQL
		listSQL = pgListSQL
		countArgs = []any{labID, productID, pattern, searchLabID}
		listArgs = append(append([]any{}, countArgs...), limit, (page-1)*limit)
	} else {
		countSQL = myCountSQL
		listSQL = myListSQL
		countArgs = []any{labID, labID, productID, productID, pattern, pattern, searchLabID, searchLabID}
		listArgs = append(append([]any{}, countArgs...), limit, (page-1)*limit)
	}

	countRows, err := e.store.Query(ctx, countSQL, countArgs...)
	if err != nil {
		return nil, err
	}
	total := firstCount(countRows)

	rows, err := e.store.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		normalizeScheduleMap(row)
	}

	return &ListResult{
		Rows:           rows,
		Total:          total,
		Page:           page,
		Limit:          limit,
		FiltersApplied: applied,
	}, nil
}

// SeedCreate creates one relation row per known fee schedule for a new
// (lab, product) pair. An already-seeded pair is a conflict.
func (e *Extension) SeedCreate(ctx context.Context, payload map[string]any, actorID string) (int, error) {
	labID, productID, err := requirePair(payload)
	if err != nil {
		return 0, err
	}

	schedules, err := e.scheduleNames(ctx)
	if err != nil {
		return 0, err
	}
	if len(schedules) == 0 {
		return 0, errs.BadRequest("No fee schedules found")
	}

	existing, err := e.store.Count(ctx, storage.QuerySpec{
		Table: revShareTable,
		Filters: []storage.Cond{
			{Field: "lab_id", Op: storage.OpEq, Value: labID},
			{Field: "lab_product_id", Op: storage.OpEq, Value: productID},
		},
	})
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, errs.Conflict(
			"Records for lab_id %d and lab_product_id %s already exist", labID, productID)
	}

	for _, schedule := range schedules {
		row := storage.Row{
			"lab_id":            labID,
			"lab_product_id":    productID,
			"fee_schedule_name": schedule,
		}
		if _, err := e.store.Insert(ctx, revShareTable, row, nil); err != nil {
			return 0, err
		}
	}

	e.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionCreate,
		Resource: pairResource(labID, productID),
		Details:  map[string]any{"table": revShareTable, "count": len(schedules)},
	})
	return len(schedules), nil
}

// Upsert writes one or many schedule entries for a pair. schedule_name is
// either a single name (with revenue_share alongside) or a map of
// name → value for the bulk form. It returns the pivoted pair after the
// write.
func (e *Extension) Upsert(ctx context.Context, payload map[string]any, actorID string) ([]storage.Row, error) {
	labID, productID, err := requirePair(payload)
	if err != nil {
		return nil, err
	}

	rawSchedule, ok := payload["schedule_name"]
	if !ok || rawSchedule == nil {
		return nil, errs.BadRequest("schedule_name is required")
	}

	// An entry's share is only written when the caller actually sent one:
	// the bulk form always carries a value per schedule (an explicit null
	// clears), but the single form omits revenue_share entirely when the
	// payload did, leaving the stored value untouched.
	type entry struct {
		share    any
		hasShare bool
	}
	entries := map[string]entry{}
	switch t := rawSchedule.(type) {
	case map[string]any:
		if len(t) == 0 {
			return nil, errs.BadRequest("schedule_name object cannot be empty")
		}
		for name, value := range t {
			entries[name] = entry{share: value, hasShare: true}
		}
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, errs.BadRequest("schedule_name is required")
		}
		v, ok := payload["revenue_share"]
		entries[t] = entry{share: v, hasShare: ok}
	default:
		return nil, errs.BadRequest("schedule_name must be a string or an object")
	}

	productRef, hasProductRef := payload["incisive_product_id"]

	for schedule, ent := range entries {
		values := storage.Row{}
		if ent.hasShare {
			values["revenue_share"] = toNullableFloat(ent.share)
		}
		if hasProductRef {
			values["incisive_product_id"] = toNullableInt(productRef)
		}

		key := storage.Row{
			"lab_id":            labID,
			"lab_product_id":    productID,
			"fee_schedule_name": schedule,
		}
		existing, err := e.store.Get(ctx, revShareTable, key, []string{"lab_id"})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if len(values) == 0 {
				continue
			}
			if _, err := e.store.Update(ctx, revShareTable, key, values); err != nil {
				return nil, err
			}
			continue
		}
		row := storage.Row{}
		for k, v := range key {
			row[k] = v
		}
		for k, v := range values {
			row[k] = v
		}
		if _, err := e.store.Insert(ctx, revShareTable, row, nil); err != nil {
			return nil, err
		}
	}

	e.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionUpdate,
		Resource: pairResource(labID, productID),
		Details:  map[string]any{"table": revShareTable, "schedules_updated": len(entries)},
	})

	return e.FetchPair(ctx, labID, productID)
}

// DeletePair removes every schedule row for the pair.
func (e *Extension) DeletePair(ctx context.Context, payload map[string]any, actorID string) (int, error) {
	labID, productID, err := requirePair(payload)
	if err != nil {
		return 0, err
	}

	count, err := e.store.Delete(ctx, revShareTable, storage.Row{
		"lab_id":         labID,
		"lab_product_id": productID,
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, errs.NotFound("No records found to delete")
	}

	e.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionDelete,
		Resource: pairResource(labID, productID),
		Details:  map[string]any{"table": revShareTable, "count": count},
	})
	return count, nil
}

// FetchPair returns the pivoted rows for one (lab, product) pair.
func (e *Extension) FetchPair(ctx context.Context, labID int64, productID string) ([]storage.Row, error) {
	var rows []storage.Row
	var err error
	if e.store.Dialect() == storage.DialectPostgres {
		rows, err = e.store.Query(ctx, pgPairSQL, labID, productID)
	} else {
		rows, err = e.store.Query(ctx, myPairSQL, labID, productID)
	}
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		normalizeScheduleMap(row)
	}
	return rows, nil
}

// MarkupUpdate mutates the pricing columns of a (lab, product) markup
// row. Absent fields stay untouched; explicit nulls clear.
func (e *Extension) MarkupUpdate(ctx context.Context, payload map[string]any, actorID string) (storage.Row, error) {
	labID, productID, err := requirePair(payload)
	if err != nil {
		return nil, err
	}

	values := storage.Row{}
	for _, field := range []string{"cost", "standard_price", "nf_price"} {
		if v, ok := payload[field]; ok {
			values[field] = toNullableFloat(v)
		}
	}
	if v, ok := payload["commitment_eligible"]; ok {
		values["commitment_eligible"] = v == true || v == "true"
	}

	key := storage.Row{"lab_id": labID, "lab_product_id": productID}

	// A payload carrying only the pair is a no-op: return the stored row
	// without issuing an UPDATE with an empty SET clause.
	if len(values) == 0 {
		row, err := e.store.Get(ctx, markupTable, key, nil)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, errs.NotFound("Record not found in %s", markupTable)
		}
		return row, nil
	}

	row, err := e.store.Update(ctx, markupTable, key, values)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errs.NotFound("Record not found in %s", markupTable)
	}

	e.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionUpdate,
		Resource: pairResource(labID, productID),
		Details:  map[string]any{"table": markupTable},
	})
	return row, nil
}

// MarkupDelete removes the (lab, product) markup row.
func (e *Extension) MarkupDelete(ctx context.Context, payload map[string]any, actorID string) error {
	labID, productID, err := requirePair(payload)
	if err != nil {
		return err
	}

	count, err := e.store.Delete(ctx, markupTable, storage.Row{
		"lab_id":         labID,
		"lab_product_id": productID,
	})
	if err != nil {
		return err
	}
	if count == 0 {
		return errs.NotFound("Record not found in %s", markupTable)
	}

	e.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionDelete,
		Resource: pairResource(labID, productID),
		Details:  map[string]any{"table": markupTable},
	})
	return nil
}

// --- helpers ---

func (e *Extension) scheduleNames(ctx context.Context) ([]string, error) {
	rows, err := e.store.Select(ctx, storage.QuerySpec{
		Table:   schedulesTbl,
		Columns: []string{"schedule_name"},
		OrderBy: "schedule_name",
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if s, ok := row["schedule_name"].(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

func pairResource(labID int64, productID string) string {
	return fmt.Sprintf("%d-%s", labID, productID)
}

// requirePair extracts and validates the (lab_id, lab_product_id) pair
// every write operation needs.
func requirePair(payload map[string]any) (int64, string, error) {
	labID := toNullableInt(payload["lab_id"])
	if labID == nil {
		return 0, "", errs.BadRequest("lab_id is required")
	}
	productID, _ := payload["lab_product_id"].(string)
	if strings.TrimSpace(productID) == "" {
		if v, ok := payload["lab_product_id"]; ok && v != nil {
			productID = fmt.Sprint(v)
		}
	}
	if strings.TrimSpace(productID) == "" {
		return 0, "", errs.BadRequest("lab_product_id is required")
	}
	return labID.(int64), productID, nil
}

// parsePairFilters reads lab_id and lab_product_id from the raw filter
// JSON. Malformed JSON and other fields are ignored.
func parsePairFilters(raw string) (labID, productID any, applied map[string]any) {
	applied = map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, applied
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, nil, applied
	}

	if v, ok := parsed["lab_id"]; ok && v != nil {
		if n := toNullableInt(v); n != nil {
			labID = n
			applied["lab_id"] = fmt.Sprint(n)
		}
	}
	if v, ok := parsed["lab_product_id"]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			productID = s
			applied["lab_product_id"] = s
		}
	}
	return labID, productID, applied
}

// normalizeScheduleMap decodes the aggregated JSON column when the driver
// hands it back as text (MySQL does).
func normalizeScheduleMap(row storage.Row) {
	if s, ok := row["schedule_name"].(string); ok {
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			row["schedule_name"] = m
		}
	}
}

func firstCount(rows []storage.Row) int {
	if len(rows) == 0 {
		return 0
	}
	for _, v := range rows[0] {
		switch t := v.(type) {
		case int64:
			return int(t)
		case int:
			return t
		case float64:
			return int(t)
		case string:
			if n, err := strconv.Atoi(t); err == nil {
				return n
			}
		}
	}
	return 0
}

func toNullableFloat(v any) any {
	if v == nil {
		return nil
	}
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
		if s := strings.TrimSpace(t); s != "" {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return nil
	default:
		return nil
	}
}

func toNullableInt(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case string:
		if s := strings.TrimSpace(t); s != "" {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		return nil
	default:
		return nil
	}
}
