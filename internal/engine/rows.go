package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/incisive-io/tabled/internal/audit"
	"github.com/incisive-io/tabled/internal/catalog"
	"github.com/incisive-io/tabled/internal/coerce"
	"github.com/incisive-io/tabled/internal/errs"
	"github.com/incisive-io/tabled/internal/policy"
	"github.com/incisive-io/tabled/internal/query"
	"github.com/incisive-io/tabled/internal/revshare"
	"github.com/incisive-io/tabled/internal/rowkey"
	"github.com/incisive-io/tabled/internal/storage"
	"github.com/incisive-io/tabled/internal/translate"
)

const revShareTable = "product_lab_rev_share"

// GetTableRows returns one page of rows for table, honouring pagination,
// free-text search, filter JSON, and sorting. The rev-share relation takes
// the pivoted path; every other table goes through the generic builder.
func (e *Engine) GetTableRows(ctx context.Context, table string, role policy.Role, params query.ListParams) (*RowPage, error) {
	desc, err := e.gate(table, role, policy.ActionRead)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(desc.Name, revShareTable) {
		return e.revShareRows(ctx, params)
	}

	built := query.Build(desc, params, e.hiddenFor(desc.Name))

	rows, err := e.store.Select(ctx, built.Spec)
	if err != nil {
		return nil, err
	}
	total, err := e.store.Count(ctx, built.Spec)
	if err != nil {
		return nil, err
	}

	var searchApplied any
	if s := strings.TrimSpace(params.Search); s != "" {
		searchApplied = s
	}

	return &RowPage{
		Data:           rows,
		Meta:           pageMeta(total, built.Page, built.Limit),
		FiltersApplied: built.FiltersApplied,
		SearchApplied:  searchApplied,
		Sort:           &Sort{Column: built.SortColumn, Direction: built.SortOrder},
	}, nil
}

func (e *Engine) revShareRows(ctx context.Context, params query.ListParams) (*RowPage, error) {
	result, err := e.rev.List(ctx, revshare.ListParams{
		Page:    params.Page,
		Limit:   params.Limit,
		Search:  params.Search,
		Filters: params.Filters,
	})
	if err != nil {
		return nil, err
	}

	var searchApplied any
	if s := strings.TrimSpace(params.Search); s != "" {
		searchApplied = s
	}

	return &RowPage{
		Data:           result.Rows,
		Meta:           pageMeta(result.Total, result.Page, result.Limit),
		FiltersApplied: result.FiltersApplied,
		SearchApplied:  searchApplied,
		Sort:           &Sort{Column: "lab_product_id", Direction: "asc"},
	}, nil
}

// GetTableRow returns one row by its encoded identity.
func (e *Engine) GetTableRow(ctx context.Context, table, id string, role policy.Role) (storage.Row, error) {
	desc, err := e.gate(table, role, policy.ActionRead)
	if err != nil {
		return nil, err
	}

	key, err := rowkey.Decode(desc, id)
	if err != nil {
		return nil, err
	}

	row, err := e.store.Get(ctx, desc.Name, key, projectionFor(desc, e.hiddenFor(desc.Name)))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errs.NotFound("Record not found in %s", desc.Name)
	}
	return row, nil
}

// CreateTableRow inserts a new row and returns it with the encoded
// identity attached under "id". Creating into the rev-share relation
// seeds one row per fee schedule instead.
func (e *Engine) CreateTableRow(ctx context.Context, table string, payload map[string]any, role policy.Role, actorID string) (storage.Row, error) {
	desc, err := e.gate(table, role, policy.ActionCreate)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(desc.Name, revShareTable) {
		count, err := e.rev.SeedCreate(ctx, payload, actorID)
		if err != nil {
			return nil, err
		}
		return storage.Row{"message": "Records created successfully", "count": count}, nil
	}

	values := coerce.Payload(desc, payload)
	if err := e.hashCredential(desc.Name, values); err != nil {
		return nil, err
	}

	row, err := e.store.Insert(ctx, desc.Name, values, desc.PrimaryKey)
	if err != nil {
		return nil, translate.Write(err, values)
	}

	identity := rowkey.Encode(desc, row)
	e.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionCreate,
		Resource: desc.Name + ":" + identity,
		Details:  map[string]any{"table": desc.Name},
	})

	row["id"] = identity
	return row, nil
}

// UpdateTableRow mutates one row. Primary keys are immutable: a payload
// value that disagrees with the URL identity is rejected before anything
// is read or written.
func (e *Engine) UpdateTableRow(ctx context.Context, table, id string, payload map[string]any, role policy.Role, actorID string) (storage.Row, error) {
	desc, err := e.gate(table, role, policy.ActionUpdate)
	if err != nil {
		return nil, err
	}

	key, err := rowkey.Decode(desc, id)
	if err != nil {
		return nil, err
	}

	for _, pk := range desc.PrimaryKey {
		v, ok := payload[pk]
		if !ok {
			continue
		}
		if fmt.Sprint(v) != fmt.Sprint(key[pk]) {
			return nil, errs.BadRequest(
				"Primary key '%s' in payload (%v) does not match URL ID (%v). Primary keys cannot be changed.",
				pk, v, key[pk])
		}
	}

	existing, err := e.store.Get(ctx, desc.Name, key, desc.PrimaryKey)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errs.NotFound("Record with ID '%s' not found in %s", id, desc.Name)
	}

	values := coerce.Payload(desc, payload)
	if err := e.hashCredential(desc.Name, values); err != nil {
		return nil, err
	}

	var attemptedPK []string
	for _, pk := range desc.PrimaryKey {
		if _, ok := values[pk]; ok {
			attemptedPK = append(attemptedPK, pk)
		}
		delete(values, pk)
	}
	delete(values, "created_at")

	if desc.HasField("updated_at") {
		values["updated_at"] = time.Now().UTC()
	}

	if len(values) == 0 {
		if len(attemptedPK) > 0 {
			return nil, errs.BadRequest(
				"Cannot update primary key field(s): %s. Primary keys are immutable.",
				strings.Join(attemptedPK, ", "))
		}
		return nil, errs.BadRequest("No valid fields to update")
	}

	row, err := e.store.Update(ctx, desc.Name, key, values)
	if err != nil {
		return nil, translate.Write(err, values)
	}
	if row == nil {
		return nil, errs.NotFound("Record with ID '%s' not found in %s", id, desc.Name)
	}

	e.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionUpdate,
		Resource: desc.Name + ":" + id,
		Details:  map[string]any{"table": desc.Name},
	})
	return row, nil
}

// DeleteTableRow removes one row. A caller can never delete the account
// matching their own session.
func (e *Engine) DeleteTableRow(ctx context.Context, table, id string, role policy.Role, actorID string) error {
	desc, err := e.gate(table, role, policy.ActionDelete)
	if err != nil {
		return err
	}

	if strings.EqualFold(desc.Name, usersTable) && id == actorID {
		return errs.Forbidden("Cannot delete your own account")
	}

	key, err := rowkey.Decode(desc, id)
	if err != nil {
		return err
	}

	existing, err := e.store.Get(ctx, desc.Name, key, desc.PrimaryKey)
	if err != nil {
		return err
	}
	if existing == nil {
		return errs.NotFound("Record not found in %s", desc.Name)
	}

	if _, err := e.store.Delete(ctx, desc.Name, key); err != nil {
		return translate.Delete(err)
	}

	e.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionDelete,
		Resource: desc.Name + ":" + id,
		Details:  map[string]any{"table": desc.Name},
	})
	return nil
}

// hashCredential digests a plaintext password before it reaches storage.
func (e *Engine) hashCredential(table string, values storage.Row) error {
	if !strings.EqualFold(table, usersTable) {
		return nil
	}
	plain, ok := values["password"].(string)
	if !ok || plain == "" {
		return nil
	}
	digest, err := e.hasher.Hash(plain)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to hash password", err)
	}
	values["password"] = digest
	return nil
}

// projectionFor lists the visible columns of desc.
func projectionFor(desc *catalog.TableDescriptor, hidden map[string]bool) []string {
	var cols []string
	for _, f := range desc.DataFields() {
		if hidden[strings.ToLower(f.Name)] {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}
