// Package engine is the public surface of tabled: it composes the schema
// catalog, access policy, query builder, key codec, type coercion, and
// constraint translator into the table operations the HTTP layer exposes.
//
// Every operation follows the same shape: gate the (table, role, action)
// triple, prepare the query or mutation, execute it against storage, and
// convert constraint failures into domain errors.
package engine

import (
	"context"
	"strings"

	"github.com/incisive-io/tabled/internal/audit"
	"github.com/incisive-io/tabled/internal/catalog"
	"github.com/incisive-io/tabled/internal/errs"
	"github.com/incisive-io/tabled/internal/hash"
	"github.com/incisive-io/tabled/internal/logger"
	"github.com/incisive-io/tabled/internal/policy"
	"github.com/incisive-io/tabled/internal/revshare"
	"github.com/incisive-io/tabled/internal/storage"
)

const usersTable = "users"

// Config carries the engine's field-visibility settings.
type Config struct {
	// HiddenFields are stripped from every table's projection.
	HiddenFields []string

	// TableHiddenFields maps a table name to additional hidden fields.
	TableHiddenFields map[string][]string
}

// Engine executes table operations. It is safe for concurrent use: all of
// its state is immutable after construction.
type Engine struct {
	catalog *catalog.Catalog
	policy  *policy.Policy
	store   storage.Store
	hasher  hash.Hasher
	audit   audit.Sink
	rev     *revshare.Extension
	log     *logger.Logger

	hidden      map[string]bool
	tableHidden map[string]map[string]bool
}

// New assembles an Engine from its collaborators.
func New(
	cat *catalog.Catalog,
	pol *policy.Policy,
	store storage.Store,
	hasher hash.Hasher,
	sink audit.Sink,
	rev *revshare.Extension,
	log *logger.Logger,
	cfg Config,
) *Engine {
	tableHidden := make(map[string]map[string]bool, len(cfg.TableHiddenFields))
	for table, fields := range cfg.TableHiddenFields {
		tableHidden[strings.ToLower(table)] = lowerSet(fields)
	}
	return &Engine{
		catalog:     cat,
		policy:      pol,
		store:       store,
		hasher:      hasher,
		audit:       sink,
		rev:         rev,
		log:         log,
		hidden:      lowerSet(cfg.HiddenFields),
		tableHidden: tableHidden,
	}
}

// gate resolves the table descriptor and applies the access policy. A table
// absent from the catalog gets the same NotFound as an unexposed one.
func (e *Engine) gate(table string, role policy.Role, action policy.Action) (*catalog.TableDescriptor, error) {
	desc, ok := e.catalog.Describe(table)
	if !ok {
		return nil, errs.NotFound("Table '%s' not found", table)
	}
	if err := e.policy.Authorize(desc.Name, role, action); err != nil {
		return nil, err
	}
	return desc, nil
}

// hiddenFor merges the global and per-table hidden field sets.
func (e *Engine) hiddenFor(table string) map[string]bool {
	extra := e.tableHidden[strings.ToLower(table)]
	if len(extra) == 0 {
		return e.hidden
	}
	merged := make(map[string]bool, len(e.hidden)+len(extra))
	for f := range e.hidden {
		merged[f] = true
	}
	for f := range extra {
		merged[f] = true
	}
	return merged
}

// GetTables lists every table visible to role, with display metadata and
// the current row count. A failing count degrades to zero rather than
// failing the listing.
func (e *Engine) GetTables(ctx context.Context, role policy.Role) ([]TableInfo, error) {
	var tables []TableInfo
	for _, name := range e.catalog.TableNames() {
		if !e.policy.Visible(name, role) {
			continue
		}

		count, err := e.store.Count(ctx, storage.QuerySpec{Table: name})
		if err != nil {
			e.log.ErrorWith("row count failed, reporting zero", err, map[string]any{"table": name})
			count = 0
		}

		tables = append(tables, TableInfo{
			Name:        name,
			Label:       formatLabel(name),
			Description: tableDescription(name),
			Icon:        tableIcon(name),
			RowCount:    count,
		})
	}
	if tables == nil {
		tables = []TableInfo{}
	}
	return tables, nil
}

// GetTableConfig returns the UI configuration for one table: columns with
// presentation types, the role's permissions, and the default sort.
func (e *Engine) GetTableConfig(table string, role policy.Role) (*TableConfig, error) {
	desc, err := e.gate(table, role, policy.ActionRead)
	if err != nil {
		return nil, err
	}

	hidden := e.hiddenFor(desc.Name)
	var columns []Column
	for _, f := range desc.DataFields() {
		if hidden[strings.ToLower(f.Name)] {
			continue
		}
		columns = append(columns, e.mapColumn(desc.Name, f))
	}

	return &TableConfig{
		Name:                   desc.Name,
		Label:                  formatLabel(desc.Name),
		Columns:                columns,
		Permissions:            e.policy.CapabilitiesFor(desc.Name, role),
		DefaultSort:            Sort{Column: defaultSortColumn(desc), Direction: "desc"},
		PrimaryKey:             desc.PrimaryKey,
		HasCompositePrimaryKey: desc.HasCompositeKey(),
	}, nil
}

// nonEditableFields never accept values through the update path.
var nonEditableFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"password":      true,
	"refresh_token": true,
}

var (
	sortableFields   = map[string]bool{"created_at": true, "updated_at": true, "email": true, "id": true}
	filterableFields = map[string]bool{"email": true, "role": true, "is_active": true, "action": true}
)

func (e *Engine) mapColumn(table string, f catalog.FieldDescriptor) Column {
	return Column{
		Key:        f.Name,
		Label:      formatLabel(f.Name),
		Type:       uiType(f),
		Sortable:   sortableFields[f.Name],
		Filterable: filterableFields[f.Name],
		Editable:   !nonEditableFields[f.Name],
		Required:   f.IsRequired && !f.HasDefault && f.Name != "id",
		Options:    fieldOptions(table, f.Name),
	}
}

// uiType maps a field to its input widget. A few well-known field names
// override the type-derived widget.
func uiType(f catalog.FieldDescriptor) string {
	switch f.Name {
	case "email":
		return "email"
	case "id":
		return "uuid"
	case "role", "action":
		return "select"
	}
	switch f.Type {
	case catalog.TypeInt32, catalog.TypeInt64, catalog.TypeFloat:
		return "number"
	case catalog.TypeBoolean:
		return "boolean"
	case catalog.TypeTimestamp:
		return "date"
	default:
		return "text"
	}
}

func fieldOptions(table, field string) []Option {
	if field == "role" && strings.EqualFold(table, usersTable) {
		return []Option{
			{Value: "USER", Label: "User"},
			{Value: "ADMIN", Label: "Admin"},
			{Value: "VIEWER", Label: "Viewer"},
		}
	}
	return nil
}

// defaultSortColumn prefers the conventional audit columns, then the
// primary key, then the first declared field.
func defaultSortColumn(desc *catalog.TableDescriptor) string {
	candidates := append([]string{"created_at", "updated_at", "id"}, desc.PrimaryKey...)
	for _, c := range candidates {
		if desc.HasField(c) {
			return c
		}
	}
	if fields := desc.DataFields(); len(fields) > 0 {
		return fields[0].Name
	}
	return ""
}

// formatLabel turns a snake_case identifier into a display label:
// "fee_schedule_name" -> "Fee Schedule Name".
func formatLabel(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var tableDescriptions = map[string]string{
	usersTable: "Manage system users and their roles",
}

func tableDescription(name string) string {
	if d, ok := tableDescriptions[strings.ToLower(name)]; ok {
		return d
	}
	return "Manage " + formatLabel(name)
}

var tableIcons = map[string]string{
	usersTable: "users",
}

func tableIcon(name string) string {
	if icon, ok := tableIcons[strings.ToLower(name)]; ok {
		return icon
	}
	return "database"
}

func lowerSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}
