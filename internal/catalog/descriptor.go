// Package catalog holds the structural metadata for every exposed table:
// field names, logical types, identifier flags, and the primary-key shape.
// Descriptors are loaded once at process start (from live introspection or
// from a schema definition file) and are immutable afterwards.
package catalog

// LogicalType is the storage-independent type of a field.
type LogicalType string

const (
	TypeString    LogicalType = "string"
	TypeInt32     LogicalType = "int32"
	TypeInt64     LogicalType = "int64"
	TypeFloat     LogicalType = "float"
	TypeBoolean   LogicalType = "boolean"
	TypeTimestamp LogicalType = "timestamp"
	TypeJSON      LogicalType = "json"
)

// FieldDescriptor describes a single field of a table.
type FieldDescriptor struct {
	Name         string
	Type         LogicalType
	IsIdentifier bool // member of the primary key
	IsRelation   bool // virtual relation field, excluded from every projection
	IsRequired   bool // NOT NULL in storage
	HasDefault   bool
}

// TableDescriptor describes one table: its fields and primary-key shape.
// PrimaryKey is ordered; every name in it refers to a field in Fields.
type TableDescriptor struct {
	Name       string
	Fields     []FieldDescriptor
	PrimaryKey []string
}

// Field returns the descriptor for the named field.
func (t *TableDescriptor) Field(name string) (*FieldDescriptor, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// DataFields returns the non-relation fields in declaration order.
func (t *TableDescriptor) DataFields() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(t.Fields))
	for _, f := range t.Fields {
		if !f.IsRelation {
			out = append(out, f)
		}
	}
	return out
}

// HasField reports whether the table declares a non-relation field with
// the given name.
func (t *TableDescriptor) HasField(name string) bool {
	f, ok := t.Field(name)
	return ok && !f.IsRelation
}

// HasCompositeKey reports whether the primary key spans multiple fields.
func (t *TableDescriptor) HasCompositeKey() bool {
	return len(t.PrimaryKey) > 1
}
