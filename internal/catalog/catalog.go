package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Catalog is the immutable name → TableDescriptor lookup. Lookup is
// case-insensitive on table name; canonical names (as loaded) are used for
// every subsequent operation.
type Catalog struct {
	names  []string
	tables map[string]*TableDescriptor
}

// Introspector supplies table descriptors from a live database. Storage
// drivers implement it over information_schema.
type Introspector interface {
	DescribeTables(ctx context.Context) ([]TableDescriptor, error)
}

// New builds a Catalog from descriptors, validating each one.
func New(descriptors []TableDescriptor) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]*TableDescriptor, len(descriptors))}
	for i := range descriptors {
		d := descriptors[i]
		if d.Name == "" {
			return nil, fmt.Errorf("catalog: descriptor %d has no name", i)
		}
		key := strings.ToLower(d.Name)
		if _, dup := c.tables[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate table %q", d.Name)
		}
		for _, pk := range d.PrimaryKey {
			if _, ok := d.Field(pk); !ok {
				return nil, fmt.Errorf("catalog: table %q primary key names unknown field %q", d.Name, pk)
			}
		}
		c.names = append(c.names, d.Name)
		c.tables[key] = &descriptors[i]
	}
	return c, nil
}

// Load introspects the database once and builds the catalog from it.
func Load(ctx context.Context, intr Introspector) (*Catalog, error) {
	descriptors, err := intr.DescribeTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: introspection failed: %w", err)
	}
	return New(descriptors)
}

// Describe returns the descriptor for the named table. The match is
// case-insensitive; the returned descriptor carries the canonical name.
func (c *Catalog) Describe(name string) (*TableDescriptor, bool) {
	d, ok := c.tables[strings.ToLower(name)]
	return d, ok
}

// TableNames returns all canonical table names in load order.
func (c *Catalog) TableNames() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}
