package postgres

import (
	"context"
	"fmt"

	"github.com/incisive-io/tabled/internal/catalog"
)

// DescribeTables implements catalog.Introspector over information_schema.
// It runs once at startup; the result is cached by the catalog.
func (d *Driver) DescribeTables(ctx context.Context) ([]catalog.TableDescriptor, error) {
	tables, err := d.listTables(ctx)
	if err != nil {
		return nil, err
	}

	descriptors := make([]catalog.TableDescriptor, 0, len(tables))
	for _, table := range tables {
		desc, err := d.describeTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("describing table %q: %w", table, err)
		}
		descriptors = append(descriptors, *desc)
	}
	return descriptors, nil
}

func (d *Driver) listTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := d.pool.Query(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (d *Driver) describeTable(ctx context.Context, table string) (*catalog.TableDescriptor, error) {
	pks, err := d.fetchPrimaryKey(ctx, table)
	if err != nil {
		return nil, err
	}
	pkSet := make(map[string]bool, len(pks))
	for _, pk := range pks {
		pkSet[pk] = true
	}

	const q = `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       column_default IS NOT NULL
		FROM information_schema.columns
		WHERE table_schema = 'public'
		  AND table_name   = $1
		ORDER BY ordinal_position`

	rows, err := d.pool.Query(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var fields []catalog.FieldDescriptor
	for rows.Next() {
		var (
			name, dataType       string
			nullable, hasDefault bool
		)
		if err := rows.Scan(&name, &dataType, &nullable, &hasDefault); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		fields = append(fields, catalog.FieldDescriptor{
			Name:         name,
			Type:         catalog.MapColumnType(dataType),
			IsIdentifier: pkSet[name],
			IsRequired:   !nullable,
			HasDefault:   hasDefault,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &catalog.TableDescriptor{
		Name:       table,
		Fields:     fields,
		PrimaryKey: pks,
	}, nil
}

func (d *Driver) fetchPrimaryKey(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema    = 'public'
		  AND tc.table_name      = $1
		ORDER BY kcu.ordinal_position`

	rows, err := d.pool.Query(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch primary key")
	}
	defer rows.Close()

	var pks []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan primary key column")
		}
		pks = append(pks, name)
	}
	return pks, rows.Err()
}
