package mysql

import (
	"context"
	"fmt"

	"github.com/incisive-io/tabled/internal/catalog"
)

// DescribeTables implements catalog.Introspector over information_schema.
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
		WHERE table_schema = DATABASE()
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := d.db.QueryContext(ctx, q)
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
	const q = `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       column_default IS NOT NULL OR extra LIKE '%auto_increment%',
		       column_key = 'PRI'
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		ORDER BY ordinal_position`

	rows, err := d.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var (
		fields []catalog.FieldDescriptor
		pks    []string
	)
	for rows.Next() {
		var (
			name, dataType       string
			nullable, hasDefault bool
			isPrimary            bool
		)
		if err := rows.Scan(&name, &dataType, &nullable, &hasDefault, &isPrimary); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		if isPrimary {
			pks = append(pks, name)
		}
		fields = append(fields, catalog.FieldDescriptor{
			Name:         name,
			Type:         catalog.MapColumnType(dataType),
			IsIdentifier: isPrimary,
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
