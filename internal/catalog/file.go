package catalog

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// A schema definition file is the build-time alternative to live
// introspection. It is the only place relation fields can be declared,
// since virtual relations do not exist as storage columns.
//
//	tables:
//	  - name: users
//	    primary_key: [id]
//	    fields:
//	      - {name: id, type: string, required: true, default: true}
//	      - {name: email, type: string, required: true}

type fileSchema struct {
	Tables []fileTable `yaml:"tables"`
}

type fileTable struct {
	Name       string      `yaml:"name"`
	PrimaryKey []string    `yaml:"primary_key"`
	Fields     []fileField `yaml:"fields"`
}

type fileField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Relation bool   `yaml:"relation"`
	Required bool   `yaml:"required"`
	Default  bool   `yaml:"default"`
}

// LoadFile builds a Catalog from a YAML schema definition file.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read schema file %s: %w", path, err)
	}
	return ParseSchema(raw)
}

// ParseSchema builds a Catalog from YAML schema definition bytes.
func ParseSchema(raw []byte) (*Catalog, error) {
	var fs fileSchema
	if err := yaml.Unmarshal(raw, &fs); err != nil {
		return nil, fmt.Errorf("catalog: parse schema file: %w", err)
	}

	descriptors := make([]TableDescriptor, 0, len(fs.Tables))
	for _, ft := range fs.Tables {
		pkSet := make(map[string]bool, len(ft.PrimaryKey))
		for _, pk := range ft.PrimaryKey {
			pkSet[pk] = true
		}

		fields := make([]FieldDescriptor, 0, len(ft.Fields))
		for _, ff := range ft.Fields {
			lt := LogicalType(ff.Type)
			switch lt {
			case TypeString, TypeInt32, TypeInt64, TypeFloat, TypeBoolean, TypeTimestamp, TypeJSON:
			case "":
				lt = TypeString
			default:
				return nil, fmt.Errorf("catalog: table %q field %q has unknown type %q", ft.Name, ff.Name, ff.Type)
			}
			fields = append(fields, FieldDescriptor{
				Name:         ff.Name,
				Type:         lt,
				IsIdentifier: pkSet[ff.Name],
				IsRelation:   ff.Relation,
				IsRequired:   ff.Required,
				HasDefault:   ff.Default,
			})
		}

		descriptors = append(descriptors, TableDescriptor{
			Name:       ft.Name,
			Fields:     fields,
			PrimaryKey: ft.PrimaryKey,
		})
	}

	return New(descriptors)
}
