package catalog

import "strings"

// MapColumnType converts a storage column type name (Postgres or MySQL
// information_schema spelling) to a LogicalType. Unrecognised types map to
// string, the safest projection type.
func MapColumnType(dataType string) LogicalType {
	switch strings.ToLower(dataType) {
	case "text", "varchar", "character varying", "character", "char",
		"uuid", "citext", "enum", "tinytext", "mediumtext", "longtext":
		return TypeString
	case "integer", "int", "int4", "smallint", "int2", "mediumint", "tinyint":
		return TypeInt32
	case "bigint", "int8":
		return TypeInt64
	case "numeric", "decimal", "real", "float4", "double precision",
		"float8", "float", "double", "money":
		return TypeFloat
	case "boolean", "bool":
		return TypeBoolean
	case "timestamp", "timestamptz", "timestamp with time zone",
		"timestamp without time zone", "date", "datetime", "time":
		return TypeTimestamp
	case "json", "jsonb":
		return TypeJSON
	default:
		return TypeString
	}
}
