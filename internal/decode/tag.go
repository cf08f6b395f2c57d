// Package decode converts raw column values into a stable value representation.
//
// Every source type name maps to exactly one Tag through ParseTag; Decode then
// applies the Tag's rule. Decoding is total: a cell that cannot be read under its
// Tag becomes Null instead of failing the row.
package decode

import "strings"

// Tag is the closed set of decoding rules. Unrecognized type names map to TagUnknown.
type Tag uint8

const (
	TagUnknown Tag = iota
	TagUUID
	TagText
	TagDate
	TagTimestamp
	TagTimestampTZ
	TagInt2
	TagInt4
	TagInt8
	TagFloat
	TagNumeric
	TagJSON
	TagBool

	tagCount
)

var tagNames = [tagCount]string{
	TagUnknown:     "UNKNOWN",
	TagUUID:        "UUID",
	TagText:        "TEXT",
	TagDate:        "DATE",
	TagTimestamp:   "TIMESTAMP",
	TagTimestampTZ: "TIMESTAMPTZ",
	TagInt2:        "INT2",
	TagInt4:        "INT4",
	TagInt8:        "INT8",
	TagFloat:       "FLOAT8",
	TagNumeric:     "NUMERIC",
	TagJSON:        "JSONB",
	TagBool:        "BOOL",
}

func (t Tag) String() string {
	if t >= tagCount {
		return tagNames[TagUnknown]
	}
	return tagNames[t]
}

// typeNames covers Postgres udt/pgx names and SQLite declared types.
// SQLite INTEGER is 64-bit, so it maps to TagInt8.
var typeNames = map[string]Tag{
	"UUID": TagUUID,

	"TEXT":              TagText,
	"VARCHAR":           TagText,
	"CHAR":              TagText,
	"BPCHAR":            TagText,
	"NAME":              TagText,
	"CITEXT":            TagText,
	"CHARACTER":         TagText,
	"CHARACTER VARYING": TagText,
	"NCHAR":             TagText,
	"NVARCHAR":          TagText,
	"CLOB":              TagText,

	"DATE": TagDate,

	"TIMESTAMP":                   TagTimestamp,
	"DATETIME":                    TagTimestamp,
	"TIMESTAMP WITHOUT TIME ZONE": TagTimestamp,

	"TIMESTAMPTZ":              TagTimestampTZ,
	"TIMESTAMP WITH TIME ZONE": TagTimestampTZ,

	"INT2":        TagInt2,
	"SMALLINT":    TagInt2,
	"SMALLSERIAL": TagInt2,
	"INT4":        TagInt4,
	"INT":         TagInt4,
	"MEDIUMINT":   TagInt4,
	"SERIAL":      TagInt4,
	"INT8":        TagInt8,
	"BIGINT":      TagInt8,
	"BIGSERIAL":   TagInt8,
	"INTEGER":     TagInt8,

	"FLOAT4":           TagFloat,
	"FLOAT8":           TagFloat,
	"REAL":             TagFloat,
	"FLOAT":            TagFloat,
	"DOUBLE":           TagFloat,
	"DOUBLE PRECISION": TagFloat,

	"NUMERIC": TagNumeric,
	"DECIMAL": TagNumeric,

	"JSON":  TagJSON,
	"JSONB": TagJSON,

	"BOOL":    TagBool,
	"BOOLEAN": TagBool,
}

// ParseTag maps a source type name to its Tag, case-insensitively. Length and
// precision modifiers ("VARCHAR(255)", "NUMERIC(10, 2)") are ignored.
func ParseTag(typeName string) Tag {
	if tag, ok := typeNames[normalizeTypeName(typeName)]; ok {
		return tag
	}
	return TagUnknown
}

func normalizeTypeName(name string) string {
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}
