// Package typemap converts Oracle column types to Feishu Bitable field
// types. The mapping is total: any unrecognized type falls back to Text
// with a warning, never an error.
package typemap

import (
	"strings"

	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
)

// FieldType is a Feishu Bitable field type code.
type FieldType int

// Bitable field type codes, as accepted by the field and table creation
// APIs. Only the three used by the sync engine are enumerated.
const (
	FieldText   FieldType = 1
	FieldNumber FieldType = 2
	FieldDate   FieldType = 5
)

// String returns the Bitable field type name.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldNumber:
		return "number"
	case FieldDate:
		return "date"
	}
	return "unknown"
}

// Map converts an Oracle data type to a Feishu field type.
// Type names are matched case-insensitively; parameterized forms such as
// TIMESTAMP(6) or TIMESTAMP(6) WITH TIME ZONE map by prefix.
func Map(oracleType string) FieldType {
	t := strings.ToUpper(strings.TrimSpace(oracleType))

	switch t {
	// Numeric family
	case "NUMBER", "INTEGER", "INT", "SMALLINT", "FLOAT", "DECIMAL",
		"BINARY_FLOAT", "BINARY_DOUBLE", "REAL":
		return FieldNumber

	// Temporal family
	case "DATE", "TIMESTAMP":
		return FieldDate

	// Textual and large-object family
	case "VARCHAR2", "VARCHAR", "NVARCHAR2", "CHAR", "NCHAR",
		"CLOB", "NCLOB", "LONG", "RAW", "LONG RAW", "BLOB", "ROWID", "XMLTYPE":
		return FieldText
	}

	if strings.HasPrefix(t, "TIMESTAMP") {
		return FieldDate
	}
	if strings.HasPrefix(t, "INTERVAL") {
		return FieldText
	}

	logging.Warn("Unrecognized Oracle type %q, mapping to text", oracleType)
	return FieldText
}

// IsTemporal reports whether the Oracle type carries a date/time value.
// Used by the cursor to decide whether a persisted epoch-millisecond sync
// value must be converted back to a temporal bind parameter.
func IsTemporal(oracleType string) bool {
	return Map(oracleType) == FieldDate
}
