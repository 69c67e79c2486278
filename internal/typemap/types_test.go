package typemap

import "testing"

func TestMapKnownTypes(t *testing.T) {
	tests := []struct {
		oracle string
		want   FieldType
	}{
		{"NUMBER", FieldNumber},
		{"INTEGER", FieldNumber},
		{"FLOAT", FieldNumber},
		{"DECIMAL", FieldNumber},
		{"BINARY_DOUBLE", FieldNumber},
		{"DATE", FieldDate},
		{"TIMESTAMP", FieldDate},
		{"TIMESTAMP(6)", FieldDate},
		{"TIMESTAMP(6) WITH TIME ZONE", FieldDate},
		{"VARCHAR2", FieldText},
		{"NVARCHAR2", FieldText},
		{"CHAR", FieldText},
		{"CLOB", FieldText},
		{"BLOB", FieldText},
		{"INTERVAL DAY TO SECOND", FieldText},
	}

	for _, tt := range tests {
		if got := Map(tt.oracle); got != tt.want {
			t.Errorf("Map(%q) = %v, want %v", tt.oracle, got, tt.want)
		}
	}
}

func TestMapCaseInsensitive(t *testing.T) {
	if got := Map("varchar2"); got != FieldText {
		t.Errorf("Map(varchar2) = %v, want text", got)
	}
	if got := Map("  number  "); got != FieldNumber {
		t.Errorf("Map with whitespace = %v, want number", got)
	}
}

func TestMapUnknownFallsBackToText(t *testing.T) {
	for _, typ := range []string{"SDO_GEOMETRY", "BFILE", "ANYDATA", ""} {
		if got := Map(typ); got != FieldText {
			t.Errorf("Map(%q) = %v, want text fallback", typ, got)
		}
	}
}

func TestIsTemporal(t *testing.T) {
	if !IsTemporal("DATE") {
		t.Error("DATE should be temporal")
	}
	if !IsTemporal("TIMESTAMP(6)") {
		t.Error("TIMESTAMP(6) should be temporal")
	}
	if IsTemporal("NUMBER") {
		t.Error("NUMBER should not be temporal")
	}
	if IsTemporal("VARCHAR2") {
		t.Error("VARCHAR2 should not be temporal")
	}
}

func TestFieldTypeString(t *testing.T) {
	tests := []struct {
		ft   FieldType
		want string
	}{
		{FieldText, "text"},
		{FieldNumber, "number"},
		{FieldDate, "date"},
		{FieldType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.ft.String(); got != tt.want {
			t.Errorf("FieldType(%d).String() = %q, want %q", int(tt.ft), got, tt.want)
		}
	}
}
