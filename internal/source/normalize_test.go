package source

import (
	"testing"
	"time"

	"github.com/qq940500529/oracle-feishu-sync/internal/typemap"
)

func TestNormalizeTimeEpochMillis(t *testing.T) {
	// Midnight 2024-01-01 read from Oracle as a zoneless wall-clock value.
	in := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	const want = int64(1704067200000)

	// Conversion to UTC+8 renders the same instant, so both modes agree.
	if got := normalizeTime(in, false); got != want {
		t.Errorf("normalizeTime(convert=false) = %d, want %d", got, want)
	}
	if got := normalizeTime(in, true); got != want {
		t.Errorf("normalizeTime(convert=true) = %d, want %d", got, want)
	}
}

func TestNormalizeTimeIgnoresScanZone(t *testing.T) {
	// Drivers may attach a local zone to a zoneless Oracle DATE. Only the
	// wall-clock fields matter.
	loc := time.FixedZone("somewhere", -5*3600)
	in := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	if got := normalizeTime(in, false); got != 1704067200000 {
		t.Errorf("normalizeTime = %d, want 1704067200000", got)
	}
}

func TestBuildRowOmitsNullColumns(t *testing.T) {
	cols := []string{"ID", "NOTE", "UPDATED_AT"}
	types := []typemap.FieldType{typemap.FieldNumber, typemap.FieldText, typemap.FieldDate}

	row := buildRow(cols, []any{float64(7), nil, nil}, types, false)

	if got := row["ID"]; got != float64(7) {
		t.Errorf("ID = %v, want 7", got)
	}
	for _, name := range []string{"NOTE", "UPDATED_AT"} {
		if _, ok := row[name]; ok {
			t.Errorf("NULL column %s should be omitted, got %v", name, row[name])
		}
	}
	if len(row) != 1 {
		t.Errorf("row has %d fields, want 1: %v", len(row), row)
	}
}

func TestNormalizeValueDate(t *testing.T) {
	in := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)
	got := normalizeValue(in, typemap.FieldDate, false)
	if got != in.UnixMilli() {
		t.Errorf("date = %v, want %d", got, in.UnixMilli())
	}
	if got := normalizeValue(nil, typemap.FieldDate, false); got != nil {
		t.Errorf("nil date = %v, want nil", got)
	}
	// Already-numeric values pass through as epoch millis.
	if got := normalizeValue(int64(1704067200000), typemap.FieldDate, true); got != int64(1704067200000) {
		t.Errorf("numeric date = %v", got)
	}
}

func TestNormalizeValueNumber(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{int64(42), float64(42)},
		{float64(3.5), float64(3.5)},
		{"123.25", float64(123.25)}, // Oracle NUMBER scanned as string
		{[]byte("7"), float64(7)},
		{"not-a-number", "not-a-number"}, // warn and pass through
	}
	for _, tt := range tests {
		if got := normalizeValue(tt.in, typemap.FieldNumber, false); got != tt.want {
			t.Errorf("number %v (%T) = %v, want %v", tt.in, tt.in, got, tt.want)
		}
	}
}

func TestNormalizeValueText(t *testing.T) {
	if got := normalizeValue([]byte("clob body"), typemap.FieldText, false); got != "clob body" {
		t.Errorf("[]byte = %v", got)
	}
	if got := normalizeValue("plain", typemap.FieldText, false); got != "plain" {
		t.Errorf("string = %v", got)
	}
	if got := normalizeValue(int64(9), typemap.FieldText, false); got != "9" {
		t.Errorf("int as text = %v", got)
	}
}

func TestCoerceTemporal(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := coerceTemporal(float64(1704067200000)) // as decoded from JSON
	if err != nil {
		t.Fatalf("coerceTemporal: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("coerced = %v, want %v", got, want)
	}

	got, err = coerceTemporal(int64(1704067200000))
	if err != nil || !got.Equal(want) {
		t.Errorf("int64 coerce = %v, %v", got, err)
	}

	if _, err := coerceTemporal("2024-01-01"); err == nil {
		t.Error("string sync value should be rejected for temporal column")
	}
}
