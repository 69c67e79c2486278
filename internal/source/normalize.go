package source

import (
	"fmt"
	"strconv"
	"time"

	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
	"github.com/qq940500529/oracle-feishu-sync/internal/typemap"
)

// zoneUTC8 is the display zone applied when timezone conversion is on.
var zoneUTC8 = time.FixedZone("UTC+8", 8*60*60)

// normalizeValue converts a scanned Oracle value into the shape the sink
// accepts for the given field type: epoch milliseconds for dates, float64
// for numbers, string for text. Nil passes through.
func normalizeValue(v any, ft typemap.FieldType, convertTZ bool) any {
	if v == nil {
		return nil
	}

	switch ft {
	case typemap.FieldDate:
		switch t := v.(type) {
		case time.Time:
			return normalizeTime(t, convertTZ)
		case int64:
			return t
		case float64:
			return int64(t)
		}
		return fmt.Sprintf("%v", v)

	case typemap.FieldNumber:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int32:
			return float64(n)
		case int64:
			return float64(n)
		case string:
			return parseNumber(n)
		case []byte:
			return parseNumber(string(n))
		}
		return fmt.Sprintf("%v", v)

	default:
		switch s := v.(type) {
		case string:
			return s
		case []byte:
			return string(s)
		case time.Time:
			return s.Format(time.RFC3339)
		}
		return fmt.Sprintf("%v", v)
	}
}

// normalizeTime converts an Oracle DATE/TIMESTAMP to epoch milliseconds.
// Oracle temporal values carry no zone, so the wall-clock reading is
// pinned to UTC first; conversion then renders the same instant in UTC+8.
func normalizeTime(t time.Time, convertTZ bool) int64 {
	utc := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	if convertTZ {
		utc = utc.In(zoneUTC8)
	}
	return utc.UnixMilli()
}

func parseNumber(s string) any {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logging.Warn("Non-numeric value %q in numeric column, passing through as text", s)
		return s
	}
	return f
}
