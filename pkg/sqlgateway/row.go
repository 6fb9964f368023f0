package sqlgateway

import (
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the wall-clock UTC layout used for timestamp
// arguments so that every backend compares them the same way.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp formats t for use as a query argument against timestamp columns.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Row is one buffered result row: column names in select order plus their
// values. Driver byte slices are stored as strings.
type Row struct {
	columns []string
	values  map[string]any
}

func newRow(columns []string, raw map[string]any) Row {
	values := make(map[string]any, len(raw))
	for k, v := range raw {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		values[k] = v
	}
	return Row{columns: columns, values: values}
}

// Columns returns the column names in select order.
func (r Row) Columns() []string { return r.columns }

// Map returns a copy of the row keyed by column name.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r Row) Value(col string) (any, bool) {
	v, ok := r.values[col]
	return v, ok
}

// IsNull reports whether col is absent or NULL.
func (r Row) IsNull(col string) bool {
	v, ok := r.values[col]
	return !ok || v == nil
}

func (r Row) String(col string) string {
	switch v := r.values[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.UTC().Format(TimestampLayout)
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Int64(col string) int64 {
	switch v := r.values[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

var timeLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Time parses col as a UTC timestamp; zero when absent or unparseable.
func (r Row) Time(col string) time.Time {
	switch v := r.values[col].(type) {
	case time.Time:
		return v.UTC()
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
