package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombooking/internal/domain"
)

// record is one decoded JSON object from a backend payload.
type record map[string]any

// value returns the first non-null value stored under any of keys.
func (r record) value(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := r[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// str returns the first non-blank scalar under keys as trimmed text.
func (r record) str(keys ...string) string {
	for _, key := range keys {
		if s, ok := scalarString(r[key]); ok && s != "" {
			return s
		}
	}
	return ""
}

// text is like str but keeps inner whitespace and accepts arrays of strings,
// which are joined by newlines.
func (r record) text(keys ...string) string {
	for _, key := range keys {
		switch v := r[key].(type) {
		case []any:
			lines := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := scalarString(item); ok && s != "" {
					lines = append(lines, s)
				}
			}
			if len(lines) > 0 {
				return strings.Join(lines, "\n")
			}
		default:
			if s, ok := scalarString(v); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// id resolves the first non-null id under keys. Values may be raw ids or nested
// objects of kind ref, in which case the nested object's id aliases are used.
func (r record) id(ref domain.Kind, keys ...string) domain.ID {
	for _, key := range keys {
		switch v := r[key].(type) {
		case nil:
			continue
		case map[string]any:
			if id := record(v).id(ref, ref.IDAliases()...); !id.IsZero() {
				return id
			}
		default:
			if id, ok := domain.ParseID(v); ok {
				return id
			}
		}
	}
	return ""
}

// nested returns the first object stored under keys.
func (r record) nested(keys ...string) (record, bool) {
	for _, key := range keys {
		if m, ok := r[key].(map[string]any); ok {
			return record(m), true
		}
	}
	return nil, false
}

// list returns the first array stored under keys.
func (r record) list(keys ...string) []any {
	for _, key := range keys {
		if items, ok := r[key].([]any); ok {
			return items
		}
	}
	return nil
}

// integer returns the first value under keys that reads as an integer.
func (r record) integer(keys ...string) (int64, bool) {
	for _, key := range keys {
		if n, ok := toInt(r[key]); ok {
			return n, true
		}
	}
	return 0, false
}

// timestamp parses the first non-blank timestamp under keys in loc.
func (r record) timestamp(loc *time.Location, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		s, ok := scalarString(r[key])
		if !ok || s == "" {
			continue
		}
		if t, err := domain.ParseTimestamp(s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil || math.Trunc(f) != f {
			return 0, false
		}
		return int64(f), true
	case float64:
		if math.Trunc(n) != n || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
