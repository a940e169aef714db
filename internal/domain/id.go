package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ID is the canonical identifier of an entity. Backends emit ids as JSON numbers
// on some endpoints and as strings on others; both collapse to the same textual
// form so that 5, 5.0 and "5" compare equal.
type ID string

// ParseID converts a raw JSON value into an ID. It reports false for null,
// blank and non-scalar values.
func ParseID(value any) (ID, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case ID:
		return ParseID(string(v))
	case json.Number:
		return parseNumericID(v.String())
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Trunc(v) != v {
			return ID(strconv.FormatFloat(v, 'f', -1, 64)), true
		}
		if math.Abs(v) < 1<<63 {
			return ID(strconv.FormatInt(int64(v), 10)), true
		}
		n, _ := big.NewFloat(v).Int(nil)
		return ID(n.String()), true
	case int:
		return ID(strconv.Itoa(v)), true
	case int64:
		return ID(strconv.FormatInt(v, 10)), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", false
		}
		if id, ok := integerID(trimmed); ok {
			return id, true
		}
		return ID(trimmed), true
	default:
		return "", false
	}
}

// integerID canonicalizes a decimal integer literal of any size.
func integerID(raw string) (ID, bool) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ID(strconv.FormatInt(n, 10)), true
	}
	if n, ok := new(big.Int).SetString(raw, 10); ok {
		return ID(n.String()), true
	}
	return "", false
}

func parseNumericID(raw string) (ID, bool) {
	if id, ok := integerID(raw); ok {
		return id, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	return ParseID(f)
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// Canonical returns the canonical form of id, so that "05" and "5" compare
// equal. Blank ids stay blank.
func (id ID) Canonical() ID {
	canonical, _ := ParseID(string(id))
	return canonical
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Int returns the integer form of the id when it has one.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// MarshalJSON emits integer ids as JSON numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, ok := id.Int(); ok && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("domain: decode id: %w", err)
	}
	parsed, ok := ParseID(raw)
	if !ok {
		if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
			*id = ""
			return nil
		}
		return fmt.Errorf("domain: unsupported id value %s", string(trimmed))
	}
	*id = parsed
	return nil
}
