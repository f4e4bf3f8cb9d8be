package store

import (
	"encoding/json"
	"math"
	"strconv"
)

// ID identifies a record inside a collection. An ID is either a string or an
// integer and the two never compare equal: StringID("1") does not match a
// record whose id is the number 1.
type ID struct {
	s       string
	n       int64
	numeric bool
}

// StringID returns a string identifier.
func StringID(s string) ID { return ID{s: s} }

// IntID returns an integer identifier.
func IntID(n int64) ID { return ID{n: n, numeric: true} }

// ParseIntID parses s as a base-10 integer identifier.
func ParseIntID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ID{}, err
	}
	return IntID(n), nil
}

// IDOf extracts an ID from a decoded JSON value. Non-integral numbers and
// any other JSON type are not valid identifiers.
func IDOf(v any) (ID, bool) {
	switch x := v.(type) {
	case string:
		return StringID(x), true
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return ID{}, false
		}
		return IntID(n), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return ID{}, false
		}
		return IntID(int64(x)), true
	case int:
		return IntID(int64(x)), true
	case int64:
		return IntID(x), true
	}
	return ID{}, false
}

// IsInt reports whether the id is an integer.
func (id ID) IsInt() bool { return id.numeric }

// Value returns the id as it is stored in a record: a string or an int64.
func (id ID) Value() any {
	if id.numeric {
		return id.n
	}
	return id.s
}

// Matches reports whether v, a record's "id" field, equals id.
func (id ID) Matches(v any) bool {
	other, ok := IDOf(v)
	return ok && other == id
}

func (id ID) String() string {
	if id.numeric {
		return strconv.FormatInt(id.n, 10)
	}
	return strconv.Quote(id.s)
}
