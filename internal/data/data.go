// Package data holds the record and dataset structures shared by the
// generation and comparison halves of the engine, plus the sentinel tokens
// used to express nulls and booleans in otherwise string-typed tables.
package data

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sentinel tokens recognized in factory and expectation tables.
const (
	SentinelNull  = "{NULL}"
	SentinelTrue  = "{True}"
	SentinelFalse = "{False}"
)

// Kind describes what a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindNull
	KindBool
)

// Value is a single cell: a literal string, a null, or a boolean.
// Comparison is string-based everywhere else, so Value deliberately has no
// numeric kind.
type Value struct {
	kind Kind
	str  string
	b    bool
}

// String returns a string-kinded value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool returns a boolean-kinded value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// FromSentinel converts a raw table cell to a Value, normalizing the
// {NULL}/{True}/{False} tokens. Any other text is a literal string.
func FromSentinel(cell string) Value {
	switch cell {
	case SentinelNull:
		return Null()
	case SentinelTrue:
		return Bool(true)
	case SentinelFalse:
		return Bool(false)
	default:
		return String(cell)
	}
}

// Kind reports the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsTrue reports whether the value is the boolean true.
func (v Value) IsTrue() bool { return v.kind == KindBool && v.b }

// Text returns the literal text form of the value. Nulls render as the
// {NULL} sentinel and booleans as {True}/{False}, matching how values travel
// through string-typed tables.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return SentinelNull
	case KindBool:
		if v.b {
			return SentinelTrue
		}
		return SentinelFalse
	default:
		return v.str
	}
}

// Equal reports exact equality: kinds must match, and string/bool payloads
// must match. {NULL} only equals an actual null, and booleans never equal
// the strings "True"/"False".
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.str == o.str
	default:
		return true
	}
}

// MarshalJSON renders the value in its native JSON form: null, true/false,
// or a string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON accepts null, booleans, strings, and numbers. Numbers are
// normalized to their string form with any trailing ".0" trimmed, since the
// engine compares everything as strings.
func (v *Value) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return err
	}

	switch t := parsed.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = Bool(t)
	case string:
		*v = String(t)
	case json.Number:
		*v = String(trimTrailingZero(t.String()))
	default:
		return fmt.Errorf("unsupported value type %T", parsed)
	}
	return nil
}

func trimTrailingZero(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// Record is one row: column name to value. Column ordering lives on the
// enclosing Dataset.
type Record map[string]Value

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Equal reports whether two records have the same columns and values.
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Dataset is an ordered sequence of records for one source or target. The
// explicit column list distinguishes an empty dataset from one that was
// never produced.
type Dataset struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// HasColumn reports whether the dataset declares the given column.
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}
