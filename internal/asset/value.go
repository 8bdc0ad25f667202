package asset

import (
	"encoding/json"
	"strconv"
)

// Missing is the literal written in place of an absent value.
const Missing = "MISSING"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindText
	KindFlag
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFlag:
		return "flag"
	default:
		return "absent"
	}
}

// Value is a single record leaf: text, a boolean flag, or absent.
// The zero Value is absent. Values are comparable with ==.
type Value struct {
	kind Kind
	text string
	flag bool
}

// Absent returns a value with no data.
func Absent() Value { return Value{} }

// Text returns a text value. The empty string is a valid text value and is
// distinct from Absent.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Flag returns a boolean value.
func Flag(b bool) Value { return Value{kind: KindFlag, flag: b} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v holds no data.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Text returns the text and true if v is a text value.
func (v Value) Text() (string, bool) {
	return v.text, v.kind == KindText
}

// Flag returns the boolean and true if v is a flag value.
func (v Value) Flag() (bool, bool) {
	return v.flag, v.kind == KindFlag
}

// String renders v the way it appears in a record file.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindFlag:
		return strconv.FormatBool(v.flag)
	default:
		return Missing
	}
}

// MarshalJSON encodes absent values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindFlag:
		return json.Marshal(v.flag)
	default:
		return []byte("null"), nil
	}
}
