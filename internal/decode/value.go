package decode

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind names which JSON shape a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindDocument
)

// String returns the lower-case JSON type name; unknown kinds read as "null".
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDocument:
		return "document"
	default:
		return "null"
	}
}

// Value is a decoded cell. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	text string // number literal or string
	doc  json.RawMessage
}

// Null is SQL NULL and any cell that could not be decoded.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number keeps the literal text so decimal precision is not lost to float rounding.
func Number(n json.Number) Value { return Value{kind: KindNumber, text: n.String()} }

// String wraps text, including formatted dates and UUIDs.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Document wraps a JSON tree. The bytes are kept as given.
func Document(raw json.RawMessage) Value { return Value{kind: KindDocument, doc: raw} }

// Kind reports the shape of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// MarshalJSON renders the value as the equivalent JSON literal.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindNumber:
		return []byte(v.text), nil
	case KindString:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v.text); err != nil {
			return nil, err
		}
		return bytes.TrimRight(buf.Bytes(), "\n"), nil
	case KindDocument:
		return v.doc, nil
	default:
		return []byte("null"), nil
	}
}

// String renders the value for display: strings unquoted, Null as "NULL".
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber, KindString:
		return v.text
	case KindDocument:
		return string(v.doc)
	default:
		return "NULL"
	}
}

// Equal reports whether two values have the same kind and content. go-cmp
// calls it when comparing rows, since the fields are unexported.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber, KindString:
		return v.text == o.text
	case KindDocument:
		return bytes.Equal(v.doc, o.doc)
	default:
		return true
	}
}
