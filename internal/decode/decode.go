package decode

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	dateLayout        = "2006-01-02"
	timestampLayout   = "2006-01-02T15:04:05"
	timestampTZLayout = "2006-01-02T15:04:05.999999999-07:00"
)

// timeLayouts accepts the RFC3339Nano form database/sql produces from a
// time.Time as well as the Postgres text output forms.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	dateLayout,
}

// DecodeNamed decodes raw under the Tag named by typeName.
func DecodeNamed(typeName string, raw []byte) Value {
	return Decode(ParseTag(typeName), raw)
}

// Decode converts the text form of one cell. A nil raw is SQL NULL. Any cell
// that cannot be read under its tag becomes Null; Decode never fails.
func Decode(tag Tag, raw []byte) Value {
	if raw == nil {
		return Null()
	}
	switch tag {
	case TagUUID:
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return Null()
		}
		return String(id.String())
	case TagText:
		if !utf8.Valid(raw) {
			return Null()
		}
		return String(string(raw))
	case TagDate:
		return formatTime(raw, dateLayout, false)
	case TagTimestamp:
		return formatTime(raw, timestampLayout, false)
	case TagTimestampTZ:
		return formatTime(raw, timestampTZLayout, true)
	case TagInt2, TagInt4, TagInt8:
		return parseInt(raw)
	case TagFloat:
		return parseFloat(raw)
	case TagNumeric:
		if n, ok := numberLiteral(raw); ok {
			return Number(n)
		}
		return Null()
	case TagJSON:
		if !json.Valid(raw) {
			return Null()
		}
		return Document(append(json.RawMessage(nil), raw...))
	case TagBool:
		b, err := strconv.ParseBool(strings.TrimSpace(string(raw)))
		if err != nil {
			return Null()
		}
		return Bool(b)
	case TagUnknown:
		return fallback(raw)
	default:
		return fallback(raw)
	}
}

// fallback reconstructs a string from the raw bytes, or Null when they are not UTF-8.
func fallback(raw []byte) Value {
	if !utf8.Valid(raw) {
		return Null()
	}
	return String(string(raw))
}

// parseInt reads every integer tag as 64-bit. SQLite stores all integer
// affinity columns as 64-bit whatever the declared name, and Postgres already
// enforces the narrower widths.
func parseInt(raw []byte) Value {
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return Null()
	}
	return Number(json.Number(strconv.FormatInt(n, 10)))
}

func parseFloat(raw []byte) Value {
	s := strings.TrimSpace(string(raw))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	if n, ok := numberLiteral([]byte(s)); ok {
		return Number(n)
	}
	return Number(json.Number(strconv.FormatFloat(f, 'g', -1, 64)))
}

// numberLiteral accepts raw only if it is a valid JSON number literal, which
// keeps the exact digits of NUMERIC values.
func numberLiteral(raw []byte) (json.Number, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil || n == "" {
		return "", false
	}
	return n, true
}

func formatTime(raw []byte, layout string, toUTC bool) Value {
	s := strings.TrimSpace(string(raw))
	for _, l := range timeLayouts {
		t, err := time.Parse(l, s)
		if err != nil {
			continue
		}
		if toUTC {
			t = t.UTC()
		}
		return String(t.Format(layout))
	}
	return Null()
}
