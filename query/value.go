package query

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies which variant of the [Value] tagged union is populated.
// It mirrors the wire datatypes named in the annotated-CSV dialect
// (#datatype annotation values).
type Kind int

const (
	// KindUnknown is the zero value; no [Value] should carry it.
	KindUnknown Kind = iota
	KindString
	KindDouble
	KindBool
	KindLong
	KindUnsignedLong
	KindDuration
	KindBase64Binary
	KindTimeRFC
)

// wireTypeNames maps the #datatype annotation text to a [Kind]. Unknown
// text fails with [UnsupportedTypeError].
var wireTypeNames = map[string]Kind{
	"string":           KindString,
	"double":           KindDouble,
	"boolean":          KindBool,
	"long":             KindLong,
	"unsignedLong":     KindUnsignedLong,
	"duration":         KindDuration,
	"base64Binary":     KindBase64Binary,
	"dateTime:RFC3339": KindTimeRFC,
}

// parseKind resolves a #datatype annotation cell to a [Kind].
func parseKind(text string) (Kind, error) {
	k, ok := wireTypeNames[text]
	if !ok {
		return KindUnknown, &UnsupportedTypeError{Text: text}
	}
	return k, nil
}

// Value is a tagged union over the database's scalar types. The zero Value
// is not meaningful; construct one with the New* functions or via [decode].
type Value struct {
	kind  Kind
	str   string
	f64   float64
	i64   int64
	u64   uint64
	bin   []byte
	t     time.Time
}

// NewString constructs a String value.
func NewString(s string) Value { return Value{kind: KindString, str: s} }

// NewDouble constructs a Double value. f may be NaN or infinite.
func NewDouble(f float64) Value { return Value{kind: KindDouble, f64: f} }

// NewBool constructs a Bool value.
func NewBool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i64 = 1
	}
	return v
}

// NewLong constructs a signed 64-bit Long value.
func NewLong(i int64) Value { return Value{kind: KindLong, i64: i} }

// NewUnsignedLong constructs an unsigned 64-bit UnsignedLong value.
func NewUnsignedLong(u uint64) Value { return Value{kind: KindUnsignedLong, u64: u} }

// NewDuration constructs a Duration value from a signed nanosecond count.
func NewDuration(ns int64) Value { return Value{kind: KindDuration, i64: ns} }

// NewBase64Binary constructs a Base64Binary value. b is copied.
func NewBase64Binary(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBase64Binary, bin: cp}
}

// NewTimeRFC constructs a TimeRFC value.
func NewTimeRFC(t time.Time) Value { return Value{kind: KindTimeRFC, t: t} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// AsString returns v's string content if v is a String value.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsDouble returns v's float content if v is a Double value.
func (v Value) AsDouble() (float64, bool) {
	if v.kind != KindDouble {
		return 0, false
	}
	return v.f64, true
}

// AsBool returns v's boolean content if v is a Bool value.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.i64 != 0, true
}

// AsLong returns v's signed integer content if v is a Long value.
func (v Value) AsLong() (int64, bool) {
	if v.kind != KindLong {
		return 0, false
	}
	return v.i64, true
}

// AsUnsignedLong returns v's unsigned integer content if v is an
// UnsignedLong value.
func (v Value) AsUnsignedLong() (uint64, bool) {
	if v.kind != KindUnsignedLong {
		return 0, false
	}
	return v.u64, true
}

// AsDuration returns v's signed nanosecond count as a [time.Duration] if v
// is a Duration value.
func (v Value) AsDuration() (time.Duration, bool) {
	if v.kind != KindDuration {
		return 0, false
	}
	return time.Duration(v.i64), true
}

// AsBase64Binary returns v's byte content if v is a Base64Binary value.
// The returned slice is owned by v and must not be mutated.
func (v Value) AsBase64Binary() ([]byte, bool) {
	if v.kind != KindBase64Binary {
		return nil, false
	}
	return v.bin, true
}

// AsTimeRFC returns v's instant if v is a TimeRFC value.
func (v Value) AsTimeRFC() (time.Time, bool) {
	if v.kind != KindTimeRFC {
		return time.Time{}, false
	}
	return v.t, true
}

// String renders v for logging and error messages. It is not used for
// decoding and is not guaranteed to round-trip through decode.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindDouble:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case KindLong:
		return strconv.FormatInt(v.i64, 10)
	case KindUnsignedLong:
		return strconv.FormatUint(v.u64, 10)
	case KindDuration:
		return time.Duration(v.i64).String()
	case KindBase64Binary:
		return base64.StdEncoding.EncodeToString(v.bin)
	case KindTimeRFC:
		return v.t.Format(time.RFC3339Nano)
	default:
		return "<unknown>"
	}
}

// Equal reports whether v and other hold the same kind and content. Double
// equality is total: NaN is treated as equal to NaN, matching the totality
// requirement for Record equality (see SPEC_FULL.md §4.1).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindDouble:
		return math.Float64bits(v.f64) == math.Float64bits(other.f64)
	case KindBool:
		return v.i64 == other.i64
	case KindLong:
		return v.i64 == other.i64
	case KindUnsignedLong:
		return v.u64 == other.u64
	case KindDuration:
		return v.i64 == other.i64
	case KindBase64Binary:
		if len(v.bin) != len(other.bin) {
			return false
		}
		for i := range v.bin {
			if v.bin[i] != other.bin[i] {
				return false
			}
		}
		return true
	case KindTimeRFC:
		return v.t.Equal(other.t)
	default:
		return true
	}
}

// errMissingValue is the sentinel decode returns when a cell is empty, no
// default applies, and the column's type cannot represent absence.
var errMissingValue = errors.New("missing value")

// decode converts cell text to a [Value] of the given declared kind,
// substituting def first when cell is empty and def is non-empty. See
// spec.md §4.1 for the per-variant grammar.
func decode(cell string, kind Kind, def string) (Value, error) {
	if cell == "" && def != "" {
		cell = def
	}
	if cell == "" {
		if kind == KindString {
			return NewString(""), nil
		}
		return Value{}, errMissingValue
	}

	switch kind {
	case KindString:
		return NewString(cell), nil
	case KindDouble:
		return decodeDouble(cell)
	case KindBool:
		return decodeBool(cell)
	case KindLong:
		return decodeLong(cell)
	case KindUnsignedLong:
		return decodeUnsignedLong(cell)
	case KindDuration:
		return decodeDuration(cell)
	case KindBase64Binary:
		return decodeBase64Binary(cell)
	case KindTimeRFC:
		return decodeTimeRFC(cell)
	default:
		return Value{}, &UnsupportedTypeError{Text: cell}
	}
}

func decodeDouble(cell string) (Value, error) {
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return Value{}, err
	}
	return NewDouble(f), nil
}

func decodeBool(cell string) (Value, error) {
	switch cell {
	case "true", "True", "t", "1":
		return NewBool(true), nil
	case "false", "False", "f", "0":
		return NewBool(false), nil
	default:
		return Value{}, fmt.Errorf("invalid boolean %q", cell)
	}
}

func decodeLong(cell string) (Value, error) {
	i, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return Value{}, err
	}
	return NewLong(i), nil
}

func decodeUnsignedLong(cell string) (Value, error) {
	u, err := strconv.ParseUint(cell, 10, 64)
	if err != nil {
		return Value{}, err
	}
	return NewUnsignedLong(u), nil
}

func decodeBase64Binary(cell string) (Value, error) {
	b, err := base64.StdEncoding.DecodeString(cell)
	if err != nil {
		return Value{}, err
	}
	return NewBase64Binary(b), nil
}

func decodeTimeRFC(cell string) (Value, error) {
	t, err := time.Parse(time.RFC3339Nano, cell)
	if err != nil {
		return Value{}, err
	}
	return NewTimeRFC(t), nil
}

// durationUnitNanos maps a duration segment unit to its nanosecond
// multiplier. Units past "s" are calendar-naive (a day is exactly 24h, a
// week exactly 7d), matching the wire spec's composition rule.
var durationUnitNanos = map[string]float64{
	"ns": 1,
	"us": 1e3,
	"µs": 1e3,
	"ms": 1e6,
	"s":  1e9,
	"m":  6e10,
	"h":  3.6e12,
	"d":  8.64e13,
	"w":  6.048e14,
}

func decodeDuration(cell string) (Value, error) {
	ns, err := parseDurationNanos(cell)
	if err != nil {
		return Value{}, err
	}
	return NewDuration(ns), nil
}

// parseDurationNanos sums the segments of a signed duration literal
// (<number><unit> repeated) into a nanosecond count, failing on overflow.
func parseDurationNanos(s string) (int64, error) {
	orig := s
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}

	var total int64
	for s != "" {
		numEnd := 0
		for numEnd < len(s) && (isDigit(s[numEnd]) || s[numEnd] == '.') {
			numEnd++
		}
		if numEnd == 0 {
			return 0, fmt.Errorf("invalid duration %q: expected number", orig)
		}
		numText := s[:numEnd]
		s = s[numEnd:]

		unitEnd := 0
		for unitEnd < len(s) && !isDigit(s[unitEnd]) && s[unitEnd] != '.' {
			unitEnd++
		}
		if unitEnd == 0 {
			return 0, fmt.Errorf("invalid duration %q: expected unit", orig)
		}
		unitText := s[:unitEnd]
		s = s[unitEnd:]

		mult, ok := durationUnitNanos[unitText]
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", orig, unitText)
		}
		num, err := strconv.ParseFloat(numText, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
		}

		segNs := num * mult
		if segNs > math.MaxInt64 || segNs < math.MinInt64 {
			return 0, fmt.Errorf("duration %q overflows", orig)
		}
		seg := int64(segNs)

		next := total + seg
		if (seg > 0 && next < total) || (seg < 0 && next > total) {
			return 0, fmt.Errorf("duration %q overflows", orig)
		}
		total = next
	}

	if neg {
		total = -total
	}
	return total, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
