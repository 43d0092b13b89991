package telemetry

import (
	"bytes"
	"math"
	"strconv"
	"unicode/utf8"
)

// maxNumberLen caps how much of a numeric payload is considered.
const maxNumberLen = 31

// Value is a decoded payload ready to be written to a slot.
type Value struct {
	kind Kind
	num  float64
	text string
}

// FloatValue wraps a numeric reading.
func FloatValue(f float64) Value { return Value{kind: KindFloat, num: f} }

// IntValue wraps a whole-number reading.
func IntValue(n int) Value { return Value{kind: KindInt, num: float64(n)} }

// TextValue wraps a text reading. The caller is responsible for bounds;
// [Decode] applies them.
func TextValue(s string) Value { return Value{kind: KindText, text: s} }

// Kind reports what the value holds.
func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric reading, zero for text values.
func (v Value) Float() float64 { return v.num }

// Int returns the numeric reading truncated toward zero.
func (v Value) Int() int { return int(v.num) }

// Text returns the text reading, empty for numeric values.
func (v Value) Text() string { return v.text }

// ParseNumber decodes a decimal text payload. Surrounding whitespace is
// ignored and only the first 31 bytes are considered. Anything that is
// not a finite decimal number decodes to zero; upstream sends empty or
// "unavailable" retained messages often enough that this is not an error.
func ParseNumber(payload []byte) float64 {
	if len(payload) > maxNumberLen {
		payload = payload[:maxNumberLen]
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(string(payload), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// TruncateText copies at most limit bytes of payload. The cut is moved
// back to the nearest rune boundary so a multi-byte character is never
// split.
func TruncateText(payload []byte, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(payload) <= limit {
		return string(payload)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(payload[cut]) {
		cut--
	}
	return string(payload[:cut])
}

// Decode applies rule to payload.
func Decode(rule Rule, payload []byte) Value {
	switch rule.Kind {
	case KindText:
		return TextValue(TruncateText(payload, rule.MaxLen))
	case KindInt:
		return Value{kind: KindInt, num: math.Trunc(scale(ParseNumber(payload), rule.Divisor))}
	default:
		return FloatValue(scale(ParseNumber(payload), rule.Divisor))
	}
}

func scale(f, divisor float64) float64 {
	if divisor == 0 {
		return f
	}
	return f / divisor
}
