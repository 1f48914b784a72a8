package cell

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	DateTimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.9999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

var monthNames = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Parse converts text into a cell of affinity a. Malformed text is a format error.
func Parse(text string, a Affinity) (Cell, error) {
	trimmed := strings.TrimSpace(text)

	switch a {
	case AffinityBool:
		switch strings.ToLower(trimmed) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return Null(a), fmt.Errorf("malformed bool `%s`: %w", text, ErrFormat)

	case AffinityInt64:
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return Null(a), fmt.Errorf("malformed integer `%s`: %w", text, ErrFormat)
		}
		return Int(v), nil

	case AffinityDouble:
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return Null(a), fmt.Errorf("malformed double `%s`: %w", text, ErrFormat)
		}
		return Double(v), nil

	case AffinityDateTime:
		t, err := ParseDate(trimmed)
		if err != nil {
			return Null(a), err
		}
		c := DateTime(t)
		if c.null {
			return c, fmt.Errorf("date `%s` out of range: %w", text, ErrFormat)
		}
		return c, nil

	case AffinityString:
		return String(text), nil

	case AffinityBlob:
		b, err := ParseHex(trimmed)
		if err != nil {
			return Null(a), err
		}
		return Blob(b), nil
	}

	return Null(a), fmt.Errorf("unknown affinity %d: %w", a, ErrFormat)
}

// TryParse is the lenient form of Parse: failures become the null cell of a.
func TryParse(text string, a Affinity) Cell {
	c, err := Parse(text, a)
	if err != nil {
		return Null(a)
	}
	return c
}

// ParseDate accepts the common date layouts plus `DD-MON-YYYY` month names.
func ParseDate(text string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}

	parts := strings.Split(text, "-")
	if len(parts) == 3 && len(parts[1]) == 3 {
		month, ok := monthNames[strings.ToUpper(parts[1])]
		if !ok {
			return time.Time{}, fmt.Errorf("malformed month `%s`: %w", parts[1], ErrFormat)
		}
		day, dayErr := strconv.Atoi(parts[0])
		year, yearErr := strconv.Atoi(parts[2])
		if dayErr != nil || yearErr != nil || day < 1 || day > 31 || year < 1 || year > 9999 {
			return time.Time{}, fmt.Errorf("malformed date `%s`: %w", text, ErrFormat)
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
	}

	return time.Time{}, fmt.Errorf("malformed date `%s`: %w", text, ErrFormat)
}

// ParseHex decodes a hex blob literal, with or without a 0x prefix.
func ParseHex(text string) ([]byte, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	b, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("malformed hex `%s`: %w", text, ErrFormat)
	}
	return b, nil
}

// Unbox converts a Go value into a cell. Unsupported types are a format error.
func Unbox(v any) (Cell, error) {
	switch t := v.(type) {
	case Cell:
		return t, nil
	case nil:
		return Null(AffinityString), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Null(AffinityInt64), fmt.Errorf("value %d overflows int64: %w", t, ErrFormat)
		}
		return Int(int64(t)), nil
	case float32:
		return Double(float64(t)), nil
	case float64:
		return Double(t), nil
	case time.Time:
		c := DateTime(t)
		if c.null {
			return c, fmt.Errorf("date %s out of range: %w", t, ErrFormat)
		}
		return c, nil
	case string:
		return String(t), nil
	case []byte:
		return Blob(t), nil
	}
	return Null(AffinityString), fmt.Errorf("unsupported value type %T: %w", v, ErrFormat)
}

// TryUnbox is the lenient form of Unbox.
func TryUnbox(v any) Cell {
	c, _ := Unbox(v)
	return c
}
