// Package jsonutil provides shared helpers for decoding loosely typed JSON
// from external tools.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnmarshalWithContext unmarshals JSON data into v and wraps any error
// with the provided context message.
func UnmarshalWithContext(data []byte, v interface{}, context string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", context, err)
	}
	return nil
}

// Kind is the top-level JSON value kind of a document.
type Kind int

const (
	KindInvalid Kind = iota
	KindObject
	KindArray
	KindOther
)

// KindOf reports whether data holds an object, an array or something else,
// judged by its first non-whitespace byte.
func KindOf(data []byte) Kind {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return KindInvalid
	}
	switch trimmed[0] {
	case '{':
		return KindObject
	case '[':
		return KindArray
	default:
		return KindOther
	}
}

// ToFloat coerces a raw JSON value to a finite float64. Numbers and numeric
// strings convert; null, absent, non-numeric and non-finite values yield 0.
func ToFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
