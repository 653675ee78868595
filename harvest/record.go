// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package harvest

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
)

// RawRecord is one record as the service returned it, decoded from JSON.
// Values keep the types encoding/json produces for untyped decoding, so
// numbers are float64 and nested lists are []interface{}.
type RawRecord map[string]interface{}

// String returns the value of key rendered as a string. Missing keys and
// null values render as the empty string.
func (r RawRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Strings returns the value of key as a list. List fields are taken
// element-wise, scalar strings are split on commas, semicolons and
// whitespace.
func (r RawRecord) Strings(key string) []string {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case []string:
		return x
	case []interface{}:
		out := make([]string, 0, len(x))
		for i := range x {
			if x[i] == nil {
				continue
			}
			out = append(out, stringify(x[i]))
		}
		return out
	default:
		return SplitList(stringify(v))
	}
}

// Time parses the value of key as a timestamp.
func (r RawRecord) Time(key string) (time.Time, error) {
	raw := r.String(key)
	if raw == "" {
		return time.Time{}, errors.Newf("record has no timestamp in field %s", key)
	}
	return ParseTime(raw)
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []interface{}:
		parts := make([]string, 0, len(x))
		for i := range x {
			if x[i] == nil {
				continue
			}
			parts = append(parts, stringify(x[i]))
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// SplitList breaks a delimited scalar into its entries. Commas, semicolons
// and any whitespace all act as separators, empty entries are dropped.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseTime accepts the timestamp formats the harvested services emit,
// RFC3339 with or without fractional seconds and plain dates.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Newf("unrecognized timestamp format: %s", s)
}
