package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MetadataKind identifies the value type held by a MetadataValue.
type MetadataKind int

const (
	MetadataString MetadataKind = iota
	MetadataNumber
	MetadataBool
	MetadataStringList
)

// MetadataValue is one value in an event's metadata bag. The bag is
// schema-less on the wire but the value space is closed: strings, numbers,
// booleans and lists of strings. Anything else is rejected at parse time so
// the persisted format stays portable.
type MetadataValue struct {
	Kind MetadataKind
	Str  string
	Num  float64
	Bool bool
	List []string
}

// Metadata is the open key-value bag attached to a metric event.
type Metadata map[string]MetadataValue

// StringValue returns a metadata string value for k, or "" if absent or
// not a string.
func (m Metadata) StringValue(k string) string {
	if v, ok := m[k]; ok && v.Kind == MetadataString {
		return v.Str
	}
	return ""
}

// MarshalJSON renders the value as its natural JSON type.
func (v MetadataValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case MetadataString:
		return json.Marshal(v.Str)
	case MetadataNumber:
		return json.Marshal(v.Num)
	case MetadataBool:
		return json.Marshal(v.Bool)
	case MetadataStringList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	}
	return nil, fmt.Errorf("metadata: unknown kind %d", v.Kind)
}

// UnmarshalJSON accepts a string, number, bool, or array of strings.
// Nested objects and mixed arrays are rejected.
func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = MetadataValue{Kind: MetadataString, Str: t}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("metadata: bad number %q: %w", t.String(), err)
		}
		*v = MetadataValue{Kind: MetadataNumber, Num: f}
	case bool:
		*v = MetadataValue{Kind: MetadataBool, Bool: t}
	case []interface{}:
		list := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("metadata: array elements must be strings, got %T", e)
			}
			list = append(list, s)
		}
		*v = MetadataValue{Kind: MetadataStringList, List: list}
	default:
		return fmt.Errorf("metadata: unsupported value type %T", raw)
	}
	return nil
}

// Summary renders the bag as human-readable "key: value" pairs in sorted
// key order, for CSV export and log lines.
func (m Metadata) Summary() string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		var s string
		switch v.Kind {
		case MetadataString:
			s = v.Str
		case MetadataNumber:
			s = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v.Num), "0"), ".")
		case MetadataBool:
			s = fmt.Sprintf("%t", v.Bool)
		case MetadataStringList:
			s = strings.Join(v.List, "|")
		}
		parts = append(parts, k+": "+s)
	}
	return strings.Join(parts, ", ")
}
