package sqlmapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Row is an ordered mapping from column name to value. Keys keep the order in
// which they were first set, which for query results is the column order
// returned by the backend.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow returns an empty row. Pairs of key and value may be given to fill it.
//
//	sqlmapper.NewRow("name", "ubuntu", "value", 16)
func NewRow(pairs ...any) *Row {
	r := &Row{values: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(fmt.Sprint(pairs[i]), pairs[i+1])
	}
	return r
}

// Set sets the value of key. A new key is appended at the end.
func (r *Row) Set(key string, v any) *Row {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value of key, or nil if absent.
func (r *Row) Get(key string) any {
	return r.values[key]
}

// Lookup returns the value of key and whether it is present.
func (r *Row) Lookup(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in order.
func (r *Row) Keys() []string {
	return slices.Clone(r.keys)
}

// Len returns the number of keys.
func (r *Row) Len() int {
	return len(r.keys)
}

// Joined returns the nested row stored under key by a join. The boolean is
// false when the key is missing or a left join found no match.
func (r *Row) Joined(key string) (*Row, bool) {
	nested, ok := r.values[key].(*Row)
	return nested, ok
}

// Map returns the row as a plain map. Nested rows become nested maps and the
// NoValue marker becomes nil.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		m[k] = plain(r.values[k])
	}
	return m
}

func plain(v any) any {
	switch v := v.(type) {
	case *Row:
		return v.Map()
	default:
		if IsNoValue(v) {
			return nil
		}
		return v
	}
}

// String returns the row in a compact "{key: value, ...}" form.
func (r *Row) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", k, r.values[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

// MarshalJSON implements json.Marshaler, keeping the key order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v := r.values[k]
		if IsNoValue(v) {
			v = nil
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("sqlmapper: marshal %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML implements yaml.Marshaler, keeping the key order.
func (r *Row) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range r.keys {
		v := r.values[k]
		if IsNoValue(v) {
			v = nil
		}
		val := yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if v == nil {
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &val)
			continue
		}
		if err := val.Encode(v); err != nil {
			return nil, fmt.Errorf("sqlmapper: marshal %q: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&val,
		)
	}
	return node, nil
}
