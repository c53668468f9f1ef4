package dataprocessing

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Record is one coerced row keyed by column name. It marshals as a JSON
// object whose keys follow column order.
type Record struct {
	keys   []string
	values []any
}

// NewRecord pairs column names with coerced values.
func NewRecord(keys []string, values []any) Record {
	return Record{keys: keys, values: values}
}

// Get returns the value stored under the column name.
func (r Record) Get(name string) (any, bool) {
	for i, k := range r.keys {
		if k == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Keys returns the column names in order.
func (r Record) Keys() []string { return r.keys }

// Map returns the record as an unordered map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for i, k := range r.keys {
		m[k] = r.values[i]
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
