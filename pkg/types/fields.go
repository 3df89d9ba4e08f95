package types

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Field is one name/value pair of a record.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Fields is the ordered field mapping of a record. Iteration follows
// insertion order; overwriting a field keeps its position.
type Fields struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewFields returns an empty mapping.
func NewFields() *Fields {
	return &Fields{m: orderedmap.New[string, string]()}
}

// FieldsOf builds a mapping from pairs, in order.
func FieldsOf(pairs ...Field) *Fields {
	f := NewFields()
	for _, p := range pairs {
		f.Set(p.Name, p.Value)
	}
	return f
}

// Set creates or overwrites a field.
func (f *Fields) Set(name, value string) {
	f.m.Set(name, value)
}

// Get returns a field value and whether it exists.
func (f *Fields) Get(name string) (string, bool) {
	return f.m.Get(name)
}

// Delete removes a field. Reports whether it existed.
func (f *Fields) Delete(name string) bool {
	_, ok := f.m.Delete(name)
	return ok
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	return f.m.Len()
}

// Pairs returns the fields in order.
func (f *Fields) Pairs() []Field {
	out := make([]Field, 0, f.m.Len())
	for p := f.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, Field{Name: p.Key, Value: p.Value})
	}
	return out
}

// Names returns the field names in order.
func (f *Fields) Names() []string {
	out := make([]string, 0, f.m.Len())
	for p := f.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Map returns an unordered copy, suitable as template substitutions.
func (f *Fields) Map() map[string]string {
	out := make(map[string]string, f.m.Len())
	for p := f.m.Oldest(); p != nil; p = p.Next() {
		out[p.Key] = p.Value
	}
	return out
}

// Clone returns an independent copy.
func (f *Fields) Clone() *Fields {
	return FieldsOf(f.Pairs()...)
}
