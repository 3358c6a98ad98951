package models

import "sort"

// FieldSet is the set of field names a caller actually supplied in a write
// request. It drives sparse remote writes: fields outside the set are never
// sent to the remote platform.
type FieldSet map[string]struct{}

// NewFieldSet builds a FieldSet from names.
func NewFieldSet(names ...string) FieldSet {
	fs := make(FieldSet, len(names))
	for _, n := range names {
		fs[n] = struct{}{}
	}
	return fs
}

// Has reports whether name was supplied.
func (fs FieldSet) Has(name string) bool {
	_, ok := fs[name]
	return ok
}

// Add marks name as supplied.
func (fs FieldSet) Add(name string) {
	fs[name] = struct{}{}
}

// Names returns the supplied field names in sorted order.
func (fs FieldSet) Names() []string {
	out := make([]string, 0, len(fs))
	for n := range fs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Filter keeps only the entries of fields whose key is in the set.
func (fs FieldSet) Filter(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fs))
	for k, v := range fields {
		if fs.Has(k) {
			out[k] = v
		}
	}
	return out
}
