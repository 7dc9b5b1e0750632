package catalog

import (
	"fmt"
	"strings"
)

// Requirement is one node of a requires graph: either a Leaf naming a
// resource or a Nested sub-graph.
type Requirement interface {
	isRequirement()
}

// Leaf references a single catalog resource by name.
type Leaf struct {
	Name string
}

// Nested is a sub-graph of further requirements.
type Nested struct {
	Requires Requires
}

func (Leaf) isRequirement()   {}
func (Nested) isRequirement() {}

// Entry is a single role → requirement pair.
type Entry struct {
	Role string
	Req  Requirement
}

// Requires is an ordered mapping from role name to Requirement. The zero
// value is an empty mapping ready to use. Declaration order is preserved
// because allocation results (channel order, synthesized indexes) depend on it.
type Requires struct {
	entries []Entry
}

// NewRequires builds a mapping from entries, later duplicates replacing
// earlier ones in place.
func NewRequires(entries ...Entry) Requires {
	var r Requires
	for _, e := range entries {
		r.Set(e.Role, e.Req)
	}
	return r
}

// Singleton returns the conventional {resourceType: resourceName} mapping.
func Singleton(resourceType, name string) Nested {
	return Nested{Requires: NewRequires(Entry{Role: resourceType, Req: Leaf{Name: name}})}
}

// Len reports the number of top-level roles.
func (r Requires) Len() int { return len(r.entries) }

// Entries returns the top-level entries in declaration order.
func (r Requires) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Roles returns the top-level role names in declaration order.
func (r Requires) Roles() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Role)
	}
	return out
}

// Get returns the requirement stored under role.
func (r Requires) Get(role string) (Requirement, bool) {
	for _, e := range r.entries {
		if e.Role == role {
			return e.Req, true
		}
	}
	return nil, false
}

// Has reports whether role is present.
func (r Requires) Has(role string) bool {
	_, ok := r.Get(role)
	return ok
}

// Set replaces the requirement under role, or appends it when absent.
func (r *Requires) Set(role string, req Requirement) {
	for i, e := range r.entries {
		if e.Role == role {
			r.entries[i].Req = req
			return
		}
	}
	r.entries = append(r.entries, Entry{Role: role, Req: req})
}

// Clone returns a deep copy.
func (r Requires) Clone() Requires {
	out := Requires{entries: make([]Entry, 0, len(r.entries))}
	for _, e := range r.entries {
		switch v := e.Req.(type) {
		case Nested:
			out.entries = append(out.entries, Entry{Role: e.Role, Req: Nested{Requires: v.Requires.Clone()}})
		default:
			out.entries = append(out.entries, e)
		}
	}
	return out
}

// Merge returns a copy of r with every entry of other applied on top of it.
// Roles present in both take the value from other; new roles are appended.
func (r Requires) Merge(other Requires) Requires {
	out := r.Clone()
	for _, e := range other.Clone().entries {
		out.Set(e.Role, e.Req)
	}
	return out
}

// Leaves flattens the mapping into every leaf resource name, depth-first in
// declaration order. Keys are ignored.
func (r Requires) Leaves() []string {
	var out []string
	for _, e := range r.entries {
		switch v := e.Req.(type) {
		case Leaf:
			out = append(out, v.Name)
		case Nested:
			out = append(out, v.Requires.Leaves()...)
		}
	}
	return out
}

// String renders the mapping in a compact, deterministic form for logs.
func (r Requires) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			b.WriteString(", ")
		}
		switch v := e.Req.(type) {
		case Leaf:
			fmt.Fprintf(&b, "%s: %s", e.Role, v.Name)
		case Nested:
			fmt.Fprintf(&b, "%s: %s", e.Role, v.Requires.String())
		}
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the mapping as an ordered JSON object, leaves as strings.
func (r Requires) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:", e.Role)
		switch v := e.Req.(type) {
		case Leaf:
			fmt.Fprintf(&b, "%q", v.Name)
		case Nested:
			nested, err := v.Requires.MarshalJSON()
			if err != nil {
				return nil, err
			}
			b.Write(nested)
		}
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
