package catalog

import (
	"fmt"

	"github.com/specialistvlad/mcugraph/internal/dag"
	"github.com/specialistvlad/mcugraph/internal/errcode"
)

// Catalog is the read-only table of resources available on one MCU.
type Catalog struct {
	resources map[string]*Resource
	order     []string
}

// New builds a catalog and validates it: names are unique, types come from
// the closed set, every requires leaf and handler names a catalog resource,
// and the requires graph is acyclic.
func New(resources ...*Resource) (*Catalog, error) {
	c := &Catalog{resources: make(map[string]*Resource, len(resources))}
	for _, r := range resources {
		if r.Name == "" {
			return nil, errcode.New(errcode.StructuralValidation, "", "resource without a name")
		}
		if _, dup := c.resources[r.Name]; dup {
			return nil, errcode.New(errcode.StructuralValidation, "", "resource %s is declared twice", r.Name)
		}
		if !IsKnownType(r.Type) {
			return nil, errcode.New(errcode.WrongResourceType, "", "resource %s has unknown type %q", r.Name, r.Type)
		}
		c.resources[r.Name] = r
		c.order = append(c.order, r.Name)
	}

	g := dag.New()
	for _, name := range c.order {
		g.AddNode(name)
	}
	for _, name := range c.order {
		r := c.resources[name]
		for _, leaf := range r.Requires.Leaves() {
			if _, ok := c.resources[leaf]; !ok {
				return nil, errcode.New(errcode.UnknownResource, "", "resource %s requires unknown resource %s", name, leaf)
			}
			if err := g.AddEdge(name, leaf); err != nil {
				return nil, errcode.Wrap(errcode.MalformedRequirement, "", fmt.Errorf("resource %s: %w", name, err))
			}
		}
		for _, role := range r.HandlerOrder {
			h := r.Handlers[role]
			target, ok := c.resources[h]
			if !ok {
				return nil, errcode.New(errcode.UnknownResource, "", "resource %s declares unknown %s %s", name, role, h)
			}
			if target.Type != TypeIRQHandler {
				return nil, errcode.New(errcode.WrongResourceType, "", "resource %s declares %s %s which is not an irq_handler", name, role, h)
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return nil, errcode.Wrap(errcode.MalformedRequirement, "", fmt.Errorf("requires graph is not acyclic: %w", err))
	}
	return c, nil
}

// Lookup returns the named resource.
func (c *Catalog) Lookup(name string) (*Resource, bool) {
	r, ok := c.resources[name]
	return r, ok
}

// ByType returns every resource of the given type in declaration order.
func (c *Catalog) ByType(t string) []*Resource {
	var out []*Resource
	for _, name := range c.order {
		if r := c.resources[name]; r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// Names returns every resource name in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len reports the number of resources.
func (c *Catalog) Len() int { return len(c.order) }
