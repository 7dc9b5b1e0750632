package allocator

import (
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// Named resolves the resource stored under role, written either as a plain
// name ({"can": "CAN1"}) or as a singleton ({"can": {"can": "CAN1"}}).
func Named(r *resolver.Resolver, req catalog.Requires, role, rtype string) (string, error) {
	item, ok := req.Get(role)
	if !ok {
		return "", r.Errorf("%s resource is not specified", role)
	}
	if leaf, ok := item.(catalog.Leaf); ok {
		if _, err := r.CheckResource(leaf.Name, rtype); err != nil {
			return "", err
		}
		return leaf.Name, nil
	}
	return r.Resource(item, rtype)
}
