// Package resolver validates resource references against an MCU profile and
// expands requirement sub-graphs into flat claim maps.
//
// A Resolver is scoped to one device with ForDevice so that every error it
// returns names the device whose configuration caused it.
package resolver

import (
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
)

// Resolver answers resource questions for a single profile.
type Resolver struct {
	profile *catalog.Profile
	device  string
}

// New creates a resolver over the given profile.
func New(p *catalog.Profile) *Resolver {
	return &Resolver{profile: p}
}

// ForDevice returns a copy of r whose errors name the given device.
func (r *Resolver) ForDevice(name string) *Resolver {
	return &Resolver{profile: r.profile, device: name}
}

// Profile returns the profile the resolver works on.
func (r *Resolver) Profile() *catalog.Profile { return r.profile }

// Device returns the device name errors are attributed to.
func (r *Resolver) Device() string { return r.device }

// Errorf builds a structural validation error for the current device.
func (r *Resolver) Errorf(format string, args ...any) error {
	return errcode.New(errcode.StructuralValidation, r.device, format, args...)
}

// Attribute fills the device name of profile helper errors, which are
// raised without one.
func (r *Resolver) Attribute(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*errcode.E); ok && e.Device == "" {
		cp := *e
		cp.Device = r.device
		return &cp
	}
	return err
}

// UnpackSingleton returns the only entry of a {type: name} mapping.
func (r *Resolver) UnpackSingleton(req catalog.Requires) (string, string, error) {
	if req.Len() != 1 {
		return "", "", errcode.New(errcode.MalformedRequirement, r.device,
			"there should be single element in %s, got %d", req, req.Len())
	}
	e := req.Entries()[0]
	leaf, ok := e.Req.(catalog.Leaf)
	if !ok {
		return "", "", errcode.New(errcode.MalformedRequirement, r.device,
			"requirement %s must name a resource, not a nested mapping", e.Role)
	}
	return e.Role, leaf.Name, nil
}

// CheckResource verifies that name exists and, when expectedType is not
// empty, that it has that type.
func (r *Resolver) CheckResource(name, expectedType string) (*catalog.Resource, error) {
	res, ok := r.profile.Lookup(name)
	if !ok {
		return nil, errcode.New(errcode.UnknownResource, r.device,
			"uses invalid resource (%s) for %s", name, r.profile.MCU)
	}
	if expectedType != "" && res.Type != expectedType {
		return nil, errcode.New(errcode.WrongResourceType, r.device,
			"uses resource with wrong type (%s : %s) for %s, %s is expected", name, res.Type, r.profile.MCU, expectedType)
	}
	return res, nil
}

// Resource resolves a {type: name} singleton and checks that the type tag
// equals expectedType, returning the resource name.
func (r *Resolver) Resource(req catalog.Requirement, expectedType string) (string, error) {
	rtype, name, err := r.Singleton(req)
	if err != nil {
		return "", err
	}
	if rtype != expectedType {
		return "", errcode.New(errcode.WrongResourceType, r.device,
			"%s resource is expected, %s (%s) is given", expectedType, name, rtype)
	}
	return name, nil
}

// Singleton resolves a {type: name} requirement and validates the resource.
func (r *Resolver) Singleton(req catalog.Requirement) (string, string, error) {
	n, ok := req.(catalog.Nested)
	if !ok {
		return "", "", errcode.New(errcode.MalformedRequirement, r.device,
			"requirement must be a {type: name} mapping")
	}
	rtype, name, err := r.UnpackSingleton(n.Requires)
	if err != nil {
		return "", "", err
	}
	if _, err := r.CheckResource(name, rtype); err != nil {
		return "", "", err
	}
	return rtype, name, nil
}

// Role resolves the singleton stored under role in req.
func (r *Resolver) Role(req catalog.Requires, role, expectedType string) (string, error) {
	item, ok := req.Get(role)
	if !ok {
		return "", errcode.New(errcode.StructuralValidation, r.device, "%s resource is not specified", role)
	}
	return r.Resource(item, expectedType)
}

// OptionalRole is Role for requirements that may be absent.
func (r *Resolver) OptionalRole(req catalog.Requires, role, expectedType string) (string, bool, error) {
	if !req.Has(role) {
		return "", false, nil
	}
	name, err := r.Role(req, role, expectedType)
	return name, err == nil, err
}

// Timer resolves a timer singleton, optionally checking its subtype.
func (r *Resolver) Timer(req catalog.Requirement, subtype string) (string, error) {
	name, err := r.Resource(req, catalog.TypeTimer)
	if err != nil {
		return "", err
	}
	res, _ := r.profile.Lookup(name)
	if subtype != "" && res.Subtype != subtype {
		return "", errcode.New(errcode.WrongResourceType, r.device,
			"uses invalid timer %s with wrong subtype (%s), subtype=%s is expected", name, res.Subtype, subtype)
	}
	return name, nil
}

// CheckFeature reports whether the named resource has the capability tag.
func (r *Resolver) CheckFeature(name, feature string) (bool, error) {
	res, err := r.CheckResource(name, "")
	if err != nil {
		return false, err
	}
	return res.HasFeature(feature), nil
}

// GetRequiredResource looks up role in the parent resource's own requires
// and returns the single resource of childType listed there.
func (r *Resolver) GetRequiredResource(parent, role, childType string) (string, error) {
	res, err := r.CheckResource(parent, "")
	if err != nil {
		return "", err
	}
	item, ok := res.Requires.Get(role)
	if !ok {
		return "", errcode.New(errcode.StructuralValidation, r.device,
			"resource %s does not require %s", parent, role)
	}
	var rtype, name string
	switch v := item.(type) {
	case catalog.Leaf:
		target, err := r.CheckResource(v.Name, "")
		if err != nil {
			return "", err
		}
		rtype, name = target.Type, v.Name
	case catalog.Nested:
		if v.Requires.Len() != 1 {
			return "", errcode.New(errcode.MalformedRequirement, r.device,
				"resource %s lists %d resources for %s, exactly one is expected", parent, v.Requires.Len(), role)
		}
		if rtype, name, err = r.UnpackSingleton(v.Requires); err != nil {
			return "", err
		}
	}
	if rtype != childType {
		return "", errcode.New(errcode.WrongResourceType, r.device,
			"resource %s has %s of type %s, %s is expected", parent, role, rtype, childType)
	}
	if _, err := r.CheckResource(name, childType); err != nil {
		return "", err
	}
	return name, nil
}

// ExpandTransitiveRequirements flattens the requires sub-graph of root.
// Leaves found under role become role+suffix; nested mappings under role are
// walked with the suffix extended to role+"_"+suffix. Roles listed in
// exclude are skipped together with everything below them. The walk is
// depth-first in declaration order.
func (r *Resolver) ExpandTransitiveRequirements(root, suffix string, exclude ...string) (catalog.Requires, error) {
	res, err := r.CheckResource(root, "")
	if err != nil {
		return catalog.Requires{}, err
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	var out catalog.Requires
	if err := r.expand(res.Requires, suffix, skip, &out); err != nil {
		return catalog.Requires{}, err
	}
	return out, nil
}

func (r *Resolver) expand(req catalog.Requires, suffix string, skip map[string]struct{}, out *catalog.Requires) error {
	for _, e := range req.Entries() {
		if _, ok := skip[e.Role]; ok {
			continue
		}
		switch v := e.Req.(type) {
		case catalog.Leaf:
			res, err := r.CheckResource(v.Name, "")
			if err != nil {
				return err
			}
			key := e.Role + suffix
			if out.Has(key) {
				return errcode.New(errcode.MalformedRequirement, r.device,
					"requirement key %s is synthesized twice", key)
			}
			out.Set(key, catalog.Singleton(res.Type, v.Name))
		case catalog.Nested:
			if err := r.expand(v.Requires, e.Role+"_"+suffix, skip, out); err != nil {
				return err
			}
		}
	}
	return nil
}
