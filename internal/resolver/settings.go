package resolver

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Decode fills out, a pointer to a struct whose fields carry `cty` tags, from
// a device's settings. Pointer, slice and map fields are optional; every other
// tagged field must be present. Keys without a tagged field are ignored.
//
// Integers must be integral, strings must be strings and flags accept
// booleans as well as 0/1. periph names the settings owner in messages.
func (r *Resolver) Decode(fields *config.Object, periph string, out any) error {
	ty, err := gocty.ImpliedType(out)
	if err != nil {
		return fmt.Errorf("settings of %s: %w", periph, err)
	}
	if !ty.IsObjectType() {
		return fmt.Errorf("settings of %s: %T is not a struct", periph, out)
	}
	val, err := r.objectVal(fields, periph, ty)
	if err != nil {
		return err
	}
	if err := gocty.FromCtyValue(val, out); err != nil {
		var pe cty.PathError
		if errors.As(err, &pe) {
			if key, aty, ok := lastAttr(ty, pe.Path); ok {
				return r.missing(key, periph, aty)
			}
		}
		return errcode.Wrap(errcode.StructuralValidation, r.device, err)
	}
	return nil
}

// objectVal converts a mapping into a cty object of type ty. Missing keys
// become nulls so that gocty can tell required fields from optional ones.
func (r *Resolver) objectVal(o *config.Object, periph string, ty cty.Type) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(ty.AttributeTypes()))
	for key, aty := range ty.AttributeTypes() {
		v, ok := o.Get(key)
		if !ok || v == nil {
			attrs[key] = cty.NullVal(aty)
			continue
		}
		cv, err := r.toCty(key, periph, v, aty)
		if err != nil {
			return cty.NilVal, err
		}
		attrs[key] = cv
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}

func (r *Resolver) toCty(key, periph string, v any, ty cty.Type) (cty.Value, error) {
	switch {
	case ty == cty.Number:
		if n, ok := config.AsInt(v); ok {
			return cty.NumberIntVal(n), nil
		}
	case ty == cty.String:
		if s, ok := config.AsString(v); ok {
			return cty.StringVal(s), nil
		}
	case ty == cty.Bool:
		if b, ok := config.AsBool(v); ok {
			return cty.BoolVal(b), nil
		}
	case ty.IsObjectType():
		if o, ok := v.(*config.Object); ok {
			return r.objectVal(o, key, ty)
		}
	case ty.IsMapType():
		o, ok := v.(*config.Object)
		if !ok {
			break
		}
		if o.Len() == 0 {
			return cty.MapValEmpty(ty.ElementType()), nil
		}
		elems := make(map[string]cty.Value, o.Len())
		for _, k := range o.Keys() {
			ev, _ := o.Get(k)
			cv, err := r.toCty(k, key, ev, ty.ElementType())
			if err != nil {
				return cty.NilVal, err
			}
			elems[k] = cv
		}
		return cty.MapVal(elems), nil
	case ty.IsListType():
		list, ok := v.([]any)
		if !ok {
			break
		}
		if len(list) == 0 {
			return cty.ListValEmpty(ty.ElementType()), nil
		}
		elems := make([]cty.Value, 0, len(list))
		for i, ev := range list {
			cv, err := r.toCty(fmt.Sprintf("%s[%d]", key, i), periph, ev, ty.ElementType())
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, cv)
		}
		return cty.ListVal(elems), nil
	}
	return cty.NilVal, r.invalid(key, periph, ty)
}

func (r *Resolver) missing(key, periph string, ty cty.Type) error {
	if ty == cty.Number {
		return errcode.New(errcode.StructuralValidation, r.device,
			"has no '%s' value defined for '%s'. Must be defined", key, periph)
	}
	return errcode.New(errcode.StructuralValidation, r.device, "'%s' is not specified", key)
}

func (r *Resolver) invalid(key, periph string, ty cty.Type) error {
	switch {
	case ty == cty.Number:
		return errcode.New(errcode.StructuralValidation, r.device,
			"has invalid '%s' value type for '%s'. Must be integer", key, periph)
	case ty == cty.String:
		return errcode.New(errcode.StructuralValidation, r.device, "'%s' must be a string", key)
	case ty == cty.Bool:
		return errcode.New(errcode.StructuralValidation, r.device, "'%s' must be a boolean or 0/1", key)
	case ty.IsListType():
		return errcode.New(errcode.StructuralValidation, r.device, "'%s' must be a list", key)
	}
	return errcode.New(errcode.StructuralValidation, r.device, "'%s' must be a mapping", key)
}

// lastAttr finds the innermost attribute named by a decode error path.
func lastAttr(ty cty.Type, path cty.Path) (string, cty.Type, bool) {
	var (
		key   string
		found bool
	)
	for _, step := range path {
		attr, ok := step.(cty.GetAttrStep)
		if !ok || !ty.IsObjectType() || !ty.HasAttribute(attr.Name) {
			return key, ty, found
		}
		key, ty, found = attr.Name, ty.AttributeType(attr.Name), true
	}
	return key, ty, found
}

// OneOf checks an integer setting against its allowed values.
func (r *Resolver) OneOf(periph, key string, n int64, allowed ...int64) error {
	if slices.Contains(allowed, n) {
		return nil
	}
	strs := make([]string, len(allowed))
	for i, a := range allowed {
		strs[i] = fmt.Sprint(a)
	}
	return errcode.New(errcode.StructuralValidation, r.device,
		"has invalid '%s' value (%d) for '%s'. Must be one of {%s}", key, n, periph, strings.Join(strs, ", "))
}

// ObjectField reads a mandatory nested mapping whose key order matters, such
// as per-pin or per-motor settings. Each entry is then read with Decode.
func (r *Resolver) ObjectField(fields *config.Object, key string) (*config.Object, error) {
	v, ok := fields.Get(key)
	if !ok {
		return nil, errcode.New(errcode.StructuralValidation, r.device, "'%s' is not specified", key)
	}
	o, ok := v.(*config.Object)
	if !ok {
		return nil, errcode.New(errcode.StructuralValidation, r.device, "'%s' must be a mapping", key)
	}
	return o, nil
}
