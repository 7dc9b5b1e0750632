package hcl_adapter

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// isExprDefined reports whether an optional attribute was present in the
// source. gohcl fills omitted optional expressions with a zero-width
// placeholder, so a nil check is not enough.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

// objectKey evaluates the key of an object constructor item. Bare
// identifiers are taken literally.
func objectKey(expr hcl.Expression) (string, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if v.IsNull() || v.Type() != cty.String {
		return "", fmt.Errorf("%s: object keys must be strings", expr.Range())
	}
	return v.AsString(), nil
}

// decodeRequires reads a requires attribute in source order: string values
// become leaves and nested objects become nested requirements.
func decodeRequires(expr hcl.Expression) (catalog.Requires, error) {
	var out catalog.Requires
	if !isExprDefined(expr) {
		return out, nil
	}
	obj, ok := expr.(*hclsyntax.ObjectConsExpr)
	if !ok {
		v, diags := expr.Value(nil)
		if diags.HasErrors() {
			return out, diags
		}
		if v.IsNull() {
			return out, nil
		}
		return out, fmt.Errorf("%s: requires must be an object", expr.Range())
	}
	for _, item := range obj.Items {
		role, err := objectKey(item.KeyExpr)
		if err != nil {
			return out, err
		}
		if nested, ok := item.ValueExpr.(*hclsyntax.ObjectConsExpr); ok {
			sub, err := decodeRequires(nested)
			if err != nil {
				return out, err
			}
			out.Set(role, catalog.Nested{Requires: sub})
			continue
		}
		v, diags := item.ValueExpr.Value(nil)
		if diags.HasErrors() {
			return out, diags
		}
		if v.IsNull() || v.Type() != cty.String {
			return out, fmt.Errorf("%s: requirement %s must be a resource name or an object", item.ValueExpr.Range(), role)
		}
		out.Set(role, catalog.Leaf{Name: v.AsString()})
	}
	return out, nil
}

// decodeStringMap reads an object of strings, returning its keys in source order.
func decodeStringMap(expr hcl.Expression) ([]string, map[string]string, error) {
	values := make(map[string]string)
	if !isExprDefined(expr) {
		return nil, values, nil
	}
	obj, ok := expr.(*hclsyntax.ObjectConsExpr)
	if !ok {
		return nil, nil, fmt.Errorf("%s: expected an object", expr.Range())
	}
	var keys []string
	for _, item := range obj.Items {
		k, err := objectKey(item.KeyExpr)
		if err != nil {
			return nil, nil, err
		}
		v, diags := item.ValueExpr.Value(nil)
		if diags.HasErrors() {
			return nil, nil, diags
		}
		var s string
		if err := gocty.FromCtyValue(v, &s); err != nil {
			return nil, nil, fmt.Errorf("%s: %s: %w", item.ValueExpr.Range(), k, err)
		}
		if _, dup := values[k]; !dup {
			keys = append(keys, k)
		}
		values[k] = s
	}
	return keys, values, nil
}

// decodeValue converts an expression into the value types of config.Object,
// keeping object keys in source order.
func decodeValue(expr hcl.Expression) (any, error) {
	switch e := expr.(type) {
	case *hclsyntax.ObjectConsExpr:
		obj := config.NewObject()
		for _, item := range e.Items {
			k, err := objectKey(item.KeyExpr)
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(item.ValueExpr)
			if err != nil {
				return nil, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	case *hclsyntax.TupleConsExpr:
		out := make([]any, 0, len(e.Exprs))
		for _, item := range e.Exprs {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	return fromCty(v)
}

// fromCty converts a primitive or collection cty.Value into plain Go values.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			var i int64
			if err := gocty.FromCtyValue(v, &i); err != nil {
				return nil, err
			}
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsObjectType() || ty.IsMapType():
		obj := config.NewObject()
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			conv, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			obj.Set(k.AsString(), conv)
		}
		return obj, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			conv, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}
