package registry

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// DecodeArgs decodes handler arguments into target, a pointer to a struct
// with `cty` tags. Omitted attributes decode as null, so pointer, slice and
// map fields are optional and the rest are required. Extra attributes are
// ignored. Null args are treated as an empty object.
func DecodeArgs(args cty.Value, target any) error {
	ty, err := gocty.ImpliedType(target)
	if err != nil {
		return fmt.Errorf("unsupported argument target %T: %w", target, err)
	}
	if args.IsNull() {
		args = cty.EmptyObjectVal
	}

	if ty.IsObjectType() && (args.Type().IsObjectType() || args.Type().IsMapType()) {
		attrs := make(map[string]cty.Value)
		for it := args.ElementIterator(); it.Next(); {
			k, v := it.Element()
			attrs[k.AsString()] = v
		}
		for name, aty := range ty.AttributeTypes() {
			if _, ok := attrs[name]; !ok {
				attrs[name] = cty.NullVal(aty)
			}
		}
		args = cty.ObjectVal(attrs)
	}

	conv, err := convert.Convert(args, ty)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := gocty.FromCtyValue(conv, target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// EncodeValue converts a Go value into a cty value of its implied type. A
// cty.Value is returned unchanged.
func EncodeValue(v any) (cty.Value, error) {
	if cv, ok := v.(cty.Value); ok {
		return cv, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("value of type %T is not representable: %w", v, err)
	}
	return gocty.ToCtyValue(v, ty)
}
