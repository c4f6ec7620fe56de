package builder

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/proofgridgo/internal/hclplan"
	"github.com/specialistvlad/proofgridgo/internal/process"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// evalContext builds the expression scope for s. each may be cty.NilVal
// outside for_each.
func evalContext(s *State, each cty.Value) *hcl.EvalContext {
	vars := map[string]cty.Value{
		"platform": PlatformValue(s.Features),
		"input":    s.Input,
		"vars":     s.VarsValue(),
	}
	if each != cty.NilVal {
		vars["each"] = each
	}
	return &hcl.EvalContext{
		Variables: vars,
		Functions: hclplan.Functions(),
	}
}

func eval(expr hcl.Expression, ctx *hcl.EvalContext) (cty.Value, error) {
	if expr == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("%s: value is not known", expr.Range())
	}
	return v, nil
}

func evalBool(expr hcl.Expression, ctx *hcl.EvalContext, def bool) (bool, error) {
	v, err := eval(expr, ctx)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return def, nil
	}
	v, err = convert.Convert(v, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("%s: expected a bool: %w", expr.Range(), err)
	}
	return v.True(), nil
}

func evalString(expr hcl.Expression, ctx *hcl.EvalContext) (string, error) {
	v, err := eval(expr, ctx)
	if err != nil {
		return "", err
	}
	if v.IsNull() {
		return "", fmt.Errorf("%s: expected a string, got null", expr.Range())
	}
	v, err = convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("%s: expected a string: %w", expr.Range(), err)
	}
	return v.AsString(), nil
}

func evalStrings(expr hcl.Expression, ctx *hcl.EvalContext) ([]string, error) {
	v, err := eval(expr, ctx)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	v, err = convert.Convert(v, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("%s: expected a list of strings: %w", expr.Range(), err)
	}
	var out []string
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", expr.Range(), err)
	}
	return out, nil
}

func evalInts(expr hcl.Expression, ctx *hcl.EvalContext) ([]int, error) {
	v, err := eval(expr, ctx)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	v, err = convert.Convert(v, cty.List(cty.Number))
	if err != nil {
		return nil, fmt.Errorf("%s: expected a list of numbers: %w", expr.Range(), err)
	}
	out := make([]int, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, n := it.Element()
		i, acc := n.AsBigFloat().Int64()
		if acc != big.Exact {
			return nil, fmt.Errorf("%s: %s is not a whole number", expr.Range(), n.AsBigFloat().String())
		}
		out = append(out, int(i))
	}
	return out, nil
}

// eachElements expands a for_each value into `each` objects in iteration
// order: lists and tuples by index, maps and objects by key.
func eachElements(v cty.Value) ([]cty.Value, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("for_each must not be null")
	}
	if !v.CanIterateElements() {
		return nil, fmt.Errorf("for_each must be a collection, got %s", v.Type().FriendlyName())
	}
	out := make([]cty.Value, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		k, val := it.Element()
		out = append(out, cty.ObjectVal(map[string]cty.Value{"key": k, "value": val}))
	}
	return out, nil
}

func evalCommand(c *commandSpec, s *State, each cty.Value) (process.Cmd, error) {
	ctx := evalContext(s, each)

	name, err := evalString(c.def.Name, ctx)
	if err != nil {
		return process.Cmd{}, fmt.Errorf("command name: %w", err)
	}
	args, err := evalStrings(c.def.Args, ctx)
	if err != nil {
		return process.Cmd{}, fmt.Errorf("command args: %w", err)
	}
	capture, err := evalBool(c.def.Capture, ctx, true)
	if err != nil {
		return process.Cmd{}, fmt.Errorf("command capture: %w", err)
	}
	emit, err := evalBool(c.def.Emit, ctx, false)
	if err != nil {
		return process.Cmd{}, fmt.Errorf("command emit: %w", err)
	}
	printable, err := evalInts(c.def.PrintableArgs, ctx)
	if err != nil {
		return process.Cmd{}, fmt.Errorf("command printable_args: %w", err)
	}

	cmd := process.Cmd{Name: name, Args: args, Capture: capture, Emit: emit, PrintableArgs: printable}
	if err := cmd.Validate(); err != nil {
		return process.Cmd{}, err
	}
	return cmd, nil
}
