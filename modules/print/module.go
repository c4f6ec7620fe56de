// Package print provides a handler that writes values to standard output.
package print

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/hclplan"
	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package. Out
// defaults to os.Stdout.
type Module struct {
	Out io.Writer
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	r.RegisterHandler("print", Handler(out))
}

// Args are the arguments of print.
type Args struct {
	Label *string   `cty:"label"`
	Value cty.Value `cty:"value"`
}

// Handler returns a print handler writing to out. Strings are printed as
// they are, anything else as JSON. The value is passed through.
func Handler(out io.Writer) registry.Handler {
	return func(ctx context.Context, args cty.Value) (cty.Value, error) {
		var in Args
		if err := registry.DecodeArgs(args, &in); err != nil {
			return cty.NilVal, err
		}
		ctxlog.FromContext(ctx).Debug("Printing value.")

		text, err := render(in.Value)
		if err != nil {
			return cty.NilVal, err
		}
		if in.Label != nil {
			text = *in.Label + ": " + text
		}
		if _, err := fmt.Fprintln(out, text); err != nil {
			return cty.NilVal, fmt.Errorf("writing output: %w", err)
		}
		if in.Value.IsNull() {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return in.Value, nil
	}
}

func render(v cty.Value) (string, error) {
	if v.IsNull() {
		return "(null)", nil
	}
	if v.Type() == cty.String && v.IsKnown() {
		return v.AsString(), nil
	}
	data, err := hclplan.EncodeJSON(v)
	if err != nil {
		return "", err
	}
	return string(data[:len(data)-1]), nil
}
