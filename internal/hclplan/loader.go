package hclplan

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/proofgridgo/internal/config"
	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/fsutil"
	"github.com/specialistvlad/proofgridgo/internal/plan"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL plan loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under paths. Missing paths are skipped, so a
// default plans directory may be absent.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindFilesByExtension(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	model := config.NewModel()
	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := l.decode(hclFile.Body, file, model); err != nil {
			return nil, err
		}
	}

	logger.Debug("HCL loading complete.", "plans", len(model.Plans))
	return model, nil
}

// LoadSource parses a single in-memory file. The name is used in
// diagnostics.
func (l *Loader) LoadSource(src []byte, name string) (*config.Model, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", name, diags)
	}
	model := config.NewModel()
	if err := l.decode(hclFile.Body, name, model); err != nil {
		return nil, err
	}
	return model, nil
}

func (l *Loader) decode(body hcl.Body, file string, model *config.Model) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
	}
	for _, pb := range root.Plans {
		p, err := translatePlan(pb, file)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if err := model.Add(p); err != nil {
			return err
		}
	}
	return nil
}

func translatePlan(pb *planBlock, file string) (*config.Plan, error) {
	p := &config.Plan{
		Name:        pb.Name,
		Description: pb.Description,
		Source:      file,
		Init:        translateCall(pb.Init),
		Output:      present(pb.Output),
		Finally:     translateCall(pb.Finally),
	}

	var errs []error
	seen := make(map[string]struct{}, len(pb.Stages))
	for i, sb := range pb.Stages {
		if _, dup := seen[sb.Name]; dup {
			errs = append(errs, fmt.Errorf("stage %d: name '%s' is used twice", i, sb.Name))
		}
		seen[sb.Name] = struct{}{}

		st, err := translateStage(sb)
		if err != nil {
			errs = append(errs, fmt.Errorf("stage %d '%s': %w", i, sb.Name, err))
			continue
		}
		p.Stages = append(p.Stages, st)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w '%s': %w", plan.ErrInvalidPlan, pb.Name, errors.Join(errs...))
	}
	return p, nil
}

func translateStage(sb *stageBlock) (*config.Stage, error) {
	kind, err := plan.ParseKind(sb.Kind)
	if err != nil {
		return nil, err
	}

	st := &config.Stage{
		Kind:         kind.String(),
		Name:         sb.Name,
		When:         present(sb.When),
		ForEach:      present(sb.ForEach),
		Numa:         sb.Numa,
		Into:         sb.Into,
		AllowFailure: sb.AllowFailure,
	}

	switch kind {
	case plan.MainThread:
		if sb.Handler == "" {
			return nil, errors.New("main-thread stage requires 'handler'")
		}
		if sb.Command != nil {
			return nil, errors.New("main-thread stage cannot have a 'command' block")
		}
		st.Call = &config.Call{Handler: sb.Handler, Args: present(sb.Args), Into: sb.Into}
	case plan.SerialCmd, plan.ParallelCmd:
		if sb.Command == nil {
			return nil, fmt.Errorf("%s stage requires a 'command' block", kind)
		}
		if sb.Handler != "" {
			return nil, fmt.Errorf("%s stage cannot have 'handler'", kind)
		}
		st.Command = &config.Command{
			Name:          sb.Command.Name,
			Args:          present(sb.Command.Args),
			Capture:       present(sb.Command.Capture),
			Emit:          present(sb.Command.Emit),
			PrintableArgs: present(sb.Command.PrintableArgs),
		}
	}

	if kind != plan.ParallelCmd {
		if st.ForEach != nil {
			return nil, errors.New("'for_each' is only allowed on parallel-cmd stages")
		}
		if st.Numa {
			return nil, errors.New("'numa' is only allowed on parallel-cmd stages")
		}
	}
	return st, nil
}

func translateCall(cb *callBlock) *config.Call {
	if cb == nil {
		return nil
	}
	return &config.Call{Handler: cb.Handler, Args: present(cb.Args), Into: cb.Into}
}

// present maps the placeholder gohcl leaves for an omitted optional
// attribute to nil.
func present(expr hcl.Expression) hcl.Expression {
	if expr == nil {
		return nil
	}
	if len(expr.Variables()) == 0 {
		if v, diags := expr.Value(nil); !diags.HasErrors() && v.IsNull() {
			return nil
		}
	}
	return expr
}
