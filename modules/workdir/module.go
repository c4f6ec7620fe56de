// Package workdir provides handlers that manage per-execution working
// directories and the files inside them.
package workdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// DefaultRoot is where working directories are created when no root is given.
const DefaultRoot = ".conversion-cache"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the handlers with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("workdir.create", Create)
	r.RegisterHandler("workdir.mkdirs", Mkdirs)
	r.RegisterHandler("workdir.remove", Remove)
	r.RegisterHandler("file.write", WriteFile)
	r.RegisterHandler("file.read", ReadFile)
}

// CreateArgs are the arguments of workdir.create.
type CreateArgs struct {
	Root *string `cty:"root"`
	Name *string `cty:"name"`
	// Structure is either a list of relative directories or a map of parent
	// directory to children.
	Structure cty.Value `cty:"structure"`
}

// Dir describes a created working directory.
type Dir struct {
	Name string `cty:"name"`
	Path string `cty:"path"`
}

// Create makes a fresh working directory named by a random uuid unless a
// name is given, plus any requested subdirectories.
func Create(ctx context.Context, args cty.Value) (cty.Value, error) {
	var in CreateArgs
	if err := registry.DecodeArgs(args, &in); err != nil {
		return cty.NilVal, err
	}

	root := DefaultRoot
	if in.Root != nil && *in.Root != "" {
		root = *in.Root
	}
	name := uuid.NewString()
	if in.Name != nil && *in.Name != "" {
		name = *in.Name
	}

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("creating working directory: %w", err)
	}
	subdirs, err := structurePaths(in.Structure)
	if err != nil {
		return cty.NilVal, err
	}
	for _, sub := range subdirs {
		if err := mkdirWithin(dir, sub); err != nil {
			return cty.NilVal, err
		}
	}

	ctxlog.FromContext(ctx).Debug("Created working directory.", "path", dir, "subdirs", len(subdirs))
	return registry.EncodeValue(Dir{Name: name, Path: dir})
}

// MkdirsArgs are the arguments of workdir.mkdirs.
type MkdirsArgs struct {
	Path      string    `cty:"path"`
	Structure cty.Value `cty:"structure"`
}

// Mkdirs creates a directory structure below an existing path and returns
// the created paths.
func Mkdirs(ctx context.Context, args cty.Value) (cty.Value, error) {
	var in MkdirsArgs
	if err := registry.DecodeArgs(args, &in); err != nil {
		return cty.NilVal, err
	}
	subdirs, err := structurePaths(in.Structure)
	if err != nil {
		return cty.NilVal, err
	}
	created := make([]string, 0, len(subdirs))
	for _, sub := range subdirs {
		if err := mkdirWithin(in.Path, sub); err != nil {
			return cty.NilVal, err
		}
		created = append(created, filepath.Join(in.Path, sub))
	}
	ctxlog.FromContext(ctx).Debug("Created directories.", "path", in.Path, "count", len(created))
	return registry.EncodeValue(created)
}

// PathArgs carry a single path.
type PathArgs struct {
	Path string `cty:"path"`
}

// Remove deletes a working directory and everything below it. A missing
// directory is not an error.
func Remove(ctx context.Context, args cty.Value) (cty.Value, error) {
	var in PathArgs
	if err := registry.DecodeArgs(args, &in); err != nil {
		return cty.NilVal, err
	}
	if in.Path == "" || filepath.Clean(in.Path) == "." || filepath.Clean(in.Path) == "/" {
		return cty.NilVal, fmt.Errorf("refusing to remove '%s'", in.Path)
	}
	if err := os.RemoveAll(in.Path); err != nil {
		return cty.NilVal, fmt.Errorf("removing working directory: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Removed working directory.", "path", in.Path)
	return cty.True, nil
}

// WriteArgs are the arguments of file.write.
type WriteArgs struct {
	Path    string `cty:"path"`
	Content string `cty:"content"`
}

// WriteFile writes content to path, creating parent directories, and returns
// the path.
func WriteFile(ctx context.Context, args cty.Value) (cty.Value, error) {
	var in WriteArgs
	if err := registry.DecodeArgs(args, &in); err != nil {
		return cty.NilVal, err
	}
	if err := os.MkdirAll(filepath.Dir(in.Path), 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(in.Path, []byte(in.Content), 0o644); err != nil {
		return cty.NilVal, fmt.Errorf("writing file: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Wrote file.", "path", in.Path, "bytes", len(in.Content))
	return cty.StringVal(in.Path), nil
}

// ReadFile returns the content of a file as a string.
func ReadFile(ctx context.Context, args cty.Value) (cty.Value, error) {
	var in PathArgs
	if err := registry.DecodeArgs(args, &in); err != nil {
		return cty.NilVal, err
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return cty.NilVal, fmt.Errorf("reading file: %w", err)
	}
	return cty.StringVal(string(data)), nil
}

// structurePaths flattens a directory structure into relative paths. A list
// names directories directly; a map nests its children below each key.
func structurePaths(v cty.Value) ([]string, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("directory structure is not known")
	}

	ty := v.Type()
	switch {
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var paths []string
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			if el.IsNull() || el.Type() != cty.String {
				return nil, errors.New("directory structure list must contain strings")
			}
			paths = append(paths, el.AsString())
		}
		return paths, nil
	case ty.IsMapType() || ty.IsObjectType():
		parents := make(map[string][]string)
		for it := v.ElementIterator(); it.Next(); {
			k, el := it.Element()
			children, err := structurePaths(el)
			if err != nil {
				return nil, fmt.Errorf("under '%s': %w", k.AsString(), err)
			}
			parents[k.AsString()] = children
		}
		keys := make([]string, 0, len(parents))
		for k := range parents {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var paths []string
		for _, k := range keys {
			paths = append(paths, k)
			for _, child := range parents[k] {
				paths = append(paths, filepath.Join(k, child))
			}
		}
		return paths, nil
	default:
		return nil, fmt.Errorf("directory structure must be a list or a map, got %s", ty.FriendlyName())
	}
}

// mkdirWithin creates rel below base and rejects paths that escape it.
func mkdirWithin(base, rel string) error {
	if filepath.IsAbs(rel) {
		return fmt.Errorf("directory '%s' must be relative", rel)
	}
	full := filepath.Join(base, rel)
	within, err := filepath.Rel(base, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return fmt.Errorf("directory '%s' escapes '%s'", rel, base)
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("creating directory '%s': %w", rel, err)
	}
	return nil
}
