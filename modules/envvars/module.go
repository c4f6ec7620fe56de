// Package envvars exposes the process environment to declarative plans.
package envvars

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the handlers with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("env.get", Get)
	r.RegisterHandler("env.all", All)
}

// GetArgs are the arguments of env.get.
type GetArgs struct {
	Name    string  `cty:"name"`
	Default *string `cty:"default"`
}

// Get returns the value of one variable. An unset variable without a
// default is an error.
func Get(_ context.Context, args cty.Value) (cty.Value, error) {
	var in GetArgs
	if err := registry.DecodeArgs(args, &in); err != nil {
		return cty.NilVal, err
	}
	if v, ok := os.LookupEnv(in.Name); ok {
		return cty.StringVal(v), nil
	}
	if in.Default != nil {
		return cty.StringVal(*in.Default), nil
	}
	return cty.NilVal, fmt.Errorf("environment variable '%s' is not set", in.Name)
}

// All returns every environment variable as a map.
func All(_ context.Context, _ cty.Value) (cty.Value, error) {
	env := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			env[pair[0]] = cty.StringVal(pair[1])
		}
	}
	if len(env) == 0 {
		return cty.MapValEmpty(cty.String), nil
	}
	return cty.MapVal(env), nil
}
