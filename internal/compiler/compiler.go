// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package compiler drives a compilation end to end: load and parse each
// manifest, scan definitions, evaluate manifest bodies, evaluate the
// matched node definition, and finalize the catalog.
//
// The result is all-or-nothing: any error yields a nil catalog.
package compiler

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/eval"
	"github.com/nomoslang/nomos/internal/facts"
	"github.com/nomoslang/nomos/internal/logging"
	"github.com/nomoslang/nomos/internal/parser"
	"github.com/nomoslang/nomos/internal/scanner"
	"github.com/nomoslang/nomos/internal/scope"
	"github.com/nomoslang/nomos/internal/tracing"
	"github.com/nomoslang/nomos/internal/values"
)

// Options configures a Compiler.
type Options struct {
	// FS is the filesystem manifests are read from. Defaults to the host
	// filesystem; tests compile from an in-memory one.
	FS afero.Fs

	// Manifests are the manifest paths, in evaluation order.
	Manifests []string

	// Sink receives evaluation log records and rendered diagnostics.
	// Defaults to discarding them.
	Sink logging.Sink

	// Exported supplies exported resources for <<| |>> collectors; nil
	// disables importing.
	Exported catalog.ExportedStore

	// IncludeClasses are class names declared automatically after the node
	// definition evaluates (an external node classifier's classes).
	IncludeClasses []string
}

// Compiler compiles manifests into catalogs.
type Compiler struct {
	fs     afero.Fs
	opts   Options
	logger hclog.Logger
}

// New returns a Compiler for the given options.
func New(opts Options) *Compiler {
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if opts.Sink == nil {
		opts.Sink = logging.Discard
	}
	return &Compiler{
		fs:     fs,
		opts:   opts,
		logger: logging.NewLogger("compiler"),
	}
}

// Compile compiles the configured manifests for the named node, using the
// given fact provider. On failure the catalog is nil and the diagnostics
// carry at least one error; errors are also surfaced to the sink.
func (c *Compiler) Compile(ctx context.Context, node *Node, provider facts.Provider) (*catalog.Catalog, diags.Diagnostics) {
	ctx, span := tracing.Tracer().Start(ctx, "nomos.compile")
	span.SetAttributes(tracing.NodeName(node.Name()))
	defer span.End()

	cat := catalog.New()
	main := c.bootstrap(cat)
	evalCtx := eval.NewContext(cat, provider, c.opts.Sink, main)
	evalCtx.Exported = c.opts.Exported
	c.createSettingsScope(cat, evalCtx)

	finish := func(ds diags.Diagnostics) (*catalog.Catalog, diags.Diagnostics) {
		c.report(ds)
		if ds.HasErrors() {
			return nil, ds
		}
		span.SetAttributes(tracing.ResourceCount(len(cat.Resources())))
		return cat, ds
	}

	// Parse and scan every manifest before any evaluation, so classes can
	// be declared before the manifest defining them evaluates.
	programs, ds := c.loadManifests(ctx, cat)
	if ds.HasErrors() {
		return finish(ds)
	}

	for _, program := range programs {
		c.logger.Debug("evaluating syntax tree", "manifest", program.Filename)
		ds = ds.Append(eval.New(evalCtx, program).Evaluate())
		if ds.HasErrors() {
			return finish(ds)
		}
	}

	// Evaluate the matched node definition, if any were defined.
	if cat.HasNodes() {
		def, matchedName, err := cat.MatchNode(node.Names())
		if err != nil {
			ds = ds.Append(&diags.Diagnostic{
				Severity: diags.Error,
				Kind:     diags.EvalError,
				Summary:  err.Error(),
			})
			return finish(ds)
		}
		c.logger.Debug("evaluating node definition", "node", node.Name(), "matched", matchedName)
		nodeEval := eval.New(evalCtx, &ast.Program{Filename: def.File, Source: def.Source})
		ds = ds.Append(nodeEval.EvaluateNodeDefinition(def, matchedName))
		if ds.HasErrors() {
			return finish(ds)
		}
	}

	// Classes assigned from outside the manifests (a node classifier).
	if len(c.opts.IncludeClasses) > 0 {
		includeEval := eval.New(evalCtx, &ast.Program{Filename: "<classifier>"})
		ds = ds.Append(includeEval.DeclareClasses(c.opts.IncludeClasses, diags.SourceRange{Filename: "<classifier>"}))
		if ds.HasErrors() {
			return finish(ds)
		}
	}

	c.logger.Debug("finalizing catalog", "resources", len(cat.Resources()))
	ds = ds.Append(cat.Finalize())
	return finish(ds)
}

// loadManifests reads, parses and definition-scans the manifests in order.
func (c *Compiler) loadManifests(ctx context.Context, cat *catalog.Catalog) ([]*ast.Program, diags.Diagnostics) {
	var ds diags.Diagnostics
	var programs []*ast.Program
	var loadErr error

	for _, path := range c.opts.Manifests {
		_, span := tracing.Tracer().Start(ctx, "nomos.parse")
		span.SetAttributes(tracing.ManifestPath(path))

		source, err := afero.ReadFile(c.fs, path)
		if err != nil {
			loadErr = multierror.Append(loadErr, fmt.Errorf("cannot read manifest %s: %w", path, err))
			span.End()
			continue
		}

		program, parseDiags := parser.Parse(path, string(source))
		ds = ds.Append(parseDiags)
		if program == nil || parseDiags.HasErrors() {
			span.End()
			return nil, ds
		}

		ds = ds.Append(scanner.Scan(cat, program))
		span.End()
		if ds.HasErrors() {
			return nil, ds
		}
		programs = append(programs, program)
	}

	if loadErr != nil {
		ds = ds.Append(&diags.Diagnostic{
			Severity: diags.Error,
			Kind:     diags.SettingsError,
			Summary:  loadErr.Error(),
		})
	}
	return programs, ds
}

// bootstrap creates the resources every catalog starts with: Stage[main]
// and Class[main].
func (c *Compiler) bootstrap(cat *catalog.Catalog) *catalog.Resource {
	generated := diags.SourceRange{Filename: "<generated>", Start: diags.InitialPos, End: diags.InitialPos}

	stage, err := cat.Add(values.ResourceType{Name: "stage", Title: "main"}, generated, nil, catalog.StatusReal, nil)
	if err != nil {
		panic(err)
	}
	main, err := cat.Add(values.ResourceType{Name: "class", Title: "main"}, generated, nil, catalog.StatusReal, stage)
	if err != nil {
		panic(err)
	}
	cat.MarkClassDeclared("main")
	return main
}

// createSettingsScope declares Class[settings] and registers its scope so
// $settings::* lookups resolve.
func (c *Compiler) createSettingsScope(cat *catalog.Catalog, evalCtx *eval.Context) {
	generated := diags.SourceRange{Filename: "<generated>", Start: diags.InitialPos, End: diags.InitialPos}

	attrs := catalog.NewAttributes(nil)
	settings, err := cat.Add(values.ResourceType{Name: "class", Title: "settings"}, generated, attrs, catalog.StatusReal, nil)
	if err != nil {
		panic(err)
	}
	cat.MarkClassDeclared("settings")

	settingsScope := scope.NewChild(evalCtx.TopScope(), settings)
	evalCtx.AddNamedScope("settings", settingsScope)
}

// report mirrors error and warning diagnostics into the sink, so the
// external log stream sees what the compiler saw.
func (c *Compiler) report(ds diags.Diagnostics) {
	for _, d := range ds {
		level := logging.Error
		if d.Severity == diags.Warning {
			level = logging.Warning
		}
		c.opts.Sink.Log(logging.Record{
			Level:      level,
			Subject:    d.Subject,
			SourceLine: d.SourceLine,
			Message:    d.Summary,
		})
	}
}
