// Package compiler turns a flow graph into a single Python script.
//
// Compilation is all-or-nothing: a CompiledUnit either carries a script or
// the diagnostics explaining why there is none. The same request against the
// same registry always produces byte-identical output.
package compiler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
	"github.com/ravi-parthasarathy/flowscript/pkg/plan"
)

// Mode selects whole-graph or partial compilation.
type Mode int

const (
	// Full compiles every node, or every ancestor of Target when one is set.
	Full Mode = iota
	// UntilTarget compiles the ancestors of Target and appends a display
	// call for the target's output.
	UntilTarget
)

func (m Mode) String() string {
	if m == UntilTarget {
		return "until-target"
	}
	return "full"
}

// Request is one compile call.
type Request struct {
	Graph  pipeline.Graph
	Target string
	Mode   Mode
}

// Resolver is the registry view the compiler needs.
type Resolver interface {
	plan.Classifier
	Resolve(nodeType string) (descriptor.Descriptor, error)
}

// Options configure a Compiler.
type Options struct {
	Logger *slog.Logger
	// Clock, when set, stamps the header with a generated-at line. Leave it
	// nil for reproducible output.
	Clock func() time.Time
}

// Compiler compiles requests against a fixed registry. It holds no per-call
// state and is safe for concurrent use.
type Compiler struct {
	reg    Resolver
	logger *slog.Logger
	clock  func() time.Time
}

// New returns a Compiler. reg should be fully populated (and, for a
// *descriptor.Registry, sealed) before the first compile.
func New(reg Resolver, opts Options) *Compiler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{reg: reg, logger: logger, clock: opts.Clock}
}

// Compile runs the whole pipeline for req.
func (c *Compiler) Compile(req Request) *CompiledUnit {
	if req.Mode == UntilTarget && req.Target == "" {
		return failed(pipeline.Diagnostics{{
			Kind:    pipeline.KindInvalidRequest,
			Message: fmt.Sprintf("mode %s needs a target node", req.Mode),
		}})
	}
	if diags := req.Graph.Validate(); len(diags) > 0 {
		return failed(diags)
	}

	p, err := plan.Build(req.Graph, req.Target, c.reg)
	if err != nil {
		return failed(plan.Diagnostics(err))
	}

	a := newAssembler(c.reg, req.Graph, p, req.Mode == UntilTarget, c.logger)
	a.run()
	if len(a.diags) > 0 {
		c.logger.Info("compile failed",
			"target", req.Target, "mode", req.Mode, "diagnostics", len(a.diags))
		return failed(a.diags)
	}

	var stamp time.Time
	if c.clock != nil {
		stamp = c.clock()
	}
	unit := &CompiledUnit{
		Script:       finalize(a, stamp),
		Dependencies: a.deps.Specs(),
	}
	c.logger.Info("compiled flow",
		"target", req.Target, "mode", req.Mode,
		"nodes", p.Len(), "dependencies", len(unit.Dependencies))
	return unit
}

// CompileUntil compiles the ancestors of target and previews its output.
func (c *Compiler) CompileUntil(g pipeline.Graph, target string) *CompiledUnit {
	return c.Compile(Request{Graph: g, Target: target, Mode: UntilTarget})
}

// Lint plans g and resolves every planned node type without emitting code.
func (c *Compiler) Lint(g pipeline.Graph, target string) pipeline.Diagnostics {
	if diags := g.Validate(); len(diags) > 0 {
		return diags
	}
	p, err := plan.Build(g, target, c.reg)
	if err != nil {
		return plan.Diagnostics(err)
	}
	var diags pipeline.Diagnostics
	for _, n := range g.Nodes {
		if !p.Contains(n.ID) {
			continue
		}
		if _, err := c.reg.Resolve(n.Type); err != nil {
			diags = append(diags, pipeline.Diagnostic{Kind: pipeline.KindUnknownNodeType, NodeID: n.ID, Message: err.Error()})
		}
	}
	return diags
}
