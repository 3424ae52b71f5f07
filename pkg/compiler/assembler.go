package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
	"github.com/ravi-parthasarathy/flowscript/pkg/plan"
)

const (
	failureHelperName = "_flowscript_report_failure"
	failureVar        = "_flowscript_err"
)

const failureHelper = `def _flowscript_report_failure(node_id, err):
    notice = {
        "status": "failed",
        "node": node_id,
        "error": type(err).__name__,
        "message": str(err),
    }
    print(json.dumps(notice), file=sys.stderr)`

// assembler walks a plan and collects code. It lives for a single compile.
type assembler struct {
	reg    Resolver
	plan   *plan.Plan
	nodes  map[string]pipeline.GraphNode
	until  bool
	logger *slog.Logger

	names   *namer
	refs    map[string]string // node id -> output name
	done    map[string]bool   // visited, successfully or not
	failed  map[string]bool
	imports orderedSet
	funcs   []descriptor.Function
	funcSet map[string]bool
	deps    *depSet
	body    []string
	diags   pipeline.Diagnostics
}

func newAssembler(reg Resolver, g pipeline.Graph, p *plan.Plan, until bool, logger *slog.Logger) *assembler {
	nodes := make(map[string]pipeline.GraphNode, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}
	return &assembler{
		reg:     reg,
		plan:    p,
		nodes:   nodes,
		until:   until,
		logger:  logger,
		names:   newNamer(g.Nodes, reg),
		refs:    make(map[string]string),
		done:    make(map[string]bool),
		failed:  make(map[string]bool),
		funcSet: make(map[string]bool),
		deps:    newDepSet(),
	}
}

func (a *assembler) run() {
	for _, id := range a.plan.Order {
		a.spliceDeferred(id)
		a.emit(id)
	}
	// Deferred nodes no consumer claimed.
	for _, id := range a.plan.Deferred {
		if !a.done[id] {
			a.spliceDeferred(id)
			a.emit(id)
		}
	}
}

// spliceDeferred emits the not yet emitted deferred nodes feeding id through
// a direct edge, in plan deferred order, each after its own deferred
// predecessors.
func (a *assembler) spliceDeferred(id string) {
	feeds := make(map[string]bool)
	for _, e := range a.plan.Inputs[id] {
		if a.plan.Category(e.Source).Deferred() {
			feeds[e.Source] = true
		}
	}
	if len(feeds) == 0 {
		return
	}
	for _, src := range a.plan.Deferred {
		if !feeds[src] || a.done[src] {
			continue
		}
		a.spliceDeferred(src)
		a.emit(src)
	}
}

func (a *assembler) emit(id string) {
	if a.done[id] {
		return
	}
	a.done[id] = true
	node := a.nodes[id]

	inputs := make(descriptor.Inputs, 0, len(a.plan.Inputs[id]))
	for _, e := range a.plan.Inputs[id] {
		if a.failed[e.Source] {
			// The upstream problem is already reported.
			a.failed[id] = true
			return
		}
		inputs = append(inputs, descriptor.Input{
			Handle:   e.TargetHandle,
			Source:   e.Source,
			Ref:      a.refs[e.Source],
			Category: a.plan.Category(e.Source),
		})
	}

	d, err := a.reg.Resolve(node.Type)
	if err != nil {
		a.fail(pipeline.KindUnknownNodeType, id, err)
		return
	}

	var proposed string
	if descriptor.ProducesValue(d) {
		proposed = a.names.propose(id, node.Type)
	}
	frag, err := d.Emit(descriptor.EmitRequest{
		NodeID: id,
		Type:   node.Type,
		Data:   node.Data,
		Inputs: inputs,
		Output: proposed,
	})
	if err != nil {
		a.fail(pipeline.KindEmitFailure, id, err)
		return
	}

	output := proposed
	if frag.Output != "" {
		output = frag.Output
	}
	if output != "" {
		if err := a.names.bind(output, id); err != nil {
			a.fail(pipeline.KindEmitFailure, id, err)
			return
		}
		a.refs[id] = output
	}

	deps := append(append([]string{}, d.Dependencies()...), frag.Dependencies...)
	for _, dep := range deps {
		if err := a.deps.add(dep, id); err != nil {
			kind := pipeline.KindEmitFailure
			var conflict *conflictError
			if errors.As(err, &conflict) {
				kind = pipeline.KindConflictingVersion
			}
			a.fail(kind, id, err)
			return
		}
	}
	a.imports.addAll(d.Imports()...)
	a.imports.addAll(frag.Imports...)
	for _, fn := range d.Functions() {
		a.addFunction(fn)
	}

	code := frag.Code
	if d.Sink() && a.plan.Sinks[id] {
		code = a.wrapSink(id, code)
	}
	a.body = append(a.body, code)

	if a.until && id == a.plan.Target {
		if hook := d.Preview().Hook(); hook != "" && output != "" {
			a.body = append(a.body, fmt.Sprintf("%s(%s)", hook, output))
		}
	}
	a.logger.Debug("emitted node", "node", id, "type", node.Type, "output", output)
}

// wrapSink guards a terminal sink so a failure becomes a structured notice.
func (a *assembler) wrapSink(id, code string) string {
	a.imports.addAll("import json", "import sys")
	a.addFunction(descriptor.Function{Name: failureHelperName, Code: failureHelper})

	var sb strings.Builder
	sb.WriteString("try:\n")
	sb.WriteString(indent(code, "    "))
	fmt.Fprintf(&sb, "\nexcept Exception as %s:\n", failureVar)
	fmt.Fprintf(&sb, "    %s(%q, %s)", failureHelperName, id, failureVar)
	return sb.String()
}

func (a *assembler) addFunction(fn descriptor.Function) {
	if a.funcSet[fn.Name] {
		return
	}
	a.funcSet[fn.Name] = true
	a.funcs = append(a.funcs, fn)
}

func (a *assembler) fail(kind pipeline.Kind, id string, err error) {
	a.failed[id] = true
	msg := err.Error()
	var d pipeline.Diagnostic
	if errors.As(err, &d) {
		msg = d.Message
	}
	a.diags = append(a.diags, pipeline.Diagnostic{Kind: kind, NodeID: id, Message: msg})
	a.logger.Debug("node failed", "node", id, "kind", kind, "error", msg)
}

// indent prefixes every non-empty line of code.
func indent(code, prefix string) string {
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = prefix + l
		}
	}
	if strings.TrimSpace(code) == "" {
		return prefix + "pass"
	}
	return strings.Join(lines, "\n")
}

// orderedSet keeps the first occurrence of each string.
type orderedSet struct {
	items []string
	seen  map[string]bool
}

func (s *orderedSet) addAll(items ...string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || s.seen[it] {
			continue
		}
		s.seen[it] = true
		s.items = append(s.items, it)
	}
}

func (s *orderedSet) has(item string) bool { return s.seen[item] }
