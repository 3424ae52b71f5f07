package plan_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
	"github.com/ravi-parthasarathy/flowscript/pkg/plan"
)

// classes classifies node types by name; anything unlisted is Standard.
type classes map[string]descriptor.Category

func (c classes) Category(t string) descriptor.Category { return c[t] }

var cls = classes{"env": descriptor.Environment, "conn": descriptor.Connection}

// graph builds a Graph from "id:type" node specs and "a->b" or "a->b:handle"
// edge specs.
func graph(nodes []string, edges ...string) pipeline.Graph {
	var g pipeline.Graph
	for _, n := range nodes {
		id, typ, _ := strings.Cut(n, ":")
		if typ == "" {
			typ = "std"
		}
		g.Nodes = append(g.Nodes, pipeline.GraphNode{ID: id, Type: typ})
	}
	for i, e := range edges {
		src, rest, _ := strings.Cut(e, "->")
		dst, handle, _ := strings.Cut(rest, ":")
		g.Edges = append(g.Edges, pipeline.GraphEdge{
			ID:           "e" + string(rune('a'+i)),
			Source:       src,
			Target:       dst,
			TargetHandle: handle,
		})
	}
	return g
}

func join(ids []string) string { return strings.Join(ids, ",") }

func mustBuild(t *testing.T, g pipeline.Graph, target string) *plan.Plan {
	t.Helper()
	p, err := plan.Build(g, target, cls)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

// ─── Ordering ─────────────────────────────────────────────────────────────────

func TestBuild_LinearChain(t *testing.T) {
	g := graph([]string{"c", "b", "a"}, "a->b", "b->c")
	p := mustBuild(t, g, "")
	if got := join(p.Order); got != "a,b,c" {
		t.Errorf("order = %s, want a,b,c", got)
	}
	if !p.Sinks["c"] || p.Sinks["a"] || len(p.Sinks) != 1 {
		t.Errorf("sinks = %v, want only c", p.Sinks)
	}
}

func TestBuild_TiesBrokenByDocumentOrder(t *testing.T) {
	g := graph([]string{"z", "y", "x", "sink"}, "x->sink", "y->sink", "z->sink")
	p := mustBuild(t, g, "")
	if got := join(p.Order); got != "z,y,x,sink" {
		t.Errorf("order = %s, want z,y,x,sink", got)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	g := graph([]string{"a", "b", "c", "d", "e"}, "a->c", "b->c", "c->d", "a->e", "e->d")
	first := join(mustBuild(t, g, "").Order)
	for i := 0; i < 20; i++ {
		if got := join(mustBuild(t, g, "").Order); got != first {
			t.Fatalf("run %d: order %s differs from %s", i, got, first)
		}
	}
}

func TestBuild_TopologicalSoundness(t *testing.T) {
	g := graph([]string{"d", "c", "b", "a", "e"}, "a->b", "a->c", "b->d", "c->d", "e->c")
	p := mustBuild(t, g, "")
	pos := map[string]int{}
	for i, id := range p.Order {
		pos[id] = i
	}
	for _, e := range g.Edges {
		if pos[e.Source] >= pos[e.Target] {
			t.Errorf("edge %s->%s violates order %v", e.Source, e.Target, p.Order)
		}
	}
}

func TestBuild_InputsKeepEdgeOrderAndHandles(t *testing.T) {
	g := graph([]string{"l", "r", "j"}, "r->j:right", "l->j:left")
	p := mustBuild(t, g, "")
	in := p.Inputs["j"]
	if len(in) != 2 || in[0].Source != "r" || in[0].TargetHandle != "right" || in[1].TargetHandle != "left" {
		t.Errorf("inputs = %+v", in)
	}
}

// ─── Target restriction ───────────────────────────────────────────────────────

func TestBuild_TargetRestrictsToAncestors(t *testing.T) {
	g := graph([]string{"a", "b", "c", "d"}, "a->b", "a->c", "b->d")
	p := mustBuild(t, g, "b")
	if got := join(p.Order); got != "a,b" {
		t.Errorf("order = %s, want a,b", got)
	}
	if p.Contains("c") || p.Contains("d") {
		t.Error("plan contains nodes outside the target's ancestry")
	}
	if !p.Sinks["b"] || len(p.Sinks) != 1 {
		t.Errorf("sinks = %v, want only the target", p.Sinks)
	}
	if p.Target != "b" {
		t.Errorf("target = %q", p.Target)
	}
}

func TestBuild_UnknownTarget(t *testing.T) {
	_, err := plan.Build(graph([]string{"a"}), "ghost", cls)
	var ute *plan.UnknownTargetError
	if !errors.As(err, &ute) || ute.Target != "ghost" {
		t.Fatalf("err = %v, want UnknownTargetError", err)
	}
	if !errors.Is(err, pipeline.ErrUnknownTarget) {
		t.Error("should match ErrUnknownTarget")
	}
	ds := plan.Diagnostics(err)
	if len(ds) != 1 || ds[0].Kind != pipeline.KindUnknownTarget {
		t.Errorf("diagnostics = %v", ds)
	}
}

// ─── Deferred nodes ───────────────────────────────────────────────────────────

func TestBuild_DeferredSplitOut(t *testing.T) {
	g := graph([]string{"b", "env:env", "c:conn", "a"}, "env->b", "c->b", "a->b")
	p := mustBuild(t, g, "")
	if got := join(p.Order); got != "a,b" {
		t.Errorf("order = %s, want a,b", got)
	}
	if got := join(p.Deferred); got != "env,c" {
		t.Errorf("deferred = %s, want env,c", got)
	}
	if p.Category("c") != descriptor.Connection {
		t.Errorf("category(c) = %v", p.Category("c"))
	}
	if p.Len() != 4 {
		t.Errorf("Len() = %d, want 4", p.Len())
	}
}

// ─── Cycles ───────────────────────────────────────────────────────────────────

func TestBuild_Cycle(t *testing.T) {
	// x feeds the cycle and y hangs off it; neither is part of it.
	g := graph([]string{"x", "a", "b", "c", "y"}, "x->a", "a->b", "b->c", "c->a", "c->y")
	_, err := plan.Build(g, "", cls)
	var ce *plan.CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CycleError", err)
	}
	if got := join(ce.Nodes); got != "a,b,c" {
		t.Errorf("cycle nodes = %s, want a,b,c", got)
	}
	if !errors.Is(err, pipeline.ErrCycleDetected) {
		t.Error("should match ErrCycleDetected")
	}
	ds := plan.Diagnostics(err)
	if len(ds) != 3 || ds[0].Kind != pipeline.KindCycleDetected || ds[0].NodeID != "a" {
		t.Errorf("diagnostics = %v", ds)
	}
}

func TestBuild_CycleWithoutSink(t *testing.T) {
	g := graph([]string{"a", "b"}, "a->b", "b->a")
	if _, err := plan.Build(g, "", cls); !errors.Is(err, pipeline.ErrCycleDetected) {
		t.Errorf("err = %v, want cycle", err)
	}
}

func TestBuild_SelfLoop(t *testing.T) {
	g := graph([]string{"a"}, "a->a")
	if _, err := plan.Build(g, "", cls); !errors.Is(err, pipeline.ErrCycleDetected) {
		t.Errorf("err = %v, want cycle", err)
	}
}

func TestBuild_CycleOutsideTargetIgnored(t *testing.T) {
	g := graph([]string{"a", "b", "x", "y"}, "a->b", "x->y", "y->x", "b->x")
	p := mustBuild(t, g, "b")
	if got := join(p.Order); got != "a,b" {
		t.Errorf("order = %s, want a,b", got)
	}
}

func TestBuild_Empty(t *testing.T) {
	p := mustBuild(t, pipeline.Graph{}, "")
	if len(p.Order) != 0 || len(p.Deferred) != 0 {
		t.Errorf("plan = %+v", p)
	}
}
