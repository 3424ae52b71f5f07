package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
)

// ─── Requirement parsing ──────────────────────────────────────────────────────

func TestParseRequirement(t *testing.T) {
	cases := []struct {
		raw                string
		spec, name, module string
	}{
		{"pandas", "pandas", "pandas", "pandas"},
		{"pandas >= 2.0", "pandas >= 2.0", "pandas", "pandas"},
		{"uvicorn[standard]", "uvicorn[standard]", "uvicorn", "uvicorn"},
		{"Foo_Bar.baz", "Foo_Bar.baz", "foo-bar-baz", "foo_bar.baz"},
		{"python-dateutil", "python-dateutil", "python-dateutil", "python_dateutil"},
		{"sklearn:scikit-learn>=1.3", "scikit-learn>=1.3", "scikit-learn", "sklearn"},
		{"yaml : PyYAML", "PyYAML", "pyyaml", "yaml"},
	}
	for _, tc := range cases {
		req, err := parseRequirement(tc.raw)
		if err != nil {
			t.Errorf("%q: %v", tc.raw, err)
			continue
		}
		if req.Spec != tc.spec || req.Name != tc.name || req.Module != tc.module {
			t.Errorf("%q: got spec=%q name=%q module=%q", tc.raw, req.Spec, req.Name, req.Module)
		}
	}
}

func TestParseRequirement_NoName(t *testing.T) {
	for _, raw := range []string{"", "   ", ">=2.0"} {
		if _, err := parseRequirement(raw); err == nil {
			t.Errorf("%q should fail", raw)
		}
	}
}

// ─── Dependency set ───────────────────────────────────────────────────────────

func TestDepSet(t *testing.T) {
	s := newDepSet()
	for _, add := range []struct{ raw, node string }{
		{"pandas>=2", "a"},
		{"numpy", "a"},
		{"pandas >= 2", "b"},
		{"NumPy", "c"},
	} {
		if err := s.add(add.raw, add.node); err != nil {
			t.Fatalf("add(%q): %v", add.raw, err)
		}
	}
	if got := strings.Join(s.Specs(), ","); got != "pandas>=2,numpy" {
		t.Errorf("specs = %s, want first-seen order without repeats", got)
	}

	err := s.add("Pandas<3", "d")
	var conflict *conflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want a conflict", err)
	}
	if !strings.Contains(err.Error(), `declared by node "a"`) {
		t.Errorf("err = %v", err)
	}

	if err := s.add(">=2", "e"); err == nil || errors.As(err, &conflict) {
		t.Errorf("unparsable requirement: err = %v, want a parse error", err)
	}
	if got := strings.Join(s.Packages(), ","); got != "pandas,numpy" {
		t.Errorf("packages = %s", got)
	}
}

// ─── Naming ───────────────────────────────────────────────────────────────────

func TestNamer(t *testing.T) {
	nodes := []pipeline.GraphNode{
		{ID: "a", Type: "read_csv"},
		{ID: "s", Type: "write_csv"},
		{ID: "b", Type: "read_csv"},
		{ID: "m", Type: "mystery"},
	}
	n := newNamer(nodes, testRegistry(t))

	// Reservations follow document order, not request order.
	if got := n.propose("b", "read_csv"); got != "read_csv_2" {
		t.Errorf("b = %q, want read_csv_2", got)
	}
	if err := n.bind("read_csv_2", "b"); err != nil {
		t.Fatal(err)
	}

	// A reservation taken by an explicit output falls back past every
	// reserved name.
	if err := n.bind("read_csv_1", "x"); err != nil {
		t.Fatal(err)
	}
	if got := n.propose("a", "read_csv"); got != "read_csv_3" {
		t.Errorf("a = %q, want read_csv_3", got)
	}
	if got := n.propose("late", "read_csv"); got != "read_csv_4" {
		t.Errorf("unreserved = %q, want read_csv_4", got)
	}

	err := n.bind("read_csv_1", "c")
	if err == nil || !strings.Contains(err.Error(), `bound by node "x"`) {
		t.Errorf("rebind err = %v", err)
	}
}
