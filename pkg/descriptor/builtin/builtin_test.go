package builtin

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
)

func emit(t *testing.T, nodeType string, req descriptor.EmitRequest) string {
	t.Helper()
	d, ok := Descriptors()[nodeType]
	if !ok {
		t.Fatalf("no builtin %q", nodeType)
	}
	req.Type = nodeType
	frag, err := d.Emit(req)
	if err != nil {
		t.Fatalf("%s: Emit: %v", nodeType, err)
	}
	return frag.Code
}

func dataIn(ref string) descriptor.Inputs {
	return descriptor.Inputs{{Source: "src", Ref: ref}}
}

func TestRegister(t *testing.T) {
	reg := descriptor.NewRegistry()
	Register(reg)
	if got := len(reg.Types()); got != 13 {
		t.Errorf("registered %d types, want 13", got)
	}
	if reg.Category("environment") != descriptor.Environment {
		t.Error("environment should be an Environment descriptor")
	}
	if reg.Category("connection") != descriptor.Connection {
		t.Error("connection should be a Connection descriptor")
	}
	for _, name := range []string{"write_csv", "write_sql"} {
		d, _ := reg.Resolve(name)
		if !d.Sink() {
			t.Errorf("%s should be a sink", name)
		}
	}
}

func TestTemplates(t *testing.T) {
	cases := []struct {
		nodeType string
		req      descriptor.EmitRequest
		want     string
	}{
		{
			"read_csv",
			descriptor.EmitRequest{Data: map[string]any{"path": "in.csv"}, Output: "read_csv_1"},
			`read_csv_1 = pd.read_csv("in.csv", sep=",")`,
		},
		{
			"filter",
			descriptor.EmitRequest{Data: map[string]any{"expr": "amount > 0"}, Inputs: dataIn("df"), Output: "filter_1"},
			`filter_1 = df.query("amount > 0")`,
		},
		{
			"select_columns",
			descriptor.EmitRequest{Data: map[string]any{"columns": []any{"a", "b"}}, Inputs: dataIn("df"), Output: "s_1"},
			`s_1 = df[["a", "b"]]`,
		},
		{
			"aggregate",
			descriptor.EmitRequest{
				Data:   map[string]any{"by": []any{"k"}, "agg": map[string]any{"v": "sum", "n": "count"}},
				Inputs: dataIn("df"),
				Output: "agg_1",
			},
			`agg_1 = df.groupby(["k"], as_index=False).agg({"n": "count", "v": "sum"})`,
		},
		{
			"sort",
			descriptor.EmitRequest{Data: map[string]any{"by": []any{"k"}, "ascending": false}, Inputs: dataIn("df"), Output: "sort_1"},
			`sort_1 = df.sort_values(by=["k"], ascending=False)`,
		},
		{
			"write_csv",
			descriptor.EmitRequest{Data: map[string]any{"path": "out.csv"}, Inputs: dataIn("df")},
			`df.to_csv("out.csv", index=False)`,
		},
		{
			"read_sql",
			descriptor.EmitRequest{
				Data:   map[string]any{"query": "select 1"},
				Inputs: descriptor.Inputs{{Source: "c", Ref: "connection_1", Category: descriptor.Connection}},
				Output: "read_sql_1",
			},
			`read_sql_1 = pd.read_sql("select 1", connection_1)`,
		},
		{
			"write_sql",
			descriptor.EmitRequest{
				Data: map[string]any{"table": "t"},
				Inputs: descriptor.Inputs{
					{Source: "d", Ref: "df"},
					{Source: "c", Ref: "connection_1", Category: descriptor.Connection},
				},
			},
			`df.to_sql("t", connection_1, if_exists="replace", index=False)`,
		},
		{
			"connection",
			descriptor.EmitRequest{Data: map[string]any{"url": "sqlite://"}, Output: "connection_1"},
			`connection_1 = sqlalchemy.create_engine("sqlite://")`,
		},
		{
			"html_report",
			descriptor.EmitRequest{Inputs: dataIn("df"), Output: "html_report_1"},
			`html_report_1 = _flowscript_render_report("Report", df)`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.nodeType, func(t *testing.T) {
			if got := emit(t, tc.nodeType, tc.req); got != tc.want {
				t.Errorf("code = %q\nwant   %q", got, tc.want)
			}
		})
	}
}

func TestReadSQL_NeedsConnection(t *testing.T) {
	_, err := readSQL().Emit(descriptor.EmitRequest{Data: map[string]any{"query": "q"}, Output: "x"})
	if err == nil || !strings.Contains(err.Error(), "no connection input") {
		t.Errorf("err = %v", err)
	}
}

func TestJoin(t *testing.T) {
	data := map[string]any{"on": []any{"id"}}
	got := emit(t, "join", descriptor.EmitRequest{
		Data: data,
		Inputs: descriptor.Inputs{
			{Source: "b", Ref: "orders", Handle: "right"},
			{Source: "a", Ref: "customers", Handle: "left"},
		},
		Output: "join_1",
	})
	if want := `join_1 = customers.merge(orders, on=["id"], how="inner")`; got != want {
		t.Errorf("handles: %q, want %q", got, want)
	}

	// Without handles the edge order decides.
	got = emit(t, "join", descriptor.EmitRequest{
		Data:   map[string]any{"on": []any{"id"}, "how": "left"},
		Inputs: descriptor.Inputs{{Source: "a", Ref: "x"}, {Source: "b", Ref: "y"}},
		Output: "join_1",
	})
	if want := `join_1 = x.merge(y, on=["id"], how="left")`; got != want {
		t.Errorf("positional: %q, want %q", got, want)
	}

	_, err := join().Emit(descriptor.EmitRequest{Data: data, Inputs: dataIn("x"), Output: "j"})
	if err == nil {
		t.Error("one input should fail")
	}
	_, err = join().Emit(descriptor.EmitRequest{
		Data:   map[string]any{"on": []any{"id"}, "how": "sideways"},
		Inputs: descriptor.Inputs{{Ref: "x"}, {Ref: "y"}},
		Output: "j",
	})
	if err == nil {
		t.Error("unknown join type should fail")
	}
}

func TestPython(t *testing.T) {
	frag, err := python().Emit(descriptor.EmitRequest{
		Data: map[string]any{
			"code":         "${output} = ${input}.merge(${input.lookup})\n",
			"imports":      []any{"import numpy as np"},
			"dependencies": []any{"numpy>=1.26"},
		},
		Inputs: descriptor.Inputs{{Source: "a", Ref: "df"}, {Source: "b", Ref: "lk", Handle: "lookup"}},
		Output: "python_1",
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if want := "python_1 = df.merge(lk)"; frag.Code != want {
		t.Errorf("code = %q, want %q", frag.Code, want)
	}
	// Imports travel with the fragment so they land in the import section.
	if len(frag.Imports) != 1 || frag.Imports[0] != "import numpy as np" {
		t.Errorf("imports = %v", frag.Imports)
	}
	if len(frag.Dependencies) != 1 || frag.Dependencies[0] != "numpy>=1.26" {
		t.Errorf("dependencies = %v", frag.Dependencies)
	}

	_, err = python().Emit(descriptor.EmitRequest{Data: map[string]any{"code": "${input}"}, Output: "p"})
	if err == nil {
		t.Error("${input} without inputs should fail")
	}
	_, err = python().Emit(descriptor.EmitRequest{Data: map[string]any{"code": "${nope}"}, Output: "p"})
	if err == nil {
		t.Error("unknown placeholder should fail")
	}
	_, err = python().Emit(descriptor.EmitRequest{Data: map[string]any{"code": "  "}, Output: "p"})
	if err == nil {
		t.Error("empty code should fail")
	}
}

func TestEnvironment(t *testing.T) {
	got := emit(t, "environment", descriptor.EmitRequest{
		NodeID: "env",
		Data:   map[string]any{"variables": map[string]any{"B": "2", "A": json.Number("1")}},
	})
	want := "os.environ[\"A\"] = \"1\"\nos.environ[\"B\"] = \"2\""
	if got != want {
		t.Errorf("code = %q, want %q", got, want)
	}

	got = emit(t, "environment", descriptor.EmitRequest{
		NodeID: "env",
		Data:   map[string]any{"variables": map[string]any{}},
	})
	if got != "# environment env sets no variables" {
		t.Errorf("empty code = %q", got)
	}
}
