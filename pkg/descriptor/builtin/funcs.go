package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
)

// join merges its "left" and "right" inputs. Without handles, the first two
// data inputs are taken as left and right in edge order.
func join() descriptor.Descriptor {
	spec := descriptor.Spec{
		Imports:      []string{importPandas},
		Dependencies: []string{depPandas},
		Preview:      descriptor.PreviewTable,
		Description:  "Join two data frames on key columns.",
		Params: []descriptor.Param{
			{Name: "on", Type: cty.List(cty.String)},
			{Name: "how", Type: cty.String, Default: val(cty.StringVal("inner"))},
		},
	}
	return descriptor.NewFunc(spec, func(req descriptor.EmitRequest) (descriptor.Fragment, error) {
		left, right, err := joinSides(req.Inputs)
		if err != nil {
			return descriptor.Fragment{}, err
		}
		how, _ := req.Params["how"].(string)
		switch how {
		case "inner", "left", "right", "outer", "cross":
		default:
			return descriptor.Fragment{}, fmt.Errorf("unsupported join type %q", how)
		}
		on, err := descriptor.PyLiteral(req.Params["on"])
		if err != nil {
			return descriptor.Fragment{}, err
		}
		code := fmt.Sprintf("%s = %s.merge(%s, on=%s, how=%q)", req.Output, left, right, on, how)
		return descriptor.Fragment{Code: code}, nil
	})
}

func joinSides(in descriptor.Inputs) (string, string, error) {
	l, lok := in.Handle("left")
	r, rok := in.Handle("right")
	if lok && rok {
		return l.Ref, r.Ref, nil
	}
	data := in.Data()
	if lok || rok || len(data) != 2 {
		return "", "", fmt.Errorf("join needs exactly two inputs on handles \"left\" and \"right\", got %d", len(data))
	}
	return data[0].Ref, data[1].Ref, nil
}

// python splices a user code block. ${input} expands to the first data input,
// ${input.<handle>} to a named input and ${output} to the output name.
func python() descriptor.Descriptor {
	spec := descriptor.Spec{
		Preview:     descriptor.PreviewTable,
		Description: "Run a block of user code.",
		Params: []descriptor.Param{
			{Name: "code", Type: cty.String},
			{Name: "imports", Type: cty.List(cty.String), Default: val(cty.ListValEmpty(cty.String))},
			{Name: "dependencies", Type: cty.List(cty.String), Default: val(cty.ListValEmpty(cty.String))},
		},
	}
	return descriptor.NewFunc(spec, func(req descriptor.EmitRequest) (descriptor.Fragment, error) {
		code, _ := req.Params["code"].(string)
		if strings.TrimSpace(code) == "" {
			return descriptor.Fragment{}, fmt.Errorf("code must not be empty")
		}
		pairs := []string{"${output}", req.Output}
		if ref, err := descriptor.PrimaryRef(req.Inputs); err == nil {
			pairs = append(pairs, "${input}", ref)
		} else if strings.Contains(code, "${input}") {
			return descriptor.Fragment{}, err
		}
		for _, in := range req.Inputs {
			if in.Handle != "" && in.Ref != "" {
				pairs = append(pairs, "${input."+in.Handle+"}", in.Ref)
			}
		}
		code = strings.NewReplacer(pairs...).Replace(code)
		if strings.Contains(code, "${") {
			return descriptor.Fragment{}, fmt.Errorf("unresolved placeholder in code")
		}
		return descriptor.Fragment{
			Code:         strings.TrimRight(code, " \t\n"),
			Imports:      stringList(req.Params["imports"]),
			Dependencies: stringList(req.Params["dependencies"]),
		}, nil
	})
}

// stringList flattens a bound list(string) param.
func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprint(it))
	}
	return out
}

// environment sets process environment variables, sorted by name.
func environment() descriptor.Descriptor {
	spec := descriptor.Spec{
		Category:    descriptor.Environment,
		Imports:     []string{"import os"},
		Description: "Set environment variables for later steps.",
		Params: []descriptor.Param{
			{Name: "variables", Type: cty.Map(cty.String)},
		},
	}
	return descriptor.NewFunc(spec, func(req descriptor.EmitRequest) (descriptor.Fragment, error) {
		vars, _ := req.Params["variables"].(map[string]any)
		if len(vars) == 0 {
			return descriptor.Fragment{Code: fmt.Sprintf("# environment %s sets no variables", req.NodeID)}, nil
		}
		names := make([]string, 0, len(vars))
		for k := range vars {
			names = append(names, k)
		}
		sort.Strings(names)
		lines := make([]string, 0, len(names))
		for _, k := range names {
			v, err := descriptor.PyLiteral(vars[k])
			if err != nil {
				return descriptor.Fragment{}, err
			}
			lines = append(lines, fmt.Sprintf("os.environ[%q] = %s", k, v))
		}
		return descriptor.Fragment{Code: strings.Join(lines, "\n")}, nil
	})
}
