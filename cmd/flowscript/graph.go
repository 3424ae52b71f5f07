package main

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
	"github.com/ravi-parthasarathy/flowscript/pkg/plan"
)

func planCmd(a *app) *cobra.Command {
	var (
		format     string
		pipelineID string
		target     string
	)

	cmd := &cobra.Command{
		Use:   "plan <pipeline.json|pipeline.dot>",
		Short: "Print the order in which nodes would be compiled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, g, err := loadGraph(args[0], pipelineID)
			if err != nil {
				return a.reportErr(cmd.ErrOrStderr(), err)
			}
			if err := a.report(cmd.ErrOrStderr(), g.Validate()); err != nil {
				return err
			}
			pl, err := plan.Build(g, target, a.reg)
			if err != nil {
				return a.report(cmd.ErrOrStderr(), plan.Diagnostics(err))
			}

			switch strings.ToLower(format) {
			case "dot":
				out, err := renderPlanDOT(p.ID, g, pl)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderPlanText(p.ID, g, pl))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	cmd.Flags().StringVar(&pipelineID, "pipeline", "", "pipeline id (default: primary or first)")
	cmd.Flags().StringVar(&target, "target", "", "plan only the ancestors of this node")
	return cmd
}

func nodeTypes(g pipeline.Graph) map[string]string {
	types := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		types[n.ID] = n.Type
	}
	return types
}

// renderPlanText produces the human-readable plan.
func renderPlanText(name string, g pipeline.Graph, pl *plan.Plan) string {
	var sb strings.Builder
	types := nodeTypes(g)

	fmt.Fprintf(&sb, "Plan: %s  (%d nodes, %d deferred)\n", name, len(pl.Order), len(pl.Deferred))
	if pl.Target != "" {
		fmt.Fprintf(&sb, "Target: %s\n", pl.Target)
	}

	// Column width for ids.
	maxIDLen := 4
	for _, id := range append(append([]string{}, pl.Order...), pl.Deferred...) {
		if len(id) > maxIDLen {
			maxIDLen = len(id)
		}
	}

	writeRow := func(i int, id string) {
		var inputs []string
		for _, e := range pl.Inputs[id] {
			if e.TargetHandle != "" {
				inputs = append(inputs, e.Source+":"+e.TargetHandle)
			} else {
				inputs = append(inputs, e.Source)
			}
		}
		marker := ""
		if pl.Sinks[id] {
			marker = "  (sink)"
		}
		fmt.Fprintf(&sb, "  %3d  %-*s  %-14s  ← %s%s\n", i+1, maxIDLen, id, types[id], strings.Join(inputs, ", "), marker)
	}

	fmt.Fprintf(&sb, "\nOrder:\n")
	for i, id := range pl.Order {
		writeRow(i, id)
	}
	if len(pl.Deferred) > 0 {
		fmt.Fprintf(&sb, "\nDeferred:\n")
		for i, id := range pl.Deferred {
			writeRow(i, id)
		}
	}
	return sb.String()
}

// dotQuote returns the value as a quoted DOT string.
func dotQuote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// dotLabel quotes lines as a multi-line DOT label.
func dotLabel(lines ...string) string {
	q := make([]string, len(lines))
	for i, l := range lines {
		quoted := dotQuote(l)
		q[i] = quoted[1 : len(quoted)-1]
	}
	return `"` + strings.Join(q, `\n`) + `"`
}

// renderPlanDOT renders the planned subgraph as a DOT digraph. Nodes are
// labelled with their position in the order; deferred nodes are dashed.
func renderPlanDOT(name string, g pipeline.Graph, pl *plan.Plan) (string, error) {
	types := nodeTypes(g)
	out := gographviz.NewGraph()
	if err := out.SetName(dotQuote(name)); err != nil {
		return "", err
	}
	if err := out.SetDir(true); err != nil {
		return "", err
	}
	graphName := dotQuote(name)

	for i, id := range pl.Order {
		attrs := map[string]string{
			"label": dotLabel(fmt.Sprintf("%d. %s", i+1, id), types[id]),
			"shape": "box",
		}
		if pl.Sinks[id] {
			attrs["peripheries"] = "2"
		}
		if err := out.AddNode(graphName, dotQuote(id), attrs); err != nil {
			return "", err
		}
	}
	for _, id := range pl.Deferred {
		attrs := map[string]string{
			"label": dotLabel(id, types[id]),
			"shape": "box",
			"style": "dashed",
		}
		if err := out.AddNode(graphName, dotQuote(id), attrs); err != nil {
			return "", err
		}
	}
	for _, e := range g.Edges {
		if !pl.Contains(e.Source) || !pl.Contains(e.Target) {
			continue
		}
		attrs := map[string]string{}
		if e.TargetHandle != "" {
			attrs["label"] = dotQuote(e.TargetHandle)
		}
		if err := out.AddEdge(dotQuote(e.Source), dotQuote(e.Target), true, attrs); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

// renderDescriptors lists registered node types with their category.
func renderDescriptors(reg *descriptor.Registry) string {
	var sb strings.Builder
	types := reg.Types()
	maxLen := 4
	for _, t := range types {
		if len(t) > maxLen {
			maxLen = len(t)
		}
	}
	for _, t := range types {
		d, err := reg.Resolve(t)
		if err != nil {
			continue
		}
		flags := d.Category().String()
		if d.Sink() {
			flags += ",sink"
		}
		var desc string
		if dd, ok := d.(interface{ Description() string }); ok {
			desc = dd.Description()
		}
		fmt.Fprintf(&sb, "  %-*s  %-18s  %s\n", maxLen, t, flags, desc)
	}
	return sb.String()
}
