package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// ParseDOT parses a Graphviz DOT string into a single-pipeline Document.
//
// The node attribute "type" selects the node type; every other attribute is
// stored as string data. An edge's "handle" attribute, or the port of its
// head (a -> join:left), becomes the edge's TargetHandle.
func ParseDOT(src string) (*Document, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}

	// Use a custom permissive graph collector that accepts any attribute name
	// without the strict validation that gographviz.Graph performs.
	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	var sheet *Stylesheet
	if raw, ok := collector.graphAttrs["data_stylesheet"]; ok {
		sheet = ParseStylesheet(raw)
	}

	flow := Flow{}
	for _, id := range collector.order {
		attrs := collector.nodes[id]
		data := make(map[string]any, len(attrs))
		for k, v := range attrs {
			if k == "type" {
				continue
			}
			data[k] = v
		}
		n := &Node{ID: id, Type: attrs["type"], Data: data}
		sheet.Apply(n)
		flow.Nodes = append(flow.Nodes, n)
	}
	for i, e := range collector.edges {
		flow.Edges = append(flow.Edges, &Edge{
			ID:           "e" + strconv.Itoa(i+1),
			Source:       e.from,
			Target:       e.to,
			TargetHandle: e.handle,
		})
	}

	name := collector.name
	if name == "" {
		name = "pipeline"
	}
	doc := &Document{
		DocType:   DocType,
		Version:   Version(strconv.Itoa(SupportedMajorVersion) + ".0"),
		ID:        name,
		Pipelines: []*Pipeline{{ID: name, Name: collector.graphAttrs["label"], Flow: flow}},
	}
	if diags := Validate(&flow); len(diags) > 0 {
		return nil, diags
	}
	return doc, nil
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

type rawEdge struct {
	from, to string
	handle   string
}

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name       string
	order      []string                     // node ids by first appearance
	nodes      map[string]map[string]string // id → attrs
	edges      []rawEdge
	graphAttrs map[string]string
}

func newDOTCollector() *dotCollector {
	return &dotCollector{
		nodes:      make(map[string]map[string]string),
		graphAttrs: make(map[string]string),
	}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) touch(id string) map[string]string {
	attrs, ok := c.nodes[id]
	if !ok {
		attrs = make(map[string]string)
		c.nodes[id] = attrs
		c.order = append(c.order, id)
	}
	return attrs
}

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	node := c.touch(unquote(name))
	for k, v := range attrs {
		node[k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, directed bool, attrs map[string]string) error {
	return c.AddPortEdge(src, "", dst, "", directed, attrs)
}

func (c *dotCollector) AddPortEdge(src, _, dst, dstPort string, _ bool, attrs map[string]string) error {
	from, to := unquote(src), unquote(dst)
	// Edges may name nodes that were never declared on their own line.
	c.touch(from)
	c.touch(to)
	handle := strings.TrimPrefix(unquote(dstPort), ":")
	if h, ok := attrs["handle"]; ok {
		handle = unquote(h)
	}
	c.edges = append(c.edges, rawEdge{from: from, to: to, handle: handle})
	return nil
}

func (c *dotCollector) AddAttr(_ string, field, value string) error {
	c.graphAttrs[field] = unquote(value)
	return nil
}

func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

// ─── helpers ─────────────────────────────────────────────────────────────────

// unquote strips surrounding double-quotes from a DOT attribute value.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
