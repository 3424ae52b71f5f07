package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DocType is the only doc_type value accepted by Parse.
const DocType = "pipeline"

// SupportedMajorVersion is the document schema major version Parse accepts.
const SupportedMajorVersion = 3

// Version is a document schema version. The editor writes it either as a
// JSON string ("3.0") or a bare number (3).
type Version string

func (v *Version) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Version(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("version must be a string or number: %w", err)
	}
	*v = Version(n.String())
	return nil
}

// Document is a serialized pipeline file as written by the editor.
type Document struct {
	DocType         string      `json:"doc_type"`
	Version         Version     `json:"version"`
	ID              string      `json:"id,omitempty"`
	PrimaryPipeline string      `json:"primary_pipeline,omitempty"`
	Pipelines       []*Pipeline `json:"pipelines"`
}

// Pipeline is one named flow inside a document.
type Pipeline struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	Flow    Flow           `json:"flow"`
	AppData map[string]any `json:"app_data,omitempty"`
}

// Flow owns the nodes and edges of one graph. Viewport is presentation-only.
type Flow struct {
	Nodes    []*Node        `json:"nodes"`
	Edges    []*Edge        `json:"edges"`
	Viewport map[string]any `json:"viewport,omitempty"`
}

// Node is a typed processing step. Data is opaque user configuration handed
// to the node type's descriptor unchanged.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data,omitempty"`
	Position map[string]any `json:"position,omitempty"`
	AppData  map[string]any `json:"app_data,omitempty"`
}

// Edge is a directed connection from Source's output into Target. TargetHandle
// names the input slot on multi-input nodes.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Flow returns the pipeline with the given id. An empty id selects the
// document's primary pipeline, or the first one when none is marked primary.
func (d *Document) Flow(id string) (*Flow, error) {
	p, err := d.Pipeline(id)
	if err != nil {
		return nil, err
	}
	return &p.Flow, nil
}

// Pipeline looks up a pipeline using the same rules as Flow.
func (d *Document) Pipeline(id string) (*Pipeline, error) {
	if len(d.Pipelines) == 0 {
		return nil, Diagnostic{Kind: KindMalformedDocument, Message: "document has no pipelines"}
	}
	if id == "" {
		id = d.PrimaryPipeline
	}
	if id == "" {
		return d.Pipelines[0], nil
	}
	for _, p := range d.Pipelines {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("pipeline %q not found", id)}
}

// ─── compilation projection ──────────────────────────────────────────────────

// GraphNode is the structural part of a Node.
type GraphNode struct {
	ID   string
	Type string
	Data map[string]any
}

// GraphEdge is the structural part of an Edge.
type GraphEdge struct {
	ID           string
	Source       string
	Target       string
	TargetHandle string
}

// Graph is the minimal projection of a Flow that compilation works on.
// Nodes and Edges keep document order.
type Graph struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

// FilterForCompilation drops presentation data (positions, app_data,
// viewport) and returns the structural projection of f.
func FilterForCompilation(f *Flow) Graph {
	g := Graph{
		Nodes: make([]GraphNode, 0, len(f.Nodes)),
		Edges: make([]GraphEdge, 0, len(f.Edges)),
	}
	for _, n := range f.Nodes {
		g.Nodes = append(g.Nodes, GraphNode{ID: n.ID, Type: n.Type, Data: n.Data})
	}
	for _, e := range f.Edges {
		g.Edges = append(g.Edges, GraphEdge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			TargetHandle: e.TargetHandle,
		})
	}
	return g
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (GraphNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return GraphNode{}, false
}

// OutgoingEdges returns all edges leaving nodeID, in definition order.
func (g Graph) OutgoingEdges(nodeID string) []GraphEdge {
	var out []GraphEdge
	for _, e := range g.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns all edges arriving at nodeID, in definition order.
func (g Graph) IncomingEdges(nodeID string) []GraphEdge {
	var out []GraphEdge
	for _, e := range g.Edges {
		if e.Target == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Validate re-checks structural invariants on a projection built by hand
// rather than by FilterForCompilation on a validated flow.
func (g Graph) Validate() Diagnostics {
	f := &Flow{
		Nodes: make([]*Node, len(g.Nodes)),
		Edges: make([]*Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		f.Nodes[i] = &Node{ID: n.ID, Type: n.Type, Data: n.Data}
	}
	for i, e := range g.Edges {
		f.Edges[i] = &Edge{ID: e.ID, Source: e.Source, Target: e.Target, TargetHandle: e.TargetHandle}
	}
	return Validate(f)
}
