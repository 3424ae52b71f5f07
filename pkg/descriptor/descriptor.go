// Package descriptor defines per-node-type code generation behaviour and the
// registry that maps node types to it.
//
// A Descriptor supplies the imports, third-party dependencies and helper
// functions a node type needs, plus Emit, which turns one node into a code
// fragment. Two variants exist: Template (a text/template over typed
// parameters, usable from HCL manifests) and Func (a Go function).
package descriptor

import (
	"fmt"
	"strings"
)

// Category distinguishes value-producing steps from deferred ones.
type Category int

const (
	// Standard nodes produce a value that flows along their outgoing edges.
	Standard Category = iota
	// Environment nodes configure ambient state such as variables.
	Environment
	// Connection nodes set up credentials or client handles.
	Connection
)

func (c Category) String() string {
	switch c {
	case Standard:
		return "standard"
	case Environment:
		return "environment"
	case Connection:
		return "connection"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Deferred reports whether nodes of this category are hoisted before their
// first consumer instead of emitted at their structural position.
func (c Category) Deferred() bool { return c == Environment || c == Connection }

// ParseCategory parses a category name; the empty string means Standard.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return Standard, nil
	case "environment", "env":
		return Environment, nil
	case "connection":
		return Connection, nil
	}
	return Standard, fmt.Errorf("unknown category %q: use standard, environment or connection", s)
}

// Display hook names provided by the host runtime.
const (
	DisplayDataframeHook = "display_dataframe"
	DisplayHTMLHook      = "display_html"
)

// Preview selects how a node's output is displayed in a partial compile.
type Preview int

const (
	PreviewNone Preview = iota
	PreviewTable
	PreviewHTML
)

// Hook returns the display function for the preview, or "" for PreviewNone.
func (p Preview) Hook() string {
	switch p {
	case PreviewTable:
		return DisplayDataframeHook
	case PreviewHTML:
		return DisplayHTMLHook
	}
	return ""
}

func (p Preview) String() string {
	switch p {
	case PreviewTable:
		return "table"
	case PreviewHTML:
		return "html"
	}
	return "none"
}

// ParsePreview parses "table", "html" or "none".
func ParsePreview(s string) (Preview, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return PreviewNone, nil
	case "table", "dataframe":
		return PreviewTable, nil
	case "html":
		return PreviewHTML, nil
	}
	return PreviewNone, fmt.Errorf("unknown preview %q: use table, html or none", s)
}

// Function is a named helper definition emitted once per script.
type Function struct {
	Name string
	Code string
}

// Input is one incoming edge bound to its source's output.
type Input struct {
	Handle   string   // target handle, "" when the edge has none
	Source   string   // source node id
	Ref      string   // source output name, "" for sources that produce no value
	Category Category // source node category
}

// Inputs are a node's incoming edges in document edge order.
type Inputs []Input

// Handle returns the input bound to the named handle.
func (in Inputs) Handle(name string) (Input, bool) {
	for _, i := range in {
		if i.Handle == name {
			return i, true
		}
	}
	return Input{}, false
}

// Data returns the value-carrying inputs from Standard sources.
func (in Inputs) Data() Inputs {
	var out Inputs
	for _, i := range in {
		if i.Category == Standard && i.Ref != "" {
			out = append(out, i)
		}
	}
	return out
}

// Of returns the inputs whose source has the given category.
func (in Inputs) Of(c Category) Inputs {
	var out Inputs
	for _, i := range in {
		if i.Category == c {
			out = append(out, i)
		}
	}
	return out
}

// Refs returns the non-empty refs in order.
func (in Inputs) Refs() []string {
	refs := make([]string, 0, len(in))
	for _, i := range in {
		if i.Ref != "" {
			refs = append(refs, i.Ref)
		}
	}
	return refs
}

// EmitRequest carries everything a descriptor needs to emit one node.
type EmitRequest struct {
	NodeID string
	Type   string
	Data   map[string]any
	Inputs Inputs
	// Output is the name proposed by the assembler for the node's value. It
	// is empty for nodes that produce no value (sinks, environment setup).
	Output string
	// Params holds Data checked against the descriptor's declared
	// parameters, with defaults applied. Variants fill it in before
	// rendering; callers leave it nil.
	Params map[string]any
}

// Fragment is the code emitted for one node.
type Fragment struct {
	Code string
	// Output overrides the proposed output name when non-empty.
	Output string
	// Imports and Dependencies extend the descriptor's own for this node.
	// They are merged into the script-wide sets, never written into Code.
	Imports      []string
	Dependencies []string
}

// Descriptor is the per-node-type code generation contract.
type Descriptor interface {
	Category() Category
	Imports() []string
	Dependencies() []string
	Functions() []Function
	// Sink marks output steps. Sinks produce no value and their code is
	// wrapped in a failure reporter when terminal.
	Sink() bool
	Preview() Preview
	Emit(req EmitRequest) (Fragment, error)
}

// Spec is the static part of a descriptor.
type Spec struct {
	Category     Category
	Imports      []string
	Dependencies []string
	Functions    []Function
	Sink         bool
	Preview      Preview
	Params       []Param
	Description  string
}

// base implements the metadata half of Descriptor from a Spec.
type base struct {
	spec Spec
}

func (b base) Category() Category     { return b.spec.Category }
func (b base) Imports() []string      { return b.spec.Imports }
func (b base) Dependencies() []string { return b.spec.Dependencies }
func (b base) Functions() []Function  { return b.spec.Functions }
func (b base) Sink() bool             { return b.spec.Sink }
func (b base) Preview() Preview       { return b.spec.Preview }

// Params returns the declared parameters.
func (b base) Params() []Param { return b.spec.Params }

// Description returns the human-readable summary.
func (b base) Description() string { return b.spec.Description }

// bind checks req.Data against the declared params.
func (b base) bind(req EmitRequest) (EmitRequest, error) {
	params, err := bindParams(b.spec.Params, req.Data)
	if err != nil {
		return req, err
	}
	req.Params = params
	return req, nil
}

// ProducesValue reports whether nodes described by d bind an output name.
func ProducesValue(d Descriptor) bool {
	return !d.Sink() && d.Category() != Environment
}
