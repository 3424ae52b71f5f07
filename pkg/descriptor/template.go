package descriptor

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// templateFuncs are available to every code template. input, primary and
// conn are placeholders here; Emit rebinds them to the node being rendered.
var templateFuncs = template.FuncMap{
	"py":      PyLiteral,
	"ident":   Identifier,
	"join":    strings.Join,
	"input":   templateData{}.Input,
	"primary": templateData{}.Primary,
	"conn":    templateData{}.Conn,
}

// Template is a descriptor whose code comes from a text/template.
//
// The template sees .Node (.ID, .Type), .Data, .Params, .Output and .Inputs.
// The input references are available both as funcs (input "handle",
// primary, conn) and as methods (.Input "handle", .Primary, .Conn). Missing
// map keys are errors rather than "<no value>".
type Template struct {
	base
	tpl *template.Template
}

// NewTemplate parses text as the code template for spec.
func NewTemplate(spec Spec, text string) (*Template, error) {
	tpl, err := template.New("descriptor").
		Funcs(templateFuncs).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse code template: %w", err)
	}
	return &Template{base: base{spec: spec}, tpl: tpl}, nil
}

// MustTemplate is NewTemplate for templates known at compile time.
func MustTemplate(spec Spec, text string) *Template {
	t, err := NewTemplate(spec, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Emit validates the node's data and renders the template.
func (t *Template) Emit(req EmitRequest) (Fragment, error) {
	req, err := t.bind(req)
	if err != nil {
		return Fragment{}, err
	}
	data := newTemplateData(req)
	tpl, err := t.tpl.Clone()
	if err != nil {
		return Fragment{}, fmt.Errorf("render template: %w", err)
	}
	tpl.Funcs(template.FuncMap{
		"input":   data.Input,
		"primary": data.Primary,
		"conn":    data.Conn,
	})
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return Fragment{}, fmt.Errorf("render template: %w", err)
	}
	return Fragment{Code: strings.TrimRight(buf.String(), " \t\n")}, nil
}

type templateNode struct {
	ID   string
	Type string
}

type templateData struct {
	Node   templateNode
	Data   map[string]any
	Params map[string]any
	Output string
	Inputs Inputs
}

func newTemplateData(req EmitRequest) templateData {
	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	return templateData{
		Node:   templateNode{ID: req.NodeID, Type: req.Type},
		Data:   data,
		Params: req.Params,
		Output: req.Output,
		Inputs: req.Inputs,
	}
}

// Input returns the ref bound to the named handle.
func (d templateData) Input(handle string) (string, error) {
	in, ok := d.Inputs.Handle(handle)
	if !ok || in.Ref == "" {
		return "", fmt.Errorf("no input connected to handle %q", handle)
	}
	return in.Ref, nil
}

// Primary returns the first value-carrying input.
func (d templateData) Primary() (string, error) {
	return primaryRef(d.Inputs)
}

// Conn returns the ref of the first connection input.
func (d templateData) Conn() (string, error) {
	return connRef(d.Inputs)
}

func primaryRef(in Inputs) (string, error) {
	data := in.Data()
	if len(data) == 0 {
		return "", fmt.Errorf("no data input connected")
	}
	return data[0].Ref, nil
}

func connRef(in Inputs) (string, error) {
	for _, i := range in.Of(Connection) {
		if i.Ref != "" {
			return i.Ref, nil
		}
	}
	return "", fmt.Errorf("no connection input connected")
}
