package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
)

// loadDocument reads a pipeline document. .dot and .gv files are parsed as
// Graphviz; everything else as JSON.
func loadDocument(path string) (*pipeline.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		return pipeline.ParseDOT(string(src))
	default:
		return pipeline.ParseBytes(src)
	}
}

// loadGraph reads path and projects the selected pipeline.
func loadGraph(path, pipelineID string) (*pipeline.Pipeline, pipeline.Graph, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return nil, pipeline.Graph{}, err
	}
	p, err := doc.Pipeline(pipelineID)
	if err != nil {
		return nil, pipeline.Graph{}, err
	}
	return p, pipeline.FilterForCompilation(&p.Flow), nil
}
