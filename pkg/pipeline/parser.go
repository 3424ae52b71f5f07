package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Parse reads a JSON pipeline document and validates its header and every
// flow in it. On failure the returned error is a Diagnostics list.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	// Keep numbers as written so descriptors can re-emit them verbatim.
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, Diagnostics{{Kind: KindMalformedDocument, Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}

	diags := validateHeader(&doc)
	for _, p := range doc.Pipelines {
		if p == nil {
			continue
		}
		for _, d := range Validate(&p.Flow) {
			if len(doc.Pipelines) > 1 {
				d.Message = fmt.Sprintf("pipeline %q: %s", p.ID, d.Message)
			}
			diags = append(diags, d)
		}
	}
	if len(diags) > 0 {
		return nil, diags
	}
	return &doc, nil
}
