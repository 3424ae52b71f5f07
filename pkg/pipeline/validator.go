package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks a flow for structural correctness: every node has an id
// and a type, ids are unique, and every edge endpoint exists.
// Returns all discovered problems (not just the first).
func Validate(f *Flow) Diagnostics {
	var diags Diagnostics

	seen := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		if n == nil {
			diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("node at index %d is null", i)})
			continue
		}
		if n.ID == "" {
			diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("node at index %d has no id", i)})
			continue
		}
		if n.Type == "" {
			diags = append(diags, Diagnostic{Kind: KindMalformedDocument, NodeID: n.ID, Message: "node has no type"})
		}
		if seen[n.ID] {
			diags = append(diags, Diagnostic{Kind: KindDuplicateNodeID, NodeID: n.ID, Message: "node id is used more than once"})
			continue
		}
		seen[n.ID] = true
	}

	for i, e := range f.Edges {
		if e == nil {
			diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("edge at index %d is null", i)})
			continue
		}
		label := e.ID
		if label == "" {
			label = "#" + strconv.Itoa(i)
		}
		if !seen[e.Source] {
			diags = append(diags, Diagnostic{
				Kind:    KindDanglingEdge,
				NodeID:  knownEnd(seen, e.Target),
				Message: fmt.Sprintf("edge %s references unknown source node %q", label, e.Source),
			})
		}
		if !seen[e.Target] {
			diags = append(diags, Diagnostic{
				Kind:    KindDanglingEdge,
				NodeID:  knownEnd(seen, e.Source),
				Message: fmt.Sprintf("edge %s references unknown target node %q", label, e.Target),
			})
		}
	}

	return diags
}

// knownEnd returns id when it names an existing node, so a dangling edge is
// attributed to the endpoint the editor can highlight.
func knownEnd(seen map[string]bool, id string) string {
	if seen[id] {
		return id
	}
	return ""
}

// validateHeader checks doc_type, version and the required pipeline fields.
func validateHeader(d *Document) Diagnostics {
	var diags Diagnostics
	switch {
	case d.DocType == "":
		diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: "missing doc_type"})
	case d.DocType != DocType:
		diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("unrecognized doc_type %q", d.DocType)})
	}
	if d.Version == "" {
		diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: "missing version"})
	} else if major, ok := majorVersion(d.Version); !ok || major != SupportedMajorVersion {
		diags = append(diags, Diagnostic{
			Kind:    KindMalformedDocument,
			Message: fmt.Sprintf("unrecognized version %q: want %d.x", d.Version, SupportedMajorVersion),
		})
	}
	if len(d.Pipelines) == 0 {
		diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: "document has no pipelines"})
	}
	for i, p := range d.Pipelines {
		if p == nil {
			diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("pipeline at index %d is null", i)})
			continue
		}
		if p.ID == "" {
			diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("pipeline at index %d has no id", i)})
		}
		// An absent or null array decodes to nil; an empty one does not.
		if p.Flow.Nodes == nil {
			diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("pipeline at index %d has no flow.nodes", i)})
		}
		if p.Flow.Edges == nil {
			diags = append(diags, Diagnostic{Kind: KindMalformedDocument, Message: fmt.Sprintf("pipeline at index %d has no flow.edges", i)})
		}
	}
	return diags
}

func majorVersion(v Version) (int, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(string(v)), ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}
