package plan

import (
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
)

// CycleError reports nodes that lie on or between directed cycles, in
// document order.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle among nodes %s", strings.Join(e.Nodes, ", "))
}

func (e *CycleError) Unwrap() error { return pipeline.ErrCycleDetected }

// Diagnostics converts the error into one CycleDetected diagnostic per node.
func (e *CycleError) Diagnostics() pipeline.Diagnostics {
	ds := make(pipeline.Diagnostics, len(e.Nodes))
	for i, id := range e.Nodes {
		ds[i] = pipeline.Diagnostic{
			Kind:    pipeline.KindCycleDetected,
			NodeID:  id,
			Message: e.Error(),
		}
	}
	return ds
}

// UnknownTargetError reports a target that is not a node of the graph.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("target %q is not a node of the flow", e.Target)
}

func (e *UnknownTargetError) Unwrap() error { return pipeline.ErrUnknownTarget }

// Diagnostics converts a Build error into diagnostics.
func Diagnostics(err error) pipeline.Diagnostics {
	switch e := err.(type) {
	case nil:
		return nil
	case *CycleError:
		return e.Diagnostics()
	case *UnknownTargetError:
		return pipeline.Diagnostics{{Kind: pipeline.KindUnknownTarget, NodeID: e.Target, Message: e.Error()}}
	}
	return pipeline.AsDiagnostics(err, pipeline.KindMalformedDocument)
}
