package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a Diagnostic.
type Kind string

const (
	KindMalformedDocument  Kind = "MalformedDocument"
	KindDuplicateNodeID    Kind = "DuplicateNodeId"
	KindDanglingEdge       Kind = "DanglingEdge"
	KindUnknownNodeType    Kind = "UnknownNodeType"
	KindCycleDetected      Kind = "CycleDetected"
	KindEmitFailure        Kind = "DescriptorEmitFailure"
	KindConflictingVersion Kind = "ConflictingDependencyVersion"
	KindUnknownTarget      Kind = "UnknownTarget"
	KindInvalidRequest     Kind = "InvalidRequest"
)

// Sentinel errors, one per Kind, for errors.Is checks against a Diagnostic
// or a Diagnostics list.
var (
	ErrMalformedDocument  = errors.New("malformed document")
	ErrDuplicateNodeID    = errors.New("duplicate node id")
	ErrDanglingEdge       = errors.New("dangling edge")
	ErrUnknownNodeType    = errors.New("unknown node type")
	ErrCycleDetected      = errors.New("cycle detected")
	ErrEmitFailure        = errors.New("descriptor emit failure")
	ErrConflictingVersion = errors.New("conflicting dependency version")
	ErrUnknownTarget      = errors.New("unknown target")
	ErrInvalidRequest     = errors.New("invalid request")
)

var kindSentinels = map[Kind]error{
	KindMalformedDocument:  ErrMalformedDocument,
	KindDuplicateNodeID:    ErrDuplicateNodeID,
	KindDanglingEdge:       ErrDanglingEdge,
	KindUnknownNodeType:    ErrUnknownNodeType,
	KindCycleDetected:      ErrCycleDetected,
	KindEmitFailure:        ErrEmitFailure,
	KindConflictingVersion: ErrConflictingVersion,
	KindUnknownTarget:      ErrUnknownTarget,
	KindInvalidRequest:     ErrInvalidRequest,
}

// Diagnostic describes one problem found while reading or compiling a flow.
// NodeID is set whenever the problem can be attributed to a node so the
// editor can highlight it.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	NodeID  string `json:"nodeId,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) Error() string {
	if d.NodeID != "" {
		return fmt.Sprintf("%s: node %q: %s", d.Kind, d.NodeID, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Unwrap returns the sentinel for the diagnostic's kind.
func (d Diagnostic) Unwrap() error { return kindSentinels[d.Kind] }

// Diagnostics is a list of problems. A non-empty list is an error.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	switch len(ds) {
	case 0:
		return "no diagnostics"
	case 1:
		return ds[0].Error()
	}
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("%d problems:\n  %s", len(ds), strings.Join(msgs, "\n  "))
}

// Unwrap exposes every diagnostic so errors.Is matches any of their kinds.
func (ds Diagnostics) Unwrap() []error {
	errs := make([]error, len(ds))
	for i, d := range ds {
		errs[i] = d
	}
	return errs
}

// Err returns nil for an empty list and the list itself otherwise.
func (ds Diagnostics) Err() error {
	if len(ds) == 0 {
		return nil
	}
	return ds
}

// AsDiagnostics converts err into diagnostics. Errors that are not already
// diagnostics become a single diagnostic of the fallback kind.
func AsDiagnostics(err error, fallback Kind) Diagnostics {
	if err == nil {
		return nil
	}
	var ds Diagnostics
	if errors.As(err, &ds) {
		return ds
	}
	var d Diagnostic
	if errors.As(err, &d) {
		return Diagnostics{d}
	}
	return Diagnostics{{Kind: fallback, Message: err.Error()}}
}
