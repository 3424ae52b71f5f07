package descriptor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
)

// UnknownTypeError is returned by Resolve for unregistered node types.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("no descriptor registered for node type %q", e.Type)
}

func (e *UnknownTypeError) Unwrap() error { return pipeline.ErrUnknownNodeType }

// Registry maps node types to descriptors. It is populated once at startup,
// sealed, and then only read, so concurrent compiles share it freely.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	sealed      bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register associates a descriptor with a node type. The last registration
// for a type wins. Register panics once the registry is sealed.
func (r *Registry) Register(nodeType string, d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic(fmt.Sprintf("descriptor: Register(%q) after Seal", nodeType))
	}
	if _, exists := r.descriptors[nodeType]; exists {
		slog.Debug("replacing descriptor", "type", nodeType)
	} else {
		slog.Debug("registering descriptor", "type", nodeType, "category", d.Category())
	}
	r.descriptors[nodeType] = d
}

// Seal ends population. It is the barrier between startup and compiling.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Resolve returns the descriptor for a node type.
func (r *Registry) Resolve(nodeType string) (Descriptor, error) {
	r.mu.RLock()
	d, ok := r.descriptors[nodeType]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownTypeError{Type: nodeType}
	}
	return d, nil
}

// Category classifies a node type. Unknown types are reported as Standard;
// the failure to resolve them surfaces when the node is emitted.
func (r *Registry) Category(nodeType string) Category {
	d, err := r.Resolve(nodeType)
	if err != nil {
		return Standard
	}
	return d.Category()
}

// Types returns the registered node types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.descriptors))
	for t := range r.descriptors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
