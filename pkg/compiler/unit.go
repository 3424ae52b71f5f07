package compiler

import "github.com/ravi-parthasarathy/flowscript/pkg/pipeline"

// CompiledUnit is the result of one compile. Script is empty whenever
// Diagnostics is not.
type CompiledUnit struct {
	Script       string                `json:"script"`
	Dependencies []string              `json:"dependencies"`
	Diagnostics  []pipeline.Diagnostic `json:"diagnostics,omitempty"`
}

// OK reports whether the compile produced a script.
func (u *CompiledUnit) OK() bool { return len(u.Diagnostics) == 0 }

// Err returns the diagnostics as a single error, or nil.
func (u *CompiledUnit) Err() error {
	return pipeline.Diagnostics(u.Diagnostics).Err()
}

func failed(diags pipeline.Diagnostics) *CompiledUnit {
	return &CompiledUnit{Dependencies: []string{}, Diagnostics: diags}
}
