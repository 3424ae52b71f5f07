package compiler

import (
	"fmt"
	"strings"
)

// requirement is one third-party package a script needs.
type requirement struct {
	Spec       string // as written, without any module override
	Package    string // package name as written
	Name       string // normalised package name, the dedup key
	Constraint string // extras and version specifier, whitespace removed
	Module     string // importable module checked by the install guard
	NodeID     string // first node that declared it
}

// parseRequirement splits "module:spec" overrides and extracts the package
// name from a pip requirement such as "pandas>=2.0" or "uvicorn[standard]".
func parseRequirement(raw string) (requirement, error) {
	raw = strings.TrimSpace(raw)
	var module string
	if before, after, ok := strings.Cut(raw, ":"); ok && isModulePath(strings.TrimSpace(before)) {
		module = strings.TrimSpace(before)
		raw = strings.TrimSpace(after)
	}
	end := strings.IndexFunc(raw, func(r rune) bool { return !isNameRune(r) })
	if end < 0 {
		end = len(raw)
	}
	name := raw[:end]
	if name == "" {
		return requirement{}, fmt.Errorf("dependency %q has no package name", raw)
	}
	if module == "" {
		module = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	}
	return requirement{
		Spec:       raw,
		Package:    name,
		Name:       normaliseName(name),
		Constraint: normaliseSpec(raw[end:]),
		Module:     module,
	}, nil
}

func isNameRune(r rune) bool {
	return r == '-' || r == '_' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isModulePath(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && r != '.' && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// normaliseName folds case and the -, _ and . separators the way package
// indexes do.
func normaliseName(name string) string {
	name = strings.ToLower(name)
	return strings.NewReplacer("_", "-", ".", "-").Replace(name)
}

// normaliseSpec removes whitespace so ">= 2" equals ">=2".
func normaliseSpec(spec string) string {
	return strings.Join(strings.Fields(spec), "")
}

// depSet accumulates requirements in first-seen order.
type depSet struct {
	order  []requirement
	byName map[string]int
}

func newDepSet() *depSet {
	return &depSet{byName: make(map[string]int)}
}

// conflictError reports the same package declared with two constraints.
type conflictError struct {
	Spec, Prev, PrevNode string
}

func (e *conflictError) Error() string {
	return fmt.Sprintf("dependency %q conflicts with %q declared by node %q", e.Spec, e.Prev, e.PrevNode)
}

// add records raw for nodeID. Repeats are dropped, whatever the case or
// separators of the package name; the same package with a different
// constraint is a *conflictError. A requirement that cannot be parsed is a
// plain error.
func (s *depSet) add(raw, nodeID string) error {
	req, err := parseRequirement(raw)
	if err != nil {
		return err
	}
	req.NodeID = nodeID
	if i, ok := s.byName[req.Name]; ok {
		prev := s.order[i]
		if prev.Constraint != req.Constraint {
			return &conflictError{Spec: req.Spec, Prev: prev.Spec, PrevNode: prev.NodeID}
		}
		return nil
	}
	s.byName[req.Name] = len(s.order)
	s.order = append(s.order, req)
	return nil
}

// Packages returns the package names in first-seen order.
func (s *depSet) Packages() []string {
	names := make([]string, len(s.order))
	for i, r := range s.order {
		names[i] = r.Package
	}
	return names
}

// Specs returns the requirement strings in first-seen order.
func (s *depSet) Specs() []string {
	specs := make([]string, len(s.order))
	for i, r := range s.order {
		specs[i] = r.Spec
	}
	return specs
}
