package compiler

import (
	"fmt"
	"strings"
	"time"
)

// Version is written into the provenance header of every script.
const Version = "0.1.0"

// guardImports are written at the top of the install guard and therefore
// never repeated in the imports section.
var guardImports = []string{"import importlib.util", "import subprocess", "import sys"}

// finalize joins the assembled sections in their fixed order: header and
// dependency banner, install guard, imports, helper functions, body.
func finalize(a *assembler, generatedAt time.Time) string {
	var sections []string

	header := []string{"# Generated by flowscript " + Version}
	if !generatedAt.IsZero() {
		header = append(header, "# generated-at: "+generatedAt.UTC().Format(time.RFC3339))
	}
	header = append(header, strings.TrimRight("# requirements: "+strings.Join(a.deps.Packages(), ", "), " "))
	sections = append(sections, strings.Join(header, "\n"))

	var emitted orderedSet
	if guard := installGuard(a.deps.order); guard != "" {
		emitted.addAll(guardImports...)
		sections = append(sections, guard)
	}
	var imports []string
	for _, imp := range a.imports.items {
		if !emitted.has(imp) {
			imports = append(imports, imp)
		}
	}
	if len(imports) > 0 {
		sections = append(sections, strings.Join(imports, "\n"))
	}
	if len(a.funcs) > 0 {
		codes := make([]string, len(a.funcs))
		for i, fn := range a.funcs {
			codes[i] = strings.TrimRight(fn.Code, " \t\n")
		}
		sections = append(sections, strings.Join(codes, "\n\n"))
	}
	if len(a.body) > 0 {
		sections = append(sections, strings.Join(a.body, "\n"))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// installGuard emits a self-contained loop that installs missing packages
// before anything imports them.
func installGuard(reqs []requirement) string {
	if len(reqs) == 0 {
		return ""
	}
	pairs := make([]string, len(reqs))
	for i, r := range reqs {
		pairs[i] = fmt.Sprintf("    (%q, %q),", r.Module, r.Spec)
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(guardImports, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString("for _flowscript_module, _flowscript_requirement in [\n")
	sb.WriteString(strings.Join(pairs, "\n"))
	sb.WriteString("\n]:\n")
	sb.WriteString("    if importlib.util.find_spec(_flowscript_module) is None:\n")
	sb.WriteString("        subprocess.check_call([sys.executable, \"-m\", \"pip\", \"install\", _flowscript_requirement])")
	return sb.String()
}
