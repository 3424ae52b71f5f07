package descriptor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// manifestFile is the top-level schema of a descriptor manifest.
type manifestFile struct {
	Descriptors []*manifestDescriptor `hcl:"descriptor,block"`
	Remain      hcl.Body              `hcl:",remain"`
}

type manifestDescriptor struct {
	Type         string              `hcl:"type,label"`
	Category     string              `hcl:"category,optional"`
	Description  string              `hcl:"description,optional"`
	Imports      []string            `hcl:"imports,optional"`
	Dependencies []string            `hcl:"dependencies,optional"`
	Sink         bool                `hcl:"sink,optional"`
	Preview      string              `hcl:"preview,optional"`
	Params       []*manifestParam    `hcl:"param,block"`
	Functions    []*manifestFunction `hcl:"function,block"`
	Template     string              `hcl:"template"`
}

type manifestParam struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
	Optional    bool           `hcl:"optional,optional"`
	Description string         `hcl:"description,optional"`
}

type manifestFunction struct {
	Name string `hcl:"name,label"`
	Code string `hcl:"code"`
}

// LoadManifests reads every .hcl file under paths (files or directories),
// registers the descriptors they declare and returns how many were loaded.
// Files are processed in lexical order so later files override earlier ones
// deterministically. Missing paths are skipped.
func LoadManifests(reg *Registry, paths ...string) (int, error) {
	files, err := findManifestFiles(paths)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		slog.Debug("no descriptor manifests found", "paths", paths)
		return 0, nil
	}

	parser := hclparse.NewParser()
	loaded := 0
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return loaded, fmt.Errorf("failed to parse manifest %s: %w", file, diags)
		}
		var root manifestFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return loaded, fmt.Errorf("failed to decode manifest %s: %w", file, diags)
		}
		for _, md := range root.Descriptors {
			d, err := translateDescriptor(md)
			if err != nil {
				return loaded, fmt.Errorf("manifest %s: descriptor %q: %w", file, md.Type, err)
			}
			reg.Register(md.Type, d)
			loaded++
		}
		slog.Debug("loaded descriptor manifest", "file", file, "descriptors", len(root.Descriptors))
	}
	return loaded, nil
}

func translateDescriptor(md *manifestDescriptor) (*Template, error) {
	cat, err := ParseCategory(md.Category)
	if err != nil {
		return nil, err
	}
	preview := defaultPreview(cat, md.Sink)
	if md.Preview != "" {
		if preview, err = ParsePreview(md.Preview); err != nil {
			return nil, err
		}
	}

	spec := Spec{
		Category:     cat,
		Imports:      md.Imports,
		Dependencies: md.Dependencies,
		Sink:         md.Sink,
		Preview:      preview,
		Description:  md.Description,
	}
	seen := make(map[string]bool)
	for _, mp := range md.Params {
		if seen[mp.Name] {
			return nil, fmt.Errorf("param %q declared twice", mp.Name)
		}
		seen[mp.Name] = true
		p, err := translateParam(mp)
		if err != nil {
			return nil, err
		}
		spec.Params = append(spec.Params, p)
	}
	for _, mf := range md.Functions {
		spec.Functions = append(spec.Functions, Function{Name: mf.Name, Code: mf.Code})
	}
	return NewTemplate(spec, md.Template)
}

func translateParam(mp *manifestParam) (Param, error) {
	p := Param{
		Name:        mp.Name,
		Type:        cty.DynamicPseudoType,
		Optional:    mp.Optional,
		Description: mp.Description,
	}
	if isExprDefined(mp.Type) {
		ty, diags := typeexpr.TypeConstraint(mp.Type)
		if diags.HasErrors() {
			return p, fmt.Errorf("param %q: invalid type: %w", mp.Name, diags)
		}
		p.Type = ty
	}
	if isExprDefined(mp.Default) {
		val, diags := mp.Default.Value(nil)
		if diags.HasErrors() {
			return p, fmt.Errorf("param %q: invalid default: %w", mp.Name, diags)
		}
		if !val.IsNull() {
			p.Default = &val
			// Reject defaults that could never bind.
			if _, err := convertParam(p, val); err != nil {
				return p, fmt.Errorf("default: %w", err)
			}
		}
	}
	return p, nil
}

// defaultPreview picks the preview for a manifest that does not name one.
func defaultPreview(cat Category, sink bool) Preview {
	if sink || cat != Standard {
		return PreviewNone
	}
	return PreviewTable
}

// isExprDefined reports whether an optional attribute was present in the
// source. gohcl fills omitted optional expressions with zero-width
// placeholders, so a nil check alone is not enough.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

// findManifestFiles walks all given paths and returns the .hcl files found,
// deduplicated and sorted.
func findManifestFiles(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, de os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !de.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
