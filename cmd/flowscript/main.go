package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/flowscript/pkg/compiler"
	"github.com/ravi-parthasarathy/flowscript/pkg/config"
	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor/builtin"
	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
)

// errReported means the diagnostics were already printed.
var errReported = errors.New("compilation failed")

func main() {
	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app is the state shared by all subcommands of one invocation.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	color      string
	manifests  []string

	cfg      config.Config
	reg      *descriptor.Registry
	useColor bool
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "flowscript",
		Short: "Compile flow graphs into Python scripts",
		Long: `flowscript turns a pipeline document (editor JSON or Graphviz DOT) into a
single deterministic Python script.

Each node type maps to a descriptor that emits code. Built-in descriptors cover
common pandas steps; more can be declared in HCL manifests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&a.color, "color", "", "colour diagnostics: auto, always or never")
	pf.StringSliceVar(&a.manifests, "manifests", nil, "descriptor manifest files or directories")

	root.AddCommand(compileCmd(a))
	root.AddCommand(lintCmd(a))
	root.AddCommand(planCmd(a))
	root.AddCommand(descriptorsCmd(a))
	return root
}

// setup loads configuration, installs the logger and builds the sealed
// descriptor registry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("color") {
		cfg.Color = a.color
	}
	if flags.Changed("manifests") {
		cfg.Manifests = a.manifests
	}
	a.cfg = cfg

	if err := initLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	slog.SetDefault(slog.Default().With("run", newRunID()))

	if a.useColor, err = useColor(cfg.Color, os.Stderr); err != nil {
		return err
	}

	a.reg = descriptor.NewRegistry()
	builtin.Register(a.reg)
	n, err := descriptor.LoadManifests(a.reg, cfg.Manifests...)
	if err != nil {
		return err
	}
	a.reg.Seal()
	slog.Debug("registry ready", "types", len(a.reg.Types()), "from_manifests", n)
	return nil
}

func (a *app) compiler(stamp bool) *compiler.Compiler {
	opts := compiler.Options{Logger: slog.Default()}
	if stamp || a.cfg.Stamp {
		opts.Clock = time.Now
	}
	return compiler.New(a.reg, opts)
}

// report prints diagnostics and returns errReported when there are any.
func (a *app) report(w io.Writer, diags []pipeline.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	printDiagnostics(w, diags, a.useColor)
	return errReported
}

// ─── compile ─────────────────────────────────────────────────────────────────

func compileCmd(a *app) *cobra.Command {
	var (
		pipelineID string
		target     string
		until      string
		out        string
		all        bool
		stamp      bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "compile <pipeline.json|pipeline.dot>",
		Short: "Compile a pipeline into a Python script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if until != "" && target != "" && until != target {
				return fmt.Errorf("--target and --until name different nodes")
			}
			if all && (until != "" || target != "" || pipelineID != "") {
				return fmt.Errorf("--all cannot be combined with --pipeline, --target or --until")
			}
			doc, err := loadDocument(args[0])
			if err != nil {
				return a.reportErr(cmd.ErrOrStderr(), err)
			}

			c := a.compiler(stamp)
			if all {
				return a.compileAll(cmd, c, doc, out, asJSON)
			}

			p, err := doc.Pipeline(pipelineID)
			if err != nil {
				return a.reportErr(cmd.ErrOrStderr(), err)
			}
			req := compiler.Request{Graph: pipeline.FilterForCompilation(&p.Flow), Target: target}
			if until != "" {
				req.Target, req.Mode = until, compiler.UntilTarget
			}
			unit := c.Compile(req)
			if asJSON {
				data, err := json.MarshalIndent(unit, "", "  ")
				if err != nil {
					return err
				}
				if err := writeOutput(cmd.OutOrStdout(), out, append(data, '\n')); err != nil {
					return err
				}
				if !unit.OK() {
					return errReported
				}
				return nil
			}
			if err := a.report(cmd.ErrOrStderr(), unit.Diagnostics); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, []byte(unit.Script))
		},
	}

	f := cmd.Flags()
	f.StringVar(&pipelineID, "pipeline", "", "pipeline id (default: primary or first)")
	f.StringVar(&target, "target", "", "compile only the ancestors of this node")
	f.StringVar(&until, "until", "", "compile up to this node and preview its output")
	f.StringVarP(&out, "out", "o", "", "output file, or directory with --all unless --json (default stdout)")
	f.BoolVar(&all, "all", false, "compile every pipeline in the document")
	f.BoolVar(&stamp, "stamp", false, "add a generated-at header line")
	f.BoolVar(&asJSON, "json", false, "print the compiled unit as JSON")
	return cmd
}

type pipelineUnit struct {
	Pipeline string                 `json:"pipeline"`
	Unit     *compiler.CompiledUnit `json:"unit"`
}

func (a *app) compileAll(cmd *cobra.Command, c *compiler.Compiler, doc *pipeline.Document, out string, asJSON bool) error {
	reqs := make([]compiler.Request, len(doc.Pipelines))
	for i, p := range doc.Pipelines {
		reqs[i] = compiler.Request{Graph: pipeline.FilterForCompilation(&p.Flow)}
	}
	units := c.CompileAll(reqs)

	results := make([]pipelineUnit, len(units))
	var failed error
	for i, u := range units {
		results[i] = pipelineUnit{Pipeline: doc.Pipelines[i].ID, Unit: u}
		if !u.OK() {
			failed = errReported
		}
	}

	if asJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		if err := writeOutput(cmd.OutOrStdout(), out, append(data, '\n')); err != nil {
			return err
		}
		return failed
	}

	paths := make(map[string]string, len(results))
	if out != "" {
		// Distinct ids can sanitise to the same file name.
		for _, r := range results {
			path := filepath.Join(out, descriptor.Identifier(r.Pipeline)+".py")
			if prev, dup := paths[path]; dup {
				return fmt.Errorf("pipelines %q and %q would both be written to %s", prev, r.Pipeline, path)
			}
			paths[path] = r.Pipeline
		}
	}

	for _, r := range results {
		if !r.Unit.OK() {
			fmt.Fprintf(cmd.ErrOrStderr(), "pipeline %s:\n", r.Pipeline)
			_ = a.report(cmd.ErrOrStderr(), r.Unit.Diagnostics)
			continue
		}
		if out == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# ─── pipeline %s ───\n%s", r.Pipeline, r.Unit.Script)
			continue
		}
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}
		path := filepath.Join(out, descriptor.Identifier(r.Pipeline)+".py")
		if err := writeOutput(nil, path, []byte(r.Unit.Script)); err != nil {
			return err
		}
	}
	return failed
}

// reportErr prints err as diagnostics when it carries any.
func (a *app) reportErr(w io.Writer, err error) error {
	var ds pipeline.Diagnostics
	var d pipeline.Diagnostic
	switch {
	case errors.As(err, &ds):
		return a.report(w, ds)
	case errors.As(err, &d):
		return a.report(w, []pipeline.Diagnostic{d})
	}
	return err
}

// ─── lint ────────────────────────────────────────────────────────────────────

func lintCmd(a *app) *cobra.Command {
	var (
		pipelineID string
		target     string
	)
	cmd := &cobra.Command{
		Use:   "lint <pipeline.json|pipeline.dot>",
		Short: "Validate a pipeline without generating code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, g, err := loadGraph(args[0], pipelineID)
			if err != nil {
				return a.reportErr(cmd.ErrOrStderr(), err)
			}
			if err := a.report(cmd.ErrOrStderr(), a.compiler(false).Lint(g, target)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: pipeline %q is valid (%d nodes, %d edges)\n",
				p.ID, len(g.Nodes), len(g.Edges))
			return nil
		},
	}
	cmd.Flags().StringVar(&pipelineID, "pipeline", "", "pipeline id (default: primary or first)")
	cmd.Flags().StringVar(&target, "target", "", "check only the ancestors of this node")
	return cmd
}

// ─── descriptors ─────────────────────────────────────────────────────────────

func descriptorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "descriptors",
		Short: "List registered node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), renderDescriptors(a.reg))
			return nil
		},
	}
}
