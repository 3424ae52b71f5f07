package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
)

const (
	ansiRed   = "\x1b[31m"
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// useColor resolves --color against the environment. "auto" colours only a
// terminal and honours NO_COLOR.
func useColor(mode string, f *os.File) (bool, error) {
	switch strings.ToLower(mode) {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		if os.Getenv("NO_COLOR") != "" {
			return false, nil
		}
		return term.IsTerminal(int(f.Fd())), nil
	}
	return false, fmt.Errorf("unknown color mode %q: use auto, always or never", mode)
}

// printDiagnostics writes one diagnostic per line.
func printDiagnostics(w io.Writer, diags []pipeline.Diagnostic, color bool) {
	for _, d := range diags {
		kind := string(d.Kind)
		if color {
			kind = ansiBold + ansiRed + kind + ansiReset
		}
		if d.NodeID != "" {
			fmt.Fprintf(w, "%s [%s] %s\n", kind, d.NodeID, d.Message)
		} else {
			fmt.Fprintf(w, "%s %s\n", kind, d.Message)
		}
	}
}

// writeOutput writes data to path, or to w when path is "" or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
