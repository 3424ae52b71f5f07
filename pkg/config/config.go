// Package config loads flowscript settings from a TOML file and the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "flowscript.toml"

// Environment variables that override file settings.
const (
	EnvLogLevel  = "FLOWSCRIPT_LOG_LEVEL"
	EnvLogFormat = "FLOWSCRIPT_LOG_FORMAT"
	EnvManifests = "FLOWSCRIPT_MANIFESTS"
	EnvStamp     = "FLOWSCRIPT_STAMP"
)

// Config holds process-wide settings.
type Config struct {
	// Manifests lists HCL descriptor manifest files or directories.
	Manifests []string `toml:"manifests"`
	LogLevel  string   `toml:"log_level"`
	LogFormat string   `toml:"log_format"`
	// Stamp adds a generated-at line to script headers.
	Stamp bool   `toml:"stamp"`
	Color string `toml:"color"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Color:     "auto",
	}
}

// Load reads path over the defaults and then applies the environment. An
// empty path reads DefaultFile if it exists; a named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.readFile(path); err != nil && (explicit || !os.IsNotExist(err)) {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return err
	}
	for _, key := range md.Undecoded() {
		slog.Warn("ignoring unknown config key", "file", path, "key", key.String())
	}
	// Relative manifest paths are relative to the config file.
	dir := filepath.Dir(path)
	for i, m := range c.Manifests {
		if !filepath.IsAbs(m) {
			c.Manifests[i] = filepath.Join(dir, m)
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read through
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.LogFormat = v
	}
	if v, ok := lookup(EnvManifests); ok && v != "" {
		c.Manifests = nil
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				c.Manifests = append(c.Manifests, p)
			}
		}
	}
	if v, ok := lookup(EnvStamp); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStamp, err)
		}
		c.Stamp = b
	}
	return nil
}
