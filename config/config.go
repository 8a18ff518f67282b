// Package config loads nsview configuration.
//
// The embedded default.toml is decoded first and the user's file, if
// any, is decoded over it, so keys missing from the file keep their
// defaults. A missing file is not an error; an unreadable or malformed
// one is.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultTOML string

// DefaultPath is where Load looks when given no path.
const DefaultPath = "/etc/nsview/nsview.toml"

// Config is the whole configuration file.
type Config struct {
	Source  SourceConfig  `toml:"source"`
	Graph   GraphConfig   `toml:"graph"`
	History HistoryConfig `toml:"history"`
	Logging LoggingConfig `toml:"logging"`
}

// SourceConfig selects and configures the discovery backend.
type SourceConfig struct {
	Kind     string `toml:"kind"`
	Sudo     bool   `toml:"sudo"`
	SudoPath string `toml:"sudo_path"`
	Nsenter  string `toml:"nsenter"`
	Lsns     string `toml:"lsns"`
	IP       string `toml:"ip"`
	Bpftool  string `toml:"bpftool"`
}

// GraphConfig controls edge resolution and rendering.
type GraphConfig struct {
	SameNamespaceEdges bool   `toml:"same_namespace_edges"`
	StalePeers         string `toml:"stale_peers"`
	RankDir            string `toml:"rankdir"`
	Output             string `toml:"output"`
	Format             string `toml:"format"`
}

// HistoryConfig controls the snapshot history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	DB      string `toml:"db"`
	Lock    string `toml:"lock"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	// Level is a log spec, e.g. "info" or "warn,builder=debug".
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// Components sets per-component levels when Level is empty.
	Components map[string]string `toml:"components"`
}

// ToSpec returns the log spec described by the section. Components are
// emitted in name order and, without Level, carry no base so the
// caller's default base applies.
func (c LoggingConfig) ToSpec() string {
	if c.Level != "" || len(c.Components) == 0 {
		return c.Level
	}
	names := make([]string, 0, len(c.Components))
	for name := range c.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+c.Components[name])
	}
	return strings.Join(parts, ",")
}

// Default returns the embedded defaults.
func Default() Config {
	var cfg Config
	if _, err := toml.Decode(defaultTOML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default.toml: %v", err))
	}
	return cfg
}

// Load returns the defaults overlaid with the file at path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parse config file %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values outside their enumerations.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "tools", "native":
	default:
		return fmt.Errorf("source.kind: unknown source %q (want tools or native)", c.Source.Kind)
	}
	switch c.Graph.StalePeers {
	case "fail", "warn":
	default:
		return fmt.Errorf("graph.stale_peers: unknown policy %q (want fail or warn)", c.Graph.StalePeers)
	}
	switch c.Graph.Format {
	case "dot", "json":
	default:
		return fmt.Errorf("graph.format: unknown format %q (want dot or json)", c.Graph.Format)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q (want text or json)", c.Logging.Format)
	}
	return nil
}
