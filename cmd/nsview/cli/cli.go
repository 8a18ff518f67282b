// Package cli provides the command-line interface for nsview.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-nsview/config"
	"github.com/frobware/go-nsview/logging"
	"github.com/frobware/go-nsview/source"
	"github.com/frobware/go-nsview/source/native"
	"github.com/frobware/go-nsview/source/tools"
)

// CLI is the root command structure for nsview.
type CLI struct {
	Config string `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log    string `name:"log" help:"Log spec (e.g., 'info,builder=debug'). Overrides the NSVIEW_LOG environment variable."`
	Source string `name:"source" help:"Discovery backend: tools or native. Overrides the config file."`
	Sudo   bool   `name:"sudo" help:"Run the listing tools through sudo."`

	Graph      GraphCmd      `cmd:"" help:"Discover the host and write the topology graph."`
	Namespaces NamespacesCmd `cmd:"" help:"List discovered namespaces."`
	History    HistoryCmd    `cmd:"" help:"Inspect recorded snapshots."`

	// Out receives command output. Defaults to os.Stdout.
	Out io.Writer `kong:"-"`

	// newSource, when set, replaces the configured backend.
	newSource func(config.SourceConfig, *slog.Logger) (source.Source, error)
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("nsview"),
		kong.Description("Draw network namespaces, their interfaces and the links between them."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"default_config_path": config.DefaultPath,
		},
	}
}

// LoadConfig loads the config file and applies global flag overrides.
func (c *CLI) LoadConfig() (config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return cfg, err
	}
	if c.Source != "" {
		cfg.Source.Kind = c.Source
	}
	if c.Sudo {
		cfg.Source.Sudo = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Logger builds the logger for a command. Commands default to warn so
// that only problems reach stderr.
func (c *CLI) Logger(cfg config.Config) (*slog.Logger, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Flag:     c.Log,
		Env:      os.Getenv(logging.EnvVar),
		Config:   cfg.Logging.ToSpec(),
		Fallback: "warn",
		Format:   format,
		Output:   os.Stderr,
	})
}

// NewSource returns the discovery backend selected by cfg.
func (c *CLI) NewSource(cfg config.SourceConfig, logger *slog.Logger) (source.Source, error) {
	if c.newSource != nil {
		return c.newSource(cfg, logger)
	}
	switch cfg.Kind {
	case "tools":
		return tools.New(
			tools.WithSudo(cfg.Sudo),
			tools.WithPaths(tools.Paths{
				Sudo:    cfg.SudoPath,
				Nsenter: cfg.Nsenter,
				Lsns:    cfg.Lsns,
				IP:      cfg.IP,
				Bpftool: cfg.Bpftool,
			}),
			tools.WithLogger(logger),
		), nil
	case "native":
		return native.New(native.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Kind)
	}
}

// setup loads config and builds the logger.
func (c *CLI) setup() (config.Config, *slog.Logger, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return cfg, nil, err
	}
	logger, err := c.Logger(cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func (c *CLI) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// WriteOut writes p in full to the command output. A short write with
// no error is reported as io.ErrShortWrite.
func (c *CLI) WriteOut(p []byte) error {
	n, err := c.out().Write(p)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("write output: %w", io.ErrShortWrite)
	}
	return nil
}

// PrintOut writes s to the command output.
func (c *CLI) PrintOut(s string) error {
	return c.WriteOut([]byte(s))
}

// PrintOutf formats to the command output.
func (c *CLI) PrintOutf(format string, args ...any) error {
	return c.PrintOut(fmt.Sprintf(format, args...))
}
