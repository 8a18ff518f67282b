// Package tools implements source.Source by running the standard
// listing tools (lsns, ip, bpftool) inside each namespace via nsenter,
// optionally through sudo.
package tools

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"

	nsview "github.com/frobware/go-nsview"
	"github.com/frobware/go-nsview/source"
)

// Runner executes a command and returns its stdout. A command that
// cannot be started or exits non-zero yields a *nsview.CommandError.
type Runner interface {
	Run(ctx context.Context, argv []string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &nsview.CommandError{
			Command:  argv,
			ExitCode: code,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// Paths names the executables to run. Bare names are resolved through
// PATH by the runner.
type Paths struct {
	Sudo    string
	Nsenter string
	Lsns    string
	IP      string
	Bpftool string
}

// DefaultPaths returns bare executable names.
func DefaultPaths() Paths {
	return Paths{
		Sudo:    "sudo",
		Nsenter: "nsenter",
		Lsns:    "lsns",
		IP:      "ip",
		Bpftool: "bpftool",
	}
}

// Source runs the listing tools.
type Source struct {
	paths  Paths
	sudo   bool
	runner Runner
	logger *slog.Logger
}

var _ source.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithSudo prefixes every command with sudo.
func WithSudo(enabled bool) Option {
	return func(s *Source) {
		s.sudo = enabled
	}
}

// WithPaths overrides the executable names.
func WithPaths(p Paths) Option {
	return func(s *Source) {
		s.paths = p
	}
}

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(s *Source) {
		s.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// New returns a Source that runs commands with ExecRunner unless
// configured otherwise.
func New(opts ...Option) *Source {
	s := &Source{
		paths:  DefaultPaths(),
		runner: ExecRunner{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "tools")
	return s
}

// command builds the argv for running tool inside the namespace at
// handle.
func (s *Source) command(handle string, tool ...string) []string {
	var argv []string
	if s.sudo {
		argv = append(argv, s.paths.Sudo)
	}
	if handle != "" {
		argv = append(argv, s.paths.Nsenter, "-n"+handle)
	}
	return append(argv, tool...)
}

func (s *Source) run(ctx context.Context, argv []string) ([]byte, error) {
	s.logger.Debug("running", "argv", argv)
	out, err := s.runner.Run(ctx, argv)
	if err != nil {
		s.logger.Debug("command failed", "argv", argv, "error", err)
		return nil, err
	}
	return out, nil
}

// Namespaces implements source.Source.
func (s *Source) Namespaces(ctx context.Context, handle string) ([]nsview.NamespaceRecord, error) {
	out, err := s.run(ctx, s.command(handle, s.paths.Lsns, "--json", "-t", "net"))
	if err != nil {
		return nil, err
	}
	return source.DecodeNamespaces(out)
}

// Interfaces implements source.Source.
func (s *Source) Interfaces(ctx context.Context, handle string) ([]nsview.Interface, error) {
	out, err := s.run(ctx, s.command(handle, s.paths.IP, "-j", "addr"))
	if err != nil {
		return nil, err
	}
	return source.DecodeInterfaces(out)
}

// Programs implements source.Source. A failing or unparsable bpftool
// run yields an unavailable listing.
func (s *Source) Programs(ctx context.Context, handle string) nsview.ProgramListing {
	out, err := s.run(ctx, s.command(handle, s.paths.Bpftool, "-j", "net", "show"))
	if err != nil {
		return nsview.ProgramsUnavailable(handle, err)
	}
	records, err := source.DecodePrograms(out)
	if err != nil {
		return nsview.ProgramsUnavailable(handle, err)
	}
	return nsview.ProgramListing{Records: records}
}
