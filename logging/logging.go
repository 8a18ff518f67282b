package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvVar holds a log spec taken from the environment.
const EnvVar = "NSVIEW_LOG"

// Format is the log line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text", "json" or "" (text).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %q", s)
}

// Options configures New. The first non-empty spec among Flag, Env and
// Config wins; if all are empty Fallback is used. A winning spec that
// only overrides components keeps the Fallback base level.
type Options struct {
	Flag     string
	Env      string
	Config   string
	Fallback string
	Format   Format
	Output   io.Writer
}

func (o Options) spec() string {
	for _, s := range []string{o.Flag, o.Env, o.Config} {
		if s != "" {
			return s
		}
	}
	return o.Fallback
}

// New returns a logger configured by opts.
func New(opts Options) (*slog.Logger, error) {
	spec, hasBase, err := parseSpec(opts.spec())
	if err != nil {
		return nil, fmt.Errorf("invalid log spec: %w", err)
	}
	if !hasBase {
		fallback, err := ParseSpec(opts.Fallback)
		if err != nil {
			return nil, fmt.Errorf("invalid fallback log spec: %w", err)
		}
		spec.Base = fallback.Base
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: LevelTrace.Slog()}
	var h slog.Handler
	if opts.Format == FormatJSON {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}

	return slog.New(NewComponentHandler(h, spec)), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
