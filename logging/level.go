// Package logging builds slog loggers whose verbosity can be set per
// component with a spec such as "warn,builder=debug".
package logging

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Level extends slog levels with trace.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

var levelNames = map[string]Level{
	"trace":   LevelTrace,
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"err":     LevelError,
}

// ParseLevel parses a level name, ignoring case and surrounding space.
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

// Slog converts l to a slog.Level.
func (l Level) Slog() slog.Level {
	return slog.Level(l)
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Spec is a base level plus per-component overrides, written as
// "<base>[,<component>=<level>]...". The base, when given, comes first.
type Spec struct {
	Base       Level
	Components map[string]Level
}

// ParseSpec parses a spec string. The empty spec is "info".
func ParseSpec(s string) (Spec, error) {
	spec, _, err := parseSpec(s)
	return spec, err
}

// parseSpec also reports whether s named a base level.
func parseSpec(s string) (Spec, bool, error) {
	spec := Spec{Base: LevelInfo, Components: map[string]Level{}}
	seen, hasBase := false, false

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		first := !seen
		seen = true

		component, level, isOverride := strings.Cut(part, "=")
		if !isOverride {
			if !first {
				return spec, false, fmt.Errorf("base level %q must be first in spec", part)
			}
			l, err := ParseLevel(part)
			if err != nil {
				return spec, false, err
			}
			spec.Base = l
			hasBase = true
			continue
		}

		component = strings.TrimSpace(component)
		if component == "" {
			return spec, false, fmt.Errorf("empty component name in %q", part)
		}
		l, err := ParseLevel(level)
		if err != nil {
			return spec, false, fmt.Errorf("invalid level for component %q: %w", component, err)
		}
		spec.Components[component] = l
	}

	return spec, hasBase, nil
}

// LevelFor returns the level in force for component.
func (s Spec) LevelFor(component string) Level {
	if l, ok := s.Components[component]; ok {
		return l
	}
	return s.Base
}

// String formats the spec with components in name order.
func (s Spec) String() string {
	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := []string{s.Base.String()}
	for _, name := range names {
		parts = append(parts, name+"="+s.Components[name].String())
	}
	return strings.Join(parts, ",")
}
