package logging

import (
	"context"
	"log/slog"
)

// ComponentKey is the attribute that selects a component's level.
const ComponentKey = "component"

// componentHandler drops records below the level of the component the
// logger was scoped to with With(ComponentKey, name).
type componentHandler struct {
	next      slog.Handler
	spec      Spec
	component string
}

// NewComponentHandler wraps next with spec-based filtering. next should
// accept every level.
func NewComponentHandler(next slog.Handler, spec Spec) slog.Handler {
	return &componentHandler{next: next, spec: spec}
}

func (h *componentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.spec.LevelFor(h.component).Slog()
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := &componentHandler{
		next:      h.next.WithAttrs(attrs),
		spec:      h.spec,
		component: h.component,
	}
	for _, a := range attrs {
		if a.Key == ComponentKey {
			c.component = a.Value.String()
		}
	}
	return c
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{
		next:      h.next.WithGroup(name),
		spec:      h.spec,
		component: h.component,
	}
}
