package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// ContextProvider returns attributes describing the current simulation
// state. It is called once per emitted record.
type ContextProvider func() []slog.Attr

// ContextHandler stamps every record with the provider's attributes.
// Provider keys already bound through With are not repeated, so a
// component logger that pins "tick" keeps its own value.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
	bound    map[string]struct{}
	grouped  bool
}

// NewContextHandler wraps inner. A nil provider makes the handler a
// pass-through.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider == nil || h.grouped {
		return h.inner.Handle(ctx, r)
	}
	attrs := h.provider()
	if len(attrs) == 0 {
		return h.inner.Handle(ctx, r)
	}
	r = r.Clone()
	for _, a := range attrs {
		if _, ok := h.bound[a.Key]; ok {
			continue
		}
		r.AddAttrs(a)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.derive(h.inner.WithAttrs(attrs))
	if !h.grouped {
		for _, a := range attrs {
			next.bound[a.Key] = struct{}{}
		}
	}
	return next
}

// WithGroup stops stamping: simulation attributes belong at the top level
// and cannot be placed there once the inner handler has opened a group.
// The grouped logger's parent keeps stamping as before.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.derive(h.inner.WithGroup(name))
	next.grouped = true
	return next
}

func (h *ContextHandler) derive(inner slog.Handler) *ContextHandler {
	bound := make(map[string]struct{}, len(h.bound))
	for k := range h.bound {
		bound[k] = struct{}{}
	}
	return &ContextHandler{inner: inner, provider: h.provider, bound: bound, grouped: h.grouped}
}

// MultiHandler fans records out to several handlers (text file, OTel bridge,
// GELF). Every enabled handler sees the record even when an earlier one
// fails; the failures are joined into the returned error.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler drops nil handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool {
		return h == nil
	})}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(m.handlers, func(h slog.Handler) bool {
		return h.Enabled(ctx, level)
	})
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = fn(h)
	}
	return &MultiHandler{handlers: out}
}
