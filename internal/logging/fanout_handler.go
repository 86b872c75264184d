package logging

import (
	"context"
	"errors"
	"log/slog"
)

// fanoutHandler sends each record to every child handler that accepts
// its level. The console and rotating-file sinks hang off one of these.
type fanoutHandler struct {
	children []slog.Handler
}

// newFanoutHandler combines handlers, ignoring nils. Zero survivors
// yields a noop; a single survivor is returned unwrapped.
func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	children := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			children = append(children, h)
		}
	}
	switch len(children) {
	case 0:
		return NoopHandler{}
	case 1:
		return children[0]
	}
	return &fanoutHandler{children: children}
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.children {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for i, h := range f.children {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		// Handlers may mutate the record's attr list; every child but
		// the last gets its own clone.
		rec := record
		if i < len(f.children)-1 {
			rec = record.Clone()
		}
		if err := h.Handle(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	children := make([]slog.Handler, len(f.children))
	for i, h := range f.children {
		children[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{children: children}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	children := make([]slog.Handler, len(f.children))
	for i, h := range f.children {
		children[i] = h.WithGroup(name)
	}
	return &fanoutHandler{children: children}
}
