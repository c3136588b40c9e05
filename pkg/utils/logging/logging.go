package logging

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/masq"
)

var (
	defaultLogger = slog.New(slog.DiscardHandler)
	mu            sync.RWMutex
)

type ctxKey struct{}

// Default returns the process-wide logger
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger
func SetDefault(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// With stores logger in ctx
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From returns the logger stored in ctx, or the default logger
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return logger
		}
	}
	return Default()
}

// Format selects the log encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New builds a logger writing to w. Fields tagged masq:"secret" (measurement notes) are
// redacted in both formats.
func New(w io.Writer, format Format, level slog.Level, color bool) *slog.Logger {
	redact := masq.New(masq.WithTag("secret"))

	switch format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: redact,
		}))
	default:
		return slog.New(&replaceHandler{
			Handler: clog.New(
				clog.WithWriter(w),
				clog.WithLevel(level),
				clog.WithColor(color),
			),
			replace: redact,
		})
	}
}

// replaceHandler applies replace to every attribute before the wrapped handler sees it
type replaceHandler struct {
	slog.Handler
	replace func(groups []string, a slog.Attr) slog.Attr
	groups  []string
}

func (h *replaceHandler) Handle(ctx context.Context, r slog.Record) error {
	replaced := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		replaced.AddAttrs(h.replace(h.groups, a))
		return true
	})
	return h.Handler.Handle(ctx, replaced)
}

func (h *replaceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	replaced := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		replaced = append(replaced, h.replace(h.groups, a))
	}
	return &replaceHandler{Handler: h.Handler.WithAttrs(replaced), replace: h.replace, groups: h.groups}
}

func (h *replaceHandler) WithGroup(name string) slog.Handler {
	return &replaceHandler{
		Handler: h.Handler.WithGroup(name),
		replace: h.replace,
		groups:  append(slices.Clone(h.groups), name),
	}
}
