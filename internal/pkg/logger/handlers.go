// internal/pkg/logger/handlers.go
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
)

const redacted = "***REDACTED***"

// ContextHandler copies request scoped values (request, session and trace
// ids) from the context onto every record
type ContextHandler struct {
	handler slog.Handler
	keys    []ContextKey
}

// NewContextHandler wraps handler, reading keys from each record's context
func NewContextHandler(handler slog.Handler, keys []ContextKey) *ContextHandler {
	return &ContextHandler{handler: handler, keys: keys}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := extractContextAttrs(ctx, h.keys)
	if len(attrs) == 0 {
		return h.handler.Handle(ctx, record)
	}

	enriched := record.Clone()
	enriched.Add(attrs...)
	return h.handler.Handle(ctx, enriched)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs), keys: h.keys}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name), keys: h.keys}
}

// SamplingHandler keeps a fraction of debug and info records. Warnings and
// errors always pass.
type SamplingHandler struct {
	handler    slog.Handler
	sampleRate float64
}

// NewSamplingHandler creates a handler that samples below-warning records
func NewSamplingHandler(handler slog.Handler, sampleRate float64) *SamplingHandler {
	return &SamplingHandler{handler: handler, sampleRate: sampleRate}
}

func (h *SamplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if !h.handler.Enabled(ctx, level) {
		return false
	}
	return level >= slog.LevelWarn || rand.Float64() < h.sampleRate
}

func (h *SamplingHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < slog.LevelWarn {
		record = record.Clone()
		record.AddAttrs(slog.Float64("sample_rate", h.sampleRate))
	}
	return h.handler.Handle(ctx, record)
}

func (h *SamplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SamplingHandler{handler: h.handler.WithAttrs(attrs), sampleRate: h.sampleRate}
}

func (h *SamplingHandler) WithGroup(name string) slog.Handler {
	return &SamplingHandler{handler: h.handler.WithGroup(name), sampleRate: h.sampleRate}
}

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// Credentials the service handles: database and redis URLs, AWS keys,
// session cookies and key=value secrets in error strings.
var (
	sensitiveKeys = []string{
		"password", "secret", "token", "cookie", "authorization",
		"access_key", "api_key", "credentials", "dsn",
	}

	redactions = []redaction{
		{regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+@`), "${1}" + redacted + "@"},
		{regexp.MustCompile(`(?i)\b(password|secret|token|access_key|api_key)\s*[:=]\s*["']?[^"'\s&,]+`), "${1}=" + redacted},
		{regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), redacted},
	}
)

// SanitizationHandler masks credentials in messages and attributes
type SanitizationHandler struct {
	handler slog.Handler
}

// NewSanitizationHandler creates a handler that masks credentials
func NewSanitizationHandler(handler slog.Handler) *SanitizationHandler {
	return &SanitizationHandler{handler: handler}
}

func (h *SanitizationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *SanitizationHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, sanitizeString(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, clean)
}

func (h *SanitizationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = sanitizeAttr(a)
	}
	return &SanitizationHandler{handler: h.handler.WithAttrs(clean)}
}

func (h *SanitizationHandler) WithGroup(name string) slog.Handler {
	return &SanitizationHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, redacted)
		}
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, sanitizeString(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]any, len(group))
		for i, g := range group {
			clean[i] = sanitizeAttr(g)
		}
		return slog.Group(a.Key, clean...)
	}
	return a
}

func sanitizeString(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// MultiHandler fans records out to every handler enabled for their level
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler that sends to multiple destinations
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	return h.each(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (h *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	out := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = fn(handler)
	}
	return &MultiHandler{handlers: out}
}

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[37m",
	slog.LevelInfo:  "\033[34m",
	slog.LevelWarn:  "\033[33m",
	slog.LevelError: "\033[31m",
}

const (
	colorReset = "\033[0m"
	colorKey   = "\033[36m"
)

// PrettyTextHandler writes one colored line per record for local runs
type PrettyTextHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	attrs  string
	prefix string
}

// NewPrettyTextHandler creates a pretty text handler
func NewPrettyTextHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyTextHandler {
	h := &PrettyTextHandler{mu: &sync.Mutex{}, w: w}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *PrettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *PrettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	color, ok := levelColors[r.Level]
	if !ok {
		color = colorReset
	}
	fmt.Fprintf(&b, "%s%s %-5s%s %s%s",
		color, r.Time.Format("2006-01-02 15:04:05.000"), r.Level.String(), colorReset,
		r.Message, h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *PrettyTextHandler) appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	if h.opts.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.opts.ReplaceAttr(nil, a)
	}
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			h.appendAttr(b, prefix+a.Key+".", g)
		}
		return
	}
	fmt.Fprintf(b, " %s%s%s=%s%v", colorKey, prefix, a.Key, colorReset, a.Value)
}

func (h *PrettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		h.appendAttr(&b, h.prefix, a)
	}
	clone := *h
	clone.attrs = b.String()
	return &clone
}

func (h *PrettyTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}
