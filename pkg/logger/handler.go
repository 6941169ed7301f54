package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor extracts a slog attribute from context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// handler writes every record to out and copies the ones at or above
// alertLevel to alert. Request attributes from the extractors are added
// once and reach both destinations, so a Sentry issue carries the same
// request_id and mode as the stdout line.
type handler struct {
	out        slog.Handler
	alert      slog.Handler
	alertLevel slog.Level
	extractors []ContextExtractor
}

// newHandler wraps out. alert may be nil. Nil extractors are dropped.
func newHandler(out, alert slog.Handler, alertLevel slog.Level, extractors ...ContextExtractor) *handler {
	h := &handler{out: out, alert: alert, alertLevel: alertLevel}
	for _, ex := range extractors {
		if ex != nil {
			h.extractors = append(h.extractors, ex)
		}
	}
	return h
}

func (h *handler) alerts(ctx context.Context, level slog.Level) bool {
	return h.alert != nil && level >= h.alertLevel && h.alert.Enabled(ctx, level)
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.out.Enabled(ctx, level) || h.alerts(ctx, level)
}

func (h *handler) Handle(ctx context.Context, rec slog.Record) error {
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}

	var err error
	if h.out.Enabled(ctx, rec.Level) {
		err = h.out.Handle(ctx, rec.Clone())
	}
	if h.alerts(ctx, rec.Level) {
		// a Sentry outage must not drop the stdout line, which is already written
		if aerr := h.alert.Handle(ctx, rec); err == nil {
			err = aerr
		}
	}
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.out = h.out.WithAttrs(attrs)
	if h.alert != nil {
		c.alert = h.alert.WithAttrs(attrs)
	}
	return &c
}

func (h *handler) WithGroup(name string) slog.Handler {
	c := *h
	c.out = h.out.WithGroup(name)
	if h.alert != nil {
		c.alert = h.alert.WithGroup(name)
	}
	return &c
}
