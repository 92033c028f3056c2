package logger

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// SentryHandler wraps an slog.Handler and reports errors to Sentry
type SentryHandler struct {
	handler slog.Handler
	hub     *sentry.Hub

	// attrs bound through WithAttrs, scanned alongside the record's own
	attrs []slog.Attr
}

// NewSentryHandler creates a new SentryHandler wrapping the given handler
func NewSentryHandler(handler slog.Handler) *SentryHandler {
	return &SentryHandler{handler: handler, hub: sentry.CurrentHub()}
}

func (h *SentryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle forwards the record; Error records carrying an "error" attribute are
// also captured as Sentry exceptions, tagged with the record message and any
// candidate, platform or dispatch attribute, including ones bound with With.
func (h *SentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		var captured error
		tags := map[string]string{}
		collect := func(a slog.Attr) bool {
			switch a.Key {
			case "error":
				if err, ok := a.Value.Any().(error); ok {
					captured = err
				}
			case "candidate_id", "platform", "dispatch_id":
				tags[a.Key] = a.Value.String()
			}
			return true
		}
		for _, a := range h.attrs {
			collect(a)
		}
		r.Attrs(collect)
		if captured != nil {
			h.hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("log_message", r.Message)
				scope.SetTags(tags)
				h.hub.CaptureException(captured)
			})
		}
	}
	return h.handler.Handle(ctx, r)
}

func (h *SentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SentryHandler{
		handler: h.handler.WithAttrs(attrs),
		hub:     h.hub,
		attrs:   append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *SentryHandler) WithGroup(name string) slog.Handler {
	return &SentryHandler{handler: h.handler.WithGroup(name), hub: h.hub, attrs: h.attrs}
}
