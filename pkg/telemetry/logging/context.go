package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

type contextKey string

const (
	// RequestIDKey is the context key for execution request IDs.
	RequestIDKey contextKey = "request_id"

	// ProviderKey is the context key for provider kinds.
	ProviderKey contextKey = "provider"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithProvider adds a provider kind to the context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ProviderKey, provider)
}

// GetProvider retrieves the provider kind from the context.
func GetProvider(ctx context.Context) string {
	if provider, ok := ctx.Value(ProviderKey).(string); ok {
		return provider
	}
	return ""
}

// contextHandler adds request-scoped fields to each record.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id := GetRequestID(ctx); id != "" {
			r.AddAttrs(slog.String(string(RequestIDKey), id))
		}
		if p := GetProvider(ctx); p != "" {
			r.AddAttrs(slog.String(string(ProviderKey), p))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}

const redacted = "***"

var (
	sensitiveKeys = []string{"token", "secret", "password", "authorization", "credentials"}
	bearerToken   = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/=-]+`)
)

// redactAttr masks credential-looking attributes.
func redactAttr(groups []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, redacted)
		}
	}
	if a.Value.Kind() == slog.KindString {
		if v := a.Value.String(); bearerToken.MatchString(v) {
			return slog.String(a.Key, bearerToken.ReplaceAllString(v, "Bearer "+redacted))
		}
	}
	return a
}
