package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Notifier delivers alert notifications. Failures are logged by the
// monitor and never abort a check.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "monitoring.notifier")}
}

func (l *LogNotifier) Name() string { return "log" }

// Notify logs n. Critical alerts are logged at error level.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelWarn
	switch {
	case n.Event == EventResolved:
		level = slog.LevelInfo
	case n.Alert.Level == LevelCritical:
		level = slog.LevelError
	}

	attrs := []any{
		"event", n.Event,
		"alert_id", n.Alert.ID,
		"provider", n.Alert.Provider,
		"type", n.Alert.Type,
		"level", n.Alert.Level,
		"value", n.Alert.Value,
		"threshold", n.Alert.Threshold,
	}
	if n.Alert.Resolution != "" {
		attrs = append(attrs, "resolution", n.Alert.Resolution)
	}
	l.logger.Log(ctx, level, n.Alert.Message, attrs...)
	return nil
}

// WebhookNotifier POSTs notifications as JSON.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier with the given request
// timeout.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// Notify sends n and fails on any non-2xx response.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*WebhookNotifier)(nil)
)
