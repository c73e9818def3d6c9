package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"utrix-hq/quotaflow/pkg/telemetry/tracing"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// HTTPOptions configures an HTTPProvider.
type HTTPOptions struct {
	// BaseURL is the invoke endpoint base URL.
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout is the per-invocation HTTP timeout.
	Timeout time.Duration

	// Client overrides the HTTP client. Mostly useful for tests.
	Client *http.Client
}

// HTTPProvider invokes functions through a provider's HTTP invoke API.
// It does not retry; retries are the router's concern.
type HTTPProvider struct {
	*Base
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates an HTTP adapter with connection pooling.
func NewHTTPProvider(base *Base, opts HTTPOptions) (*HTTPProvider, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ConfigError{Provider: base.kind, Field: "base_url", Message: "must be an absolute URL"}
	}

	client := opts.Client
	if client == nil {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
		client = &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		}
	}

	return &HTTPProvider{
		Base:    base,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		timeout: opts.Timeout,
		client:  client,
	}, nil
}

// InvokeURL returns the invoke endpoint for a function, shaped per kind.
func (p *HTTPProvider) InvokeURL(name string) string {
	fn := url.PathEscape(name)
	switch p.kind {
	case KindAWSLambda:
		return p.baseURL + "/2015-03-31/functions/" + fn + "/invocations"
	case KindAzureFunctions:
		return p.baseURL + "/api/" + fn
	default:
		return p.baseURL + "/" + fn
	}
}

// GetUsageStats returns the counters observed through this adapter. The
// provider's billing API is not queried.
func (p *HTTPProvider) GetUsageStats(ctx context.Context) (*QuotaUsage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Usage(), nil
}

// InvokeFunction POSTs the payload as JSON and decodes the JSON response.
func (p *HTTPProvider) InvokeFunction(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	start := time.Now()
	p.Begin()

	result, err := p.invoke(ctx, name, payload)
	p.Finish(name, time.Since(start), err == nil)

	if err != nil {
		p.logger.Debug("invocation failed", "function", name, "error", err)
		return nil, err
	}
	return result, nil
}

func (p *HTTPProvider) invoke(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.InvokeURL(name), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return nil, &TimeoutError{Provider: p.kind, Timeout: p.timeout, Cause: err}
		}
		return nil, &ProviderError{Provider: p.kind, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{
			Provider:   p.kind,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(errorBody)),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ParseError{Provider: p.kind, Cause: fmt.Errorf("failed to read response: %w", err)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ParseError{
			Provider:    p.kind,
			RawResponse: string(raw),
			Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}
	if m, ok := decoded.(map[string]any); ok {
		return m, nil
	}
	// Non-object JSON responses are wrapped.
	return map[string]any{"result": decoded}, nil
}

// Close closes idle connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	p.logger.Info("provider closed")
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
