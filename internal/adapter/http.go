// Package adapter is Eidetic's boundary with the conversational agent
// running interviews: receiving transcript webhooks and publishing
// regenerated scripts back to the agent's prompt endpoint. Grounded on the
// teacher's channels/webhook.go (inbound HMAC verification, bounded body
// reads, SSRF-checked outbound delivery) and oracle.HTTPOracle's
// retry/breaker-wrapped outbound call shape.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/eidetic/internal/netguard"
	"github.com/hazyhaar/eidetic/internal/retry"
)

// HTTPAdapter delivers generated scripts to an agent's prompt endpoint over
// HTTP, wrapped in the same timeout/retry/breaker middleware chain the
// Oracle client uses. One HTTPAdapter serves every project concurrently;
// PublishScript carries the destination per call rather than on the struct.
type HTTPAdapter struct {
	endpointTemplate string // must contain exactly one "%s" for the agent id
	client           *http.Client
	handler          retry.Handler
	logger           *slog.Logger
}

// HTTPAdapterOption customises NewHTTPAdapter.
type HTTPAdapterOption func(*httpAdapterConfig)

type httpAdapterConfig struct {
	client      *http.Client
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	breaker     *retry.CircuitBreaker
}

func defaultHTTPAdapterConfig() httpAdapterConfig {
	return httpAdapterConfig{
		client:      http.DefaultClient,
		timeout:     15 * time.Second,
		maxRetries:  2,
		baseBackoff: 250 * time.Millisecond,
	}
}

// WithAdapterClient overrides the http.Client used for delivery.
func WithAdapterClient(c *http.Client) HTTPAdapterOption {
	return func(cfg *httpAdapterConfig) { cfg.client = c }
}

// WithAdapterTimeout bounds each individual publish call. Default 15s.
func WithAdapterTimeout(d time.Duration) HTTPAdapterOption {
	return func(cfg *httpAdapterConfig) { cfg.timeout = d }
}

// WithAdapterRetry configures the transport-level retry for publish calls.
func WithAdapterRetry(maxRetries int, baseBackoff time.Duration) HTTPAdapterOption {
	return func(cfg *httpAdapterConfig) {
		cfg.maxRetries = maxRetries
		cfg.baseBackoff = baseBackoff
	}
}

// WithAdapterBreaker trips publish delivery to fail fast once the agent
// endpoint has failed persistently, instead of burning the retry budget on
// every regenerated script.
func WithAdapterBreaker(cb *retry.CircuitBreaker) HTTPAdapterOption {
	return func(cfg *httpAdapterConfig) { cfg.breaker = cb }
}

// NewHTTPAdapter returns an HTTPAdapter that PUTs to
// fmt.Sprintf(endpointTemplate, agentID) for each PublishScript call.
func NewHTTPAdapter(endpointTemplate string, logger *slog.Logger, opts ...HTTPAdapterOption) *HTTPAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := defaultHTTPAdapterConfig()
	for _, o := range opts {
		o(&cfg)
	}

	a := &HTTPAdapter{endpointTemplate: endpointTemplate, client: cfg.client, logger: logger}

	mws := []retry.HandlerMiddleware{
		retry.WithTimeout(cfg.timeout),
		retry.WithRetry(cfg.maxRetries, cfg.baseBackoff, logger),
	}
	if cfg.breaker != nil {
		mws = append(mws, retry.WithCircuitBreaker(cfg.breaker, "agent-publish"))
	}
	a.handler = retry.Chain(a.post, mws...)

	return a
}

type publishRequestBody struct {
	Prompt string `json:"prompt"`
}

// PublishScript delivers promptText to agentID's prompt endpoint. Satisfies
// pipeline.Publisher.
func (a *HTTPAdapter) PublishScript(ctx context.Context, agentID, promptText string) error {
	endpoint := fmt.Sprintf(a.endpointTemplate, agentID)
	if err := netguard.ValidateURL(endpoint); err != nil {
		return fmt.Errorf("adapter: %w", err)
	}

	payload, err := json.Marshal(publishRequestBody{Prompt: promptText})
	if err != nil {
		return fmt.Errorf("adapter: marshal publish payload: %w", err)
	}

	if _, err := a.handler(withEndpoint(ctx, endpoint), payload); err != nil {
		return fmt.Errorf("adapter: publish script: %w", err)
	}
	return nil
}

type endpointKey struct{}

func withEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey{}, endpoint)
}

func (a *HTTPAdapter) post(ctx context.Context, payload []byte) ([]byte, error) {
	endpoint, _ := ctx.Value(endpointKey{}).(string)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := netguard.LimitedReadAll(resp.Body, netguard.MaxResponseBody)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("adapter: server error %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("adapter: request error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
