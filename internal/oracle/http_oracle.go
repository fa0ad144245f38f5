package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/eidetic/internal/retry"
)

// minFormatAttempts is the minimum number of format-retry attempts spec.md
// §4.2 requires before raising LLMFormatError.
const minFormatAttempts = 3

// temperatureStep is added to the requested temperature on each format
// retry, per spec.md §4.2 ("each retry may raise temperature by a small
// step").
const temperatureStep = 0.15

// HTTPOracle calls a single HTTP endpoint shaped like the OpenAI chat
// completions API: POST {model, messages, temperature, max_tokens,
// response_format}, decode choices[0].message.content as JSON.
type HTTPOracle struct {
	endpoint string
	client   *http.Client
	handler  retry.Handler
	logger   *slog.Logger
}

// HTTPOracleOption customises NewHTTPOracle.
type HTTPOracleOption func(*httpOracleConfig)

type httpOracleConfig struct {
	client      *http.Client
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	breaker     *retry.CircuitBreaker
}

func defaultHTTPOracleConfig() httpOracleConfig {
	return httpOracleConfig{
		client:      http.DefaultClient,
		timeout:     60 * time.Second,
		maxRetries:  2,
		baseBackoff: 500 * time.Millisecond,
	}
}

// WithHTTPClient overrides the http.Client used for transport calls.
func WithHTTPClient(c *http.Client) HTTPOracleOption {
	return func(cfg *httpOracleConfig) { cfg.client = c }
}

// WithCallTimeout bounds each transport exchange, including its
// transport-level retries and their backoff. Default 60s.
func WithCallTimeout(d time.Duration) HTTPOracleOption {
	return func(cfg *httpOracleConfig) { cfg.timeout = d }
}

// WithTransportRetry configures the transport-level retry (network/5xx
// failures), distinct from the format-retry loop ChatJSON runs itself.
func WithTransportRetry(maxRetries int, baseBackoff time.Duration) HTTPOracleOption {
	return func(cfg *httpOracleConfig) {
		cfg.maxRetries = maxRetries
		cfg.baseBackoff = baseBackoff
	}
}

// WithBreaker wraps transport calls in cb, so a persistently-down provider
// fails fast instead of burning the format-retry budget on every call.
func WithBreaker(cb *retry.CircuitBreaker) HTTPOracleOption {
	return func(cfg *httpOracleConfig) { cfg.breaker = cb }
}

// NewHTTPOracle returns an Oracle posting to endpoint.
func NewHTTPOracle(endpoint string, logger *slog.Logger, opts ...HTTPOracleOption) *HTTPOracle {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := defaultHTTPOracleConfig()
	for _, o := range opts {
		o(&cfg)
	}

	o := &HTTPOracle{endpoint: endpoint, client: cfg.client, logger: logger}

	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		return o.post(ctx, payload)
	}

	mws := []retry.HandlerMiddleware{
		retry.WithTimeout(cfg.timeout),
		retry.WithRetry(cfg.maxRetries, cfg.baseBackoff, logger),
	}
	if cfg.breaker != nil {
		mws = append(mws, retry.WithCircuitBreaker(cfg.breaker, endpoint))
	}
	o.handler = retry.Chain(base, mws...)

	return o
}

type chatRequestBody struct {
	Model          string            `json:"model"`
	Messages       []chatMessageJSON `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat responseFormat    `json:"response_format"`
}

type chatMessageJSON struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponseBody struct {
	Choices []struct {
		Message chatMessageJSON `json:"message"`
	} `json:"choices"`
}

// ChatJSON implements Oracle. It makes up to minFormatAttempts attempts in
// all while responses come back malformed, raising the requested temperature and strengthening
// the strict-JSON instruction each time, before returning LLMFormatError.
// Transport failures surfaced by the handler chain (after its own bounded
// retry) are returned immediately as LLMUnavailableError.
func (o *HTTPOracle) ChatJSON(ctx context.Context, messages []Message, opts ChatOptions) (map[string]any, error) {
	var lastErr error

	for attempt := 0; attempt < minFormatAttempts; attempt++ {
		body := buildRequestBody(messages, opts, attempt)
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("oracle: marshal request: %w", err)
		}

		raw, err := o.handler(ctx, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &LLMUnavailableError{Cause: ctx.Err()}
			}
			return nil, &LLMUnavailableError{Cause: err}
		}

		var resp chatResponseBody
		if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("oracle: malformed chat response: %w", err)
			o.logger.Warn("oracle format retry", "attempt", attempt+1)
			continue
		}

		var parsed map[string]any
		if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
			lastErr = fmt.Errorf("oracle: content is not valid JSON: %w", err)
			o.logger.Warn("oracle format retry", "attempt", attempt+1)
			continue
		}

		return parsed, nil
	}

	return nil, &LLMFormatError{Attempts: minFormatAttempts, Cause: lastErr}
}

func buildRequestBody(messages []Message, opts ChatOptions, attempt int) chatRequestBody {
	jsonMessages := make([]chatMessageJSON, 0, len(messages)+1)
	for _, m := range messages {
		jsonMessages = append(jsonMessages, chatMessageJSON{Role: string(m.Role), Content: m.Content})
	}
	if attempt > 0 {
		jsonMessages = append(jsonMessages, chatMessageJSON{
			Role:    string(RoleSystem),
			Content: strictJSONReminder(attempt),
		})
	}

	return chatRequestBody{
		Model:          opts.Model,
		Messages:       jsonMessages,
		Temperature:    opts.Temperature + float64(attempt)*temperatureStep,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
}

func strictJSONReminder(attempt int) string {
	switch {
	case attempt >= 2:
		return "Your previous responses were not valid JSON. Respond with ONLY a single valid JSON object — no prose, no markdown fences, no trailing commentary."
	default:
		return "Respond with only a valid JSON object matching the requested shape."
	}
}

func (o *HTTPOracle) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("oracle: server error %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("oracle: request error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
