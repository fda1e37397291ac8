package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the tuning knobs for a [Client]. Zero-value fields are
// replaced with defaults matching the production configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	MaxTokens   int
	Temperature float64

	// RequestTimeout bounds a single HTTP attempt. Default: 30s.
	RequestTimeout time.Duration

	// MaxAttempts is the total number of attempts per call, including the
	// first. Default: 3.
	MaxAttempts int

	// BaseDelay and MaxDelay shape the exponential backoff between retries:
	// delay(n) = min(BaseDelay * 2^n, MaxDelay) after the n-th failed
	// attempt (n starting at 0). Defaults: 1s, 10s.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int

	// HTTPClient overrides the transport, mainly for tests. The per-attempt
	// timeout is applied through the request context, not the http.Client.
	HTTPClient *http.Client

	// Sleep overrides the inter-retry wait, mainly for tests. The function
	// must honour ctx cancellation. Nil uses a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	Clock  Clock
	Logger *zap.Logger
}

// Client calls an OpenAI-compatible chat-completions endpoint with retries
// and a circuit breaker. All failures surface as *[APIError].
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64

	requestTimeout time.Duration
	maxAttempts    int
	baseDelay      time.Duration
	maxDelay       time.Duration

	httpClient *http.Client
	breaker    *Breaker
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// New creates a [Client] from the given configuration.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepWithContext
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	breaker := NewBreaker(BreakerConfig{
		Name:             "llm",
		FailureThreshold: cfg.FailureThreshold,
		RecoveryTimeout:  cfg.RecoveryTimeout,
		SuccessThreshold: cfg.SuccessThreshold,
		Clock:            cfg.Clock,
		Logger:           cfg.Logger,
		// Caller cancellations say nothing about provider health.
		IsFailure: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Kind != KindCancelled
			}
			return true
		},
	})

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		requestTimeout: cfg.RequestTimeout,
		maxAttempts:    cfg.MaxAttempts,
		baseDelay:      cfg.BaseDelay,
		maxDelay:       cfg.MaxDelay,
		httpClient:     cfg.HTTPClient,
		breaker:        breaker,
		sleep:          cfg.Sleep,
		logger:         cfg.Logger,
	}
}

// BreakerState exposes the breaker state for health reporting.
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// Complete sends prompt as a single user message and returns the assistant
// content. The prompt is expected to ask for a JSON object; the request sets
// response_format accordingly. The whole retried operation runs under the
// circuit breaker, so a tripped breaker rejects the call before any network
// I/O happens.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var content string
	err := c.breaker.Execute(func() error {
		var opErr error
		content, opErr = c.completeWithRetry(ctx, prompt)
		return opErr
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", &APIError{
				Kind:    KindUnknown,
				Message: "analysis service temporarily unavailable",
				cause:   err,
			}
		}
		return "", err
	}
	return content, nil
}

func (c *Client) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr *APIError

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt - 1)
			if lastErr.Kind == KindRateLimit && lastErr.RetryAfter > delay {
				delay = lastErr.RetryAfter
			}
			c.logger.Debug("retrying chat completion",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.String("kind", string(lastErr.Kind)))
			if err := c.sleep(ctx, delay); err != nil {
				return "", classifyContextErr(err)
			}
		}

		content, err := c.attempt(ctx, prompt)
		if err == nil {
			return content, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			apiErr = &APIError{Kind: KindUnknown, Message: err.Error(), cause: err}
		}
		if !apiErr.Retryable() {
			return "", apiErr
		}
		lastErr = apiErr
	}

	return "", lastErr
}

// attempt performs a single HTTP round trip with its own timeout.
func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", &APIError{Kind: KindUnknown, Message: "failed to encode request", cause: err}
	}

	endpoint := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &APIError{Kind: KindUnknown, Message: "failed to build request", cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The outer ctx may have been cancelled rather than the attempt
		// deadline expiring; the distinction decides retry and fallback.
		if ctx.Err() != nil {
			return "", classifyContextErr(ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &APIError{Kind: KindTimeout, Message: "request timed out", cause: err}
		}
		return "", &APIError{Kind: KindNetwork, Message: "request failed", cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Kind: KindNetwork, Message: "failed to read response body", cause: err}
	}
	return parseContent(raw)
}

func (c *Client) backoffDelay(n int) time.Duration {
	delay := c.baseDelay << uint(n)
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}
	return delay
}

// classifyStatus maps a non-200 HTTP response onto the error taxonomy.
func classifyStatus(resp *http.Response) *APIError {
	// Body content is not part of the contract for error responses; drain
	// a little for the message and move on.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &APIError{
			Kind:       KindAuth,
			Message:    "invalid API key",
			StatusCode: resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		return &APIError{
			Kind:       KindRateLimit,
			Message:    "rate limit exceeded",
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case http.StatusPaymentRequired:
		return &APIError{
			Kind:       KindQuota,
			Message:    "quota exhausted",
			StatusCode: resp.StatusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &APIError{
			Kind:       KindNetwork,
			Message:    fmt.Sprintf("server error: %s", firstLine(snippet)),
			StatusCode: resp.StatusCode,
		}
	default:
		return &APIError{
			Kind:       KindUnknown,
			Message:    fmt.Sprintf("unexpected status: %s", firstLine(snippet)),
			StatusCode: resp.StatusCode,
		}
	}
}

// parseRetryAfter reads the delay-seconds form of the Retry-After header.
// Unparseable or absent values yield zero, letting backoff take over.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// parseContent extracts choices[0].message.content from a 200 response.
// Each of the four malformation cases gets its own message so that logs
// distinguish an empty body from an empty choices array.
func parseContent(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", &APIError{Kind: KindParse, Message: "empty response body", StatusCode: http.StatusOK}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", &APIError{
			Kind:       KindParse,
			Message:    "malformed response body",
			StatusCode: http.StatusOK,
			cause:      err,
		}
	}
	if len(cr.Choices) == 0 {
		return "", &APIError{Kind: KindParse, Message: "response contains no choices", StatusCode: http.StatusOK}
	}
	content := cr.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &APIError{Kind: KindParse, Message: "response contains empty content", StatusCode: http.StatusOK}
	}
	return content, nil
}

// Decode unmarshals the assistant content, which is itself expected to be a
// JSON document, into T. A failure here is a parse error: the completion
// succeeded but the model returned something the caller cannot use.
func Decode[T any](content string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, &APIError{
			Kind:    KindParse,
			Message: "model returned invalid JSON content",
			cause:   err,
		}
	}
	return out, nil
}

func classifyContextErr(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTimeout, Message: "request timed out", cause: err}
	}
	return &APIError{Kind: KindCancelled, Message: "request cancelled", cause: err}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "no body"
	}
	return s
}
