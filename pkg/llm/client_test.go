package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// recordedSleep captures retry delays instead of waiting.
type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(serverURL string, sleep *recordedSleep) *Client {
	return New(Config{
		APIKey:      "test-key",
		BaseURL:     serverURL,
		Model:       "test-model",
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Sleep:       sleep.sleep,
	})
}

func okBody(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q}}]}`, content)
}

func TestComplete_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, okBody(`{"valence":0.4}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, &recordedSleep{})
	content, err := c.Complete(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != `{"valence":0.4}` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestComplete_RetriesServerErrorsThenExhausts(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	sleep := &recordedSleep{}
	c := newTestClient(ts.URL, sleep)
	_, err := c.Complete(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	// delay(n) = min(1s * 2^n, 10s)
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleep.delays) != len(want) {
		t.Fatalf("expected %d delays, got %v", len(want), sleep.delays)
	}
	for i, d := range want {
		if sleep.delays[i] != d {
			t.Fatalf("delay %d: expected %v got %v", i, d, sleep.delays[i])
		}
	}
}

func TestComplete_NoRetryOnAuthError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, &recordedSleep{})
	_, err := c.Complete(context.Background(), "p")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestComplete_NoRetryOnQuotaError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, &recordedSleep{})
	_, err := c.Complete(context.Background(), "p")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindQuota {
		t.Fatalf("expected quota error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestComplete_NoRetryOnParseError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, &recordedSleep{})
	_, err := c.Complete(context.Background(), "p")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindParse {
		t.Fatalf("expected parse error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("parse errors must not retry, got %d attempts", got)
	}
}

func TestComplete_RateLimitHonorsRetryAfter(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, okBody("ok"))
	}))
	defer ts.Close()

	sleep := &recordedSleep{}
	c := newTestClient(ts.URL, sleep)
	content, err := c.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "ok" {
		t.Fatalf("unexpected content %q", content)
	}
	// Retry-After 5s beats the 1s backoff for the first retry.
	if len(sleep.delays) != 1 || sleep.delays[0] != 5*time.Second {
		t.Fatalf("expected single 5s delay, got %v", sleep.delays)
	}
}

func TestComplete_RateLimitShortRetryAfterKeepsBackoff(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	sleep := &recordedSleep{}
	c := newTestClient(ts.URL, sleep)
	_, err := c.Complete(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
	// Second retry backoff is 2s, which exceeds the 1s Retry-After.
	want := []time.Duration{time.Second, 2 * time.Second}
	for i, d := range want {
		if sleep.delays[i] != d {
			t.Fatalf("delay %d: expected %v got %v", i, d, sleep.delays[i])
		}
	}
}

func TestComplete_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Config{
		APIKey:  "k",
		BaseURL: ts.URL,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})
	_, err := c.Complete(ctx, "p")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindCancelled {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if apiErr.Retryable() {
		t.Fatal("cancelled errors must not be retryable")
	}
}

func TestComplete_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(Config{
		APIKey:           "k",
		BaseURL:          ts.URL,
		MaxAttempts:      1,
		FailureThreshold: 5,
		Sleep:            (&recordedSleep{}).sleep,
	})

	for i := 0; i < 5; i++ {
		if _, err := c.Complete(context.Background(), "p"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if c.BreakerState() != StateOpen {
		t.Fatalf("expected open breaker, got %v", c.BreakerState())
	}

	before := atomic.LoadInt32(&calls)
	_, err := c.Complete(context.Background(), "p")
	if err == nil {
		t.Fatal("expected breaker rejection")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen in chain, got %v", err)
	}
	if after := atomic.LoadInt32(&calls); after != before {
		t.Fatalf("open breaker must not hit the network: %d -> %d calls", before, after)
	}
}

func TestComplete_BreakerRecoversThroughHalfOpen(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, okBody("ok"))
	}))
	defer ts.Close()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New(Config{
		APIKey:           "k",
		BaseURL:          ts.URL,
		MaxAttempts:      1,
		FailureThreshold: 5,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 2,
		Clock:            clock,
		Sleep:            (&recordedSleep{}).sleep,
	})

	for i := 0; i < 5; i++ {
		c.Complete(context.Background(), "p")
	}
	if c.BreakerState() != StateOpen {
		t.Fatalf("expected open breaker, got %v", c.BreakerState())
	}

	fail.Store(false)
	clock.advance(61 * time.Second)

	// Two successful probes close the breaker.
	for i := 0; i < 2; i++ {
		if _, err := c.Complete(context.Background(), "p"); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	if c.BreakerState() != StateClosed {
		t.Fatalf("expected closed breaker, got %v", c.BreakerState())
	}
}

func TestComplete_HalfOpenFailureReopens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New(Config{
		APIKey:           "k",
		BaseURL:          ts.URL,
		MaxAttempts:      1,
		FailureThreshold: 5,
		RecoveryTimeout:  time.Minute,
		Clock:            clock,
		Sleep:            (&recordedSleep{}).sleep,
	})

	for i := 0; i < 5; i++ {
		c.Complete(context.Background(), "p")
	}
	clock.advance(61 * time.Second)

	// The probe fails, re-opening the breaker with a fresh recovery window.
	if _, err := c.Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected probe failure")
	}
	if c.BreakerState() != StateOpen {
		t.Fatalf("expected re-opened breaker, got %v", c.BreakerState())
	}

	clock.advance(30 * time.Second)
	_, err := c.Complete(context.Background(), "p")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("recovery timer must restart on half-open failure, got %v", err)
	}
}

func TestParseContent_Malformations(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", "{not json"},
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"content":"  "}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseContent([]byte(tc.body))
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Kind != KindParse {
				t.Fatalf("expected parse error, got %v", err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Valence float64 `json:"valence"`
	}
	got, err := Decode[payload](`{"valence":-0.2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Valence != -0.2 {
		t.Fatalf("unexpected valence %v", got.Valence)
	}

	_, err = Decode[payload](`not json`)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindParse {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("5"); d != 5*time.Second {
		t.Fatalf("expected 5s, got %v", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
	if d := parseRetryAfter("soon"); d != 0 {
		t.Fatalf("expected 0 for garbage, got %v", d)
	}
}
