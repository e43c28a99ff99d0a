package yandexgpt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vnmchuo/letter-gateway/internal/apierr"
	"github.com/vnmchuo/letter-gateway/internal/modelconfig"
	"github.com/vnmchuo/letter-gateway/internal/provider"
)

type recordedRequest struct {
	header http.Header
	body   []byte
}

type mockUpstream struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (m *mockUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	m.mu.Lock()
	m.requests = append(m.requests, recordedRequest{header: r.Header.Clone(), body: body})
	m.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(m.status)
	w.Write([]byte(m.body))
}

func testConfig(t *testing.T) *modelconfig.ResolvedConfig {
	t.Helper()
	cfg, err := modelconfig.New("lite", "bearer-1", "cat123")
	if err != nil {
		t.Fatalf("modelconfig.New failed: %v", err)
	}
	return cfg
}

var testMessages = []provider.Message{
	{Role: "system", Text: "x"},
	{Role: "user", Text: "y"},
}

func TestSendCompletionRequest_Success(t *testing.T) {
	upstream := &mockUpstream{
		status: http.StatusOK,
		body:   `{"result":{"alternatives":[{"message":{"text":"hello"}}]}}`,
	}
	server := httptest.NewServer(upstream)
	defer server.Close()

	c := New(WithCompletionURL(server.URL))
	resp, err := c.SendCompletionRequest(context.Background(), testConfig(t), testMessages, provider.Options{
		Temperature: 0.0,
		MaxTokens:   500,
		Stream:      false,
	})
	if err != nil {
		t.Fatalf("SendCompletionRequest failed: %v", err)
	}

	text, err := resp.Text()
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("Expected 'hello', got %s", text)
	}
	if resp.Result.Alternatives[0].Message.Text != "hello" {
		t.Errorf("Expected typed alternative text 'hello', got %s", resp.Result.Alternatives[0].Message.Text)
	}

	if len(upstream.requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(upstream.requests))
	}
	got := upstream.requests[0]
	if got.header.Get("Authorization") != "Bearer bearer-1" {
		t.Errorf("Expected 'Bearer bearer-1', got %s", got.header.Get("Authorization"))
	}
	if got.header.Get("x-folder-id") != "cat123" {
		t.Errorf("Expected x-folder-id cat123, got %s", got.header.Get("x-folder-id"))
	}
	if got.header.Get("Content-Type") != "application/json" {
		t.Errorf("Expected application/json, got %s", got.header.Get("Content-Type"))
	}

	var body struct {
		ModelURI          string `json:"modelUri"`
		CompletionOptions struct {
			Stream      bool    `json:"stream"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"maxTokens"`
		} `json:"completionOptions"`
		Messages []provider.Message `json:"messages"`
	}
	if err := json.Unmarshal(got.body, &body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if body.ModelURI != "gpt://cat123/yandexgpt-lite/latest" {
		t.Errorf("Expected modelUri gpt://cat123/yandexgpt-lite/latest, got %s", body.ModelURI)
	}
	if body.CompletionOptions.Stream || body.CompletionOptions.Temperature != 0 || body.CompletionOptions.MaxTokens != 500 {
		t.Errorf("Unexpected completion options: %+v", body.CompletionOptions)
	}
	if len(body.Messages) != 2 || body.Messages[0] != testMessages[0] || body.Messages[1] != testMessages[1] {
		t.Errorf("Expected messages forwarded verbatim, got %+v", body.Messages)
	}
}

func TestSendCompletionRequest_UpstreamError(t *testing.T) {
	upstream := &mockUpstream{status: http.StatusInternalServerError, body: "server error"}
	server := httptest.NewServer(upstream)
	defer server.Close()

	c := New(WithCompletionURL(server.URL))
	_, err := c.SendCompletionRequest(context.Background(), testConfig(t), testMessages, provider.DefaultOptions())
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var compErr *apierr.CompletionError
	if !errors.As(err, &compErr) {
		t.Fatalf("Expected CompletionError, got %T: %v", err, err)
	}
	if compErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", compErr.StatusCode)
	}
	if compErr.Body != "server error" {
		t.Errorf("Expected body 'server error', got %q", compErr.Body)
	}
	if len(upstream.requests) != 1 {
		t.Errorf("Expected exactly 1 outbound call, got %d", len(upstream.requests))
	}
}

func TestSendCompletionRequest_InvalidConfig(t *testing.T) {
	upstream := &mockUpstream{status: http.StatusOK, body: `{}`}
	server := httptest.NewServer(upstream)
	defer server.Close()

	c := New(WithCompletionURL(server.URL))
	for name, cfg := range map[string]*modelconfig.ResolvedConfig{
		"nil":  nil,
		"zero": {},
	} {
		_, err := c.SendCompletionRequest(context.Background(), cfg, testMessages, provider.DefaultOptions())
		if !apierr.IsConfig(err) {
			t.Errorf("%s: expected ConfigError, got %v", name, err)
		}
	}
	if len(upstream.requests) != 0 {
		t.Errorf("Expected no outbound calls, got %d", len(upstream.requests))
	}
}

func TestSendCompletionRequest_Idempotent(t *testing.T) {
	upstream := &mockUpstream{
		status: http.StatusOK,
		body:   `{"result":{"alternatives":[{"message":{"role":"assistant","text":"ok"}}]}}`,
	}
	server := httptest.NewServer(upstream)
	defer server.Close()

	c := New(WithCompletionURL(server.URL))
	cfg := testConfig(t)
	for i := 0; i < 2; i++ {
		if _, err := c.SendCompletionRequest(context.Background(), cfg, testMessages, provider.DefaultOptions()); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	if len(upstream.requests) != 2 {
		t.Fatalf("Expected 2 outbound calls, got %d", len(upstream.requests))
	}
	if !bytes.Equal(upstream.requests[0].body, upstream.requests[1].body) {
		t.Errorf("Expected identical bodies:\n%s\n%s", upstream.requests[0].body, upstream.requests[1].body)
	}
}

func TestSendCompletionRequest_StreamFlagForwarded(t *testing.T) {
	upstream := &mockUpstream{
		status: http.StatusOK,
		body:   `{"result":{"alternatives":[{"message":{"text":"full body"}}]}}`,
	}
	server := httptest.NewServer(upstream)
	defer server.Close()

	opts := provider.DefaultOptions()
	opts.Stream = true
	resp, err := New(WithCompletionURL(server.URL)).SendCompletionRequest(context.Background(), testConfig(t), testMessages, opts)
	if err != nil {
		t.Fatalf("SendCompletionRequest failed: %v", err)
	}
	if text, _ := resp.Text(); text != "full body" {
		t.Errorf("Expected 'full body', got %s", text)
	}
	var body map[string]map[string]any
	json.Unmarshal(upstream.requests[0].body, &body)
	if body["completionOptions"]["stream"] != true {
		t.Errorf("Expected stream=true to be forwarded, got %v", body["completionOptions"]["stream"])
	}
}

func TestSendCompletionRequest_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	opts := provider.DefaultOptions()
	opts.Timeout = 50 * time.Millisecond
	_, err := New(WithCompletionURL(server.URL)).SendCompletionRequest(context.Background(), testConfig(t), testMessages, opts)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestSendAsync(t *testing.T) {
	upstream := &mockUpstream{
		status: http.StatusOK,
		body:   `{"result":{"alternatives":[{"message":{"text":"async"}}]}}`,
	}
	server := httptest.NewServer(upstream)
	defer server.Close()

	c := New(WithCompletionURL(server.URL))
	cfg := testConfig(t)

	first := c.SendAsync(context.Background(), cfg, testMessages, provider.DefaultOptions())
	second := c.SendAsync(context.Background(), cfg, testMessages, provider.DefaultOptions())

	for i, ch := range []<-chan AsyncResult{first, second} {
		res := <-ch
		if res.Err != nil {
			t.Fatalf("async call %d failed: %v", i, res.Err)
		}
		if text, _ := res.Response.Text(); text != "async" {
			t.Errorf("Expected 'async', got %s", text)
		}
	}
}
