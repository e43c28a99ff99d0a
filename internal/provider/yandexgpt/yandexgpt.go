package yandexgpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vnmchuo/letter-gateway/internal/apierr"
	"github.com/vnmchuo/letter-gateway/internal/modelconfig"
	"github.com/vnmchuo/letter-gateway/internal/provider"
)

const DefaultCompletionURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

// Client performs exactly one round trip per call and never retries.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	httpClient    *http.Client
	completionURL string
}

type completionRequest struct {
	ModelURI          string             `json:"modelUri"`
	CompletionOptions completionOptions  `json:"completionOptions"`
	Messages          []provider.Message `json:"messages"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithCompletionURL overrides DefaultCompletionURL.
func WithCompletionURL(url string) Option {
	return func(cl *Client) {
		if url != "" {
			cl.completionURL = url
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient:    http.DefaultClient,
		completionURL: DefaultCompletionURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SendCompletionRequest(ctx context.Context, cfg *modelconfig.ResolvedConfig, messages []provider.Message, opts provider.Options) (*provider.CompletionResponse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(buildRequest(cfg, messages, opts))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", cfg.BearerToken()))
	httpReq.Header.Set("x-folder-id", cfg.CatalogID())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("completion request: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &apierr.CompletionError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	completion, err := provider.ParseCompletionResponse(respBody)
	if err != nil {
		return nil, fmt.Errorf("completion request: decode response: %w", err)
	}
	return completion, nil
}

// AsyncResult is delivered once on the channel returned by SendAsync.
type AsyncResult struct {
	Response *provider.CompletionResponse
	Err      error
}

// SendAsync runs SendCompletionRequest on its own goroutine. The channel is
// buffered, so abandoning it does not leak the goroutine; cancel ctx to stop
// the request itself.
func (c *Client) SendAsync(ctx context.Context, cfg *modelconfig.ResolvedConfig, messages []provider.Message, opts provider.Options) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		resp, err := c.SendCompletionRequest(ctx, cfg, messages, opts)
		ch <- AsyncResult{Response: resp, Err: err}
	}()
	return ch
}

func buildRequest(cfg *modelconfig.ResolvedConfig, messages []provider.Message, opts provider.Options) completionRequest {
	if messages == nil {
		messages = []provider.Message{}
	}
	return completionRequest{
		ModelURI: cfg.ModelURI(),
		CompletionOptions: completionOptions{
			Stream:      opts.Stream,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		},
		Messages: messages,
	}
}
