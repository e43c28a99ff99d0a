package provider

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vnmchuo/letter-gateway/internal/modelconfig"
)

type Message struct {
	Role string `json:"role"` // "system", "user", "assistant"
	Text string `json:"text"`
}

type Options struct {
	Temperature float64
	MaxTokens   int
	// Stream is forwarded upstream, but the response is always read as one body.
	Stream bool
	// Timeout bounds a single call. Zero leaves it to the caller's context.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Temperature: 0.6,
		MaxTokens:   1000,
	}
}

type Alternative struct {
	Message Message `json:"message"`
	Status  string  `json:"status"`
}

type Result struct {
	Alternatives []Alternative `json:"alternatives"`
	ModelVersion string        `json:"modelVersion"`
}

type Usage struct {
	InputTokens      int64
	CompletionTokens int64
	TotalTokens      int64
}

// CompletionResponse is the parsed upstream body. Raw keeps every field,
// including the ones without a typed counterpart.
type CompletionResponse struct {
	Result Result `json:"result"`
	raw    []byte
}

var ErrNoAlternatives = errors.New("completion response has no alternatives")

func ParseCompletionResponse(body []byte) (*CompletionResponse, error) {
	var resp CompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	resp.raw = body
	return &resp, nil
}

func (r *CompletionResponse) Raw() []byte { return r.raw }

// Get looks up a gjson path in the raw body, e.g. "result.alternatives.0.message.text".
func (r *CompletionResponse) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Text returns the text of the first alternative.
func (r *CompletionResponse) Text() (string, error) {
	text := r.Get("result.alternatives.0.message.text")
	if !text.Exists() {
		return "", ErrNoAlternatives
	}
	return text.String(), nil
}

// Usage reads token counts. Upstream encodes them as strings; gjson converts either form.
func (r *CompletionResponse) Usage() Usage {
	return Usage{
		InputTokens:      r.Get("result.usage.inputTextTokens").Int(),
		CompletionTokens: r.Get("result.usage.completionTokens").Int(),
		TotalTokens:      r.Get("result.usage.totalTokens").Int(),
	}
}

// Completer sends one completion request using the given config snapshot.
type Completer interface {
	SendCompletionRequest(ctx context.Context, cfg *modelconfig.ResolvedConfig, messages []Message, opts Options) (*CompletionResponse, error)
}
