package provider

import (
	"errors"
	"testing"
)

func TestCompletionResponse_TextAndUsage(t *testing.T) {
	body := []byte(`{
		"result": {
			"alternatives": [{"message": {"role": "assistant", "text": "Dear hiring team"}, "status": "ALTERNATIVE_STATUS_FINAL"}],
			"usage": {"inputTextTokens": "19", "completionTokens": "6", "totalTokens": "25"},
			"modelVersion": "06.12.2023"
		}
	}`)

	resp, err := ParseCompletionResponse(body)
	if err != nil {
		t.Fatalf("ParseCompletionResponse failed: %v", err)
	}

	text, err := resp.Text()
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "Dear hiring team" {
		t.Errorf("Expected 'Dear hiring team', got %s", text)
	}

	usage := resp.Usage()
	if usage.InputTokens != 19 || usage.CompletionTokens != 6 || usage.TotalTokens != 25 {
		t.Errorf("Unexpected usage: %+v", usage)
	}
	if resp.Result.ModelVersion != "06.12.2023" {
		t.Errorf("Expected modelVersion 06.12.2023, got %s", resp.Result.ModelVersion)
	}
	if resp.Get("result.alternatives.0.status").String() != "ALTERNATIVE_STATUS_FINAL" {
		t.Errorf("Expected raw lookup of status to work")
	}
}

func TestCompletionResponse_NoAlternatives(t *testing.T) {
	resp, err := ParseCompletionResponse([]byte(`{"result":{"alternatives":[]}}`))
	if err != nil {
		t.Fatalf("ParseCompletionResponse failed: %v", err)
	}
	if _, err := resp.Text(); !errors.Is(err, ErrNoAlternatives) {
		t.Errorf("Expected ErrNoAlternatives, got %v", err)
	}
}

func TestParseCompletionResponse_InvalidJSON(t *testing.T) {
	if _, err := ParseCompletionResponse([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid json")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Temperature != 0.6 || opts.MaxTokens != 1000 || opts.Stream {
		t.Errorf("Unexpected defaults: %+v", opts)
	}
}
