// Package modelconfig resolves the model, bearer token and catalog id used for
// completion requests, and keeps the current value fresh for a long-running process.
package modelconfig

import (
	"fmt"
	"strings"

	"github.com/vnmchuo/letter-gateway/internal/apierr"
)

type ModelType string

const (
	ModelFull          ModelType = "yandexgpt"
	ModelLite          ModelType = "yandexgpt-lite"
	ModelSummarization ModelType = "summarization"
)

// AvailableModels lists the recognized model identifiers.
var AvailableModels = []ModelType{ModelFull, ModelLite, ModelSummarization}

// ParseModelType accepts the upstream identifiers and the short aliases "full" and "lite".
func ParseModelType(s string) (ModelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModelFull), "full":
		return ModelFull, nil
	case string(ModelLite), "lite":
		return ModelLite, nil
	case string(ModelSummarization):
		return ModelSummarization, nil
	default:
		return "", apierr.Configf("model type must be one of %v, got %q", AvailableModels, s)
	}
}

// ResolvedConfig is immutable once built. Refreshing means building a new one.
type ResolvedConfig struct {
	modelType   ModelType
	bearerToken string
	catalogID   string
}

// New validates the values and returns a ResolvedConfig.
func New(modelType, bearerToken, catalogID string) (*ResolvedConfig, error) {
	if bearerToken == "" {
		return nil, apierr.Configf("iam token is not set")
	}
	if catalogID == "" {
		return nil, apierr.Configf("catalog id is not set")
	}
	mt, err := ParseModelType(modelType)
	if err != nil {
		return nil, err
	}
	return &ResolvedConfig{modelType: mt, bearerToken: bearerToken, catalogID: catalogID}, nil
}

func (c *ResolvedConfig) ModelType() ModelType { return c.modelType }
func (c *ResolvedConfig) BearerToken() string  { return c.bearerToken }
func (c *ResolvedConfig) CatalogID() string    { return c.catalogID }

// ModelURI addresses the latest version of the configured model in the catalog.
func (c *ResolvedConfig) ModelURI() string {
	return fmt.Sprintf("gpt://%s/%s/latest", c.catalogID, c.modelType)
}

// Validate reports a ConfigError when any field is empty. A nil or zero-value
// config fails here before any request is attempted.
func (c *ResolvedConfig) Validate() error {
	if c == nil || c.modelType == "" || c.bearerToken == "" || c.catalogID == "" {
		return apierr.Configf("model type, iam token, and catalog id must be set to send a completion request")
	}
	return nil
}

// String hides the bearer token.
func (c *ResolvedConfig) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("model=%s catalog=%s", c.modelType, c.catalogID)
}
