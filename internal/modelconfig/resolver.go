package modelconfig

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/vnmchuo/letter-gateway/internal/apierr"
	"github.com/vnmchuo/letter-gateway/internal/iam"
)

// Environment variables read by the env source.
const (
	EnvIAMToken            = "IAM_TOKEN"
	EnvModelType           = "MODEL_TYPE"
	EnvCatalogID           = "CATALOG_ID"
	EnvServiceAccountID    = "SERVICE_ACCOUNT_ID"
	EnvServiceAccountKeyID = "SERVICE_ACCOUNT_KEY_ID"
	EnvPrivateKey          = "PRIVATE_KEY"
	EnvIAMURL              = "IAM_URL"
)

// Source names the path that produced a ResolvedConfig.
type Source string

const (
	SourceDirect Source = "direct"
	SourceFiles  Source = "files"
	SourceEnv    Source = "env"
)

// TokenMinter exchanges service-account credentials for a bearer token.
type TokenMinter interface {
	MintAndExchange(ctx context.Context, serviceAccountID, privateKey, keyID, exchangeURL string) (string, error)
}

// Options are the direct inputs of a resolution. Empty fields are unset.
type Options struct {
	ModelType   string
	BearerToken string
	CatalogID   string
	ConfigPath  string
	KeyFilePath string
}

type Resolver struct {
	minter    TokenMinter
	lookupEnv func(string) (string, bool)
	logger    zerolog.Logger
}

type ResolverOption func(*Resolver)

// WithLookupEnv replaces os.LookupEnv as the environment source.
func WithLookupEnv(fn func(string) (string, bool)) ResolverOption {
	return func(r *Resolver) { r.lookupEnv = fn }
}

func WithLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(minter TokenMinter, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		minter:    minter,
		lookupEnv: os.LookupEnv,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve tries, in order: direct values, the config and key files, the
// environment. Only one path is taken; a failure in it is returned as a
// ConfigError. The result is validated regardless of the path.
func (r *Resolver) Resolve(ctx context.Context, opts Options) (*ResolvedConfig, error) {
	modelType := opts.ModelType
	if modelType == "" {
		modelType = string(ModelFull)
	}
	token, catalogID := opts.BearerToken, opts.CatalogID

	var source Source
	var err error
	switch {
	case token != "" && catalogID != "":
		source = SourceDirect
	case opts.ConfigPath != "" && opts.KeyFilePath != "":
		source = SourceFiles
		token, catalogID, err = r.fromFiles(ctx, opts.ConfigPath, opts.KeyFilePath)
	default:
		source = SourceEnv
		modelType, token, catalogID, err = r.fromEnv(ctx, modelType, token, catalogID)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("source", string(source)).Msg("model config resolution failed")
		return nil, err
	}

	cfg, err := New(modelType, token, catalogID)
	if err != nil {
		r.logger.Error().Err(err).Str("source", string(source)).Msg("model config validation failed")
		return nil, err
	}
	r.logger.Info().Str("source", string(source)).Stringer("config", cfg).Msg("model config resolved")
	return cfg, nil
}

func (r *Resolver) fromFiles(ctx context.Context, configPath, keyPath string) (string, string, error) {
	saFile, err := LoadServiceAccountFile(configPath)
	if err != nil {
		return "", "", err
	}
	keyFile, err := LoadKeyFile(keyPath)
	if err != nil {
		return "", "", err
	}
	exchangeURL := saFile.IAMURL
	if exchangeURL == "" {
		exchangeURL = iam.DefaultExchangeURL
	}
	token, err := r.mint(ctx, saFile.ServiceAccountID, keyFile.PrivateKey, saFile.ServiceAccountKeyID, exchangeURL)
	if err != nil {
		return "", "", err
	}
	return token, saFile.CatalogID, nil
}

// fromEnv lets environment values override the direct inputs. Without a
// bearer token it falls back to minting one from service-account variables.
func (r *Resolver) fromEnv(ctx context.Context, modelType, token, catalogID string) (string, string, string, error) {
	token = r.getEnv(EnvIAMToken, token)
	modelType = r.getEnv(EnvModelType, modelType)
	catalogID = r.getEnv(EnvCatalogID, catalogID)
	if token != "" {
		return modelType, token, catalogID, nil
	}

	serviceAccountID := r.getEnv(EnvServiceAccountID, "")
	keyID := r.getEnv(EnvServiceAccountKeyID, "")
	privateKey := r.getEnv(EnvPrivateKey, "")
	envCatalogID := r.getEnv(EnvCatalogID, "")
	exchangeURL := r.getEnv(EnvIAMURL, iam.DefaultExchangeURL)

	var missing []string
	for _, kv := range [][2]string{
		{EnvServiceAccountID, serviceAccountID},
		{EnvServiceAccountKeyID, keyID},
		{EnvPrivateKey, privateKey},
		{EnvCatalogID, envCatalogID},
	} {
		if kv[1] == "" {
			missing = append(missing, kv[0])
		}
	}
	if len(missing) > 0 {
		return "", "", "", apierr.Configf("environment variables for iam token generation are missing: %v", missing)
	}

	token, err := r.mint(ctx, serviceAccountID, privateKey, keyID, exchangeURL)
	if err != nil {
		return "", "", "", err
	}
	return modelType, token, envCatalogID, nil
}

func (r *Resolver) mint(ctx context.Context, serviceAccountID, privateKey, keyID, exchangeURL string) (string, error) {
	if r.minter == nil {
		return "", apierr.Configf("no token minter configured")
	}
	token, err := r.minter.MintAndExchange(ctx, serviceAccountID, privateKey, keyID, exchangeURL)
	if err != nil {
		return "", apierr.WrapConfig("iam token generation", err)
	}
	return token, nil
}

func (r *Resolver) getEnv(key, fallback string) string {
	if v, ok := r.lookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
