package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vnmchuo/letter-gateway/config"
	"github.com/vnmchuo/letter-gateway/internal/iam"
	"github.com/vnmchuo/letter-gateway/internal/logging"
	"github.com/vnmchuo/letter-gateway/internal/modelconfig"
)

const serviceName = "letter-gateway"

var version = "0.1.0"

// modelFlags are the direct inputs of model config resolution.
type modelFlags struct {
	modelType   string
	token       string
	catalogID   string
	configPath  string
	keyFilePath string
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.modelType, "model", "", "Model type: yandexgpt|yandexgpt-lite|summarization")
	cmd.PersistentFlags().StringVar(&f.token, "token", "", "Bearer token (requires --catalog)")
	cmd.PersistentFlags().StringVar(&f.catalogID, "catalog", "", "Catalog (folder) id")
	cmd.PersistentFlags().StringVar(&f.configPath, "config", "", "Service account config file (yaml, json or toml; defaults MODEL_CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&f.keyFilePath, "key-file", "", "Service account key file (defaults MODEL_KEY_FILE_PATH)")
}

func (f *modelFlags) options(cfg *config.Config) modelconfig.Options {
	opts := modelconfig.Options{
		ModelType:   f.modelType,
		BearerToken: f.token,
		CatalogID:   f.catalogID,
		ConfigPath:  f.configPath,
		KeyFilePath: f.keyFilePath,
	}
	if opts.ConfigPath == "" && opts.KeyFilePath == "" {
		opts.ConfigPath = cfg.ModelConfigPath
		opts.KeyFilePath = cfg.ModelKeyFilePath
	}
	return opts
}

func newResolver(cfg *config.Config, logger zerolog.Logger) *modelconfig.Resolver {
	minter := iam.NewMinter(iam.WithTimeout(cfg.UpstreamTimeout))
	return modelconfig.NewResolver(minter, modelconfig.WithLogger(logger))
}

func buildRootCmd() *cobra.Command {
	var (
		cfg   *config.Config
		log   zerolog.Logger
		flags modelFlags
	)

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Cover letter generation service backed by YandexGPT",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	flags.register(root)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, log, flags.options(cfg))
		},
	}
	root.RunE = serveCmd.RunE

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Resolve the model config and print the bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd.Context(), cmd.OutOrStdout(), cfg, log, flags.options(cfg))
		},
	}

	var temperature float64
	var maxTokens int
	completeCmd := &cobra.Command{
		Use:     "complete [prompt]",
		Short:   "Send a single user message and print the model's answer",
		Example: "  gateway complete --model lite \"Write a haiku about Go\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd.Context(), cmd.OutOrStdout(), cfg, log, flags.options(cfg), args[0], temperature, maxTokens)
		},
	}
	completeCmd.Flags().Float64Var(&temperature, "temperature", 0.6, "Sampling temperature")
	completeCmd.Flags().IntVar(&maxTokens, "max-tokens", 1000, "Maximum completion tokens")

	root.AddCommand(serveCmd, tokenCmd, completeCmd)
	return root
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
