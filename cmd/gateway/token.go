package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vnmchuo/letter-gateway/config"
	"github.com/vnmchuo/letter-gateway/internal/modelconfig"
	"github.com/vnmchuo/letter-gateway/internal/provider"
	"github.com/vnmchuo/letter-gateway/internal/provider/yandexgpt"
)

func runToken(ctx context.Context, out io.Writer, cfg *config.Config, log zerolog.Logger, opts modelconfig.Options) error {
	resolved, err := newResolver(cfg, log).Resolve(ctx, opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, resolved.BearerToken())
	return err
}

func runComplete(ctx context.Context, out io.Writer, cfg *config.Config, log zerolog.Logger, opts modelconfig.Options, prompt string, temperature float64, maxTokens int) error {
	resolved, err := newResolver(cfg, log).Resolve(ctx, opts)
	if err != nil {
		return err
	}

	client := yandexgpt.New(yandexgpt.WithCompletionURL(cfg.CompletionURL))
	resp, err := client.SendCompletionRequest(ctx, resolved, []provider.Message{
		{Role: "user", Text: strings.TrimSpace(prompt)},
	}, provider.Options{
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     cfg.UpstreamTimeout,
	})
	if err != nil {
		return err
	}

	text, err := resp.Text()
	if err != nil {
		return err
	}
	usage := resp.Usage()
	log.Debug().Int64("input_tokens", usage.InputTokens).Int64("completion_tokens", usage.CompletionTokens).Msg("completion finished")
	_, err = fmt.Fprintln(out, text)
	return err
}
