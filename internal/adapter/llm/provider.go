// Package llm picks the text generation backend from configuration.
package llm

import (
	"context"
	"log/slog"

	"github-trending-digest/internal/adapter/gemini"
	"github-trending-digest/internal/adapter/openai"
	"github-trending-digest/internal/config"
	"github-trending-digest/internal/port"
)

// NewGenerator 按供应商创建生成服务。没有 API Key 时返回 nil，分析全部走兜底逻辑。
func NewGenerator(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (port.TextGenerator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		logger.Warn("⚠️ 未配置 AI API Key，分析结果将使用兜底内容", "provider", cfg.Provider)
		return nil, nil
	}
	temperature := float32(cfg.Temperature)

	if cfg.Provider == config.ProviderOpenAI {
		gen, err := openai.NewGenerator(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: &temperature,
		}, logger)
		if err != nil {
			return nil, err
		}
		return gen, nil
	}

	gen, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: &temperature,
	}, logger)
	if err != nil {
		return nil, err
	}
	return gen, nil
}
