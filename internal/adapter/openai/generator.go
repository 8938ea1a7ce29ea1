package openai

import (
	"context"
	"log/slog"
	"strings"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel   = "deepseek-chat"
	DeepSeekAPIURL = "https://api.deepseek.com/v1/"
)

// Config OpenAI 兼容接口的配置（DeepSeek、Moonshot 等）
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
}

// Generator 实现了 port.TextGenerator 接口
type Generator struct {
	client      openai.Client
	model       string
	temperature *float32
	logger      *slog.Logger
}

// NewGenerator 创建客户端。SDK 自带的重试被关闭，失败交给上层兜底。
func NewGenerator(cfg Config, logger *slog.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "openai api key is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DeepSeekAPIURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return &Generator{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Generate 调用 chat completions。兼容接口没有联网搜索，useSearch 只记录日志。
func (g *Generator) Generate(ctx context.Context, prompt string, useSearch bool) (*domain.Generation, error) {
	if useSearch {
		g.logger.Debug("search augmentation not supported, ignoring", "model", g.model)
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(g.model),
	}
	if g.temperature != nil {
		params.Temperature = openai.Float(float64(*g.temperature))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeAIProcessing, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, common.NewError(common.ErrCodeAIProcessing, "chat completion returned no choices")
	}

	return &domain.Generation{
		Text: resp.Choices[0].Message.Content,
		Usage: domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}
