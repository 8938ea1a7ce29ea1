package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// Generator 实现了 port.TextGenerator 接口
type Generator struct {
	client      *genai.Client
	modelName   string
	temperature *float32
	logger      *slog.Logger
}

// Config Gemini 客户端配置。BaseURL 为空时使用官方地址。
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
}

// NewGenerator 创建 Gemini 客户端
func NewGenerator(ctx context.Context, cfg Config, logger *slog.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "gemini api key is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeAIProcessing, "create gemini client", err)
	}
	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}
	return &Generator{
		client:      client,
		modelName:   name,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// buildConfig 组装请求参数。useSearch 为 true 时挂上 Google Search 工具，
// 此时不能强制 JSON 输出，由调用方自行清洗。
func buildConfig(temperature *float32, useSearch bool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{Temperature: temperature}
	if useSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// Generate 生成文本
func (g *Generator) Generate(ctx context.Context, prompt string, useSearch bool) (*domain.Generation, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), buildConfig(g.temperature, useSearch))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeAIProcessing, "gemini generate", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	gen := &domain.Generation{Text: text, Usage: usageOf(resp)}
	g.logger.Debug("gemini generation done",
		"model", g.modelName,
		"search", useSearch,
		"total_tokens", gen.Usage.TotalTokens,
	)
	return gen, nil
}

// responseText 拼接第一个候选的所有文本片段，跳过思考过程
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", common.NewError(common.ErrCodeAIProcessing, "gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", common.NewError(common.ErrCodeAIProcessing, fmt.Sprintf("gemini returned no text (finish reason %q)", resp.Candidates[0].FinishReason))
	}
	return sb.String(), nil
}

func usageOf(resp *genai.GenerateContentResponse) domain.Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return domain.Usage{}
	}
	return domain.Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}
