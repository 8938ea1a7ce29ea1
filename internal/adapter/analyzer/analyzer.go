package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/port"
)

const (
	DefaultReplyLanguage = "English"
	DefaultTimeout       = 60 * time.Second
)

// Analyzer 实现了 port.Enricher 接口。
// Analyze 永远返回可用的分析结果，失败时走兜底逻辑。
type Analyzer struct {
	generator     port.TextGenerator
	logger        *slog.Logger
	timeout       time.Duration
	replyLanguage string
}

// Option 配置 Analyzer
type Option func(*Analyzer)

// WithTimeout 单次生成的超时时间
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithReplyLanguage 要求模型用哪种语言回答
func WithReplyLanguage(lang string) Option {
	return func(a *Analyzer) {
		if lang = strings.TrimSpace(lang); lang != "" {
			a.replyLanguage = lang
		}
	}
}

// New 创建分析器
func New(generator port.TextGenerator, logger *slog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{
		generator:     generator,
		logger:        logger,
		timeout:       DefaultTimeout,
		replyLanguage: DefaultReplyLanguage,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze 调用生成服务（开启联网搜索）分析单个项目
func (a *Analyzer) Analyze(ctx context.Context, item *domain.TrendingItem) (result domain.AIAnalysis) {
	log := a.logger.With("repo", item.FullName, "period", item.Period)

	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panicked, using fallback", "panic", r)
			result = Fallback(item, fmt.Sprintf("analysis panicked: %v", r))
		}
	}()

	if a.generator == nil {
		return Fallback(item, "text generator not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	gen, err := a.generator.Generate(callCtx, BuildPrompt(item, a.replyLanguage), true)
	if err != nil {
		log.Warn("generation failed, using fallback", "error", err)
		return Fallback(item, err.Error())
	}
	if gen == nil {
		log.Warn("generation returned nothing, using fallback")
		return Fallback(item, errEmptyReply.Error())
	}

	analysis, err := decodeReply(gen.Text)
	if err != nil {
		log.Warn("decode analysis failed, using fallback", "error", err)
		return Fallback(item, err.Error())
	}

	log.Info("analysis generated",
		"score", analysis.RecommendationScore,
		"total_tokens", gen.Usage.TotalTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return normalize(analysis, item)
}
