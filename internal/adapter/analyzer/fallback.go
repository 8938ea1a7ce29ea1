package analyzer

import (
	"fmt"
	"strings"

	"github-trending-digest/internal/domain"
)

const (
	genericTitle    = "Trending open-source project"
	genericUseCases = "Developers and teams working with the related technology stack"
	genericTech     = "Other"
	summaryLimit    = 100
)

// FallbackTitle 根据语言生成标题
func FallbackTitle(language string) string {
	if lang := strings.TrimSpace(language); lang != "" {
		return lang + " open-source project"
	}
	return genericTitle
}

// FallbackSummary 用全名加截断后的描述拼出简介
func FallbackSummary(fullName, description string) string {
	desc := strings.TrimSpace(description)
	if desc == "" {
		desc = noDescription
	}
	return fullName + " is a trending open-source project. " + truncate(desc, summaryLimit)
}

// Fallback 生成确定性的兜底分析，reason 记录失败原因
func Fallback(item *domain.TrendingItem, reason string) domain.AIAnalysis {
	lang := strings.TrimSpace(item.Language)
	desc := strings.TrimSpace(item.Description)
	if desc == "" {
		desc = noDescription
	}
	if reason == "" {
		reason = "analysis unavailable"
	}

	techStack := []string{genericTech}
	langLabel := "unknown"
	if lang != "" {
		techStack = []string{lang}
		langLabel = lang
	}

	return domain.AIAnalysis{
		Title:        FallbackTitle(lang),
		Summary:      FallbackSummary(item.FullName, desc),
		CoreFeatures: truncate(desc, summaryLimit),
		TechStack:    techStack,
		UseCases:     genericUseCases,
		Highlights: []string{
			fmt.Sprintf("Stars: %d", item.Stars),
			fmt.Sprintf("New stars this period: %d", item.CurrentPeriodStars),
			fmt.Sprintf("Language: %s", langLabel),
			"Trending on GitHub",
		},
		RecommendationScore: min(100, 50+item.CurrentPeriodStars),
		Tags:                []string{langLabel, "github", "trending"},
		Error:               reason,
	}
}

// normalize 补齐真实模型输出里缺失的字段
func normalize(a domain.AIAnalysis, item *domain.TrendingItem) domain.AIAnalysis {
	if strings.TrimSpace(a.Title) == "" {
		a.Title = FallbackTitle(item.Language)
	}
	if strings.TrimSpace(a.Summary) == "" {
		a.Summary = FallbackSummary(item.FullName, item.Description)
	}
	if a.TechStack == nil {
		a.TechStack = []string{}
	}
	if a.Highlights == nil {
		a.Highlights = []string{}
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	a.RecommendationScore = max(0, min(100, a.RecommendationScore))
	a.Error = ""
	return a
}

const ellipsis = "..."

// truncate 截断到 n 个字符以内，省略号也计入长度
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= len(ellipsis) {
		return string(r[:n])
	}
	return string(r[:n-len(ellipsis)]) + ellipsis
}
