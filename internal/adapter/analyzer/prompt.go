package analyzer

import (
	"fmt"
	"strings"

	"github-trending-digest/internal/domain"
)

const noDescription = "No description provided"

// analysisKeys 模型必须返回的字段
var analysisKeys = []string{
	"title", "summary", "core_features", "tech_stack",
	"use_cases", "highlights", "recommendation_score", "tags",
}

const promptTemplate = `You are a senior technical analyst who reviews open-source projects on GitHub.
Analyze the following trending repository. Use web search to look up its current state before answering.

Repository: %s
Description: %s
URL: %s
Language: %s
Total stars: %d
Stars gained this %s: %d

Reply in %s. Return ONLY a JSON object with exactly these keys:
{
  "title": "short label for the project (under 10 words)",
  "summary": "2-3 sentence overview",
  "core_features": "what the project does, 1-2 sentences",
  "tech_stack": ["main technologies and frameworks"],
  "use_cases": "typical scenarios and target users",
  "highlights": ["3-4 notable strengths"],
  "recommendation_score": 85,
  "tags": ["short topic tags"]
}
recommendation_score is an integer from 0 to 100 based on quality, activity and popularity.
Do not add any text outside the JSON object.`

// BuildPrompt 生成单个项目的分析 prompt
func BuildPrompt(item *domain.TrendingItem, replyLanguage string) string {
	desc := strings.TrimSpace(item.Description)
	if desc == "" {
		desc = noDescription
	}
	lang := strings.TrimSpace(item.Language)
	if lang == "" {
		lang = "unknown"
	}
	if replyLanguage == "" {
		replyLanguage = DefaultReplyLanguage
	}
	window := "day"
	switch item.Period {
	case domain.PeriodWeekly:
		window = "week"
	case domain.PeriodMonthly:
		window = "month"
	}

	return fmt.Sprintf(promptTemplate,
		item.FullName, desc, item.URL, lang,
		item.Stars, window, item.CurrentPeriodStars,
		replyLanguage,
	)
}
