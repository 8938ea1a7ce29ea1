package domain

import "time"

// UnknownLanguage 统计时空语言的名称
const UnknownLanguage = "Unknown"

// LanguageStat 单个语言的汇总
type LanguageStat struct {
	Count             int `json:"count"`
	TotalStars        int `json:"total_stars"`
	TotalCurrentStars int `json:"total_current_stars"`
}

// TrendingStats 时间窗口内的统计
type TrendingStats struct {
	Days          int                     `json:"-"`
	From          time.Time               `json:"-"`
	To            time.Time               `json:"-"`
	TotalProjects int                     `json:"total_projects"`
	LanguageStats map[string]LanguageStat `json:"language_stats"`
	DateStats     map[string]int          `json:"date_stats"`
}

// BackfillResult 补全任务的结果
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}
