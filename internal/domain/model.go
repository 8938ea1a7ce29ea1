package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Period 趋势榜的统计窗口
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod 解析 "daily" / "weekly" / "monthly"（大小写不敏感）
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Keyword 返回榜单页面上描述本期新增 star 时使用的词
func (p Period) Keyword() string {
	switch p {
	case PeriodWeekly:
		return "week"
	case PeriodMonthly:
		return "month"
	default:
		return "today"
	}
}

// ErrSnapshotNotFound 快照不存在或已被软删除
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot 某个仓库在某个采集日、某个周期下的一次趋势快照。
// (collection_date, full_name, period) 唯一。
type Snapshot struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	Author             string    `json:"author" gorm:"size:255"`
	Name               string    `json:"name" gorm:"size:255"`
	FullName           string    `json:"full_name" gorm:"size:255;not null;uniqueIndex:idx_snapshot_key,priority:2"`
	URL                string    `json:"url" gorm:"size:512"`
	Description        string    `json:"description" gorm:"type:text"`
	Language           string    `json:"language" gorm:"size:100;index"`
	Stars              int       `json:"stars"`
	Forks              int       `json:"forks"`
	CurrentPeriodStars int       `json:"current_period_stars"`
	Avatar             string    `json:"avatar" gorm:"size:512"`
	CollectionDate     time.Time `json:"collection_date" gorm:"type:date;not null;uniqueIndex:idx_snapshot_key,priority:1"`
	Period             Period    `json:"period" gorm:"size:20;not null;uniqueIndex:idx_snapshot_key,priority:3"`

	AIAnalysis datatypes.JSONType[AIAnalysis] `json:"ai_analysis"`
	ExtraData  datatypes.JSONType[ExtraData]  `json:"extra_data"`

	IsDeleted bool      `json:"-" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (Snapshot) TableName() string {
	return "trending_snapshots"
}

// Analysis 返回解码后的 AI 分析
func (s *Snapshot) Analysis() AIAnalysis {
	return s.AIAnalysis.Data()
}

// Extra 返回解码后的附加数据
func (s *Snapshot) Extra() ExtraData {
	return s.ExtraData.Data()
}

// AIAnalysis 生成服务返回的结构化分析，或失败时的兜底内容。
// Error 只出现在兜底内容中。
type AIAnalysis struct {
	Title               string   `json:"title"`
	Summary             string   `json:"summary"`
	CoreFeatures        string   `json:"core_features"`
	TechStack           []string `json:"tech_stack"`
	UseCases            string   `json:"use_cases"`
	Highlights          []string `json:"highlights"`
	RecommendationScore int      `json:"recommendation_score"`
	Tags                []string `json:"tags"`
	Error               string   `json:"error,omitempty"`
}

// IsFallback 是否为兜底内容
func (a AIAnalysis) IsFallback() bool {
	return a.Error != ""
}

// Builder 榜单上 "Built by" 的贡献者
type Builder struct {
	Username string `json:"username"`
	Href     string `json:"href"`
	Avatar   string `json:"avatar"`
}

// RepoDetails GitHub API 补充的仓库信息
type RepoDetails struct {
	Topics     []string  `json:"topics"`
	License    string    `json:"license,omitempty"`
	Homepage   string    `json:"homepage,omitempty"`
	OpenIssues int       `json:"open_issues"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	PushedAt   time.Time `json:"pushed_at,omitempty"`
}

// ExtraData 抓取时附带的其他信息
type ExtraData struct {
	LanguageColor string       `json:"language_color"`
	BuiltBy       []Builder    `json:"built_by"`
	GitHub        *RepoDetails `json:"github,omitempty"`
}

// DateOf 把 t 所在时区的日历日期折算为 UTC 零点，作为采集日期
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SetAnalysis 替换 AI 分析
func (s *Snapshot) SetAnalysis(a AIAnalysis) {
	s.AIAnalysis = datatypes.NewJSONType(a)
}
