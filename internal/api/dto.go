package api

import (
	"time"

	"github-trending-digest/internal/domain"
)

// SnapshotDTO 对外输出的快照，时间统一格式化为字符串
type SnapshotDTO struct {
	ID                 uint   `json:"id"`
	Author             string `json:"author"`
	Name               string `json:"name"`
	FullName           string `json:"full_name"`
	URL                string `json:"url"`
	Description        string `json:"description"`
	Language           string `json:"language"`
	Stars              int    `json:"stars"`
	Forks              int    `json:"forks"`
	CurrentPeriodStars int    `json:"current_period_stars"`
	Avatar             string `json:"avatar"`
	CollectionDate     string `json:"collection_date"`
	Period             string `json:"period,omitempty"`
	AIAnalysis         any    `json:"ai_analysis"`
	ExtraData          any    `json:"extra_data,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// toDTO detail 为 true 时带上 period、extra_data 和 created_at
func toDTO(s *domain.Snapshot, detail bool) SnapshotDTO {
	dto := SnapshotDTO{
		ID:                 s.ID,
		Author:             s.Author,
		Name:               s.Name,
		FullName:           s.FullName,
		URL:                s.URL,
		Description:        s.Description,
		Language:           s.Language,
		Stars:              s.Stars,
		Forks:              s.Forks,
		CurrentPeriodStars: s.CurrentPeriodStars,
		Avatar:             s.Avatar,
		CollectionDate:     s.CollectionDate.Format(time.DateOnly),
		AIAnalysis:         s.Analysis(),
	}
	if detail {
		dto.Period = string(s.Period)
		dto.ExtraData = s.Extra()
		if !s.CreatedAt.IsZero() {
			dto.CreatedAt = s.CreatedAt.Format(time.RFC3339)
		}
	}
	return dto
}

func toDTOs(items []*domain.Snapshot) []SnapshotDTO {
	out := make([]SnapshotDTO, 0, len(items))
	for _, s := range items {
		out = append(out, toDTO(s, false))
	}
	return out
}

// StatsDTO 统计结果
type StatsDTO struct {
	Period        StatsPeriod                    `json:"period"`
	TotalProjects int                            `json:"total_projects"`
	LanguageStats map[string]domain.LanguageStat `json:"language_stats"`
	DateStats     map[string]int                 `json:"date_stats"`
}

type StatsPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
}

func toStatsDTO(s *domain.TrendingStats) StatsDTO {
	return StatsDTO{
		Period: StatsPeriod{
			StartDate: s.From.Format(time.DateOnly),
			EndDate:   s.To.Format(time.DateOnly),
			Days:      s.Days,
		},
		TotalProjects: s.TotalProjects,
		LanguageStats: s.LanguageStats,
		DateStats:     s.DateStats,
	}
}
