package service

import (
	"time"

	"github-trending-digest/internal/domain"
)

// FormatRecords 把解析结果转换为统一格式，一对一并保持顺序
func FormatRecords(records []domain.ListingRecord, collectionDate time.Time) []domain.TrendingItem {
	date := domain.DateOf(collectionDate)
	items := make([]domain.TrendingItem, 0, len(records))
	for _, r := range records {
		fullName := r.FullName
		if r.Author != "" && r.Name != "" {
			fullName = r.Author + "/" + r.Name
		}
		builtBy := r.BuiltBy
		if builtBy == nil {
			builtBy = []domain.Builder{}
		}
		items = append(items, domain.TrendingItem{
			Author:             r.Author,
			Name:               r.Name,
			FullName:           fullName,
			URL:                r.URL,
			Description:        r.Description,
			Language:           r.Language,
			Stars:              r.Stars,
			Forks:              r.Forks,
			CurrentPeriodStars: r.CurrentPeriodStars,
			Avatar:             r.Avatar,
			CollectionDate:     date,
			Period:             r.Period,
			ExtraData: domain.ExtraData{
				LanguageColor: r.LanguageColor,
				BuiltBy:       builtBy,
			},
		})
	}
	return items
}
