package service

import (
	"context"
	"strings"
	"time"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/port"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	DefaultStatsDays = 7
)

// QueryService 只读查询，供 HTTP 和 MCP 使用
type QueryService struct {
	store    port.SnapshotStore
	now      func() time.Time
	location *time.Location
}

func NewQueryService(store port.SnapshotStore, location *time.Location) *QueryService {
	if location == nil {
		location = time.UTC
	}
	return &QueryService{store: store, now: time.Now, location: location}
}

// WithClock 替换时钟
func (q *QueryService) WithClock(now func() time.Time) *QueryService {
	q.now = now
	return q
}

// Today 当前时区下的采集日期
func (q *QueryService) Today() time.Time {
	return domain.DateOf(q.now().In(q.location))
}

// ListResult 列表查询结果。Total 为本次返回的条数，Matched 为满足条件的总数
type ListResult struct {
	Items   []*domain.Snapshot
	Total   int
	Matched int64
	Date    time.Time
}

// List 查询某天的快照，date 为零值时取今天
func (q *QueryService) List(ctx context.Context, date time.Time, language string, period domain.Period, limit int) (*ListResult, error) {
	if date.IsZero() {
		date = q.Today()
	}
	date = domain.DateOf(date)
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	f := domain.SnapshotFilter{Date: &date, Language: language, Period: period}
	matched, err := q.store.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	f.Limit = limit
	items, err := q.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: len(items), Matched: matched, Date: date}, nil
}

func (q *QueryService) Get(ctx context.Context, id uint) (*domain.Snapshot, error) {
	return q.store.Get(ctx, id)
}

// Stats 统计 [today-days, today] 窗口内的快照
func (q *QueryService) Stats(ctx context.Context, days int) (*domain.TrendingStats, error) {
	if days < 0 {
		return nil, common.NewError(common.ErrCodeInvalidInput, "days must not be negative")
	}
	if days == 0 {
		days = DefaultStatsDays
	}
	to := q.Today()
	from := to.AddDate(0, 0, -days)

	snaps, err := q.store.List(ctx, domain.SnapshotFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	stats := &domain.TrendingStats{
		Days:          days,
		From:          from,
		To:            to,
		TotalProjects: len(snaps),
		LanguageStats: map[string]domain.LanguageStat{},
		DateStats:     map[string]int{},
	}
	for _, s := range snaps {
		lang := strings.TrimSpace(s.Language)
		if lang == "" {
			lang = domain.UnknownLanguage
		}
		ls := stats.LanguageStats[lang]
		ls.Count++
		ls.TotalStars += s.Stars
		ls.TotalCurrentStars += s.CurrentPeriodStars
		stats.LanguageStats[lang] = ls
		stats.DateStats[s.CollectionDate.Format(time.DateOnly)]++
	}
	return stats, nil
}
