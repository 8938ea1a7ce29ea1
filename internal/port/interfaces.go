package port

import (
	"context"
	"time"

	"github-trending-digest/internal/domain"
)

// PageFetcher (抓取器): 拉取某个语言、某个周期的趋势榜原始页面
type PageFetcher interface {
	// 失败时返回 "" 和 FETCH_ERROR，不会 panic
	Fetch(ctx context.Context, language string, period domain.Period) (string, error)
}

// ListingParser (解析器): 把页面解析成记录，坏掉的条目直接丢弃
type ListingParser interface {
	Parse(markup, languageHint string, period domain.Period) []domain.ListingRecord
}

// TextGenerator (生成服务): Gemini、DeepSeek 等大模型的统一抽象
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, useSearch bool) (*domain.Generation, error)
}

// Enricher (分析师): 为单个项目生成结构化分析，永远返回可用结果
type Enricher interface {
	Analyze(ctx context.Context, item *domain.TrendingItem) domain.AIAnalysis
}

// RepoInspector (侦察兵): 通过 GitHub API 补充仓库详情
type RepoInspector interface {
	Inspect(ctx context.Context, fullName string) (*domain.RepoDetails, error)
}

// SnapshotStore (仓库管理员): 快照的存储和查询
type SnapshotStore interface {
	// Exists 判断未删除的快照是否已存在 (防重)
	Exists(ctx context.Context, date time.Time, fullName string, period domain.Period) (bool, error)

	// Create 插入快照；主键冲突时跳过并返回 false
	Create(ctx context.Context, s *domain.Snapshot) (bool, error)

	List(ctx context.Context, f domain.SnapshotFilter) ([]*domain.Snapshot, error)
	Count(ctx context.Context, f domain.SnapshotFilter) (int64, error)
	Get(ctx context.Context, id uint) (*domain.Snapshot, error)

	// UpdateAnalysis 只给补全任务用，采集流程不会调用
	UpdateAnalysis(ctx context.Context, id uint, a domain.AIAnalysis) error

	Ping(ctx context.Context) error
}

// EventPublisher (广播员): 新快照入库后发布事件
type EventPublisher interface {
	PublishCreated(ctx context.Context, s *domain.Snapshot) error
}

// Notifier (信使): 推送一次采集的运行报告到飞书
type Notifier interface {
	NotifyRun(ctx context.Context, result *domain.RunResult) error
}
