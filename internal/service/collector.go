package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/port"

	"github.com/google/uuid"
)

// ErrRunInProgress 同一个进程内已有采集在运行
var ErrRunInProgress = errors.New("collection already in progress")

// Deps 采集服务依赖的组件，Inspector、Publisher、Notifier 可以为空
type Deps struct {
	Fetcher   port.PageFetcher
	Parser    port.ListingParser
	Enricher  port.Enricher
	Store     port.SnapshotStore
	Inspector port.RepoInspector
	Publisher port.EventPublisher
	Notifier  port.Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// Config 采集参数
type Config struct {
	Periods     []domain.Period
	Language    string
	Limit       int
	Concurrency int
	RunTimeout  time.Duration // 0 表示不限制
	Location    *time.Location
}

// DefaultConfig 默认采集日榜和周榜，每个周期取前 20 个
func DefaultConfig() Config {
	return Config{
		Periods:     []domain.Period{domain.PeriodDaily, domain.PeriodWeekly},
		Limit:       20,
		Concurrency: 1,
		Location:    time.UTC,
	}
}

// CollectionService 负责一次完整的采集：抓取 → 解析 → 去重 → 分析 → 入库
type CollectionService struct {
	deps    Deps
	cfg     Config
	logger  *slog.Logger
	running atomic.Bool
}

// NewCollectionService 创建采集服务，零值配置项使用默认值
func NewCollectionService(deps Deps, cfg Config) *CollectionService {
	def := DefaultConfig()
	if len(cfg.Periods) == 0 {
		cfg.Periods = def.Periods
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &CollectionService{deps: deps, cfg: cfg, logger: deps.Logger}
}

// Running 是否有采集正在进行
func (s *CollectionService) Running() bool {
	return s.running.Load()
}

// Run 同步执行一次采集。单个条目的失败不会影响整体状态，
// 只有外层结构出错（缺少依赖、context 取消、panic、重复运行）才会返回 error 状态。
func (s *CollectionService) Run(ctx context.Context) *domain.RunResult {
	if !s.running.CompareAndSwap(false, true) {
		return s.rejected()
	}
	defer s.running.Store(false)
	return s.run(ctx)
}

// Start 在后台执行一次采集，结果写入返回的 channel。已有采集在运行时返回 ErrRunInProgress。
func (s *CollectionService) Start(ctx context.Context) (<-chan *domain.RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	done := make(chan *domain.RunResult, 1)
	go func() {
		defer s.running.Store(false)
		done <- s.run(ctx)
		close(done)
	}()
	return done, nil
}

func (s *CollectionService) rejected() *domain.RunResult {
	now := s.deps.Now()
	s.logger.Warn("collection rejected", "error", ErrRunInProgress)
	return &domain.RunResult{
		RunID:     uuid.NewString(),
		Status:    domain.RunError,
		Date:      domain.DateOf(now.In(s.cfg.Location)),
		Message:   ErrRunInProgress.Error(),
		Periods:   []domain.PeriodResult{},
		StartedAt: now,
	}
}

func (s *CollectionService) run(ctx context.Context) (result *domain.RunResult) {
	started := s.deps.Now()
	result = &domain.RunResult{
		RunID:     uuid.NewString(),
		Status:    domain.RunSuccess,
		Date:      domain.DateOf(started.In(s.cfg.Location)),
		Periods:   []domain.PeriodResult{},
		StartedAt: started,
	}
	logger := s.logger.With("run_id", result.RunID)

	defer func() {
		if r := recover(); r != nil {
			result.Status = domain.RunError
			result.Message = fmt.Sprintf("panic: %v", r)
			logger.Error("collection panicked", "panic", r)
		}
		result.Duration = s.deps.Now().Sub(started)
		s.notify(ctx, logger, result)
	}()

	if err := s.validate(); err != nil {
		result.Status = domain.RunError
		result.Message = err.Error()
		logger.Error("collection aborted", "error", err)
		return result
	}

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	fmt.Printf("🚀 开始采集 GitHub Trending (%s)...\n", result.DateString())
	for _, period := range s.cfg.Periods {
		pr, err := s.collectPeriod(ctx, logger, period, result.Date)
		result.Periods = append(result.Periods, pr)
		result.TotalProcessed += pr.Processed
		result.TotalCreated += pr.Created
		if err != nil {
			result.Status = domain.RunError
			result.Message = err.Error()
			logger.Error("collection interrupted", "period", period, "error", err)
			return result
		}
	}

	fmt.Printf("🎉 采集完成，共处理 %d 个项目，新增 %d 个\n", result.TotalProcessed, result.TotalCreated)
	logger.Info("collection finished",
		"processed", result.TotalProcessed,
		"created", result.TotalCreated,
	)
	return result
}

func (s *CollectionService) validate() error {
	switch {
	case s.deps.Fetcher == nil:
		return common.NewError(common.ErrCodeInternal, "page fetcher not configured")
	case s.deps.Parser == nil:
		return common.NewError(common.ErrCodeInternal, "listing parser not configured")
	case s.deps.Enricher == nil:
		return common.NewError(common.ErrCodeInternal, "enricher not configured")
	case s.deps.Store == nil:
		return common.NewError(common.ErrCodeInternal, "snapshot store not configured")
	}
	return nil
}

// pending 等待分析和入库的新条目，分析结束后关闭 done
type pending struct {
	item     domain.TrendingItem
	analysis domain.AIAnalysis
	failed   bool
	done     chan struct{}
}

// collectPeriod 处理单个周期。只有 context 被取消时才返回 error。
func (s *CollectionService) collectPeriod(ctx context.Context, logger *slog.Logger, period domain.Period, date time.Time) (domain.PeriodResult, error) {
	pr := domain.PeriodResult{Period: period}
	logger = logger.With("period", period)

	if err := ctx.Err(); err != nil {
		return pr, err
	}

	fmt.Printf("📥 正在抓取 %s 榜单...\n", period)
	markup, err := s.deps.Fetcher.Fetch(ctx, s.cfg.Language, period)
	if err != nil || markup == "" {
		logger.Warn("no markup fetched, skipping period", "error", err)
		return pr, ctx.Err()
	}

	records := s.deps.Parser.Parse(markup, s.cfg.Language, period)
	if len(records) == 0 {
		logger.Warn("no records parsed, skipping period")
		return pr, nil
	}

	items := FormatRecords(records, date)
	if len(items) > s.cfg.Limit {
		items = items[:s.cfg.Limit]
	}
	pr.Fetched = len(items)
	fmt.Printf("✅ %s 榜单获取 %d 个项目\n", period, len(items))

	// 1. 防重：已存在的不再分析
	var batch []*pending
	for i := range items {
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		item := items[i]
		pr.Processed++
		exists, err := s.exists(ctx, &item)
		if err != nil {
			pr.Failed++
			logger.Error("existence check failed", "repo", item.FullName, "error", err)
			continue
		}
		if exists {
			pr.Skipped++
			fmt.Printf("⏭️ 项目 %s 已存在\n", item.FullName)
			continue
		}
		batch = append(batch, &pending{item: item, done: make(chan struct{})})
	}

	// 2. 后台分析，3. 按原顺序逐个等待并立即入库
	wait := s.enrichAll(ctx, logger, batch)
	defer wait()

	for _, p := range batch {
		<-p.done
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		if p.failed {
			pr.Failed++
			continue
		}
		created, err := s.persist(ctx, logger, p)
		if err != nil {
			pr.Failed++
			logger.Error("persist failed", "repo", p.item.FullName, "error", err)
			continue
		}
		if created {
			pr.Created++
			fmt.Printf("💾 已保存项目 %s\n", p.item.FullName)
		} else {
			pr.Skipped++
			logger.Info("snapshot created concurrently, skipped", "repo", p.item.FullName)
		}
	}
	return pr, nil
}

func (s *CollectionService) exists(ctx context.Context, item *domain.TrendingItem) (exists bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.deps.Store.Exists(ctx, item.CollectionDate, item.FullName, item.Period)
}

// enrichAll 启动固定数量的 worker 分析新条目，返回等待全部 worker 退出的函数。
// 单个条目 panic 只标记失败。
func (s *CollectionService) enrichAll(ctx context.Context, logger *slog.Logger, batch []*pending) (wait func()) {
	if len(batch) == 0 {
		return func() {}
	}
	workers := s.cfg.Concurrency
	if workers > len(batch) {
		workers = len(batch)
	}
	fmt.Printf("🧠 开始分析 %d 个新项目 (并发 %d)...\n", len(batch), workers)

	jobs := make(chan *pending, len(batch))
	for _, p := range batch {
		jobs <- p
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.enrichWorker(ctx, logger, jobs, &wg, i+1)
	}
	return wg.Wait
}

func (s *CollectionService) enrichWorker(ctx context.Context, logger *slog.Logger, jobs <-chan *pending, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	for p := range jobs {
		if ctx.Err() != nil {
			p.failed = true
			close(p.done)
			continue
		}
		s.enrichOne(ctx, logger, p, workerID)
	}
}

func (s *CollectionService) enrichOne(ctx context.Context, logger *slog.Logger, p *pending, workerID int) {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.failed = true
			logger.Error("enrichment panicked", "repo", p.item.FullName, "worker", workerID, "panic", r)
		}
	}()

	p.analysis = s.deps.Enricher.Analyze(ctx, &p.item)
	if p.analysis.IsFallback() {
		logger.Warn("analysis fell back", "repo", p.item.FullName, "error", p.analysis.Error)
	}

	if s.deps.Inspector != nil {
		details, err := s.deps.Inspector.Inspect(ctx, p.item.FullName)
		if err != nil {
			logger.Warn("repo inspection failed", "repo", p.item.FullName, "error", err)
			return
		}
		p.item.ExtraData.GitHub = details
	}
}

func (s *CollectionService) persist(ctx context.Context, logger *slog.Logger, p *pending) (created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	snap := p.item.ToSnapshot(p.analysis)
	created, err = s.deps.Store.Create(ctx, snap)
	if err != nil || !created {
		return created, err
	}

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishCreated(ctx, snap); err != nil {
			logger.Warn("publish event failed", "repo", snap.FullName, "error", err)
		}
	}
	return true, nil
}

func (s *CollectionService) notify(ctx context.Context, logger *slog.Logger, result *domain.RunResult) {
	if s.deps.Notifier == nil {
		return
	}
	// 采集超时或被取消后仍然尝试推送报告
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.deps.Notifier.NotifyRun(notifyCtx, result); err != nil {
		logger.Warn("run report not sent", "error", err)
	}
}
