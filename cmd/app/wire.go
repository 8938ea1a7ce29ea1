package main

import (
	"context"
	"fmt"
	"log/slog"

	"github-trending-digest/internal/adapter/analyzer"
	"github-trending-digest/internal/adapter/feishu"
	"github-trending-digest/internal/adapter/github"
	"github-trending-digest/internal/adapter/kafka"
	"github-trending-digest/internal/adapter/llm"
	"github-trending-digest/internal/adapter/repository"
	"github-trending-digest/internal/adapter/trending"
	"github-trending-digest/internal/config"
	"github-trending-digest/internal/service"

	gormlogger "gorm.io/gorm/logger"
)

// app 持有一次命令执行所需的全部组件
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *repository.GormRepo
	query     *service.QueryService
	collector *service.CollectionService
	closers   []func() error
}

// openStore 初始化数据库 (带重试)
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repository.GormRepo, error) {
	level := gormlogger.Warn
	if cfg.Log.Level == "debug" {
		level = gormlogger.Info
	}
	return repository.Open(ctx, repository.Config{
		Backend:     cfg.Database.Backend,
		DSN:         cfg.DatabaseDSN(),
		MaxOpen:     cfg.Database.MaxOpen,
		MaxIdle:     cfg.Database.MaxIdle,
		PingRetries: 3,
		LogLevel:    level,
	}, logger)
}

// buildApp 组装依赖。withCollector 为 false 时只初始化查询相关的组件。
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, withCollector bool) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("DB 初始化失败: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		query:   service.NewQueryService(store, loc),
		closers: []func() error{store.Close},
	}
	if !withCollector {
		return a, nil
	}

	generator, err := llm.NewGenerator(ctx, cfg.AI, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("AI 初始化失败: %w", err)
	}

	deps := service.Deps{
		Fetcher: trending.NewFetcher(logger,
			trending.WithBaseURL(cfg.Trending.BaseURL),
			trending.WithTimeout(cfg.Trending.Timeout),
		),
		Parser: trending.NewParser(logger),
		Enricher: analyzer.New(generator, logger,
			analyzer.WithTimeout(cfg.AI.Timeout),
			analyzer.WithReplyLanguage(cfg.AI.ReplyLanguage),
		),
		Store:  store,
		Logger: logger,
	}

	if cfg.GitHub.Inspect {
		inspector, err := github.NewInspector(cfg.GitHub.Token, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Inspector = inspector
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Publisher = publisher
		a.closers = append(a.closers, publisher.Close)
	}

	if cfg.Feishu.Webhook != "" {
		deps.Notifier = feishu.NewNotifier(cfg.Feishu.Webhook, logger)
	}

	periods, err := cfg.Periods()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.collector = service.NewCollectionService(deps, service.Config{
		Periods:     periods,
		Language:    cfg.Trending.Language,
		Limit:       cfg.Trending.Limit,
		Concurrency: cfg.AI.Concurrency,
		RunTimeout:  cfg.Collector.RunTimeout,
		Location:    loc,
	})
	return a, nil
}

// Close 按相反顺序释放资源
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
