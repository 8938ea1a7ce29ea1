package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendSQLite   = "sqlite"
)

// Config 数据库连接配置
type Config struct {
	Backend string
	DSN     string
	MaxOpen int
	MaxIdle int
	// 连接失败时的重试次数，0 表示不重试
	PingRetries int
	LogLevel    logger.LogLevel
}

// GormRepo 实现了 port.SnapshotStore 接口
type GormRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func dialector(backend, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(backend) {
	case BackendPostgres, "postgresql", "":
		return postgres.Open(dsn), nil
	case BackendMySQL:
		return mysql.Open(dsn), nil
	case BackendSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, common.NewError(common.ErrCodeInvalidInput, fmt.Sprintf("unsupported database backend %q", backend))
	}
}

// Open 连接数据库、确认可用并自动迁移表结构
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*GormRepo, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DSN == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "database dsn is empty")
	}
	d, err := dialector(cfg.Backend, cfg.DSN)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "连接数据库失败", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "获取连接池失败", err)
	}
	if cfg.Backend == BackendSQLite && strings.Contains(cfg.DSN, ":memory:") {
		// 每个连接都是一个独立的内存库
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpen)
		}
		if cfg.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdle)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	err = common.Do(ctx, func() error {
		return sqlDB.PingContext(ctx)
	},
		common.WithMaxRetries(cfg.PingRetries),
		common.WithInitialDelay(time.Second),
		common.WithOnRetry(func(attempt int, err error) {
			log.Warn("database not ready, retrying", "attempt", attempt, "error", err)
		}),
	)
	if err != nil {
		_ = sqlDB.Close()
		return nil, common.WrapError(common.ErrCodeDatabase, "数据库不可用", err)
	}

	repo := NewGormRepo(db, log)
	if err := repo.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Info("database ready", "backend", cfg.Backend)
	return repo, nil
}

// NewGormRepo 包装已有连接，不做迁移
func NewGormRepo(db *gorm.DB, log *slog.Logger) *GormRepo {
	if log == nil {
		log = slog.Default()
	}
	return &GormRepo{db: db, logger: log}
}

// Migrate 建表并创建 (collection_date, full_name, period) 唯一索引
func (r *GormRepo) Migrate() error {
	if err := r.db.AutoMigrate(&domain.Snapshot{}); err != nil {
		return common.WrapError(common.ErrCodeDatabase, "数据库迁移失败", err)
	}
	return nil
}

// DB 暴露底层连接，给导出等批量任务使用
func (r *GormRepo) DB() *gorm.DB {
	return r.db
}

func (r *GormRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Exists 检查某天某周期的快照是否已存在（忽略软删除的记录）
func (r *GormRepo) Exists(ctx context.Context, date time.Time, fullName string, period domain.Period) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Snapshot{}).
		Where("collection_date = ? AND full_name = ? AND period = ? AND is_deleted = ?",
			domain.DateOf(date), fullName, period, false).
		Count(&count).Error
	if err != nil {
		return false, common.WrapError(common.ErrCodeDatabase, "exists query", err)
	}
	return count > 0, nil
}

// Create 插入快照。唯一键冲突时什么都不做并返回 false，
// 并发的两次采集不会产生重复数据，也不会覆盖已有记录。
func (r *GormRepo) Create(ctx context.Context, s *domain.Snapshot) (bool, error) {
	s.CollectionDate = domain.DateOf(s.CollectionDate)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection_date"}, {Name: "full_name"}, {Name: "period"}},
			DoNothing: true,
		}).
		Create(s)
	if result.Error != nil {
		return false, common.WrapError(common.ErrCodeDatabase, "insert snapshot", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *GormRepo) scope(ctx context.Context, f domain.SnapshotFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.Snapshot{}).Where("is_deleted = ?", false)
	if f.Date != nil {
		q = q.Where("collection_date = ?", domain.DateOf(*f.Date))
	}
	if f.From != nil {
		q = q.Where("collection_date >= ?", domain.DateOf(*f.From))
	}
	if f.To != nil {
		q = q.Where("collection_date <= ?", domain.DateOf(*f.To))
	}
	if lang := strings.TrimSpace(f.Language); lang != "" {
		q = q.Where("LOWER(language) LIKE ?", "%"+strings.ToLower(lang)+"%")
	}
	if f.Period != "" {
		q = q.Where("period = ?", f.Period)
	}
	return q
}

// List 按本期新增 star 倒序返回
func (r *GormRepo) List(ctx context.Context, f domain.SnapshotFilter) ([]*domain.Snapshot, error) {
	q := r.scope(ctx, f).Order("current_period_stars DESC").Order("id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []*domain.Snapshot
	if err := q.Find(&out).Error; err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "list snapshots", err)
	}
	return out, nil
}

func (r *GormRepo) Count(ctx context.Context, f domain.SnapshotFilter) (int64, error) {
	var n int64
	if err := r.scope(ctx, f).Count(&n).Error; err != nil {
		return 0, common.WrapError(common.ErrCodeDatabase, "count snapshots", err)
	}
	return n, nil
}

// Get 按 ID 获取，不存在或已软删除时返回 domain.ErrSnapshotNotFound
func (r *GormRepo) Get(ctx context.Context, id uint) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "get snapshot", err)
	}
	return &s, nil
}

// UpdateAnalysis 只更新 ai_analysis 一列
func (r *GormRepo) UpdateAnalysis(ctx context.Context, id uint, a domain.AIAnalysis) error {
	result := r.db.WithContext(ctx).Model(&domain.Snapshot{}).
		Where("id = ?", id).
		Update("ai_analysis", datatypes.NewJSONType(a))
	if result.Error != nil {
		return common.WrapError(common.ErrCodeDatabase, "update analysis", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}
