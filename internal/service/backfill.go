package service

import (
	"context"
	"log/slog"
	"strings"

	"github-trending-digest/internal/adapter/analyzer"
	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/port"
)

const backfillPageSize = 200

// Backfill 为缺少 title 或 summary 的快照补全这两个字段，其它字段不动
func Backfill(ctx context.Context, store port.SnapshotStore, logger *slog.Logger) (domain.BackfillResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res domain.BackfillResult

	for offset := 0; ; offset += backfillPageSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := store.List(ctx, domain.SnapshotFilter{Limit: backfillPageSize, Offset: offset})
		if err != nil {
			return res, err
		}

		for _, snap := range page {
			res.Scanned++
			a, changed := fillMissing(snap)
			if !changed {
				continue
			}
			if err := store.UpdateAnalysis(ctx, snap.ID, a); err != nil {
				logger.Error("backfill update failed", "id", snap.ID, "repo", snap.FullName, "error", err)
				continue
			}
			res.Updated++
			logger.Debug("analysis backfilled", "id", snap.ID, "repo", snap.FullName)
		}

		if len(page) < backfillPageSize {
			break
		}
	}

	logger.Info("backfill finished", "scanned", res.Scanned, "updated", res.Updated)
	return res, nil
}

func fillMissing(snap *domain.Snapshot) (domain.AIAnalysis, bool) {
	a := snap.Analysis()
	changed := false
	if strings.TrimSpace(a.Title) == "" {
		a.Title = analyzer.FallbackTitle(snap.Language)
		changed = true
	}
	if strings.TrimSpace(a.Summary) == "" {
		a.Summary = analyzer.FallbackSummary(snap.FullName, snap.Description)
		changed = true
	}
	return a, changed
}
