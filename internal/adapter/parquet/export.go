// Package parquet exports trending snapshots to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/port"

	"github.com/parquet-go/parquet-go"
)

const pageSize = 500

// SnapshotRow is one flattened snapshot.
type SnapshotRow struct {
	ID                 int64     `parquet:"id,snappy"`
	CollectionDate     time.Time `parquet:"collection_date,snappy"`
	Period             string    `parquet:"period,snappy,dict"`
	FullName           string    `parquet:"full_name,snappy"`
	URL                string    `parquet:"url,snappy"`
	Language           string    `parquet:"language,snappy,dict"`
	Stars              int32     `parquet:"stars,snappy"`
	Forks              int32     `parquet:"forks,snappy"`
	CurrentPeriodStars int32     `parquet:"current_period_stars,snappy"`

	Title               string  `parquet:"title,snappy"`
	Summary             string  `parquet:"summary,snappy"`
	RecommendationScore int32   `parquet:"recommendation_score,snappy"`
	Tags                string  `parquet:"tags,snappy"`
	AnalysisError       *string `parquet:"analysis_error,optional,snappy"`
}

// ConvertSnapshots flattens snapshots into rows.
func ConvertSnapshots(snapshots []*domain.Snapshot) []SnapshotRow {
	rows := make([]SnapshotRow, 0, len(snapshots))
	for _, s := range snapshots {
		a := s.Analysis()
		row := SnapshotRow{
			ID:                  int64(s.ID),
			CollectionDate:      s.CollectionDate.UTC(),
			Period:              string(s.Period),
			FullName:            s.FullName,
			URL:                 s.URL,
			Language:            s.Language,
			Stars:               int32(s.Stars),
			Forks:               int32(s.Forks),
			CurrentPeriodStars:  int32(s.CurrentPeriodStars),
			Title:               a.Title,
			Summary:             a.Summary,
			RecommendationScore: int32(a.RecommendationScore),
			Tags:                strings.Join(a.Tags, ","),
		}
		if a.Error != "" {
			reason := a.Error
			row.AnalysisError = &reason
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteSnapshotsParquet writes rows to a Parquet file.
func WriteSnapshotsParquet(rows []SnapshotRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[SnapshotRow](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// Export pages through the store with the given filter and writes every
// matching snapshot to outputPath. It returns the number of rows written.
func Export(ctx context.Context, store port.SnapshotStore, filter domain.SnapshotFilter, outputPath string) (int, error) {
	var all []*domain.Snapshot
	filter.Limit = pageSize
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		filter.Offset = offset
		page, err := store.List(ctx, filter)
		if err != nil {
			return 0, fmt.Errorf("failed to list snapshots: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}

	if err := WriteSnapshotsParquet(ConvertSnapshots(all), outputPath); err != nil {
		return 0, err
	}
	return len(all), nil
}
