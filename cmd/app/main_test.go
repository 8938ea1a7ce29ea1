package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github-trending-digest/internal/domain"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "schedule", "serve", "backfill", "export", "stats"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestParseDateFlag(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    *time.Time
		wantErr bool
	}{
		{name: "empty", value: "", want: nil},
		{name: "valid", value: "2026-05-20", want: ptr(time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC))},
		{name: "invalid", value: "20/05/2026", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDateFlag("date", tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "--date")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePeriodFlag(t *testing.T) {
	p, err := parsePeriodFlag("")
	require.NoError(t, err)
	assert.Equal(t, domain.Period(""), p)

	p, err = parsePeriodFlag("Weekly")
	require.NoError(t, err)
	assert.Equal(t, domain.PeriodWeekly, p)

	_, err = parsePeriodFlag("yearly")
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	res := &domain.RunResult{
		RunID:          "run-1",
		Status:         domain.RunSuccess,
		TotalProcessed: 5,
		TotalCreated:   3,
		Date:           time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
		Periods: []domain.PeriodResult{
			{Period: domain.PeriodDaily, Fetched: 5, Processed: 5, Skipped: 1, Created: 3, Failed: 1},
		},
		Duration: 1500 * time.Millisecond,
	}
	require.NoError(t, printReport(&buf, res))

	out := buf.String()
	assert.Contains(t, out, "✅")
	assert.Contains(t, out, "run=run-1 date=2026-05-20")
	assert.Contains(t, out, "处理 5 个项目，新增 3 个")
	assert.Contains(t, out, "daily")
	assert.Contains(t, strings.ToUpper(out), "FETCHED")
}

func TestPrintReport_Failed(t *testing.T) {
	var buf bytes.Buffer
	res := &domain.RunResult{RunID: "run-2", Status: domain.RunError, Message: "boom"}
	require.NoError(t, printReport(&buf, res))
	assert.Contains(t, buf.String(), "❌")
	assert.Contains(t, buf.String(), "boom")
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	stats := &domain.TrendingStats{
		Days:          7,
		From:          time.Date(2026, 5, 13, 0, 0, 0, 0, time.UTC),
		To:            time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
		TotalProjects: 3,
		LanguageStats: map[string]domain.LanguageStat{
			"Go":   {Count: 2, TotalStars: 300, TotalCurrentStars: 30},
			"Rust": {Count: 1, TotalStars: 100, TotalCurrentStars: 10},
		},
	}
	require.NoError(t, printStats(&buf, stats))

	out := buf.String()
	assert.Contains(t, out, "2026-05-13 → 2026-05-20")
	assert.Less(t, strings.Index(out, "Go"), strings.Index(out, "Rust"))
}

// execute 使用全新的命令树执行一次命令
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_EndToEnd(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "DEEPSEEK_API_KEY", "GITHUB_TOKEN", "FEISHU_WEBHOOK", "DATABASE_URL"} {
		t.Setenv(k, "")
	}
	page, err := os.ReadFile(filepath.Join("..", "..", "internal", "adapter", "trending", "testdata", "trending_daily.html"))
	require.NoError(t, err)
	t.Chdir(t.TempDir())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "trending.yaml")
	yaml := fmt.Sprintf(`database:
  backend: sqlite
  dsn: %s
trending:
  base_url: %s
  periods: [daily]
  timezone: UTC
log:
  level: error
`, filepath.Join(dir, "trending.db"), srv.URL)
	require.NoError(t, os.WriteFile(cfgFile, []byte(yaml), 0o644))

	out, err := execute(t, "--config", cfgFile, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "新增 2 个")

	// 同一天再跑一次不会重复写入
	out, err = execute(t, "--config", cfgFile, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "新增 0 个")

	out, err = execute(t, "--config", cfgFile, "stats", "--days", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "共 2 个项目")

	parquetFile := filepath.Join(dir, "out.parquet")
	out, err = execute(t, "--config", cfgFile, "export", "--period", "daily", "--out", parquetFile)
	require.NoError(t, err)
	assert.Contains(t, out, "已导出 2 条记录")
	info, err := os.Stat(parquetFile)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	out, err = execute(t, "--config", cfgFile, "backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "扫描 2 条，补全 0 条")

	_, err = execute(t, "--config", cfgFile, "export", "--from", "yesterday")
	assert.Error(t, err)
}

func TestCLI_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "stats")
	assert.Error(t, err)
}

func ptr[T any](v T) *T {
	return &v
}
