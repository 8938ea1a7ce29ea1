package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github-trending-digest/internal/domain"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// printReport 输出一次采集的结果和各周期的明细
func printReport(w io.Writer, res *domain.RunResult) error {
	if res.OK() {
		color.New(color.FgGreen).Fprintf(w, "✅ 采集完成 run=%s date=%s\n", res.RunID, res.DateString())
	} else {
		color.New(color.FgRed).Fprintf(w, "❌ 采集失败 run=%s: %s\n", res.RunID, res.Message)
	}
	fmt.Fprintf(w, "📊 处理 %d 个项目，新增 %d 个，耗时 %s\n", res.TotalProcessed, res.TotalCreated, res.Duration.Round(time.Millisecond))

	if len(res.Periods) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Period", "Fetched", "Processed", "Skipped", "Created", "Failed"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(res.Periods))
	for _, p := range res.Periods {
		data = append(data, []string{
			string(p.Period),
			strconv.Itoa(p.Fetched),
			strconv.Itoa(p.Processed),
			strconv.Itoa(p.Skipped),
			strconv.Itoa(p.Created),
			strconv.Itoa(p.Failed),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// printStats 按项目数降序输出语言分布
func printStats(w io.Writer, stats *domain.TrendingStats) error {
	fmt.Fprintf(w, "📅 %s → %s (%d 天)，共 %d 个项目\n",
		stats.From.Format(time.DateOnly), stats.To.Format(time.DateOnly), stats.Days, stats.TotalProjects)

	langs := make([]string, 0, len(stats.LanguageStats))
	for lang := range stats.LanguageStats {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		a, b := stats.LanguageStats[langs[i]], stats.LanguageStats[langs[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return langs[i] < langs[j]
	})

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Language", "Projects", "Stars", "Period Stars"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(langs))
	for _, lang := range langs {
		s := stats.LanguageStats[lang]
		data = append(data, []string{
			lang,
			strconv.Itoa(s.Count),
			strconv.Itoa(s.TotalStars),
			strconv.Itoa(s.TotalCurrentStars),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
