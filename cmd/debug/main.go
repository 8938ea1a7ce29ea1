// Command debug fetches one trending page, previews what the parser sees and
// optionally runs the analysis on the first few projects without touching the database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github-trending-digest/internal/adapter/analyzer"
	"github-trending-digest/internal/adapter/llm"
	"github-trending-digest/internal/adapter/trending"
	"github-trending-digest/internal/config"
	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/service"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	_ = godotenv.Load()

	var (
		configFile string
		period     string
		language   string
		enrich     int
	)
	cmd := &cobra.Command{
		Use:           "debug",
		Short:         "Preview the parsed trending list and the analysis of the first projects",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), configFile, period, language, enrich)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "配置文件路径")
	cmd.Flags().StringVar(&period, "period", "daily", "daily / weekly / monthly")
	cmd.Flags().StringVar(&language, "language", "", "语言过滤，为空时使用配置")
	cmd.Flags().IntVar(&enrich, "enrich", 0, "对前 N 个项目调用 AI 分析")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("❌ %v", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, configFile, periodFlag, language string, enrich int) error {
	cfg, err := config.Load(viper.New(), configFile)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	period, err := domain.ParsePeriod(periodFlag)
	if err != nil {
		return err
	}
	if language == "" {
		language = cfg.Trending.Language
	}

	fetcher := trending.NewFetcher(logger,
		trending.WithBaseURL(cfg.Trending.BaseURL),
		trending.WithTimeout(cfg.Trending.Timeout),
	)
	fmt.Fprintf(out, "🔍 抓取 %s\n", fetcher.PageURL(language, period))

	markup, err := fetcher.Fetch(ctx, language, period)
	if err != nil {
		return err
	}
	records := trending.NewParser(logger).Parse(markup, language, period)
	items := service.FormatRecords(records, time.Now())
	fmt.Fprintf(out, "📦 解析到 %d 个项目\n", len(items))

	table := tablewriter.NewWriter(out)
	table.Header([]string{"#", "Repo", "Language", "Stars", "Forks", "Gain"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	data := make([][]string, 0, len(items))
	for i, item := range items {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			item.FullName,
			item.Language,
			strconv.Itoa(item.Stars),
			strconv.Itoa(item.Forks),
			strconv.Itoa(item.CurrentPeriodStars),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if enrich <= 0 || len(items) == 0 {
		return nil
	}

	generator, err := llm.NewGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}
	a := analyzer.New(generator, logger,
		analyzer.WithTimeout(cfg.AI.Timeout),
		analyzer.WithReplyLanguage(cfg.AI.ReplyLanguage),
	)

	for i := 0; i < enrich && i < len(items); i++ {
		item := &items[i]
		start := time.Now()
		result := a.Analyze(ctx, item)

		fmt.Fprintln(out)
		color.New(color.Bold).Fprintf(out, "🤖 %s (%s)\n", item.FullName, time.Since(start).Round(time.Millisecond))
		if result.IsFallback() {
			color.New(color.FgYellow).Fprintf(out, "⚠️ 使用兜底分析: %s\n", result.Error)
		}
		fmt.Fprintf(out, "标题: %s\n摘要: %s\n评分: %d\n标签: %v\n", result.Title, result.Summary, result.RecommendationScore, result.Tags)
	}
	return nil
}
