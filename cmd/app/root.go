package main

import (
	"fmt"
	"log/slog"
	"time"

	"github-trending-digest/internal/config"
	"github-trending-digest/internal/domain"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 构建时通过 -ldflags 注入
var version = "dev"

// cli 保存所有子命令共享的状态
type cli struct {
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

// newRootCmd 构建命令树
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:                "trending",
		Short:              "Collect the GitHub trending list and summarize every project with an LLM.",
		Long:               `trending 抓取 GitHub Trending 页面，调用大模型生成项目摘要并存入数据库，同时提供 HTTP / MCP 查询接口。`,
		Version:            version,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE:  c.setup,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "配置文件路径 (默认查找 ./trending.yaml)")

	root.AddCommand(
		c.runCmd(),
		c.scheduleCmd(),
		c.serveCmd(),
		c.backfillCmd(),
		c.exportCmd(),
		c.statsCmd(),
	)
	return root
}

// setup 加载配置并初始化日志
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.New(), c.configFile)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.cfg = cfg
	c.logger = logger
	return nil
}

// parseDateFlag 解析 YYYY-MM-DD，空字符串返回 nil
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD", name, value)
	}
	d := domain.DateOf(t)
	return &d, nil
}

// parsePeriodFlag 空字符串表示不过滤
func parsePeriodFlag(value string) (domain.Period, error) {
	if value == "" {
		return "", nil
	}
	p, err := domain.ParsePeriod(value)
	if err != nil {
		return "", fmt.Errorf("invalid --period: %w", err)
	}
	return p, nil
}
