package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github-trending-digest/internal/adapter/parquet"
	"github-trending-digest/internal/api"
	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/service"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// runCmd 立即执行一次采集
func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one collection over all configured periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := buildApp(ctx, c.cfg, c.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.collector.Run(ctx)
			if err := printReport(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.OK() {
				return fmt.Errorf("run %s failed: %s", res.RunID, res.Message)
			}
			return nil
		},
	}
}

// startScheduler 按 cron 表达式定时采集，返回的 cron 由调用方 Stop
func startScheduler(ctx context.Context, a *app, out io.Writer) (*cron.Cron, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	sched := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	_, err = sched.AddFunc(a.cfg.Schedule.Cron, func() {
		res := a.collector.Run(ctx)
		if err := printReport(out, res); err != nil {
			a.logger.Warn("print report failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", a.cfg.Schedule.Cron, err)
	}
	sched.Start()
	a.logger.Info("⏰ 定时任务已启动", "cron", a.cfg.Schedule.Cron, "timezone", loc.String())
	return sched, nil
}

// scheduleCmd 常驻进程，按 cron 表达式采集
func (c *cli) scheduleCmd() *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run collections on the configured cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := buildApp(ctx, c.cfg, c.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if now {
				if err := printReport(cmd.OutOrStdout(), a.collector.Run(ctx)); err != nil {
					return err
				}
			}

			sched, err := startScheduler(ctx, a, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			<-ctx.Done()
			c.logger.Info("🛑 收到退出信号，等待正在执行的任务结束")
			<-sched.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "启动时立即执行一次")
	return cmd
}

// serveCmd 启动 HTTP API 和 MCP 服务
func (c *cli) serveCmd() *cobra.Command {
	var (
		addr         string
		withSchedule bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API and the MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := buildApp(ctx, c.cfg, c.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if withSchedule {
				sched, err := startScheduler(ctx, a, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				defer func() { <-sched.Stop().Done() }()
			}

			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			mux := http.NewServeMux()
			api.NewHandler(a.query, a.collector, a.store, c.logger).
				WithBaseContext(ctx).
				RegisterRoutes(mux, api.NewMCPHandler(api.NewMCPServer(a.query, version)))

			srv := &http.Server{
				Addr:         addr,
				Handler:      mux,
				ReadTimeout:  c.cfg.Server.ReadTimeout,
				WriteTimeout: c.cfg.Server.WriteTimeout,
			}
			return serve(ctx, srv, c.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址 (默认使用 server.addr)")
	cmd.Flags().BoolVar(&withSchedule, "with-schedule", false, "同时按 schedule.cron 定时采集")
	return cmd
}

// serve 阻塞直到 ctx 取消或监听失败，然后优雅关闭
func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 HTTP 服务已启动", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	logger.Info("🛑 正在关闭 HTTP 服务")
	return srv.Shutdown(shutdownCtx)
}

// backfillCmd 为缺少标题或摘要的历史数据补上兜底内容
func (c *cli) backfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Fill empty titles and summaries of stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := buildApp(ctx, c.cfg, c.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := service.Backfill(ctx, a.store, c.logger)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ 扫描 %d 条，补全 %d 条\n", res.Scanned, res.Updated)
			return nil
		},
	}
}

// exportCmd 把快照导出为 Parquet 文件
func (c *cli) exportCmd() *cobra.Command {
	var (
		from, to, date string
		period, lang   string
		out            string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored snapshots to a Parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.SnapshotFilter{Language: lang}
			var err error
			if filter.Date, err = parseDateFlag("date", date); err != nil {
				return err
			}
			if filter.From, err = parseDateFlag("from", from); err != nil {
				return err
			}
			if filter.To, err = parseDateFlag("to", to); err != nil {
				return err
			}
			if filter.Period, err = parsePeriodFlag(period); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := buildApp(ctx, c.cfg, c.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := parquet.Export(ctx, a.store, filter, out)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ 已导出 %d 条记录到 %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "只导出某一天 (YYYY-MM-DD)")
	cmd.Flags().StringVar(&from, "from", "", "起始日期 (含)")
	cmd.Flags().StringVar(&to, "to", "", "结束日期 (含)")
	cmd.Flags().StringVar(&period, "period", "", "daily / weekly / monthly")
	cmd.Flags().StringVar(&lang, "language", "", "按语言过滤 (子串匹配)")
	cmd.Flags().StringVarP(&out, "out", "o", "trending.parquet", "输出文件")
	return cmd
}

// statsCmd 在终端输出最近 N 天的语言分布
func (c *cli) statsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the language distribution of recent snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), c.cfg, c.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.query.Stats(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().IntVar(&days, "days", service.DefaultStatsDays, "统计窗口天数")
	return cmd
}
