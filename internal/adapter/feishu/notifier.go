package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"
)

// Notifier 实现了 port.Notifier 接口，把每次采集的运行报告推送到飞书群
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewNotifier(webhook string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if webhook == "" {
		logger.Warn("⚠️ 飞书 Webhook 为空，推送功能将无法工作")
	}
	return &Notifier{
		webhookURL: webhook,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		retryDelay: 500 * time.Millisecond,
	}
}

type webhookReply struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// NotifyRun 发送飞书卡片消息 (Schema 2.0)
func (n *Notifier) NotifyRun(ctx context.Context, result *domain.RunResult) error {
	if n.webhookURL == "" {
		return common.NewError(common.ErrCodeNotification, "Webhook URL 为空")
	}
	if result == nil {
		return common.NewError(common.ErrCodeInvalidInput, "run result is nil")
	}

	body, err := json.Marshal(buildCard(result))
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "encode card", err)
	}

	// 发送请求 (带重试机制)，4xx 和业务错误码不重试
	err = common.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if err != nil {
			return common.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode >= 500 {
			return fmt.Errorf("飞书 API 报错: 状态码 %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return common.Permanent(fmt.Errorf("飞书 API 报错: 状态码 %d", resp.StatusCode))
		}
		var reply webhookReply
		if err := json.Unmarshal(raw, &reply); err == nil && reply.Code != 0 {
			return common.Permanent(fmt.Errorf("飞书 API 报错: code=%d msg=%s", reply.Code, reply.Msg))
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(n.retryDelay),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "发送请求失败", err)
	}

	n.logger.Info("run report sent", "run_id", result.RunID)
	return nil
}

func buildCard(r *domain.RunResult) map[string]interface{} {
	template := "green"
	title := fmt.Sprintf("📈 GitHub Trending %s 采集完成", r.DateString())
	if !r.OK() {
		template = "red"
		title = fmt.Sprintf("🚨 GitHub Trending %s 采集失败", r.DateString())
	}

	var md strings.Builder
	fmt.Fprintf(&md, "**状态:** %s  |  **处理:** %d  |  **新增:** %d\n", r.Status, r.TotalProcessed, r.TotalCreated)
	fmt.Fprintf(&md, "**耗时:** %s  |  **Run ID:** %s\n", r.Duration.Round(time.Second), r.RunID)
	if len(r.Periods) > 0 {
		md.WriteString("\n| 周期 | 抓取 | 已存在 | 新增 | 失败 |\n|---|---|---|---|---|\n")
		for _, p := range r.Periods {
			fmt.Fprintf(&md, "| %s | %d | %d | %d | %d |\n", p.Period, p.Fetched, p.Skipped, p.Created, p.Failed)
		}
	}
	if r.Message != "" {
		fmt.Fprintf(&md, "\n**错误信息:**\n%s\n", r.Message)
	}

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"schema": "2.0",
			"config": map[string]interface{}{
				"update_multi": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
				"template": template,
			},
			"body": map[string]interface{}{
				"direction": "vertical",
				"elements": []map[string]interface{}{
					{
						"tag":       "markdown",
						"content":   md.String(),
						"text_size": "normal",
					},
				},
			},
		},
	}
}
