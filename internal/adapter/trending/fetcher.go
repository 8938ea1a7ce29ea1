package trending

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"
)

const (
	DefaultBaseURL = "https://github.com/trending"
	DefaultTimeout = 30 * time.Second

	maxPageSize = 8 << 20
)

// 模拟浏览器请求头，降低被拦截的概率
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
}

// Fetcher 实现了 port.PageFetcher 接口
type Fetcher struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// FetcherOption 配置 Fetcher
type FetcherOption func(*Fetcher)

// WithBaseURL 替换榜单地址（测试时指向 httptest 服务器）
func WithBaseURL(u string) FetcherOption {
	return func(f *Fetcher) {
		if u != "" {
			f.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// NewFetcher 创建抓取器
func NewFetcher(logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PageURL 拼出榜单地址：语言作为路径段，daily 之外的周期才带 since 参数
func (f *Fetcher) PageURL(language string, period domain.Period) string {
	u := f.baseURL
	if lang := strings.TrimSpace(language); lang != "" {
		u += "/" + url.PathEscape(strings.ToLower(lang))
	}
	if period != "" && period != domain.PeriodDaily {
		u += "?since=" + url.QueryEscape(string(period))
	}
	return u
}

// Fetch 拉取榜单页面。任何失败都只记 warning 并返回空串和 FETCH_ERROR，不重试。
func (f *Fetcher) Fetch(ctx context.Context, language string, period domain.Period) (string, error) {
	target := f.PageURL(language, period)
	log := f.logger.With("url", target, "period", period)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		log.Warn("build trending request failed", "error", err)
		return "", common.WrapError(common.ErrCodeFetch, "build request", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn("fetch trending page failed", "error", err)
		return "", common.WrapError(common.ErrCodeFetch, "request trending page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("unexpected trending status", "status", resp.StatusCode)
		return "", common.NewError(common.ErrCodeFetch, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		log.Warn("read trending page failed", "error", err)
		return "", common.WrapError(common.ErrCodeFetch, "read body", err)
	}

	log.Debug("fetched trending page", "bytes", len(body))
	return string(body), nil
}
