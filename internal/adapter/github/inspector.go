package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
)

// Inspector 实现了 port.RepoInspector 接口
type Inspector struct {
	client     *github.Client
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewInspector 初始化 GitHub 客户端
// token 为空时匿名访问，限制 60 次/小时；触发限流时自动等待
func NewInspector(token string, logger *slog.Logger) (*Inspector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var base http.RoundTripper = http.DefaultTransport
	if token != "" {
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		}
	}
	rateLimited, err := github_ratelimit.NewRateLimitWaiterClient(base)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeGitHubAPI, "create rate limit client", err)
	}

	return &Inspector{
		client:     github.NewClient(rateLimited),
		logger:     logger,
		maxRetries: 2,
		retryDelay: time.Second,
	}, nil
}

// Inspect 查询仓库详情。4xx 不重试，5xx 和网络错误最多重试两次。
func (i *Inspector) Inspect(ctx context.Context, fullName string) (*domain.RepoDetails, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, fmt.Sprintf("invalid repository name %q", fullName))
	}

	var repo *github.Repository
	err := common.Do(ctx, func() error {
		r, resp, err := i.client.Repositories.Get(ctx, owner, name)
		if err != nil {
			if resp != nil && resp.StatusCode < 500 {
				return common.Permanent(err)
			}
			var rle *github.RateLimitError
			if errors.As(err, &rle) {
				return common.Permanent(err)
			}
			return err
		}
		repo = r
		return nil
	},
		common.WithMaxRetries(i.maxRetries),
		common.WithInitialDelay(i.retryDelay),
		common.WithOnRetry(func(attempt int, err error) {
			i.logger.Debug("github api retry", "repo", fullName, "attempt", attempt, "error", err)
		}),
	)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeGitHubAPI, "GitHub API 调用失败", err)
	}

	return toDetails(repo), nil
}

func toDetails(r *github.Repository) *domain.RepoDetails {
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return &domain.RepoDetails{
		Topics:     topics,
		License:    r.GetLicense().GetSPDXID(),
		Homepage:   r.GetHomepage(),
		OpenIssues: r.GetOpenIssuesCount(),
		Archived:   r.GetArchived(),
		CreatedAt:  r.GetCreatedAt().Time,
		PushedAt:   r.GetPushedAt().Time,
	}
}
