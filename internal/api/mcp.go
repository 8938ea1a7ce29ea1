package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListTrendingInput list_trending 的参数
type ListTrendingInput struct {
	Date     string `json:"date,omitempty" jsonschema:"collection date in YYYY-MM-DD, defaults to today"`
	Language string `json:"language,omitempty" jsonschema:"case-insensitive substring of the primary language"`
	Period   string `json:"period,omitempty" jsonschema:"daily, weekly or monthly"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of projects to return, default 50, max 200"`
}

type ListTrendingOutput struct {
	Date     string        `json:"date"`
	Total    int           `json:"total"`
	Matched  int64         `json:"matched"`
	Projects []SnapshotDTO `json:"projects"`
}

type GetTrendingInput struct {
	ID int `json:"id" jsonschema:"snapshot id returned by list_trending"`
}

type GetTrendingOutput struct {
	Found   bool         `json:"found"`
	Project *SnapshotDTO `json:"project,omitempty"`
}

type TrendingStatsInput struct {
	Days int `json:"days,omitempty" jsonschema:"size of the window in days ending today, default 7"`
}

// NewMCPServer 注册三个只读工具
func NewMCPServer(query *service.QueryService, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "github-trending-digest",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_trending",
		Description: "List GitHub trending snapshots collected on a date, ordered by stars gained in the period. Includes the AI analysis of each project.",
	}, makeListHandler(query))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_trending",
		Description: "Get one trending snapshot by id, including extra scraped metadata.",
	}, makeGetHandler(query))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "trending_stats",
		Description: "Aggregate trending snapshots of the last N days by language and by collection date.",
	}, makeStatsHandler(query))

	return server
}

// NewMCPHandler Streamable HTTP 传输，挂载在 /mcp
func NewMCPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

func makeListHandler(query *service.QueryService) func(context.Context, *mcp.CallToolRequest, ListTrendingInput) (*mcp.CallToolResult, ListTrendingOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, in ListTrendingInput) (*mcp.CallToolResult, ListTrendingOutput, error) {
		var date time.Time
		if in.Date != "" {
			d, err := time.Parse(time.DateOnly, in.Date)
			if err != nil {
				return nil, ListTrendingOutput{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", in.Date)
			}
			date = d
		}
		var period domain.Period
		if in.Period != "" {
			p, err := domain.ParsePeriod(in.Period)
			if err != nil {
				return nil, ListTrendingOutput{}, err
			}
			period = p
		}

		res, err := query.List(ctx, date, strings.TrimSpace(in.Language), period, in.Limit)
		if err != nil {
			return nil, ListTrendingOutput{}, fmt.Errorf("list failed: %w", err)
		}
		return nil, ListTrendingOutput{
			Date:     res.Date.Format(time.DateOnly),
			Total:    res.Total,
			Matched:  res.Matched,
			Projects: toDTOs(res.Items),
		}, nil
	}
}

func makeGetHandler(query *service.QueryService) func(context.Context, *mcp.CallToolRequest, GetTrendingInput) (*mcp.CallToolResult, GetTrendingOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, in GetTrendingInput) (*mcp.CallToolResult, GetTrendingOutput, error) {
		if in.ID <= 0 {
			return nil, GetTrendingOutput{Found: false}, nil
		}
		s, err := query.Get(ctx, uint(in.ID))
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return nil, GetTrendingOutput{Found: false}, nil
		}
		if err != nil {
			return nil, GetTrendingOutput{}, fmt.Errorf("get failed: %w", err)
		}
		dto := toDTO(s, true)
		return nil, GetTrendingOutput{Found: true, Project: &dto}, nil
	}
}

func makeStatsHandler(query *service.QueryService) func(context.Context, *mcp.CallToolRequest, TrendingStatsInput) (*mcp.CallToolResult, StatsDTO, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, in TrendingStatsInput) (*mcp.CallToolResult, StatsDTO, error) {
		if in.Days < 0 {
			return nil, StatsDTO{}, fmt.Errorf("days must not be negative")
		}
		stats, err := query.Stats(ctx, in.Days)
		if err != nil {
			return nil, StatsDTO{}, fmt.Errorf("stats failed: %w", err)
		}
		return nil, toStatsDTO(stats), nil
	}
}
