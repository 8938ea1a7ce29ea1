package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github-trending-digest/internal/adapter/repository"
	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

var today = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

// fakeTrigger 记录调用次数，busy 为 true 时模拟已有采集在运行
type fakeTrigger struct {
	busy  atomic.Bool
	calls atomic.Int32
}

func (f *fakeTrigger) Start(ctx context.Context) (<-chan *domain.RunResult, error) {
	f.calls.Add(1)
	if f.busy.Load() {
		return nil, service.ErrRunInProgress
	}
	done := make(chan *domain.RunResult, 1)
	done <- &domain.RunResult{RunID: "run-1", Status: domain.RunSuccess}
	close(done)
	return done, nil
}

type testEnv struct {
	store   *repository.GormRepo
	query   *service.QueryService
	trigger *fakeTrigger
	server  *httptest.Server
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := repository.Open(context.Background(), repository.Config{
		Backend:  repository.BackendSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	seeds := []struct {
		name    string
		lang    string
		gain    int
		daysAgo int
	}{
		{"golang/go", "Go", 300, 0},
		{"rust-lang/rust", "Rust", 200, 0},
		{"someone/notes", "", 50, 0},
		{"old/tool", "Go", 10, 3},
	}
	for _, s := range seeds {
		item := &domain.TrendingItem{
			FullName:           s.name,
			URL:                "https://github.com/" + s.name,
			Language:           s.lang,
			Stars:              1000,
			CurrentPeriodStars: s.gain,
			CollectionDate:     today.AddDate(0, 0, -s.daysAgo),
			Period:             domain.PeriodDaily,
			ExtraData:          domain.ExtraData{LanguageColor: "#00ADD8", BuiltBy: []domain.Builder{}},
		}
		_, err := store.Create(context.Background(), item.ToSnapshot(domain.AIAnalysis{
			Title:               s.name + " title",
			Summary:             "summary",
			TechStack:           []string{s.lang},
			Highlights:          []string{},
			RecommendationScore: 80,
			Tags:                []string{"trending"},
		}))
		require.NoError(t, err)
	}

	query := service.NewQueryService(store, time.UTC).WithClock(func() time.Time { return today })
	trigger := &fakeTrigger{}
	h := NewHandler(query, trigger, store, nil)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux, NewMCPHandler(NewMCPServer(query, "test")))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{store: store, query: query, trigger: trigger, server: server}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

type listBody struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    []SnapshotDTO `json:"data"`
	Total   int           `json:"total"`
	Matched int64         `json:"matched"`
	Date    string        `json:"date"`
}

func TestHandler_List(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantNames []string
		wantDate  string
	}{
		{name: "默认今天", query: "", wantCode: 200, wantNames: []string{"golang/go", "rust-lang/rust", "someone/notes"}, wantDate: "2026-05-20"},
		{name: "语言过滤", query: "?language=rUsT", wantCode: 200, wantNames: []string{"rust-lang/rust"}, wantDate: "2026-05-20"},
		{name: "限制条数", query: "?limit=1", wantCode: 200, wantNames: []string{"golang/go"}, wantDate: "2026-05-20"},
		{name: "指定日期", query: "?date=2026-05-17", wantCode: 200, wantNames: []string{"old/tool"}, wantDate: "2026-05-17"},
		{name: "没有数据", query: "?date=2020-01-01", wantCode: 200, wantNames: []string{}, wantDate: "2020-01-01"},
		{name: "日期格式错误", query: "?date=20260520", wantCode: 400},
		{name: "周期错误", query: "?period=yearly", wantCode: 400},
		{name: "limit 错误", query: "?limit=abc", wantCode: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body listBody
			code := getJSON(t, env.server.URL+"/api/github/trending/"+tt.query, &body)
			require.Equal(t, tt.wantCode, code)
			if tt.wantCode != 200 {
				assert.False(t, body.Success)
				assert.NotEmpty(t, body.Message)
				return
			}
			assert.True(t, body.Success)
			assert.Equal(t, tt.wantDate, body.Date)
			assert.Equal(t, len(tt.wantNames), body.Total)
			names := make([]string, 0, len(body.Data))
			for _, d := range body.Data {
				names = append(names, d.FullName)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestHandler_ListMatched(t *testing.T) {
	env := setupEnv(t)
	var body listBody
	getJSON(t, env.server.URL+"/api/github/trending/?limit=2", &body)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, int64(3), body.Matched)
	// 列表不带 extra_data
	assert.Nil(t, body.Data[0].ExtraData)
	analysis, ok := body.Data[0].AIAnalysis.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "golang/go title", analysis["title"])
}

func TestHandler_Detail(t *testing.T) {
	env := setupEnv(t)

	var ok struct {
		Success bool        `json:"success"`
		Data    SnapshotDTO `json:"data"`
	}
	require.Equal(t, 200, getJSON(t, env.server.URL+"/api/github/trending/1/", &ok))
	assert.Equal(t, "golang/go", ok.Data.FullName)
	assert.Equal(t, "daily", ok.Data.Period)
	assert.Equal(t, "2026-05-20", ok.Data.CollectionDate)
	assert.NotEmpty(t, ok.Data.CreatedAt)
	extra, isMap := ok.Data.ExtraData.(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "#00ADD8", extra["language_color"])

	var missing listBody
	assert.Equal(t, 404, getJSON(t, env.server.URL+"/api/github/trending/999/", &missing))
	assert.False(t, missing.Success)

	assert.Equal(t, 400, getJSON(t, env.server.URL+"/api/github/trending/abc/", &missing))
}

func TestHandler_DetailSoftDeleted(t *testing.T) {
	env := setupEnv(t)
	require.NoError(t, env.store.DB().Model(&domain.Snapshot{}).Where("id = ?", 1).Update("is_deleted", true).Error)

	var body listBody
	assert.Equal(t, 404, getJSON(t, env.server.URL+"/api/github/trending/1/", &body))

	getJSON(t, env.server.URL+"/api/github/trending/", &body)
	assert.Equal(t, 2, body.Total)
}

func TestHandler_Stats(t *testing.T) {
	env := setupEnv(t)

	var body struct {
		Success bool     `json:"success"`
		Data    StatsDTO `json:"data"`
	}
	require.Equal(t, 200, getJSON(t, env.server.URL+"/api/github/trending/stats/", &body))
	assert.True(t, body.Success)
	assert.Equal(t, 4, body.Data.TotalProjects)
	assert.Equal(t, StatsPeriod{StartDate: "2026-05-13", EndDate: "2026-05-20", Days: 7}, body.Data.Period)
	assert.Equal(t, 2, body.Data.LanguageStats["Go"].Count)
	assert.Equal(t, 310, body.Data.LanguageStats["Go"].TotalCurrentStars)
	assert.Equal(t, 1, body.Data.LanguageStats["Unknown"].Count)
	assert.Equal(t, map[string]int{"2026-05-20": 3, "2026-05-17": 1}, body.Data.DateStats)

	require.Equal(t, 200, getJSON(t, env.server.URL+"/api/github/trending/stats/?days=1", &body))
	assert.Equal(t, 3, body.Data.TotalProjects)

	var bad listBody
	assert.Equal(t, 400, getJSON(t, env.server.URL+"/api/github/trending/stats/?days=-2", &bad))
}

func TestHandler_Trigger(t *testing.T) {
	env := setupEnv(t)

	resp, err := http.Post(env.server.URL+"/api/github/trending/trigger/", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	env.trigger.busy.Store(true)
	resp, err = http.Post(env.server.URL+"/api/github/trending/trigger/", "application/json", nil)
	require.NoError(t, err)
	var body listBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, service.ErrRunInProgress.Error(), body.Message)
	assert.Equal(t, int32(2), env.trigger.calls.Load())

	// GET 不能触发采集
	resp, err = http.Get(env.server.URL + "/api/github/trending/trigger/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int32(2), env.trigger.calls.Load())
}

func TestHandler_TriggerNotConfigured(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	h.triggerRun(rec, httptest.NewRequest(http.MethodPost, "/api/github/trending/trigger/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type brokenStore struct {
	*repository.GormRepo
}

func (brokenStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHandler_Health(t *testing.T) {
	env := setupEnv(t)

	var body healthResponse
	assert.Equal(t, 200, getJSON(t, env.server.URL+"/healthz", &body))
	assert.Equal(t, "healthy", body.Status)

	h := NewHandler(env.query, nil, brokenStore{env.store}, nil)
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disconnected", body.Database)
}
