// Package api exposes the stored trending snapshots over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github-trending-digest/internal/domain"
	"github-trending-digest/internal/port"
	"github-trending-digest/internal/service"
)

// Trigger 启动一次后台采集
type Trigger interface {
	Start(ctx context.Context) (<-chan *domain.RunResult, error)
}

// Handler 处理 /api/github/trending/ 下的请求
type Handler struct {
	query   *service.QueryService
	trigger Trigger
	store   port.SnapshotStore
	logger  *slog.Logger
	baseCtx context.Context
}

// NewHandler trigger 为空时触发接口返回 503
func NewHandler(query *service.QueryService, trigger Trigger, store port.SnapshotStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		query:   query,
		trigger: trigger,
		store:   store,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// WithBaseContext 后台采集使用的 context，服务关闭时取消
func (h *Handler) WithBaseContext(ctx context.Context) *Handler {
	h.baseCtx = ctx
	return h
}

// RegisterRoutes 注册路由，mcp 为空时不挂载 /mcp
func (h *Handler) RegisterRoutes(mux *http.ServeMux, mcp http.Handler) {
	mux.HandleFunc("GET /api/github/trending/{$}", h.list)
	mux.HandleFunc("GET /api/github/trending/stats/{$}", h.stats)
	mux.HandleFunc("GET /api/github/trending/{id}/{$}", h.detail)
	mux.HandleFunc("POST /api/github/trending/trigger/{$}", h.triggerRun)
	mux.HandleFunc("GET /healthz", h.health)
	if mcp != nil {
		mux.Handle("/mcp", mcp)
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Total   *int   `json:"total,omitempty"`
	Matched *int64 `json:"matched,omitempty"`
	Date    string `json:"date,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var date time.Time
	if s := q.Get("date"); s != "" {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = d
	}

	var period domain.Period
	if s := q.Get("period"); s != "" {
		p, err := domain.ParsePeriod(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid period, expected daily, weekly or monthly")
			return
		}
		period = p
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	res, err := h.query.List(r.Context(), date, strings.TrimSpace(q.Get("language")), period, limit)
	if err != nil {
		h.logger.Error("list snapshots failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    toDTOs(res.Items),
		Total:   &res.Total,
		Matched: &res.Matched,
		Date:    res.Date.Format(time.DateOnly),
	})
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s, err := h.query.Get(r.Context(), uint(id))
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		h.logger.Error("get snapshot failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: toDTO(s, true)})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}

	stats, err := h.query.Stats(r.Context(), days)
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: toStatsDTO(stats)})
}

func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "collector not configured")
		return
	}

	done, err := h.trigger.Start(h.baseCtx)
	if errors.Is(err, service.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("trigger failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	go func() {
		res := <-done
		if res == nil {
			return
		}
		h.logger.Info("triggered run finished",
			"run_id", res.RunID,
			"status", res.Status,
			"processed", res.TotalProcessed,
			"created", res.TotalCreated,
		)
	}()

	writeJSON(w, http.StatusAccepted, envelope{Success: true, Message: "run_started"})
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if h.store == nil || h.store.Ping(ctx) != nil {
		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = "healthy"
	resp.Database = "connected"
	writeJSON(w, http.StatusOK, resp)
}
