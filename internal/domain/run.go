package domain

import "time"

// RunStatus 一次采集的最终状态
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// PeriodResult 单个周期的计数
type PeriodResult struct {
	Period    Period `json:"period"`
	Fetched   int    `json:"fetched"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Created   int    `json:"created"`
	Failed    int    `json:"failed"`
}

// RunResult 一次采集的运行报告。Processed 包含失败的条目，Created 只统计真正落库的条目。
type RunResult struct {
	RunID          string         `json:"run_id"`
	Status         RunStatus      `json:"status"`
	TotalProcessed int            `json:"total_processed"`
	TotalCreated   int            `json:"total_created"`
	Date           time.Time      `json:"date"`
	Message        string         `json:"message,omitempty"`
	Periods        []PeriodResult `json:"periods"`
	StartedAt      time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration"`
}

// OK 运行是否成功
func (r *RunResult) OK() bool {
	return r.Status == RunSuccess
}

// DateString 采集日期 YYYY-MM-DD
func (r *RunResult) DateString() string {
	return r.Date.Format(time.DateOnly)
}
