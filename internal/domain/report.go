package domain

import (
	"encoding/json"
	"time"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`

	Output    string `json:"output"`
	Exclusive bool   `json:"exclusive"`
	Potato    bool   `json:"potato"`
	Build     bool   `json:"build"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Rows    []SummaryRow  `json:"rows"`

	Archive *ArchiveResult `json:"archive,omitempty"`
	Publish *PublishResult `json:"publish,omitempty"`

	// ErrorCode/ErrorMsg 仅在 run 被中止（配置错误、文件系统错误、上传失败）时非空。
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// run 级错误码（配置阶段的错误码由 config 包给出）。
const (
	ErrCodeIOFailed      = "io_failed"
	ErrCodePublishFailed = "publish_failed"
	ErrCodeInterrupted   = "interrupted"
)

type ReportSummary struct {
	Files   int `json:"files"`
	Found   int `json:"found"`
	Unknown int `json:"unknown"`
	Error   int `json:"error"`
	Copies  int `json:"copies"`
	Dropped int `json:"dropped"`
}

type ArchiveResult struct {
	Path    string   `json:"path"`
	Size    int64    `json:"size"`
	Entries []string `json:"entries"`
}

type PublishResult struct {
	Location string `json:"location"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 rows 计算得出
//
// rows 的顺序即输入枚举顺序，这里不做排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Rows == nil {
		r.Rows = []SummaryRow{}
	}

	s := ReportSummary{Files: len(r.Rows)}
	for _, row := range r.Rows {
		switch row.Outcome {
		case OutcomeFound:
			s.Found++
		case OutcomeUnknown:
			s.Unknown++
		case OutcomeError:
			s.Error++
		}
		if len(row.Dests) == 0 {
			s.Dropped++
		}
		s.Copies += len(row.Dests)
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
