package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const (
	ImageDownloaded = "downloaded"
	ImageSkipped    = "skipped"
	ImageFailed     = "failed"
)

const (
	ErrCodeFetchFailed     = "fetch_failed"
	ErrCodeWriteFailed     = "write_failed"
	ErrCodeImageFailed     = "image_failed"
	ErrCodeConfigNotFound  = "config_not_found"
	ErrCodeConfigInvalid   = "config_invalid"
	ErrCodeConfigNoSources = "config_no_sources"
)

// RunReport 是对外稳定输出（cache/report.json / stdout JSON）的结构。
type RunReport struct {
	Config    string `json:"config"`
	TargetDir string `json:"target_dir"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary  `json:"summary"`
	Items   []SourceResult `json:"items"`
}

type ReportSummary struct {
	Sources          int `json:"sources"`
	Failed           int `json:"failed"`
	Cards            int `json:"cards"`
	ImagesDownloaded int `json:"images_downloaded"`
	ImagesSkipped    int `json:"images_skipped"`
	ImagesFailed     int `json:"images_failed"`
}

// SourceResult 记录一个来源的完整处理结果。
//
// 注意：抓取失败时 Status=failed，但 Output 依然会写出（空数组），
// 因为抓取失败只是让该来源产出 0 条记录，而不是中断流程。
type SourceResult struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
	Set  string `json:"set"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Cards  int           `json:"cards"`
	Output string        `json:"output"`
	Images []ImageResult `json:"images"`
}

type ImageResult struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	File   string `json:"file"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ImagePlan 描述一次图片下载计划（只描述，不执行）。
type ImagePlan struct {
	ID   string
	URL  string // 已按来源 URL 解析为绝对地址
	File string // <id>.<ext>
	Skip bool   // 目标文件已存在
	Err  error  // 无法规划（例如 id 非法）
}

// Finalize 统一时间为 UTC，并由 items 计算 summary。
// items 保持配置顺序，不做排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []SourceResult{}
	}

	var s ReportSummary
	for _, it := range r.Items {
		s.Sources++
		if it.Status == StatusFailed {
			s.Failed++
		}
		s.Cards += it.Cards
		for _, img := range it.Images {
			switch img.Status {
			case ImageDownloaded:
				s.ImagesDownloaded++
			case ImageSkipped:
				s.ImagesSkipped++
			case ImageFailed:
				s.ImagesFailed++
			}
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
