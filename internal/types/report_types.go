package types

import "time"

// AnalysisReport 一次分析的持久化记录
type AnalysisReport struct {
	ID             string          `json:"id"`
	FileName       string          `json:"file_name"`
	FileMD5        string          `json:"file_md5"`
	JobDescription string          `json:"job_description,omitempty"`
	ExtractedText  string          `json:"-"`
	Result         *PipelineResult `json:"result"`
	// 对象存储中的路径，未启用 MinIO 时为空
	OriginalObject string    `json:"original_object,omitempty"`
	TextObject     string    `json:"text_object,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FilterMatch 批量筛选中命中条件的一份简历
type FilterMatch struct {
	FileName  string    `json:"filename"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	ATSScore  float64   `json:"ats_score"`
	Education Education `json:"education"`
	Skills    Skills    `json:"skills"`
	Languages []string  `json:"languages"`
}

// FilterProgress 批量筛选每处理完一份文件的进度事件
type FilterProgress struct {
	Progress       int           `json:"progress"`
	Processed      int           `json:"processed"`
	Total          int           `json:"total"`
	LatestFilename string        `json:"latest_filename"`
	LatestName     string        `json:"latest_name"`
	Skipped        bool          `json:"skipped,omitempty"`
	ResultsSoFar   []FilterMatch `json:"results_so_far"`
}

// FilterDone 批量筛选结束事件
type FilterDone struct {
	Done    bool          `json:"done"`
	Results []FilterMatch `json:"results"`
	Count   int           `json:"count"`
	// 因配额或取消未处理的文件数
	Skipped int `json:"skipped,omitempty"`
}
