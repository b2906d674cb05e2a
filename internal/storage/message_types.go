package storage

import "time"

// 事件类型
const (
	EventTypeAnalysisCompleted = "analysis.completed"
)

// AnalysisCompletedMessage 分析完成事件，经 outbox 投递到 RabbitMQ
type AnalysisCompletedMessage struct {
	ReportID      string    `json:"report_id"`
	FileName      string    `json:"file_name"`
	FileMD5       string    `json:"file_md5"`
	CandidateName string    `json:"candidate_name,omitempty"`
	RoleMatch     string    `json:"role_match,omitempty"`
	ATSScore      float64   `json:"ats_score"`
	WordCount     int       `json:"word_count"`
	HasJD         bool      `json:"has_job_description"`
	CompletedAt   time.Time `json:"completed_at"`
}
