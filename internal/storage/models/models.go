package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisReport 简历分析报告表
type AnalysisReport struct {
	ReportID       string         `gorm:"type:char(36);primaryKey"`
	FileName       string         `gorm:"type:varchar(255)"`
	FileMD5        string         `gorm:"type:char(32);index:idx_reports_file_md5"`
	CandidateName  string         `gorm:"type:varchar(255)"`
	CandidateEmail string         `gorm:"type:varchar(255);index:idx_reports_candidate_email"`
	RoleMatch      string         `gorm:"type:varchar(255)"`
	ATSScore       float64        `gorm:"type:decimal(5,2);index:idx_reports_ats_score"`
	WordCount      int            `gorm:"default:0"`
	JobDescription string         `gorm:"type:text"`
	RecordJSON     datatypes.JSON `gorm:"type:json"` // 结构化简历
	BreakdownJSON  datatypes.JSON `gorm:"type:json"` // 各项得分，保持细则顺序
	OriginalObject string         `gorm:"type:varchar(512)"`
	TextObject     string         `gorm:"type:varchar(512)"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_reports_created_at"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (AnalysisReport) TableName() string {
	return "analysis_reports"
}
