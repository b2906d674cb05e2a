package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"ats-resume-go/internal/storage/models"
	"ats-resume-go/internal/types"

	"gorm.io/datatypes"
)

// Outbox 消息状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// ReportToModel 领域报告转换为数据库行
func ReportToModel(report *types.AnalysisReport) (*models.AnalysisReport, error) {
	if report == nil || report.Result == nil || report.Result.Data == nil {
		return nil, fmt.Errorf("报告缺少分析结果")
	}
	record, err := json.Marshal(report.Result.Data)
	if err != nil {
		return nil, fmt.Errorf("序列化结构化简历失败: %w", err)
	}
	breakdown, err := types.MarshalPlain(report.Result.ATSBreakdown)
	if err != nil {
		return nil, fmt.Errorf("序列化评分明细失败: %w", err)
	}
	data := report.Result.Data
	return &models.AnalysisReport{
		ReportID:       report.ID,
		FileName:       report.FileName,
		FileMD5:        report.FileMD5,
		CandidateName:  data.Name.String(),
		CandidateEmail: data.Email.String(),
		RoleMatch:      data.RoleMatch.String(),
		ATSScore:       report.Result.ATSScore,
		WordCount:      report.Result.WordCount,
		JobDescription: report.JobDescription,
		RecordJSON:     datatypes.JSON(record),
		BreakdownJSON:  datatypes.JSON(breakdown),
		OriginalObject: report.OriginalObject,
		TextObject:     report.TextObject,
		CreatedAt:      report.CreatedAt,
	}, nil
}

// ReportFromModel 数据库行还原为领域报告
func ReportFromModel(m *models.AnalysisReport) (*types.AnalysisReport, error) {
	var record types.ResumeRecord
	if err := json.Unmarshal(m.RecordJSON, &record); err != nil {
		return nil, fmt.Errorf("解析报告 %s 的结构化简历失败: %w", m.ReportID, err)
	}
	var breakdown types.ScoreBreakdown
	if len(m.BreakdownJSON) > 0 {
		if err := json.Unmarshal(m.BreakdownJSON, &breakdown); err != nil {
			return nil, fmt.Errorf("解析报告 %s 的评分明细失败: %w", m.ReportID, err)
		}
	}
	return &types.AnalysisReport{
		ID:             m.ReportID,
		FileName:       m.FileName,
		FileMD5:        m.FileMD5,
		JobDescription: m.JobDescription,
		Result: &types.PipelineResult{
			Data:         &record,
			ATSScore:     m.ATSScore,
			ATSBreakdown: breakdown,
			WordCount:    m.WordCount,
			ReportID:     m.ReportID,
		},
		OriginalObject: m.OriginalObject,
		TextObject:     m.TextObject,
		CreatedAt:      m.CreatedAt,
	}, nil
}

// NewCompletedOutbox 构造分析完成事件
func NewCompletedOutbox(report *types.AnalysisReport, exchange, routingKey string) (*models.OutboxMessage, error) {
	msg := AnalysisCompletedMessage{
		ReportID:    report.ID,
		FileName:    report.FileName,
		FileMD5:     report.FileMD5,
		HasJD:       report.JobDescription != "",
		CompletedAt: report.CreatedAt,
	}
	if msg.CompletedAt.IsZero() {
		msg.CompletedAt = time.Now()
	}
	if r := report.Result; r != nil {
		msg.ATSScore = r.ATSScore
		msg.WordCount = r.WordCount
		if r.Data != nil {
			msg.CandidateName = r.Data.Name.String()
			msg.RoleMatch = r.Data.RoleMatch.String()
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("序列化outbox消息失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      report.ID,
		EventType:        EventTypeAnalysisCompleted,
		Payload:          string(payload),
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Status:           OutboxStatusPending,
	}, nil
}
