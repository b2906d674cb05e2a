package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/storage/models"
	"ats-resume-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
)

// ErrReportStoreDisabled 未启用 MySQL 时无法保存或读取报告
var ErrReportStoreDisabled = errors.New("report store is disabled")

// Storage 聚合各存储组件，未启用的组件为 nil
type Storage struct {
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis

	cfg    *config.Config
	logger zerolog.Logger
}

// NewStorage 按 enabled 开关初始化存储组件。
// 启用的组件连接失败即返回错误，避免带着半套存储启动。
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	s := &Storage{cfg: cfg, logger: logger.With().Str("component", "storage").Logger()}

	var err error
	if cfg.MySQL.Enabled {
		if s.MySQL, err = NewMySQL(&cfg.MySQL); err != nil {
			s.Close()
			return nil, fmt.Errorf("初始化MySQL失败: %w", err)
		}
	}
	if cfg.Redis.Enabled {
		if s.Redis, err = NewRedisAdapter(&cfg.Redis); err != nil {
			s.Close()
			return nil, fmt.Errorf("初始化Redis失败: %w", err)
		}
	}
	if cfg.MinIO.Enabled {
		if s.MinIO, err = NewMinIO(&cfg.MinIO, logger); err != nil {
			s.Close()
			return nil, fmt.Errorf("初始化MinIO失败: %w", err)
		}
	}
	if cfg.RabbitMQ.Enabled {
		if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, logger); err != nil {
			s.Close()
			return nil, fmt.Errorf("初始化RabbitMQ失败: %w", err)
		}
		if err := s.RabbitMQ.SetupTopology(); err != nil {
			s.Close()
			return nil, fmt.Errorf("声明RabbitMQ拓扑失败: %w", err)
		}
	}

	s.logger.Info().
		Bool("mysql", s.MySQL != nil).
		Bool("redis", s.Redis != nil).
		Bool("minio", s.MinIO != nil).
		Bool("rabbitmq", s.RabbitMQ != nil).
		Msg("存储组件初始化完成")
	return s, nil
}

// HasReportStore 是否可以保存报告
func (s *Storage) HasReportStore() bool { return s != nil && s.MySQL != nil }

// HasResultCache 是否可以缓存结果
func (s *Storage) HasResultCache() bool { return s != nil && s.Redis != nil }

// SaveReport 归档原件与文本，在一个事务中写入报告与 analysis.completed 事件
func (s *Storage) SaveReport(ctx context.Context, report *types.AnalysisReport, original []byte) (string, error) {
	if !s.HasReportStore() {
		return "", ErrReportStoreDisabled
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成报告ID失败: %w", err)
	}
	report.ID = id.String()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	if report.FileMD5 == "" && len(original) > 0 {
		sum := md5.Sum(original)
		report.FileMD5 = hex.EncodeToString(sum[:])
	}

	if s.MinIO != nil {
		s.archive(ctx, report, original)
	}

	row, err := ReportToModel(report)
	if err != nil {
		return "", err
	}
	outbox := s.completedOutbox(report)
	if err := s.MySQL.CreateReportWithOutbox(ctx, row, outbox); err != nil {
		return "", err
	}

	if s.Redis != nil && report.FileMD5 != "" {
		if err := s.Redis.AddFileMD5(ctx, report.FileMD5); err != nil {
			s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("记录文件MD5失败")
		}
	}
	return report.ID, nil
}

// archive 对象存储失败只记录日志，报告仍然写库
func (s *Storage) archive(ctx context.Context, report *types.AnalysisReport, original []byte) {
	if len(original) > 0 {
		key, err := s.MinIO.UploadOriginal(ctx, report.ID, original)
		if err != nil {
			s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("归档原始文件失败")
		} else {
			report.OriginalObject = key
		}
	}
	if strings.TrimSpace(report.ExtractedText) != "" {
		key, err := s.MinIO.UploadParsedText(ctx, report.ID, report.ExtractedText)
		if err != nil {
			s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("归档解析文本失败")
		} else {
			report.TextObject = key
		}
	}
}

func (s *Storage) completedOutbox(report *types.AnalysisReport) *models.OutboxMessage {
	if !s.cfg.Outbox.Enabled || s.cfg.RabbitMQ.AnalysisExchange == "" {
		return nil
	}
	msg, err := NewCompletedOutbox(report, s.cfg.RabbitMQ.AnalysisExchange, s.cfg.RabbitMQ.CompletedRoutingKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("构造outbox消息失败")
		return nil
	}
	return msg
}

// GetReport 按 ID 读取报告，启用 MinIO 时补全解析文本
func (s *Storage) GetReport(ctx context.Context, id string) (*types.AnalysisReport, error) {
	if !s.HasReportStore() {
		return nil, ErrReportStoreDisabled
	}
	row, err := s.MySQL.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := ReportFromModel(row)
	if err != nil {
		return nil, err
	}
	if s.MinIO != nil && report.TextObject != "" {
		text, err := s.MinIO.GetParsedText(ctx, report.TextObject)
		if err != nil {
			s.logger.Warn().Err(err).Str("report_id", id).Msg("读取解析文本失败")
		} else {
			report.ExtractedText = text
		}
	}
	return report, nil
}

// GetResult 未启用 Redis 时总是未命中
func (s *Storage) GetResult(ctx context.Context, fingerprint string) (*types.PipelineResult, error) {
	if !s.HasResultCache() {
		return nil, nil
	}
	return s.Redis.GetResult(ctx, fingerprint)
}

// SetResult 未启用 Redis 时忽略
func (s *Storage) SetResult(ctx context.Context, fingerprint string, result *types.PipelineResult, ttl time.Duration) error {
	if !s.HasResultCache() {
		return nil
	}
	return s.Redis.SetResult(ctx, fingerprint, result, ttl)
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
