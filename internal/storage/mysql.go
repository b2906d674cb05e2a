package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/storage/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("ats-resume-go/storage/mysql")

// ErrReportNotFound 报告不存在
var ErrReportNotFound = errors.New("report not found")

type spanCtxKey struct{}

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: mysqlTracer, dbName: dbName}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 为 create/query/update/delete/row/raw 注册前后回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	register := []struct {
		name   string
		before func() error
		after  func() error
	}{
		{
			name:   "create",
			before: func() error { return cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")) },
			after:  func() error { return cb.Create().After("gorm:create").Register("otel:after_create", p.after) },
		},
		{
			name:   "query",
			before: func() error { return cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")) },
			after:  func() error { return cb.Query().After("gorm:query").Register("otel:after_query", p.after) },
		},
		{
			name:   "update",
			before: func() error { return cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")) },
			after:  func() error { return cb.Update().After("gorm:update").Register("otel:after_update", p.after) },
		},
		{
			name:   "delete",
			before: func() error { return cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")) },
			after:  func() error { return cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after) },
		},
		{
			name:   "row",
			before: func() error { return cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")) },
			after:  func() error { return cb.Row().After("gorm:row").Register("otel:after_row", p.after) },
		},
		{
			name:   "raw",
			before: func() error { return cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")) },
			after:  func() error { return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after) },
		},
	}
	for _, r := range register {
		if err := r.before(); err != nil {
			return fmt.Errorf("注册 %s 前置回调失败: %w", r.name, err)
		}
		if err := r.after(); err != nil {
			return fmt.Errorf("注册 %s 后置回调失败: %w", r.name, err)
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.SkipHooks {
			return
		}
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		newCtx, span := p.tracer.Start(ctx, operation+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", table),
			))
		db.Statement.Context = context.WithValue(newCtx, spanCtxKey{}, span)
	}
}

func (p *GormTracingPlugin) after(db *gorm.DB) {
	span, ok := db.Statement.Context.Value(spanCtxKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	switch {
	case db.Error == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		// 查不到记录属于正常业务分支
		span.SetAttributes(attribute.String("error.type", "record_not_found"))
		span.SetStatus(codes.Ok, "record not found")
	default:
		span.SetAttributes(attribute.String("error.type", "database_error"))
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db     *gorm.DB
	cfg    *config.MySQLConfig
	logger zerolog.Logger
}

// BuildDSN 根据配置拼接 DSN
func BuildDSN(cfg *config.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)
}

func gormLogLevel(level int) logger.LogLevel {
	switch level {
	case 1:
		return logger.Silent
	case 2:
		return logger.Error
	case 3:
		return logger.Warn
	case 4:
		return logger.Info
	default:
		return logger.Error
	}
}

// NewMySQL 创建MySQL客户端，注册追踪插件并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}
	l := log.Logger.With().Str("component", "mysql").Logger()

	db, err := gorm.Open(mysql.Open(BuildDSN(cfg)), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
		NowFunc:                                  func() time.Time { return time.Now().Local() },
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg, logger: l}
	if err := m.autoMigrateSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	l.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("成功连接到MySQL并完成表结构迁移")
	return m, nil
}

// autoMigrateSchema 迁移时关闭 SQL 日志
func (m *MySQL) autoMigrateSchema() error {
	silent := m.db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	if err := silent.AutoMigrate(&models.AnalysisReport{}, &models.OutboxMessage{}); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateReportWithOutbox 在同一事务中写入报告和待投递事件
func (m *MySQL) CreateReportWithOutbox(ctx context.Context, report *models.AnalysisReport, outbox *models.OutboxMessage) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateReportWithOutbox", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("report.id", report.ReportID),
		attribute.Bool("outbox", outbox != nil),
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("写入分析报告失败: %w", err)
		}
		if outbox != nil {
			if err := tx.Create(outbox).Error; err != nil {
				return fmt.Errorf("写入outbox消息失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetReport 按 ID 读取报告
func (m *MySQL) GetReport(ctx context.Context, reportID string) (*models.AnalysisReport, error) {
	var report models.AnalysisReport
	err := m.db.WithContext(ctx).Where("report_id = ?", reportID).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询分析报告失败: %w", err)
	}
	return &report, nil
}
