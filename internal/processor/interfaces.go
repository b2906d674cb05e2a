package processor

import (
	"context"
	"time"

	"ats-resume-go/internal/types"
)

//
// 流水线依赖的协作者接口
//

// PDFExtractor PDF 文本提取，parser.EinoPDFTextExtractor 与 parser.TikaPDFExtractor 都满足
type PDFExtractor interface {
	// ExtractText 返回按页换行拼接后的全文，uri 仅用于日志
	ExtractText(ctx context.Context, data []byte, uri string) (string, error)
}

// StructuredExtractor 调用文本补全服务把全文转换为结构化记录
type StructuredExtractor interface {
	Extract(ctx context.Context, text, jobDescription string) (*types.ResumeRecord, error)
}

// RoleInferrer 模型未给出 role_match 时的二次推断
type RoleInferrer interface {
	InferRole(ctx context.Context, record *types.ResumeRecord) (string, error)
}

// Scorer ATS 评分
type Scorer interface {
	Score(record *types.ResumeRecord, text, jobDescription string) types.ScoreBreakdown
}

//
// 存储相关接口，均为可选
//

// ReportStore 持久化分析报告。original 为原始 PDF 字节，实现可选择归档
type ReportStore interface {
	SaveReport(ctx context.Context, report *types.AnalysisReport, original []byte) (string, error)
}

// ReportReader 按 ID 读取报告
type ReportReader interface {
	GetReport(ctx context.Context, id string) (*types.AnalysisReport, error)
}

// ResultCache 以文件指纹为键的结果缓存，未命中返回 nil, nil
type ResultCache interface {
	GetResult(ctx context.Context, fingerprint string) (*types.PipelineResult, error)
	SetResult(ctx context.Context, fingerprint string, result *types.PipelineResult, ttl time.Duration) error
}

// QuotaChecker 配额护栏，*ratelimit.QuotaGuard 满足
type QuotaChecker interface {
	Check() error
}
