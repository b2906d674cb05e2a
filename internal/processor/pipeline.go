package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"ats-resume-go/internal/parser"
	"ats-resume-go/internal/scoring"
	"ats-resume-go/internal/tracing"
	"ats-resume-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// 定义tracer
var tracer = otel.Tracer("processor")

// ErrMissingComponent 必需组件未注入
var ErrMissingComponent = errors.New("pipeline component is not initialized")

// Document 一份待分析的文档
type Document struct {
	Name           string
	Data           []byte
	JobDescription string
}

// ResumePipeline 单份简历的处理流水线：
// Received -> TextExtracted -> AIExtracted -> Normalized -> Scored -> Persisted -> Done。
// 任一阶段失败立即返回，不重试；持久化失败只记录警告。
// 实例创建后只读，可被多个 goroutine 共享。
type ResumePipeline struct {
	comp Components
	set  Settings
}

// NewResumePipeline 创建流水线，PDFExtractor / Extractor / Scorer 必须提供
func NewResumePipeline(comp *Components, set *Settings, opts ...SettingOpt) (*ResumePipeline, error) {
	if comp == nil || comp.PDFExtractor == nil || comp.Extractor == nil || comp.Scorer == nil {
		return nil, ErrMissingComponent
	}
	settings := defaultSettings()
	if set != nil {
		settings = *set
	}
	for _, opt := range opts {
		opt(&settings)
	}
	return &ResumePipeline{comp: *comp, set: settings}, nil
}

// Process 执行完整流水线
func (p *ResumePipeline) Process(ctx context.Context, doc Document) (*types.PipelineResult, error) {
	ctx, span := tracer.Start(ctx, "ResumePipeline.Process",
		trace.WithAttributes(
			attribute.String("doc.uri", doc.Name),
			attribute.Int("file_size_bytes", len(doc.Data)),
			attribute.Bool("has_job_description", strings.TrimSpace(doc.JobDescription) != ""),
		))
	defer span.End()

	if p.set.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.set.ItemTimeout)
		defer cancel()
	}

	logger := p.set.Logger.With().Str("file", doc.Name).Logger()
	start := time.Now()

	// Received
	if len(doc.Data) == 0 {
		return nil, p.fail(span, logger, NewEmptyDocumentError("validate", MsgEmptyFile))
	}

	jd := parser.CleanJobDescription(doc.JobDescription)
	fileMD5 := hashHex(doc.Data)
	fingerprint := Fingerprint(doc.Data, jd)

	if cached := p.lookupCache(ctx, fingerprint, logger); cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		logger.Info().Str("report_id", cached.ReportID).Msg("命中结果缓存，跳过模型调用")
		return cached, nil
	}

	text, err := p.comp.PDFExtractor.ExtractText(ctx, doc.Data, doc.Name)
	if err != nil {
		return nil, p.fail(span, logger, NewTextExtractionError("extract_text", err))
	}
	if strings.TrimSpace(text) == "" {
		return nil, p.fail(span, logger, NewEmptyDocumentError("extract_text", MsgNoReadableText))
	}
	p.advance(span, logger, StageTextExtracted)

	record, err := p.comp.Extractor.Extract(ctx, text, jd)
	if err != nil {
		return nil, p.fail(span, logger, fromExtractorError("extract_structured", err))
	}
	p.advance(span, logger, StageAIExtracted)
	span.SetAttributes(
		attribute.String("candidate.name", tracing.SafeAttributeValue("candidate.name", record.Name.String(), tracing.DefaultMaxLength)),
		attribute.String("candidate.email", tracing.SafeAttributeValue("candidate.email", record.Email.String(), tracing.DefaultMaxLength)),
	)

	// 语言字段已在抽取阶段归一化，这里只补齐角色
	p.fillRole(ctx, record, logger)
	p.advance(span, logger, StageNormalized)

	breakdown := p.comp.Scorer.Score(record, text, jd)
	result := &types.PipelineResult{
		Data:         record,
		ATSScore:     breakdown.Total,
		ATSBreakdown: breakdown,
		WordCount:    scoring.WordCount(text),
	}
	span.SetAttributes(attribute.Float64("ats.score", result.ATSScore), attribute.Int("word_count", result.WordCount))
	p.advance(span, logger, StageScored)

	result.ReportID = p.persist(ctx, &types.AnalysisReport{
		FileName:       doc.Name,
		FileMD5:        fileMD5,
		JobDescription: jd,
		ExtractedText:  text,
		Result:         result,
		CreatedAt:      time.Now(),
	}, doc.Data, logger)
	p.storeCache(ctx, fingerprint, result, logger)

	span.SetAttributes(attribute.String("pipeline.stage", string(StageDone)))
	span.SetStatus(codes.Ok, "")
	logger.Info().
		Float64("ats_score", result.ATSScore).
		Int("word_count", result.WordCount).
		Str("report_id", result.ReportID).
		Dur("elapsed", time.Since(start)).
		Msg("简历分析完成")
	return result, nil
}

func (p *ResumePipeline) advance(span trace.Span, logger zerolog.Logger, stage Stage) {
	span.AddEvent(string(stage))
	logger.Debug().Str("stage", string(stage)).Msg("stage reached")
}

func (p *ResumePipeline) fail(span trace.Span, logger zerolog.Logger, err error) error {
	var pe *PipelineError
	errType := tracing.ErrorTypeInternal
	if errors.As(err, &pe) {
		span.SetAttributes(attribute.String("pipeline.stage", string(pe.Stage)), attribute.String("pipeline.op", pe.Op))
		switch {
		case errors.Is(pe.BaseErr, ErrEmptyDocument):
			errType = tracing.ErrorTypeValidation
		case errors.Is(pe.BaseErr, ErrAIParse):
			errType = tracing.ErrorTypeParse
			span.SetAttributes(attribute.String("ai.raw_output", tracing.SafeModelOutput(pe.Raw)))
		case errors.Is(pe.BaseErr, ErrQuotaExhausted):
			errType = tracing.ErrorTypeQuota
		case errors.Is(pe.BaseErr, ErrAIRequest):
			errType = tracing.ErrorTypeLLM
		}
	}
	tracing.RecordError(span, err, errType)

	evt := logger.Warn().Err(err)
	if pe != nil {
		evt = evt.Str("stage", string(pe.Stage)).Str("op", pe.Op)
		if pe.Cause != nil {
			evt = evt.AnErr("cause", pe.Cause)
		}
	}
	evt.Msg("简历分析失败")
	return err
}

// fillRole 模型未给出 role_match 时尝试二次推断，失败只记录
func (p *ResumePipeline) fillRole(ctx context.Context, record *types.ResumeRecord, logger zerolog.Logger) {
	if p.comp.RoleInferrer == nil || strings.TrimSpace(record.RoleMatch.String()) != "" {
		return
	}
	role, err := p.comp.RoleInferrer.InferRole(ctx, record)
	if err != nil {
		logger.Warn().Err(err).Msg("角色推断失败，role_match 保持为空")
		return
	}
	record.RoleMatch = types.FlexString(role)
}

// persist 尽力持久化，与请求上下文的取消解耦
func (p *ResumePipeline) persist(ctx context.Context, report *types.AnalysisReport, original []byte, logger zerolog.Logger) string {
	if p.comp.Store == nil {
		return ""
	}
	ctx, span := tracer.Start(ctx, "ResumePipeline.persist")
	defer span.End()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.set.PersistTimeout)
	defer cancel()

	id, err := p.comp.Store.SaveReport(persistCtx, report, original)
	if err != nil {
		warn := NewPersistenceError("save_report", err)
		tracing.RecordError(span, warn, tracing.ErrorTypeDB)
		logger.Warn().Err(err).Str("warning", "PersistenceWarning").Msg("分析结果持久化失败，结果仍返回给调用方")
		return ""
	}
	span.SetAttributes(attribute.String("report.id", id))
	span.AddEvent(string(StagePersisted))
	return id
}

func (p *ResumePipeline) lookupCache(ctx context.Context, fingerprint string, logger zerolog.Logger) *types.PipelineResult {
	if p.comp.Cache == nil {
		return nil
	}
	cached, err := p.comp.Cache.GetResult(ctx, fingerprint)
	if err != nil {
		logger.Warn().Err(err).Msg("读取结果缓存失败，继续正常处理")
		return nil
	}
	if cached == nil {
		return nil
	}
	out := *cached
	out.Cached = true
	return &out
}

func (p *ResumePipeline) storeCache(ctx context.Context, fingerprint string, result *types.PipelineResult, logger zerolog.Logger) {
	if p.comp.Cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.set.PersistTimeout)
	defer cancel()
	if err := p.comp.Cache.SetResult(cacheCtx, fingerprint, result, p.set.CacheTTL); err != nil {
		logger.Warn().Err(err).Msg("写入结果缓存失败")
	}
}

// Fingerprint 文件字节与清洗后 JD 的组合指纹，用作缓存键
func Fingerprint(data []byte, jobDescription string) string {
	return hashHex(data) + ":" + hashHex([]byte(jobDescription))
}

func hashHex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
