package processor

import (
	"errors"
	"fmt"

	"ats-resume-go/internal/parser"
	"ats-resume-go/pkg/ratelimit"
)

// 面向调用方的固定提示
const (
	MsgEmptyFile      = "Empty file received. Please upload a valid PDF."
	MsgNoReadableText = "No readable text found in the uploaded PDF."
	MsgQuotaExhausted = "AI quota exhausted. Please try again later."
	MsgBatchCancelled = "Batch cancelled before this file was processed."
)

// 定义基础错误类型
var (
	ErrEmptyDocument = errors.New("empty document")
	ErrAIRequest     = errors.New("ai request failed")
	ErrAIParse       = errors.New("ai output parse failed")
	ErrPersistence   = errors.New("persistence failed")
	// 与限流层共用同一个哨兵，errors.Is 两边都能识别
	ErrQuotaExhausted = ratelimit.ErrQuotaExhausted
	ErrBatchCancelled = errors.New("batch cancelled")
)

// Stage 流水线状态
type Stage string

const (
	StageReceived      Stage = "received"
	StageTextExtracted Stage = "text_extracted"
	StageAIExtracted   Stage = "ai_extracted"
	StageNormalized    Stage = "normalized"
	StageScored        Stage = "scored"
	StagePersisted     Stage = "persisted"
	StageDone          Stage = "done"
)

// PipelineError 流水线失败。Stage 是失败时所处的状态，Detail 是可直接返回给调用方的消息。
// Raw 仅在模型输出无法解析时保存原始文本。
type PipelineError struct {
	Stage   Stage
	Op      string
	BaseErr error
	Detail  string
	Raw     string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.BaseErr, e.Cause)
	}
	return e.BaseErr.Error()
}

// Unwrap 同时暴露分类哨兵和底层原因
func (e *PipelineError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.BaseErr}
	}
	return []error{e.BaseErr, e.Cause}
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数

func NewEmptyDocumentError(op, detail string) error {
	return &PipelineError{Stage: StageReceived, Op: op, BaseErr: ErrEmptyDocument, Detail: detail}
}

func NewTextExtractionError(op string, cause error) error {
	return &PipelineError{Stage: StageReceived, Op: op, BaseErr: ErrEmptyDocument, Detail: MsgNoReadableText, Cause: cause}
}

func NewAIRequestError(op string, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	if errors.Is(cause, ratelimit.ErrQuotaExhausted) {
		return &PipelineError{Stage: StageTextExtracted, Op: op, BaseErr: ErrQuotaExhausted, Detail: MsgQuotaExhausted, Cause: cause}
	}
	return &PipelineError{Stage: StageTextExtracted, Op: op, BaseErr: ErrAIRequest, Detail: detail, Cause: cause}
}

func NewAIParseError(op, raw string, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &PipelineError{Stage: StageTextExtracted, Op: op, BaseErr: ErrAIParse, Detail: detail, Raw: raw, Cause: cause}
}

func NewPersistenceError(op string, cause error) error {
	return &PipelineError{Stage: StageScored, Op: op, BaseErr: ErrPersistence, Cause: cause}
}

func NewCancelledError(cause error) error {
	return &PipelineError{Stage: StageReceived, Op: "batch", BaseErr: ErrBatchCancelled, Detail: MsgBatchCancelled, Cause: cause}
}

// fromExtractorError 把抽取层的错误映射为流水线错误
func fromExtractorError(op string, err error) error {
	var parseErr *parser.AIParseError
	if errors.As(err, &parseErr) {
		return NewAIParseError(op, parseErr.Raw, err)
	}
	// 其余一律视为调用失败，包括超时与配额
	return NewAIRequestError(op, err)
}

// IsClientError 输入侧问题(空文件、无法解析的 PDF 或模型输出)返回 true，HTTP 层据此选择 400 或 502
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyDocument) || errors.Is(err, ErrAIParse)
}
