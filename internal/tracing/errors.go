package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType span 上 error.type 属性的取值，按失败来源分类
type ErrorType string

const (
	ErrorTypeLLM        ErrorType = "llm"   // 文本补全服务
	ErrorTypeQuota      ErrorType = "quota" // 配额耗尽
	ErrorTypeParse      ErrorType = "parse" // PDF 或模型输出解析
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDB         ErrorType = "db"
	ErrorTypeInternal   ErrorType = "internal"
)

// RecordError 记录错误并把 span 置为 Error，extra 追加到 span 属性
func RecordError(span trace.Span, err error, errorType ErrorType, extra ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	attrs := append([]attribute.KeyValue{
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	}, extra...)
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Error, err.Error())
}
