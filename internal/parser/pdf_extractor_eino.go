package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultPDFTimeout 单个文档解析超时
const DefaultPDFTimeout = 30 * time.Second

// EinoPDFTextExtractor 使用 Eino PDF Parser 提取文本，按页解析后用换行拼接
type EinoPDFTextExtractor struct {
	parser  *pdf.PDFParser
	logger  zerolog.Logger
	timeout time.Duration
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithEinoLogger 配置日志记录器
func WithEinoLogger(logger zerolog.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.logger = logger
	}
}

// WithPDFTimeout 覆盖默认超时
func WithPDFTimeout(d time.Duration) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEinoPDFTextExtractor 初始化 Eino PDF 文本提取器
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &EinoPDFTextExtractor{
		parser:  p,
		logger:  log.Logger.With().Str("component", "pdf_extractor").Logger(),
		timeout: DefaultPDFTimeout,
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// ExtractText 从 PDF 字节提取纯文本，各页之间以 "\n" 连接。
// 空字节或无法解析的文档返回错误；没有可读文字时返回空串，由调用方判定。
func (e *EinoPDFTextExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF payload for %s", uri)
	}

	ctx, span := tracer.Start(ctx, "EinoPDFTextExtractor.ExtractText")
	defer span.End()
	span.SetAttributes(attribute.Int("file_size_bytes", len(data)))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]any{"source_uri": uri}),
	)
	if err != nil {
		e.logger.Error().Err(err).Str("uri", uri).Dur("elapsed", time.Since(start)).Msg("PDF解析失败")
		return "", fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, err)
	}

	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc != nil {
			pages = append(pages, doc.Content)
		}
	}
	text := strings.Join(pages, "\n")

	span.SetAttributes(attribute.Int("pdf.pages", len(pages)), attribute.Int("text_length", len(text)))
	e.logger.Debug().
		Str("uri", uri).
		Int("pages", len(pages)).
		Int("chars", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("PDF提取完成")
	return text, nil
}

// ExtractFromFile 读取本地 PDF 文件并提取文本
func (e *EinoPDFTextExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF file %s: %w", filePath, err)
	}
	return e.ExtractText(ctx, data, filePath)
}
