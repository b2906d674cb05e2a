package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// TikaPDFExtractor 基于 Apache Tika 服务的 PDF 文本提取
type TikaPDFExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	Client    *http.Client

	extractAnnotations bool
	logger             zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaPDFExtractor)

// WithAnnotations 配置是否提取PDF链接注释文本
func WithAnnotations(extract bool) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.extractAnnotations = extract
	}
}

// WithTikaLogger 配置日志
func WithTikaLogger(logger zerolog.Logger) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.logger = logger
	}
}

// WithTimeout 配置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaPDFExtractor) {
		if timeout > 0 {
			e.Client.Timeout = timeout
		}
	}
}

// NewTikaPDFExtractor 创建 Tika 提取器
func NewTikaPDFExtractor(serverURL string, options ...TikaOption) *TikaPDFExtractor {
	extractor := &TikaPDFExtractor{
		ServerURL:          strings.TrimRight(serverURL, "/"),
		Client:             &http.Client{Timeout: 60 * time.Second},
		extractAnnotations: true,
		logger:             log.Logger.With().Str("component", "tika_pdf_extractor").Logger(),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

// ExtractText 把 PDF 字节 PUT 到 /tika，取纯文本
func (e *TikaPDFExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF payload for %s", uri)
	}

	ctx, span := tracer.Start(ctx, "TikaPDFExtractor.ExtractText")
	defer span.End()
	span.SetAttributes(attribute.Int("file_size_bytes", len(data)))

	start := time.Now()
	textBytes, err := e.put(ctx, "/tika", "text/plain", data, uri)
	if err != nil {
		e.logger.Error().Err(err).Str("uri", uri).Dur("elapsed", time.Since(start)).Msg("Tika 提取失败")
		return "", err
	}

	text := string(textBytes)
	span.SetAttributes(attribute.Int("text_length", len(text)))
	e.logger.Debug().Str("uri", uri).Int("chars", len(text)).Dur("elapsed", time.Since(start)).Msg("Tika 提取完成")
	return text, nil
}

// Metadata 读取 /meta 返回的文档元数据，例如页数 xmpTPg:NPages
func (e *TikaPDFExtractor) Metadata(ctx context.Context, data []byte, uri string) (map[string]any, error) {
	body, err := e.put(ctx, "/meta", "application/json", data, uri)
	if err != nil {
		return nil, err
	}
	var metadata map[string]any
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}
	return metadata, nil
}

// ExtractFromFile 读取本地 PDF 文件并提取文本
func (e *TikaPDFExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF file %s: %w", filePath, err)
	}
	return e.ExtractText(ctx, data, filePath)
}

func (e *TikaPDFExtractor) put(ctx context.Context, path, accept string, data []byte, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", accept)
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}
	if !e.extractAnnotations {
		req.Header.Set("X-Tika-PDFExtractAnnotationText", "false")
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return body, nil
}
