package processor

import (
	"context"
	"fmt"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/parser"

	"github.com/rs/zerolog"
)

// BuildPDFExtractor 统一构建PDF解析器的逻辑，根据 extraction.pdf_backend 选择实现
func BuildPDFExtractor(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (PDFExtractor, error) {
	timeout := config.GetDuration(cfg.Extraction.PDFTimeout, parser.DefaultPDFTimeout)

	switch cfg.Extraction.PDFBackend {
	case "tika":
		if cfg.Extraction.TikaURL == "" {
			return nil, fmt.Errorf("pdf_backend 为 tika 时 tika_url 不能为空")
		}
		logger.Info().Str("tika_url", cfg.Extraction.TikaURL).Msg("使用 Tika PDF 解析器")
		return parser.NewTikaPDFExtractor(cfg.Extraction.TikaURL,
			parser.WithTimeout(timeout),
			parser.WithTikaLogger(logger.With().Str("component", "tika_pdf").Logger()),
		), nil
	case "", "eino":
		logger.Info().Dur("timeout", timeout).Msg("使用 Eino PDF 解析器")
		return parser.NewEinoPDFTextExtractor(ctx,
			parser.WithPDFTimeout(timeout),
			parser.WithEinoLogger(logger.With().Str("component", "eino_pdf").Logger()),
		)
	default:
		return nil, fmt.Errorf("未知的 pdf_backend: %s", cfg.Extraction.PDFBackend)
	}
}

// 编译期检查
var (
	_ PDFExtractor = (*parser.EinoPDFTextExtractor)(nil)
	_ PDFExtractor = (*parser.TikaPDFExtractor)(nil)
)
