package processor

import (
	"context"
	"fmt"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/parser"
	"ats-resume-go/internal/scoring"
	"ats-resume-go/internal/vocab"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
)

// CreatePipelineFromConfig 按配置组装流水线。存储、缓存等可选组件通过 extra 注入
func CreatePipelineFromConfig(ctx context.Context, cfg *config.Config, llm model.ToolCallingChatModel, logger zerolog.Logger, extra ...ComponentOpt) (*ResumePipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if llm == nil {
		return nil, fmt.Errorf("文本补全模型未初始化")
	}

	pdfExtractor, err := BuildPDFExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化PDF解析器失败: %w", err)
	}

	words := vocab.FromConfig(cfg.Vocabulary)
	extractorOpts := append(parser.ExtractorOptionsFromConfig(cfg, words),
		parser.WithExtractorLogger(logger.With().Str("component", "resume_extractor").Logger()))

	comp := &Components{
		PDFExtractor: pdfExtractor,
		Extractor:    parser.NewLLMResumeExtractor(llm, extractorOpts...),
		Scorer:       scoring.NewEngine(words, scoring.RubricFromConfig(cfg.Scoring)),
	}
	if cfg.Pipeline.InferRole {
		comp.RoleInferrer = parser.NewLLMRoleInferrer(llm, cfg.GetModelForTask("role"))
	}
	for _, opt := range extra {
		opt(comp)
	}

	return NewResumePipeline(comp, nil,
		WithLogger(logger.With().Str("component", "resume_pipeline").Logger()),
		WithItemTimeout(config.GetDuration(cfg.Pipeline.ItemTimeout, 0)),
		WithPersistTimeout(config.GetDuration(cfg.Pipeline.PersistTimeout, 0)),
		WithCacheTTL(config.GetDuration(cfg.Pipeline.CacheTTL, 0)),
	)
}
