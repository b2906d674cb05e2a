package main

import (
	"context"
	"fmt"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/logger"
	"ats-resume-go/internal/processor"
	"ats-resume-go/internal/storage"
	"ats-resume-go/internal/tracing"
	"ats-resume-go/pkg/agent"
	"ats-resume-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/rs/zerolog"
)

// app 各子命令共用的组件
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	guard    *ratelimit.QuotaGuard
	llm      model.ToolCallingChatModel
	storage  *storage.Storage
	pipeline *processor.ResumePipeline

	shutdownTracer tracing.ShutdownFunc
}

type bootstrapOptions struct {
	// 命令行工具默认不连存储
	withStorage bool
}

// bootstrap 加载配置并初始化日志、追踪、模型与流水线
func bootstrap(ctx context.Context, opts bootstrapOptions) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	hlog.SetLogger(hertzadapter.From(logger.Logger))

	a := &app{cfg: cfg, logger: logger.Logger}

	a.shutdownTracer, err = tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("初始化追踪失败: %w", err)
	}

	a.guard = ratelimit.NewQuotaGuard(cfg.LLM.QuotaFloor)
	a.llm, err = agent.NewChatModel(ctx, cfg, a.guard)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	var extra []processor.ComponentOpt
	if opts.withStorage {
		a.storage, err = storage.NewStorage(ctx, cfg, a.logger)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		if a.storage.HasReportStore() {
			extra = append(extra, processor.WithReportStore(a.storage))
		}
		if a.storage.HasResultCache() {
			extra = append(extra, processor.WithResultCache(a.storage))
		}
	}

	a.pipeline, err = processor.CreatePipelineFromConfig(ctx, cfg, a.llm, a.logger, extra...)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.logger.Info().
		Str("provider", cfg.LLM.Provider).
		Str("pdf_backend", cfg.Extraction.PDFBackend).
		Bool("storage", a.storage != nil).
		Msg("组件初始化完成")
	return a, nil
}

// batchRunner 批处理共用配额守卫，配额耗尽后停止派发
func (a *app) batchRunner() *processor.BatchRunner {
	return processor.NewBatchRunner(a.pipeline, a.cfg.Pipeline.BatchConcurrency,
		processor.WithQuotaChecker(a.guard),
		processor.WithBatchLogger(logger.Component("batch_runner")),
	)
}

func (a *app) close(ctx context.Context) {
	if a.storage != nil {
		a.storage.Close()
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("关闭追踪失败")
		}
	}
}
