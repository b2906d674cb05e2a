package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ats-resume-go/internal/api/handler"
	"ats-resume-go/internal/api/router"
	"ats-resume-go/internal/logger"
	"ats-resume-go/internal/outbox"
	"ats-resume-go/internal/parser"
	"ats-resume-go/internal/processor"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Listen address, overrides server.address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bootstrap(ctx, bootstrapOptions{withStorage: true})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	var relay *outbox.MessageRelay
	if a.cfg.Outbox.Enabled && a.storage.MySQL != nil && a.storage.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(a.storage.MySQL.DB(), a.storage.RabbitMQ, a.cfg.Outbox, a.logger)
		relay.Start(ctx)
		a.logger.Info().Msg("消息中继服务已启动")
	}

	opts := []handler.Option{
		handler.WithFilter(processor.NewResumeFilter(a.batchRunner())),
		handler.WithAdvisor(parser.NewCareerAdvisor(a.llm, a.cfg.GetModelForTask("chat"))),
		handler.WithMaxUploadMB(a.cfg.Pipeline.MaxUploadMB),
		handler.WithLogger(logger.Component("resume_handler")),
	}
	if a.storage.HasReportStore() {
		opts = append(opts, handler.WithReportReader(a.storage))
	}
	resumeHandler := handler.NewResumeHandler(a.pipeline, opts...)

	address := a.cfg.Server.Address
	if serveAddress != "" {
		address = serveAddress
	}
	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	router.RegisterRoutes(h, resumeHandler, logger.Component("http"))

	a.logger.Info().Str("address", address).Str("version", version).Msg("HTTP 服务器启动中")
	go func() {
		if err := h.Run(); err != nil {
			a.logger.Error().Err(err).Msg("HTTP服务器退出")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		a.logger.Info().Msg("接收到终止信号，正在优雅退出...")
	case <-ctx.Done():
	}

	if relay != nil {
		relay.Stop()
		a.logger.Info().Msg("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("服务器关闭失败")
		return err
	}
	a.logger.Info().Msg("优雅退出完成")
	return nil
}
