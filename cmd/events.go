package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/logger"
	"ats-resume-go/internal/storage"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Consume analysis.completed events from RabbitMQ and log them",
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if !cfg.RabbitMQ.Enabled || cfg.RabbitMQ.CompletedQueue == "" {
		return fmt.Errorf("需要启用 rabbitmq 并配置 completed_queue")
	}
	logger.Init(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format, TimeFormat: cfg.Logger.TimeFormat})
	log := logger.Component("events")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mq, err := storage.NewRabbitMQ(&cfg.RabbitMQ, logger.Logger)
	if err != nil {
		return err
	}
	defer mq.Close()
	if err := mq.SetupTopology(); err != nil {
		return err
	}

	prefetch := cfg.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = 10
	}
	done, err := mq.StartConsumer(ctx, cfg.RabbitMQ.CompletedQueue, prefetch, func(body []byte) bool {
		var msg storage.AnalysisCompletedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			// 格式错误的消息重新入队也无法处理，直接确认丢弃
			log.Error().Err(err).Str("body", string(body)).Msg("无法解析分析事件")
			return true
		}
		log.Info().
			Str("report_id", msg.ReportID).
			Str("file", msg.FileName).
			Str("role_match", msg.RoleMatch).
			Float64("ats_score", msg.ATSScore).
			Bool("has_jd", msg.HasJD).
			Time("completed_at", msg.CompletedAt).
			Msg(storage.EventTypeAnalysisCompleted)
		return true
	})
	if err != nil {
		return err
	}
	<-done
	return nil
}
