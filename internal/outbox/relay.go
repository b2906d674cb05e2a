// Package outbox 把 outbox_messages 表里的分析事件投递到 RabbitMQ
package outbox

import (
	"context"
	"sync"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/storage"
	"ats-resume-go/internal/storage/models"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	defaultMaxRetries      = 5
	publishTimeout         = 10 * time.Second
)

// Publisher 消息发布器，*storage.RabbitMQ 满足
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

var _ Publisher = (*storage.RabbitMQ)(nil)

// MessageRelay 轮询 outbox 表并发布消息
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	tracer          trace.Tracer

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

// NewMessageRelay 创建中继，零值配置使用默认值
func NewMessageRelay(db *gorm.DB, publisher Publisher, cfg config.OutboxConfig, logger zerolog.Logger) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger.With().Str("component", "outbox-relay").Logger(),
		pollingInterval: config.GetDuration(cfg.PollInterval, defaultPollingInterval),
		batchSize:       cfg.BatchSize,
		maxRetries:      cfg.MaxRetries,
		tracer:          otel.Tracer("outbox-relay"),
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxRetries <= 0 {
		r.maxRetries = defaultMaxRetries
	}
	return r
}

// Start 后台轮询，直到 Stop 或 ctx 结束
func (r *MessageRelay) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.pollingInterval).Int("batch_size", r.batchSize).Msg("MessageRelay starting")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		defer close(r.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("MessageRelay stopped")
				return
			case <-ctx.Done():
				r.logger.Info().Msg("MessageRelay stopped by context")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(ctx); err != nil {
					r.logger.Error().Err(err).Msg("处理待投递消息失败")
				}
			}
		}
	}()
}

// Stop 发出停止信号并等待当前批次结束
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	<-r.stopped
}

// processPendingMessages 锁定一批 PENDING 消息并逐条发布。
// FOR UPDATE SKIP LOCKED 让多个实例可以同时轮询。
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", storage.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}
	// 空轮询不建 span
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		r.deliver(ctx, msg, time.Now())
		if err := tx.Save(msg).Error; err != nil {
			// 整批回滚，下次轮询重新拾取
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return tx.Commit().Error
}

// deliver 发布一条消息并更新其状态字段，不落库
func (r *MessageRelay) deliver(ctx context.Context, msg *models.OutboxMessage, now time.Time) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := r.publisher.PublishMessage(pubCtx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
	if err != nil {
		msg.RetryCount++
		msg.ErrorMessage = err.Error()
		if msg.RetryCount >= r.maxRetries {
			msg.Status = storage.OutboxStatusFailed
		}
		r.logger.Warn().Err(err).
			Uint64("id", msg.ID).
			Str("aggregate_id", msg.AggregateID).
			Int("retries", msg.RetryCount).
			Str("status", msg.Status).
			Msg("outbox消息发布失败")
		return
	}

	msg.Status = storage.OutboxStatusSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}
