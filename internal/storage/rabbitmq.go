package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ats-resume-go/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// MessageQueue 消息队列接口
type MessageQueue interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
	EnsureExchange(exchangeName, exchangeType string, durable bool) error
	EnsureQueue(queueName string, durable bool) error
	BindQueue(queueName, exchangeName, routingKey string) error
	Close() error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// RabbitMQ 分析事件的发布与消费
type RabbitMQ struct {
	conn     *amqp.Connection
	channels chan *amqp.Channel
	cfg      *config.RabbitMQConfig
	logger   zerolog.Logger

	mu       sync.Mutex
	declared map[string]bool // "x:"+exchange / "q:"+queue / "b:"+exchange:queue:key
}

// NewRabbitMQ 建立连接并预热一个通道
func NewRabbitMQ(cfg *config.RabbitMQConfig, logger zerolog.Logger) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	size := cfg.ChannelPoolSize
	if size <= 0 {
		size = 4
	}
	mq := &RabbitMQ{
		conn:     conn,
		channels: make(chan *amqp.Channel, size),
		cfg:      cfg,
		logger:   logger.With().Str("component", "rabbitmq").Logger(),
		declared: make(map[string]bool),
	}

	ch, err := mq.getChannel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	mq.putChannel(ch)

	mq.logger.Info().Int("channel_pool", size).Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

func (r *RabbitMQ) getChannel() (*amqp.Channel, error) {
	for {
		select {
		case ch := <-r.channels:
			if ch.IsClosed() {
				continue
			}
			return ch, nil
		default:
			ch, err := r.conn.Channel()
			if err != nil {
				return nil, fmt.Errorf("创建RabbitMQ通道失败: %w", err)
			}
			return ch, nil
		}
	}
}

// putChannel 池满时直接关闭
func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}
	select {
	case r.channels <- ch:
	default:
		_ = ch.Close()
	}
}

func (r *RabbitMQ) once(key string, fn func(ch *amqp.Channel) error) error {
	r.mu.Lock()
	done := r.declared[key]
	r.mu.Unlock()
	if done {
		return nil
	}

	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	if err := fn(ch); err != nil {
		// 声明失败后通道会被服务端关闭，不归还
		return err
	}
	r.putChannel(ch)

	r.mu.Lock()
	r.declared[key] = true
	r.mu.Unlock()
	return nil
}

// Close 关闭通道与连接
func (r *RabbitMQ) Close() error {
	for {
		select {
		case ch := <-r.channels:
			_ = ch.Close()
		default:
			return r.conn.Close()
		}
	}
}

// EnsureExchange 确保exchange存在
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	if exchangeName == "amq.default" || exchangeName == "default" {
		return fmt.Errorf("不能声明默认交换机 '%s'", exchangeName)
	}
	return r.once("x:"+exchangeName, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(exchangeName, exchangeType, durable, false, false, false, nil); err != nil {
			return fmt.Errorf("声明exchange失败: %w", err)
		}
		r.logger.Debug().Str("exchange", exchangeName).Str("type", exchangeType).Msg("已确保exchange存在")
		return nil
	})
}

// EnsureQueue 确保队列存在
func (r *RabbitMQ) EnsureQueue(queueName string, durable bool) error {
	if queueName == "" {
		return fmt.Errorf("队列名称不能为空")
	}
	return r.once("q:"+queueName, func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(queueName, durable, false, false, false, nil); err != nil {
			return fmt.Errorf("声明队列失败: %w", err)
		}
		r.logger.Debug().Str("queue", queueName).Msg("已确保队列存在")
		return nil
	})
}

// BindQueue 绑定队列到exchange
func (r *RabbitMQ) BindQueue(queueName, exchangeName, routingKey string) error {
	key := fmt.Sprintf("b:%s:%s:%s", exchangeName, queueName, routingKey)
	return r.once(key, func(ch *amqp.Channel) error {
		if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
			return fmt.Errorf("绑定队列到exchange失败: %w", err)
		}
		return nil
	})
}

// SetupTopology 声明分析事件的 exchange，配置了队列时一并绑定
func (r *RabbitMQ) SetupTopology() error {
	if err := r.EnsureExchange(r.cfg.AnalysisExchange, "topic", true); err != nil {
		return err
	}
	if r.cfg.CompletedQueue == "" {
		return nil
	}
	if err := r.EnsureQueue(r.cfg.CompletedQueue, true); err != nil {
		return err
	}
	return r.BindQueue(r.cfg.CompletedQueue, r.cfg.AnalysisExchange, r.cfg.CompletedRoutingKey)
}

// PublishMessage 发布消息到exchange
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}
	return ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		DeliveryMode: deliveryMode,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}

// PublishJSON 发布JSON格式的消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	return r.PublishMessage(ctx, exchangeName, routingKey, raw, persistent)
}

// StartConsumer 消费队列直到 ctx 结束，handler 返回 false 时重新入队
func (r *RabbitMQ) StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler func([]byte) bool) (<-chan struct{}, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("创建消费通道失败: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ch.Close()
		r.logger.Info().Str("queue", queueName).Int("prefetch", prefetchCount).Msg("RabbitMQ消费者已启动")

		for {
			select {
			case <-ctx.Done():
				r.logger.Info().Str("queue", queueName).Msg("RabbitMQ消费者已停止")
				return
			case d, ok := <-deliveries:
				if !ok {
					r.logger.Warn().Str("queue", queueName).Msg("RabbitMQ投递通道已关闭")
					return
				}
				if handler(d.Body) {
					if err := d.Ack(false); err != nil {
						r.logger.Error().Err(err).Msg("确认消息失败")
					}
				} else if err := d.Nack(false, true); err != nil {
					r.logger.Error().Err(err).Msg("拒绝消息失败")
				}
			}
		}
	}()
	return done, nil
}
