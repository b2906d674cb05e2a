package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/constants"
	"ats-resume-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound key 不存在
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("ats-resume-go/storage/redis")

// 按 key 前缀的业务 span 采样率，redisotel 已经记录每条命令
var redisKeySamplingRates = map[string]float64{
	constants.AppPrefix + ":" + constants.AnalysisModulePrefix + ":": 0.1,
	constants.AppPrefix + ":" + constants.FileModulePrefix + ":":     0.05,
}

var (
	rnd      = rand.New(rand.NewSource(time.Now().UnixNano()))
	rndMutex sync.Mutex
)

func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis 结果缓存与文件去重
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// ResultKey 分析结果缓存 key
func ResultKey(fingerprint string) string {
	return fmt.Sprintf(constants.KeyAnalysisResult, fingerprint)
}

// NewRedisAdapter 创建 Redis 客户端并挂载 OpenTelemetry 钩子
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// MD5ExpireDuration 文件指纹记录的过期时间
func (r *Redis) MD5ExpireDuration() time.Duration {
	if r.config == nil || r.config.MD5RecordExpireDays <= 0 {
		return constants.DefaultMD5RecordExpire
	}
	return time.Duration(r.config.MD5RecordExpireDays) * 24 * time.Hour
}

// AddFileMD5 记录已分析文件的 MD5，集合已有过期时间时不覆盖
func (r *Redis) AddFileMD5(ctx context.Context, md5Hex string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	pipe := r.Client.Pipeline()
	pipe.SAdd(ctx, constants.KeyFileMD5Set, md5Hex)
	pipe.ExpireNX(ctx, constants.KeyFileMD5Set, r.MD5ExpireDuration())
	_, err := pipe.Exec(ctx)
	return err
}

// CheckFileMD5Exists 文件是否分析过
func (r *Redis) CheckFileMD5Exists(ctx context.Context, md5Hex string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	return r.Client.SIsMember(ctx, constants.KeyFileMD5Set, md5Hex).Result()
}

// GetResult 读取缓存的分析结果，未命中时返回 (nil, nil)
func (r *Redis) GetResult(ctx context.Context, fingerprint string) (*types.PipelineResult, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}
	key := ResultKey(fingerprint)

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.GetResult", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(semconv.DBSystemRedis, attribute.String("db.redis.key", key))
	}

	raw, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		if span != nil {
			span.SetAttributes(attribute.Bool("cache.hit", false))
		}
		return nil, nil
	}
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, fmt.Errorf("读取结果缓存失败: %w", err)
	}

	result, err := DecodeCachedResult(raw)
	if err != nil {
		// 损坏的缓存直接删掉，按未命中处理
		_ = r.Client.Del(ctx, key).Err()
		return nil, nil
	}
	if span != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
	}
	return result, nil
}

// SetResult 写入分析结果缓存
func (r *Redis) SetResult(ctx context.Context, fingerprint string, result *types.PipelineResult, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if result == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = constants.DefaultResultCacheTTL
	}
	raw, err := EncodeCachedResult(result)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, ResultKey(fingerprint), raw, ttl).Err(); err != nil {
		return fmt.Errorf("写入结果缓存失败: %w", err)
	}
	return nil
}

// EncodeCachedResult 缓存里不保存 cached 标记
func EncodeCachedResult(result *types.PipelineResult) ([]byte, error) {
	c := *result
	c.Cached = false
	raw, err := json.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("序列化分析结果失败: %w", err)
	}
	return raw, nil
}

// DecodeCachedResult 反序列化缓存内容
func DecodeCachedResult(raw []byte) (*types.PipelineResult, error) {
	var result types.PipelineResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("反序列化分析结果失败: %w", err)
	}
	if result.Data == nil {
		return nil, fmt.Errorf("缓存的分析结果缺少 data")
	}
	return &result, nil
}
