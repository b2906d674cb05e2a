package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/constants"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	UploadOriginal(ctx context.Context, reportID string, data []byte) (string, error)
	UploadParsedText(ctx context.Context, reportID string, text string) (string, error)
	GetOriginal(ctx context.Context, objectKey string) ([]byte, error)
	GetParsedText(ctx context.Context, objectKey string) (string, error)
	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 保存原始 PDF 与抽取出的文本
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	parsedBucket   string
	logger         zerolog.Logger
}

// OriginalObjectKey 原始文件对象名
func OriginalObjectKey(reportID string) string {
	return fmt.Sprintf(constants.OriginalObjectFormat, reportID)
}

// ParsedTextObjectKey 解析文本对象名
func ParsedTextObjectKey(reportID string) string {
	return fmt.Sprintf(constants.ParsedTextObjectFormat, reportID)
}

// NewMinIO 创建MinIO客户端，确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	logger = logger.With().Str("component", "minio").Logger()

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: defaultString(cfg.OriginalsBucket, "resume-originals"),
		parsedBucket:   defaultString(cfg.ParsedTextBucket, "parsed-text"),
		logger:         logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, bucket := range []string{m.originalBucket, m.parsedBucket} {
		if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
			return nil, err
		}
	}

	if err := m.setupLifecycleRules(ctx); err != nil {
		// 生命周期失败不影响使用
		logger.Warn().Err(err).Msg("设置存储桶生命周期失败")
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("original_bucket", m.originalBucket).
		Str("parsed_bucket", m.parsedBucket).
		Msg("MinIO客户端初始化完成")
	return m, nil
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if rule := lifecycleConfig("expire-originals", m.cfg.OriginalFileExpireDays); rule != nil {
		if err := m.client.SetBucketLifecycle(ctx, m.originalBucket, rule); err != nil {
			return fmt.Errorf("为存储桶 %s 设置生命周期失败: %w", m.originalBucket, err)
		}
	}
	if rule := lifecycleConfig("expire-parsed-text", m.cfg.ParsedTextExpireDays); rule != nil {
		if err := m.client.SetBucketLifecycle(ctx, m.parsedBucket, rule); err != nil {
			return fmt.Errorf("为存储桶 %s 设置生命周期失败: %w", m.parsedBucket, err)
		}
	}
	return nil
}

// lifecycleConfig days<=0 时不设置过期
func lifecycleConfig(ruleID string, days int) *lifecycle.Configuration {
	if days <= 0 {
		return nil
	}
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{{
		ID:         ruleID,
		Status:     "Enabled",
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
	}}
	return cfg
}

// UploadOriginal 上传原始PDF，返回对象名
func (m *MinIO) UploadOriginal(ctx context.Context, reportID string, data []byte) (string, error) {
	objectName := OriginalObjectKey(reportID)
	_, err := m.client.PutObject(ctx, m.originalBucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return "", fmt.Errorf("上传原始文件 %s 失败: %w", objectName, err)
	}
	m.logger.Debug().Str("object", objectName).Int("size", len(data)).Msg("原始文件已上传")
	return objectName, nil
}

// UploadParsedText 上传抽取出的文本
func (m *MinIO) UploadParsedText(ctx context.Context, reportID string, text string) (string, error) {
	objectName := ParsedTextObjectKey(reportID)
	_, err := m.client.PutObject(ctx, m.parsedBucket, objectName, strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("上传解析文本 %s 失败: %w", objectName, err)
	}
	return objectName, nil
}

func (m *MinIO) download(ctx context.Context, bucket, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 失败: %w", bucket, objectKey, err)
	}
	return data, nil
}

// GetOriginal 下载原始PDF
func (m *MinIO) GetOriginal(ctx context.Context, objectKey string) ([]byte, error) {
	return m.download(ctx, m.originalBucket, objectKey)
}

// GetParsedText 下载解析文本
func (m *MinIO) GetParsedText(ctx context.Context, objectKey string) (string, error) {
	data, err := m.download(ctx, m.parsedBucket, objectKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetPresignedURL 原始文件的临时下载链接
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.originalBucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}
