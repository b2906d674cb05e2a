package processor

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Components 聚合流水线的功能组件，便于集中管理和测试替换
type Components struct {
	// 必需
	PDFExtractor PDFExtractor
	Extractor    StructuredExtractor
	Scorer       Scorer

	// 可选
	RoleInferrer RoleInferrer
	Store        ReportStore
	Cache        ResultCache
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Logger         zerolog.Logger
	ItemTimeout    time.Duration // 单份文档的总超时，0 表示不限制
	PersistTimeout time.Duration // 持久化超时，与请求上下文解耦
	CacheTTL       time.Duration
}

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

func defaultSettings() Settings {
	return Settings{
		Logger:         log.Logger.With().Str("component", "resume_pipeline").Logger(),
		PersistTimeout: 10 * time.Second,
		CacheTTL:       24 * time.Hour,
	}
}

// ----- 组件选项 -----

// WithPDFExtractor 设置PDF提取器组件
func WithPDFExtractor(e PDFExtractor) ComponentOpt {
	return func(c *Components) { c.PDFExtractor = e }
}

// WithExtractor 设置结构化抽取组件
func WithExtractor(e StructuredExtractor) ComponentOpt {
	return func(c *Components) { c.Extractor = e }
}

// WithScorer 设置评分组件
func WithScorer(s Scorer) ComponentOpt {
	return func(c *Components) { c.Scorer = s }
}

// WithRoleInferrer 设置角色推断组件
func WithRoleInferrer(r RoleInferrer) ComponentOpt {
	return func(c *Components) { c.RoleInferrer = r }
}

// WithReportStore 设置报告存储
func WithReportStore(s ReportStore) ComponentOpt {
	return func(c *Components) { c.Store = s }
}

// WithResultCache 设置结果缓存
func WithResultCache(cache ResultCache) ComponentOpt {
	return func(c *Components) { c.Cache = cache }
}

// ----- 设置选项 -----

// WithLogger 设置日志记录器
func WithLogger(logger zerolog.Logger) SettingOpt {
	return func(s *Settings) { s.Logger = logger }
}

// WithItemTimeout 设置单份文档超时
func WithItemTimeout(d time.Duration) SettingOpt {
	return func(s *Settings) {
		if d >= 0 {
			s.ItemTimeout = d
		}
	}
}

// WithPersistTimeout 设置持久化超时
func WithPersistTimeout(d time.Duration) SettingOpt {
	return func(s *Settings) {
		if d > 0 {
			s.PersistTimeout = d
		}
	}
}

// WithCacheTTL 设置缓存有效期
func WithCacheTTL(d time.Duration) SettingOpt {
	return func(s *Settings) {
		if d > 0 {
			s.CacheTTL = d
		}
	}
}
