package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/normalizer"
	"ats-resume-go/internal/tracing"
	"ats-resume-go/internal/types"
	"ats-resume-go/internal/vocab"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("parser")

const (
	// DefaultMaxInputChars 送入模型的最大字符数(rune)
	DefaultMaxInputChars = 80000
	// DefaultTruncatedMarker 截断后追加的标记
	DefaultTruncatedMarker = "\n...[Truncated for AI]..."

	extractionSystemMessage = "Return valid JSON only. Do not include commentary."
)

const extractionPromptTemplate = `
Extract structured resume info and return valid JSON ONLY:
{
  "name": "",
  "email": "",
  "phone": "",
  "linkedin": "",
  "github": "",
  "leetcode": "",
  "codechef": "",
  "location": "",
  "languages": [],
  "education": {
      "10th": {"school": "", "location": "", "year": "", "percentage": ""},
      "12th": {"school": "", "location": "", "year": "", "percentage": ""},
      "bachelor": {"institute": "", "location": "", "degree": "", "expected_graduation": "", "cgpa": ""}
  },
  "skills": {"technical": [], "soft": []},
  "certificates": [],
  "experience": [],
  "projects": [],
  "role_match": "",
  "summary": ""
}
"experience" and "projects" are lists with one short line per entry.
%s
Resume text:
%s
`

const (
	roleMatchWithJD    = "\"role_match\" describes how well the candidate fits this job description:\n%s\n"
	roleMatchWithoutJD = "\"role_match\" is the single job title this candidate fits best.\n"
)

// LLMResumeExtractor 调用文本补全服务把简历文本抽取为结构化记录
type LLMResumeExtractor struct {
	llmModel        model.ToolCallingChatModel
	logger          zerolog.Logger
	modelName       string
	maxInputChars   int
	truncatedMarker string
	temperature     float32
	maxTokens       int
	timeout         time.Duration
	languages       normalizer.FieldNormalizer
}

// ExtractorOption 抽取器配置选项
type ExtractorOption func(*LLMResumeExtractor)

// WithExtractorLogger 设置日志
func WithExtractorLogger(l zerolog.Logger) ExtractorOption {
	return func(e *LLMResumeExtractor) { e.logger = l }
}

// WithModelName 覆盖模型名，空串表示使用模型客户端的默认值
func WithModelName(name string) ExtractorOption {
	return func(e *LLMResumeExtractor) { e.modelName = name }
}

// WithInputLimit 设置最大输入字符数与截断标记
func WithInputLimit(maxChars int, marker string) ExtractorOption {
	return func(e *LLMResumeExtractor) {
		if maxChars > 0 {
			e.maxInputChars = maxChars
		}
		if marker != "" {
			e.truncatedMarker = marker
		}
	}
}

// WithSampling 设置温度与最大输出 token
func WithSampling(temperature float64, maxTokens int) ExtractorOption {
	return func(e *LLMResumeExtractor) {
		e.temperature = float32(temperature)
		if maxTokens > 0 {
			e.maxTokens = maxTokens
		}
	}
}

// WithExtractionTimeout 单次模型调用超时，0 表示只受调用方 ctx 约束
func WithExtractionTimeout(d time.Duration) ExtractorOption {
	return func(e *LLMResumeExtractor) { e.timeout = d }
}

// WithLanguageField 替换语言字段的规范化策略
func WithLanguageField(f normalizer.FieldNormalizer) ExtractorOption {
	return func(e *LLMResumeExtractor) { e.languages = f }
}

// ExtractorOptionsFromConfig 把配置翻译成选项
func ExtractorOptionsFromConfig(cfg *config.Config, v *vocab.Vocabulary) []ExtractorOption {
	ec := cfg.Extraction
	return []ExtractorOption{
		WithModelName(cfg.GetModelForTask("extraction")),
		WithInputLimit(ec.MaxInputChars, ec.TruncatedMarker),
		WithSampling(ec.Temperature, ec.MaxTokens),
		WithExtractionTimeout(config.GetDuration(ec.Timeout, 0)),
		WithLanguageField(normalizer.NewLanguageField(v, ec.DefaultLanguage)),
	}
}

// NewLLMResumeExtractor 创建抽取器
func NewLLMResumeExtractor(llmModel model.ToolCallingChatModel, opts ...ExtractorOption) *LLMResumeExtractor {
	e := &LLMResumeExtractor{
		llmModel:        llmModel,
		logger:          log.Logger.With().Str("component", "resume_extractor").Logger(),
		maxInputChars:   DefaultMaxInputChars,
		truncatedMarker: DefaultTruncatedMarker,
		temperature:     0.2,
		maxTokens:       2000,
		languages:       normalizer.NewLanguageField(nil, "English"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract 抽取结构化简历。
// 模型调用失败返回 *AIRequestError；输出无法解析或结构不符返回 *AIParseError，不重试。
func (e *LLMResumeExtractor) Extract(ctx context.Context, text, jobDescription string) (*types.ResumeRecord, error) {
	if e.llmModel == nil {
		return nil, &AIRequestError{Cause: fmt.Errorf("LLM client not configured")}
	}

	ctx, span := tracer.Start(ctx, "LLMResumeExtractor.Extract")
	defer span.End()

	promptText, truncated := e.truncate(text)
	span.SetAttributes(
		attribute.Int("resume.text_length", len([]rune(text))),
		attribute.Bool("resume.truncated", truncated),
		attribute.Bool("resume.has_jd", strings.TrimSpace(jobDescription) != ""),
	)

	messages := []*einoschema.Message{
		einoschema.SystemMessage(extractionSystemMessage),
		einoschema.UserMessage(buildExtractionPrompt(promptText, jobDescription)),
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.llmModel.Generate(callCtx, messages, e.modelOptions()...)
	if err != nil {
		e.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("模型调用失败")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, &AIRequestError{Cause: err}
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		tracing.RecordError(span, ErrEmptyModelResponse, tracing.ErrorTypeParse)
		return nil, &AIParseError{Err: ErrEmptyModelResponse}
	}
	e.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Str("raw", tracing.SafeModelOutput(resp.Content)).
		Msg("模型返回")

	record, err := e.decode(resp.Content, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeParse)
		e.logger.Warn().Err(err).Str("raw", tracing.SafeModelOutput(resp.Content)).Msg("模型输出解析失败")
		return nil, err
	}
	span.SetAttributes(attribute.StringSlice("resume.languages", record.Languages))
	return record, nil
}

func (e *LLMResumeExtractor) modelOptions() []model.Option {
	opts := []model.Option{
		model.WithTemperature(e.temperature),
		model.WithMaxTokens(e.maxTokens),
	}
	if e.modelName != "" {
		opts = append(opts, model.WithModel(e.modelName))
	}
	return opts
}

func (e *LLMResumeExtractor) truncate(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= e.maxInputChars {
		return text, false
	}
	return string(runes[:e.maxInputChars]) + e.truncatedMarker, true
}

func buildExtractionPrompt(text, jobDescription string) string {
	roleHint := roleMatchWithoutJD
	if jd := strings.TrimSpace(jobDescription); jd != "" {
		roleHint = fmt.Sprintf(roleMatchWithJD, jd)
	}
	return fmt.Sprintf(extractionPromptTemplate, roleHint, text)
}

// modelRecord 外层的 languages 覆盖内嵌记录的同名字段，保留模型给出的原始值
type modelRecord struct {
	types.ResumeRecord
	Languages any `json:"languages"`
}

// decode 清洗、校验并反序列化模型输出，然后做字段规范化
func (e *LLMResumeExtractor) decode(raw, text string) (*types.ResumeRecord, error) {
	cleaned := cleanModelOutput(raw)
	jsonText := extractJSONObject(cleaned)
	if jsonText == "" {
		return nil, &AIParseError{Raw: raw, Err: fmt.Errorf("no JSON object in model output")}
	}

	var m modelRecord
	if err := json.Unmarshal([]byte(jsonText), &m); err != nil {
		// 只做一次本地引号修复，不会再次调用模型
		repaired := repairQuotes(jsonText)
		if err2 := json.Unmarshal([]byte(repaired), &m); err2 != nil {
			return nil, &AIParseError{Raw: raw, Err: err}
		}
		jsonText = repaired
	}
	if err := validateShape(jsonText); err != nil {
		return nil, &AIParseError{Raw: raw, Err: err}
	}

	record := m.ResumeRecord
	record.Languages = e.languages.Apply(m.Languages, text)
	if record.Languages == nil {
		record.Languages = []string{}
	}
	record.ProfileHandles = profileHandles(&record)
	return &record, nil
}

var profileHosts = []struct {
	host  string
	value func(r *types.ResumeRecord) types.FlexString
}{
	{"github.com", func(r *types.ResumeRecord) types.FlexString { return r.GitHub }},
	{"leetcode.com", func(r *types.ResumeRecord) types.FlexString { return r.LeetCode }},
	{"codechef.com", func(r *types.ResumeRecord) types.FlexString { return r.CodeChef }},
}

func profileHandles(r *types.ResumeRecord) map[string]string {
	var out map[string]string
	for _, p := range profileHosts {
		h := normalizer.ProfileHandle(p.value(r).String(), p.host)
		if h == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(profileHosts))
		}
		out[p.host] = h
	}
	return out
}
