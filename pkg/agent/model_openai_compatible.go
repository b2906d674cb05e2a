package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ats-resume-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultOpenRouterBaseURL OpenRouter 的 OpenAI 兼容入口
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenAIModelName   = "gpt-4.1-mini"

	headerRemainingRequests = "x-ratelimit-remaining-requests"
	headerResetRequests     = "x-ratelimit-reset-requests"
)

// QuotaObserver 接收上游返回的剩余配额信号
type QuotaObserver interface {
	ObserveRemaining(remaining int, reset time.Duration)
}

// OpenAICompatibleChatModel 通过 OpenAI 兼容的 /chat/completions 接口调用模型(OpenRouter 等)
type OpenAICompatibleChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
	observer   QuotaObserver
	logger     zerolog.Logger
}

// OpenAIOption 可选配置
type OpenAIOption func(*OpenAICompatibleChatModel)

// WithHTTPClient 自定义 HTTP 客户端
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(m *OpenAICompatibleChatModel) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithQuotaObserver 把响应头里的剩余配额上报给观察者
func WithQuotaObserver(o QuotaObserver) OpenAIOption {
	return func(m *OpenAICompatibleChatModel) { m.observer = o }
}

// NewOpenAICompatibleChatModel baseURL 为空时使用 OpenRouter
func NewOpenAICompatibleChatModel(apiKey, modelName, baseURL string, opts ...OpenAIOption) (*OpenAICompatibleChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultOpenAIModelName
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOpenRouterBaseURL
	}

	m := &OpenAICompatibleChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     strings.TrimRight(baseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     log.Logger.With().Str("component", "openai_compatible_model").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float32      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Generate 实现 model.BaseChatModel。支持 WithModel/WithTemperature/WithMaxTokens/WithTopP/WithStop
func (m *OpenAICompatibleChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	opts := model.GetCommonOptions(&model.Options{Model: &m.modelName}, options...)

	payload := chatCompletionRequest{
		Model:       m.modelName,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
	}
	if opts.Model != nil && *opts.Model != "" {
		payload.Model = *opts.Model
	}
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		payload.Messages = append(payload.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	m.reportQuota(httpResp.Header)

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	m.logger.Debug().
		Str("model", payload.Model).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("模型响应")

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return nil, &ratelimit.QuotaError{
			StatusCode: httpResp.StatusCode,
			RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After")),
			Body:       truncateBody(respBody),
		}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, truncateBody(respBody))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", truncateBody(respBody))
	}

	choice := completion.Choices[0].Message
	content := ""
	if choice.Content != nil {
		content = *choice.Content
	}
	out := schema.AssistantMessage(content, nil)
	if completion.Usage != nil {
		out.ResponseMeta = &schema.ResponseMeta{
			FinishReason: completion.Choices[0].FinishReason,
			Usage: &schema.TokenUsage{
				PromptTokens:     completion.Usage.PromptTokens,
				CompletionTokens: completion.Usage.CompletionTokens,
				TotalTokens:      completion.Usage.TotalTokens,
			},
		}
	}
	return out, nil
}

func (m *OpenAICompatibleChatModel) reportQuota(h http.Header) {
	if m.observer == nil {
		return
	}
	raw := h.Get(headerRemainingRequests)
	if raw == "" {
		return
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return
	}
	m.observer.ObserveRemaining(remaining, parseRetryAfter(h.Get(headerResetRequests)))
}

// parseRetryAfter 支持秒数("30")或 Go duration("1m30s"、"20ms")
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return 0
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Stream 未实现
func (m *OpenAICompatibleChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenAICompatibleChatModel 的 Stream 方法未实现")
}

// WithTools 简历分析不使用工具调用
func (m *OpenAICompatibleChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) == 0 {
		return m, nil
	}
	return nil, fmt.Errorf("OpenAICompatibleChatModel 不支持工具调用")
}

var _ model.ToolCallingChatModel = (*OpenAICompatibleChatModel)(nil)
