package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// offlineRecord provider=mock 时返回的固定抽取结果，用于本地联调
const offlineRecord = `{"name":"","email":"","phone":"","linkedin":"","github":"","leetcode":"","codechef":"",
"languages":[],"education":{"10th":{},"12th":{},"bachelor":{}},"skills":{"technical":[],"soft":[]},
"certificates":[],"experience":[],"projects":[],"role_match":"","summary":"offline mock response"}`

// NewChatModel 按配置创建模型客户端，并套上限流与配额守卫
func NewChatModel(ctx context.Context, cfg *config.Config, guard *ratelimit.QuotaGuard) (model.ToolCallingChatModel, error) {
	var (
		base      model.ToolCallingChatModel
		modelName string
		err       error
	)

	switch strings.ToLower(cfg.LLM.Provider) {
	case "gemini":
		modelName = cfg.LLM.Gemini.Model
		base, err = NewGeminiChatModel(ctx, cfg.LLM.Gemini.APIKey, modelName)
	case "mock":
		modelName = "mock"
		base = &MockChatClient{Respond: offlineRespond}
	default:
		modelName = cfg.LLM.Model
		var opts []OpenAIOption
		if guard != nil {
			opts = append(opts, WithQuotaObserver(guard))
		}
		if d := config.GetDuration(cfg.LLM.Timeout, 0); d > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: d}))
		}
		base, err = NewOpenAICompatibleChatModel(cfg.LLM.APIKey, modelName, cfg.LLM.BaseURL, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("创建模型客户端失败(provider=%s): %w", cfg.LLM.Provider, err)
	}

	return ratelimit.NewLLMWithRateLimit(
		base,
		modelName,
		cfg.ModelQPMLimits,
		cfg.LLM.QPM,
		cfg.LLM.MaxRetries,
		time.Duration(cfg.LLM.RetryWaitSeconds)*time.Second,
		guard,
	), nil
}

func offlineRespond(messages []*schema.Message) (string, error) {
	for _, m := range messages {
		if m != nil && m.Role == schema.System && strings.Contains(m.Content, "JSON") {
			return offlineRecord, nil
		}
	}
	return "offline mock response", nil
}
