package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// ErrMissingQuery 问答请求没有问题
var ErrMissingQuery = errors.New("missing query")

const advisorSystemMessage = "Be clear, concise, and helpful."

const advisorPromptTemplate = `
You are a career AI assistant.
Use the following resume data to provide helpful, accurate, and personalized career advice.

Resume Data:
%s

User Question:
%s
`

// CareerAdvisor 基于结构化简历回答用户问题
type CareerAdvisor struct {
	llmModel    model.ToolCallingChatModel
	modelName   string
	temperature float32
}

// NewCareerAdvisor 创建问答助手
func NewCareerAdvisor(llmModel model.ToolCallingChatModel, modelName string) *CareerAdvisor {
	return &CareerAdvisor{llmModel: llmModel, modelName: modelName, temperature: 0.3}
}

// Answer resumeData 可以是任意可 JSON 序列化的值，通常是 ResumeRecord 或前端回传的 map
func (a *CareerAdvisor) Answer(ctx context.Context, query string, resumeData any) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrMissingQuery
	}
	if a.llmModel == nil {
		return "", &AIRequestError{Cause: fmt.Errorf("LLM client not configured")}
	}
	if resumeData == nil {
		resumeData = map[string]any{}
	}
	dataJSON, err := json.MarshalIndent(resumeData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化简历数据失败: %w", err)
	}

	opts := []model.Option{model.WithTemperature(a.temperature)}
	if a.modelName != "" {
		opts = append(opts, model.WithModel(a.modelName))
	}
	resp, err := a.llmModel.Generate(ctx, []*einoschema.Message{
		einoschema.SystemMessage(advisorSystemMessage),
		einoschema.UserMessage(fmt.Sprintf(advisorPromptTemplate, dataJSON, query)),
	}, opts...)
	if err != nil {
		return "", &AIRequestError{Cause: err}
	}
	if resp == nil {
		return "", &AIRequestError{Cause: ErrEmptyModelResponse}
	}
	return strings.TrimSpace(resp.Content), nil
}
