package parser

import (
	"context"
	"fmt"
	"strings"

	"ats-resume-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

const roleSystemMessage = "Answer with a job title only. No punctuation, no commentary."

// 最长保留的职位名长度(rune)
const maxRoleTitleRunes = 80

// LLMRoleInferrer 在抽取结果没有 role_match 时，用一次额外调用给出最适合的职位名
type LLMRoleInferrer struct {
	llmModel  model.ToolCallingChatModel
	modelName string
}

// NewLLMRoleInferrer 创建职位推断器
func NewLLMRoleInferrer(llmModel model.ToolCallingChatModel, modelName string) *LLMRoleInferrer {
	return &LLMRoleInferrer{llmModel: llmModel, modelName: modelName}
}

// InferRole 根据技能、证书和摘要推断职位
func (r *LLMRoleInferrer) InferRole(ctx context.Context, record *types.ResumeRecord) (string, error) {
	if r.llmModel == nil {
		return "", &AIRequestError{Cause: fmt.Errorf("LLM client not configured")}
	}
	if record == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("Suggest the single job title that best fits this candidate.\n")
	if len(record.Skills.Technical) > 0 {
		fmt.Fprintf(&sb, "Technical skills: %s\n", strings.Join(record.Skills.Technical, ", "))
	}
	if len(record.Certificates) > 0 {
		fmt.Fprintf(&sb, "Certificates: %s\n", strings.Join(record.Certificates, ", "))
	}
	if deg := record.Education.Bachelor.Degree.String(); deg != "" {
		fmt.Fprintf(&sb, "Degree: %s\n", deg)
	}
	if record.Summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", record.Summary)
	}

	opts := []model.Option{model.WithTemperature(0.2), model.WithMaxTokens(32)}
	if r.modelName != "" {
		opts = append(opts, model.WithModel(r.modelName))
	}
	resp, err := r.llmModel.Generate(ctx, []*einoschema.Message{
		einoschema.SystemMessage(roleSystemMessage),
		einoschema.UserMessage(sb.String()),
	}, opts...)
	if err != nil {
		return "", &AIRequestError{Cause: err}
	}
	if resp == nil {
		return "", nil
	}
	return cleanRoleTitle(resp.Content), nil
}

func cleanRoleTitle(s string) string {
	s = cleanModelOutput(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'.`)
	if runes := []rune(s); len(runes) > maxRoleTitleRunes {
		s = string(runes[:maxRoleTitleRunes])
	}
	return s
}
