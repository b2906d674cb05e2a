package parser

import (
	"errors"
	"fmt"
)

// ErrEmptyModelResponse 模型返回了空内容
var ErrEmptyModelResponse = errors.New("model returned empty response")

// AIRequestError 调用文本补全服务失败（网络、鉴权、配额），不重试
type AIRequestError struct {
	Cause error
}

func (e *AIRequestError) Error() string {
	return fmt.Sprintf("AI request failed: %v", e.Cause)
}

func (e *AIRequestError) Unwrap() error { return e.Cause }

// AIParseError 模型输出不是符合结构要求的 JSON。Raw 保留原始输出用于排查提示词漂移
type AIParseError struct {
	Raw string
	Err error
}

func (e *AIParseError) Error() string {
	return fmt.Sprintf("Failed to parse AI JSON: %v", e.Err)
}

func (e *AIParseError) Unwrap() error { return e.Err }
