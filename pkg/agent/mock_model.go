package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse MockChatClient 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockCall 记录一次调用收到的消息与选项
type MockCall struct {
	Messages []*schema.Message
	Options  *model.Options
}

// MockChatClient 用于测试与离线运行的 model.ToolCallingChatModel 实现，并发安全
type MockChatClient struct {
	mu sync.Mutex

	// 固定响应
	ExpectedResponse string
	ExpectedError    error

	// 顺序响应，优先于固定响应
	SequentialResponses []MockResponse
	responseIndex       int

	// Respond 非空时优先使用，可按输入动态生成响应
	Respond func(messages []*schema.Message) (string, error)

	calls []MockCall
}

// NewMockChatClient 创建一个返回固定响应的 MockChatClient
func NewMockChatClient(expectedResponse string, expectedError error) *MockChatClient {
	return &MockChatClient{ExpectedResponse: expectedResponse, ExpectedError: expectedError}
}

// NewMockChatClientSequential 创建一个按顺序返回不同响应的 MockChatClient
func NewMockChatClientSequential(responses []MockResponse) *MockChatClient {
	if len(responses) == 0 {
		responses = []MockResponse{{Error: errors.New("mock client has no responses configured")}}
	}
	return &MockChatClient{SequentialResponses: responses}
}

// Generate 记录调用并返回预设响应
func (m *MockChatClient) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Messages: append([]*schema.Message(nil), input...),
		Options:  model.GetCommonOptions(&model.Options{}, opts...),
	})

	var content string
	var err error
	switch {
	case m.Respond != nil:
		respond := m.Respond
		m.mu.Unlock()
		content, err = respond(input)
		m.mu.Lock()
	case len(m.SequentialResponses) > 0:
		if m.responseIndex >= len(m.SequentialResponses) {
			err = errors.New("mock client has run out of sequential responses")
		} else {
			resp := m.SequentialResponses[m.responseIndex]
			m.responseIndex++
			content, err = resp.Content, resp.Error
		}
	default:
		content, err = m.ExpectedResponse, m.ExpectedError
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream 未实现
func (m *MockChatClient) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not implemented in MockChatClient")
}

// WithTools 返回自身
func (m *MockChatClient) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Calls 所有调用记录的副本
func (m *MockChatClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount 调用次数
func (m *MockChatClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastUserMessage 最近一次调用中的最后一条 user 消息
func (m *MockChatClient) LastUserMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	msgs := m.calls[len(m.calls)-1].Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] != nil && msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}

var _ model.ToolCallingChatModel = (*MockChatClient)(nil)
