package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"ats-resume-go/internal/types"
)

// eventStream 把事件编码为 "data: {...}\n\n" 写入管道，读端交给 hertz 作为分块响应体
type eventStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	pr     *io.PipeReader
	pw     *io.PipeWriter
	mu     sync.Mutex
}

func newEventStream(parent context.Context) *eventStream {
	ctx, cancel := context.WithCancel(parent)
	pr, pw := io.Pipe()
	return &eventStream{ctx: ctx, cancel: cancel, pr: pr, pw: pw}
}

// Context 客户端断开后被取消
func (s *eventStream) Context() context.Context { return s.ctx }

func (s *eventStream) Read(p []byte) (int, error) { return s.pr.Read(p) }

// Close 由 hertz 在响应结束或连接断开时调用
func (s *eventStream) Close() error {
	s.cancel()
	return s.pr.Close()
}

// Send 写入一条事件，写失败说明读端已关闭
func (s *eventStream) Send(v any) bool {
	raw, err := types.MarshalPlain(v)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"error": "failed to encode event"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.pw, "data: %s\n\n", raw); err != nil {
		s.cancel()
		return false
	}
	return true
}

// Finish 写端结束，读端随后得到 EOF
func (s *eventStream) Finish() {
	_ = s.pw.Close()
}
