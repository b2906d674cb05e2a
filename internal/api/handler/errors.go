package handler

import (
	"errors"

	"ats-resume-go/internal/processor"
	"ats-resume-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// StatusFor 流水线错误对应的 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case err == nil:
		return consts.StatusOK
	case processor.IsClientError(err):
		return consts.StatusBadRequest
	case errors.Is(err, processor.ErrQuotaExhausted):
		return consts.StatusTooManyRequests
	case errors.Is(err, processor.ErrBatchCancelled):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusBadGateway
	}
}

// writeError 统一输出 {error: message}
func writeError(c *app.RequestContext, err error) {
	writeMessage(c, StatusFor(err), err.Error())
}

func writeMessage(c *app.RequestContext, status int, msg string) {
	c.JSON(status, types.ErrorResponse{Error: msg})
}
