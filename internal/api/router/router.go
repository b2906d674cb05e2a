package router

import (
	"context"

	"ats-resume-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, logger zerolog.Logger) {
	h.Use(handler.RequestIDMiddleware(), handler.AccessLogMiddleware(logger))

	api := h.Group("/api/v1")

	resumes := api.Group("/resumes")
	resumes.POST("/analyze", resumeHandler.HandleAnalyze)
	resumes.POST("/filter/stream", resumeHandler.HandleFilterStream)

	api.POST("/ai/chat", resumeHandler.HandleChat)
	api.GET("/reports/:id", resumeHandler.HandleGetReport)

	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
