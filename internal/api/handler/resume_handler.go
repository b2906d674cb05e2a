package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"ats-resume-go/internal/parser"
	"ats-resume-go/internal/processor"
	"ats-resume-go/internal/storage"
	"ats-resume-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultMaxUploadBytes = 10 << 20

// Filterer 批量筛选，*processor.ResumeFilter 满足
type Filterer interface {
	Run(ctx context.Context, docs []processor.Document, criteria processor.FilterCriteria, onProgress func(types.FilterProgress)) (types.FilterDone, error)
}

// Advisor 简历问答，*parser.CareerAdvisor 满足
type Advisor interface {
	Answer(ctx context.Context, query string, resumeData any) (string, error)
}

var (
	_ processor.DocumentProcessor = (*processor.ResumePipeline)(nil)
	_ Filterer                    = (*processor.ResumeFilter)(nil)
	_ Advisor                     = (*parser.CareerAdvisor)(nil)
)

// ResumeHandler 简历分析相关的 HTTP 入口
type ResumeHandler struct {
	pipeline processor.DocumentProcessor
	filter   Filterer
	advisor  Advisor
	reports  processor.ReportReader

	maxUploadBytes int64
	logger         zerolog.Logger
}

// Option ResumeHandler 可选项
type Option func(*ResumeHandler)

// WithFilter 启用批量筛选接口
func WithFilter(f Filterer) Option { return func(h *ResumeHandler) { h.filter = f } }

// WithAdvisor 启用问答接口
func WithAdvisor(a Advisor) Option { return func(h *ResumeHandler) { h.advisor = a } }

// WithReportReader 启用报告查询接口
func WithReportReader(r processor.ReportReader) Option {
	return func(h *ResumeHandler) { h.reports = r }
}

// WithMaxUploadMB 单个文件大小上限
func WithMaxUploadMB(mb int) Option {
	return func(h *ResumeHandler) {
		if mb > 0 {
			h.maxUploadBytes = int64(mb) << 20
		}
	}
}

// WithLogger 设置日志
func WithLogger(l zerolog.Logger) Option { return func(h *ResumeHandler) { h.logger = l } }

// NewResumeHandler 创建处理器
func NewResumeHandler(pipeline processor.DocumentProcessor, opts ...Option) *ResumeHandler {
	h := &ResumeHandler{
		pipeline:       pipeline,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         log.Logger.With().Str("component", "resume_handler").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleAnalyze 单份简历分析
// POST /api/v1/resumes/analyze  form: file, job_description(可选)
func (h *ResumeHandler) HandleAnalyze(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeMessage(c, consts.StatusBadRequest, "Missing file. Upload a PDF in the 'file' form field.")
		return
	}
	if !isPDFName(fileHeader.Filename) {
		writeMessage(c, consts.StatusBadRequest, "Only PDF files allowed")
		return
	}
	data, err := h.readUpload(fileHeader)
	if err != nil {
		writeMessage(c, consts.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.Process(ctx, processor.Document{
		Name:           fileHeader.Filename,
		Data:           data,
		JobDescription: c.PostForm("job_description"),
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("file", fileHeader.Filename).Str("request_id", RequestID(c)).Msg("简历分析失败")
		writeError(c, err)
		return
	}
	c.PureJSON(consts.StatusOK, result)
}

// HandleFilterStream 批量分析并筛选，按 text/event-stream 逐份推送进度
// POST /api/v1/resumes/filter/stream  form: files[], cgpa, tenth, twelfth, ats, skills, language, department, degree
func (h *ResumeHandler) HandleFilterStream(ctx context.Context, c *app.RequestContext) {
	if h.filter == nil {
		writeMessage(c, consts.StatusNotImplemented, "Resume filtering is not enabled.")
		return
	}
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		writeMessage(c, consts.StatusBadRequest, "No files uploaded. Use the 'files' form field.")
		return
	}
	criteria, err := criteriaFromForm(c)
	if err != nil {
		writeMessage(c, consts.StatusBadRequest, err.Error())
		return
	}
	criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		writeMessage(c, consts.StatusBadRequest, "Invalid filter criteria: "+err.Error())
		return
	}

	// 在返回前读完所有上传内容，之后的 goroutine 不再访问 RequestContext
	headers := form.File["files"]
	docs := make([]processor.Document, 0, len(headers))
	for _, fh := range headers {
		data, err := h.readUpload(fh)
		if err != nil {
			// 读取失败的文件按空文件处理，由流水线报告
			h.logger.Warn().Err(err).Str("file", fh.Filename).Msg("读取上传文件失败")
			data = nil
		}
		docs = append(docs, processor.Document{Name: fh.Filename, Data: data})
	}

	stream := newEventStream(context.WithoutCancel(ctx))
	logger := h.logger.With().Str("request_id", RequestID(c)).Int("files", len(docs)).Logger()
	go func() {
		defer stream.Finish()
		done, err := h.filter.Run(stream.Context(), docs, criteria, func(ev types.FilterProgress) {
			stream.Send(ev)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("批量筛选提前结束")
		}
		stream.Send(done)
		logger.Info().Int("matched", done.Count).Int("skipped", done.Skipped).Msg("批量筛选完成")
	}()

	c.SetStatusCode(consts.StatusOK)
	c.Response.Header.Set("Content-Type", "text/event-stream")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("X-Accel-Buffering", "no")
	c.SetBodyStream(stream, -1)
}

// chatRequest 问答请求体
type chatRequest struct {
	Query      string         `json:"query"`
	ResumeData map[string]any `json:"resume_data"`
}

// HandleChat 基于简历数据的问答
// POST /api/v1/ai/chat  {query, resume_data}
func (h *ResumeHandler) HandleChat(ctx context.Context, c *app.RequestContext) {
	if h.advisor == nil {
		writeMessage(c, consts.StatusNotImplemented, "AI chat is not enabled.")
		return
	}
	var req chatRequest
	if err := c.BindJSON(&req); err != nil {
		writeMessage(c, consts.StatusBadRequest, "Invalid JSON body")
		return
	}
	var data any
	if req.ResumeData != nil {
		data = req.ResumeData
	}
	answer, err := h.advisor.Answer(ctx, req.Query, data)
	switch {
	case errors.Is(err, parser.ErrMissingQuery):
		writeMessage(c, consts.StatusBadRequest, "Missing query")
		return
	case err != nil:
		h.logger.Warn().Err(err).Str("request_id", RequestID(c)).Msg("问答调用失败")
		writeError(c, processor.NewAIRequestError("chat", err))
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"response": answer})
}

// HandleGetReport 读取已保存的分析报告
// GET /api/v1/reports/:id
func (h *ResumeHandler) HandleGetReport(ctx context.Context, c *app.RequestContext) {
	if h.reports == nil {
		writeMessage(c, consts.StatusNotImplemented, "Report storage is not enabled.")
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		writeMessage(c, consts.StatusBadRequest, "report id is required")
		return
	}
	report, err := h.reports.GetReport(ctx, id)
	switch {
	case errors.Is(err, storage.ErrReportNotFound):
		writeMessage(c, consts.StatusNotFound, "Report not found")
		return
	case errors.Is(err, storage.ErrReportStoreDisabled):
		writeMessage(c, consts.StatusNotImplemented, "Report storage is not enabled.")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("report_id", id).Msg("读取报告失败")
		writeMessage(c, consts.StatusInternalServerError, "Failed to load report")
		return
	}
	c.PureJSON(consts.StatusOK, report)
}

func (h *ResumeHandler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("File %s exceeds the %d MB limit.", fh.Filename, h.maxUploadBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("Failed to open uploaded file %s", fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("Failed to read uploaded file %s", fh.Filename)
	}
	return data, nil
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".pdf")
}

// criteriaFromForm 数值字段留空表示不限制
func criteriaFromForm(c *app.RequestContext) (processor.FilterCriteria, error) {
	var criteria processor.FilterCriteria
	fields := []struct {
		key string
		dst *float64
	}{
		{"cgpa", &criteria.MinCGPA},
		{"tenth", &criteria.MinTenth},
		{"twelfth", &criteria.MinTwelfth},
		{"ats", &criteria.MinATS},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(c.PostForm(f.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return criteria, fmt.Errorf("Invalid value for %s: %q", f.key, raw)
		}
		*f.dst = v
	}
	criteria.Skills = processor.SplitSkills(c.PostForm("skills"))
	criteria.Language = c.PostForm("language")
	criteria.Department = c.PostForm("department")
	criteria.Degree = c.PostForm("degree")
	return criteria, nil
}
