package constants

import "time"

const (
	// ServiceName 默认服务名，用于 tracer 与日志
	ServiceName = "ats-resume-go"

	// 对象存储路径，%s 为报告ID
	OriginalObjectFormat   = "resume/%s/original.pdf"
	ParsedTextObjectFormat = "resume/%s/parsed_text.txt"

	DefaultMD5RecordExpire = 365 * 24 * time.Hour
	DefaultResultCacheTTL  = 24 * time.Hour
)
