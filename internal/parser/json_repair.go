package parser

import (
	"strings"
	"unicode/utf8"
)

// cleanModelOutput 去掉 BOM 与 markdown 代码块标记，并保证 UTF-8 合法
func cleanModelOutput(content string) string {
	s := strings.TrimPrefix(strings.TrimSpace(content), "\uFEFF")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

// extractJSONObject 取出第一个花括号配平的对象；字符串字面量中的括号不参与计数
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inStr:
			escaped = true
		case c == '"':
			inStr = !inStr
		case inStr:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// repairQuotes 把字符串字面量内部未转义的双引号补成 \"。
// 一个引号后面(跳过空白)紧跟 : , ] } 之一或到达末尾，才视为字符串结束。
func repairQuotes(src string) string {
	var b strings.Builder
	b.Grow(len(src) + 16)

	inStr, escaped := false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"' && !inStr:
			inStr = true
			b.WriteByte(c)
		case c == '"':
			if closesString(src, i+1) {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString(`\"`)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func closesString(src string, from int) bool {
	for j := from; j < len(src); j++ {
		switch src[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':', ',', ']', '}':
			return true
		default:
			return false
		}
	}
	return true
}
