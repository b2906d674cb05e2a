// Package normalizer 把模型输出的自由文本映射到固定词表。
package normalizer

import (
	"fmt"
	"regexp"
	"strings"

	"ats-resume-go/internal/vocab"
)

var (
	// 模型常在语言后面附带熟练度提示，如 "Tamil (native)"、"English 90%"。
	// 先整段去掉括号注释，再清理残留的括号、数字和 %
	parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)
	annotationPattern    = regexp.MustCompile(`[()\d%]`)
	compositeSplit       = regexp.MustCompile(`[,;/|]+`)
	// 单个字符串输入先按 , ; / 和 " and " 拆开
	singleStringSplit    = regexp.MustCompile(`(?i)[,;/]| and `)
)

// LanguageNormalizer 语言规范化器，只读，可并发使用
type LanguageNormalizer struct {
	vocab *vocab.Vocabulary
}

// NewLanguageNormalizer 基于词表创建
func NewLanguageNormalizer(v *vocab.Vocabulary) *LanguageNormalizer {
	if v == nil {
		v = vocab.Default()
	}
	return &LanguageNormalizer{vocab: v}
}

// Normalize 把原始条目映射为规范语言名，去重并保持首次出现顺序。
// 无法识别的片段直接丢弃；结果可能为空，由调用方决定回退策略。
func (n *LanguageNormalizer) Normalize(raw []string) []string {
	normalized := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, entry := range raw {
		key := strings.ToLower(strings.TrimSpace(entry))
		if key == "" {
			continue
		}
		key = parentheticalPattern.ReplaceAllString(key, "")
		key = strings.TrimSpace(annotationPattern.ReplaceAllString(key, ""))
		for _, part := range compositeSplit.Split(key, -1) {
			display, ok := n.vocab.LookupLanguage(part)
			if !ok {
				continue
			}
			if _, dup := seen[display]; dup {
				continue
			}
			seen[display] = struct{}{}
			normalized = append(normalized, display)
		}
	}
	return normalized
}

// NormalizeValue 接受模型返回的任意 languages 值：字符串、字符串数组或混合数组
func (n *LanguageNormalizer) NormalizeValue(value any) []string {
	return n.Normalize(ToEntries(value))
}

// ToEntries 把 languages 原始值拆成条目列表。
// 字符串先按分隔符拆分；数组元素转成字符串，nil 与空白元素丢弃。
func ToEntries(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return splitSingle(v)
	case []string:
		return trimNonEmpty(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprint(item))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func splitSingle(s string) []string {
	return trimNonEmpty(singleStringSplit.Split(s, -1))
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
