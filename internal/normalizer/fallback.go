package normalizer

import (
	"regexp"
	"strings"

	"ats-resume-go/internal/vocab"
)

// FallbackDetector 在结构化抽取没有得到结果时，从原始文本里补出字段值
type FallbackDetector interface {
	Detect(text string) []string
}

// DetectorFunc 函数适配器
type DetectorFunc func(text string) []string

// Detect 实现 FallbackDetector
func (f DetectorFunc) Detect(text string) []string { return f(text) }

type boundaryTerm struct {
	pattern *regexp.Regexp
	display string
}

// WordBoundaryDetector 按词边界扫描文本中的词表项，结果顺序与词表顺序一致
type WordBoundaryDetector struct {
	terms []boundaryTerm
}

// NewWordBoundaryDetector 用 (小写键, 展示名) 列表构建，正则在这里一次性编译
func NewWordBoundaryDetector(pairs []vocab.Language) *WordBoundaryDetector {
	terms := make([]boundaryTerm, 0, len(pairs))
	for _, p := range pairs {
		key := strings.ToLower(strings.TrimSpace(p.Key))
		if key == "" {
			continue
		}
		terms = append(terms, boundaryTerm{
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\b`),
			display: p.Display,
		})
	}
	return &WordBoundaryDetector{terms: terms}
}

// NewLanguageTextDetector 语言词表的文本扫描器
func NewLanguageTextDetector(v *vocab.Vocabulary) *WordBoundaryDetector {
	if v == nil {
		v = vocab.Default()
	}
	return NewWordBoundaryDetector(v.Languages())
}

// Detect 实现 FallbackDetector
func (d *WordBoundaryDetector) Detect(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	seen := make(map[string]struct{})
	for _, t := range d.terms {
		if _, dup := seen[t.display]; dup {
			continue
		}
		if t.pattern.MatchString(lower) {
			seen[t.display] = struct{}{}
			found = append(found, t.display)
		}
	}
	return found
}

// DefaultDetector 总是返回固定值，用作回退链的最后一环
type DefaultDetector struct {
	Values []string
}

// Detect 实现 FallbackDetector
func (d DefaultDetector) Detect(string) []string {
	return append([]string(nil), d.Values...)
}

// Chain 依次尝试，返回第一个非空结果
func Chain(detectors ...FallbackDetector) FallbackDetector {
	return DetectorFunc(func(text string) []string {
		for _, d := range detectors {
			if d == nil {
				continue
			}
			if out := d.Detect(text); len(out) > 0 {
				return out
			}
		}
		return nil
	})
}

// FieldNormalizer 把"规范化 + 文本回退"组合成一个列表字段的处理策略
type FieldNormalizer struct {
	Normalize func(value any) []string
	Fallback  FallbackDetector
}

// Apply 规范化原始值，结果为空时走回退链
func (f FieldNormalizer) Apply(value any, text string) []string {
	var out []string
	if f.Normalize != nil {
		out = f.Normalize(value)
	}
	if len(out) == 0 && f.Fallback != nil {
		out = f.Fallback.Detect(text)
	}
	return out
}

// NewLanguageField 语言字段的完整策略：规范化 -> 文本扫描 -> 默认语言
func NewLanguageField(v *vocab.Vocabulary, defaultLanguage string) FieldNormalizer {
	n := NewLanguageNormalizer(v)
	detectors := []FallbackDetector{NewLanguageTextDetector(v)}
	if defaultLanguage != "" {
		detectors = append(detectors, DefaultDetector{Values: []string{defaultLanguage}})
	}
	return FieldNormalizer{
		Normalize: n.NormalizeValue,
		Fallback:  Chain(detectors...),
	}
}
