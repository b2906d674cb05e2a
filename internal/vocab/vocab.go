// Package vocab 保存评分与规范化使用的固定词表。
// 词表在进程启动时构建一次，之后只读，可以在多个 goroutine 间共享。
package vocab

import (
	"sort"
	"strings"

	"ats-resume-go/internal/config"
)

// Language 规范语言：小写键与展示名
type Language struct {
	Key     string
	Display string
}

// Vocabulary 只读词表集合
type Vocabulary struct {
	languages      []Language
	languageIndex  map[string]string // 小写键或小写展示名 -> 展示名
	technical      []string
	tools          []string
	softSkills     []string
	certifications []string
	actionVerbs    []string
}

var defaultLanguages = []Language{
	{"english", "English"}, {"tamil", "Tamil"}, {"hindi", "Hindi"},
	{"telugu", "Telugu"}, {"malayalam", "Malayalam"}, {"kannada", "Kannada"},
	{"french", "French"}, {"german", "German"}, {"spanish", "Spanish"},
	{"bengali", "Bengali"}, {"marathi", "Marathi"}, {"punjabi", "Punjabi"},
	{"gujarati", "Gujarati"}, {"urdu", "Urdu"}, {"oriya", "Oriya"}, {"nepali", "Nepali"},
}

var defaultTechnical = []string{
	"python", "java", "c++", "node", "react", "mongodb", "mysql", "aws", "azure", "gcp",
	"docker", "kubernetes", "tensorflow", "pytorch", "devops", "fastapi", "django",
	"flask", "typescript", "postgres", "rest", "graphql",
}

var defaultTools = []string{
	"git", "github", "jira", "jenkins", "figma", "linux", "bash", "tableau",
	"power bi", "excel", "visual studio", "colab",
}

var defaultSoftSkills = []string{"leadership", "communication", "teamwork", "problem solving", "ownership"}

var defaultCertifications = []string{"aws", "azure", "gcp", "oracle", "pmp", "cisco", "scrum", "microsoft certified"}

var defaultActionVerbs = []string{
	"developed", "built", "designed", "implemented", "managed", "optimized", "increased",
	"reduced", "led", "collaborated", "deployed", "created", "trained", "improved",
	"tested", "analyzed", "automated", "integrated", "streamlined",
}

// Option 构建词表时的覆盖项
type Option func(*Vocabulary)

// WithLanguages 替换语言词表，顺序即文本回退扫描的顺序
func WithLanguages(langs []Language) Option {
	return func(v *Vocabulary) {
		if len(langs) > 0 {
			v.languages = append([]Language(nil), langs...)
		}
	}
}

// WithTechnical 替换技术关键词
func WithTechnical(words []string) Option {
	return func(v *Vocabulary) { v.technical = replaceIfSet(v.technical, words) }
}

// WithTools 替换工具关键词
func WithTools(words []string) Option {
	return func(v *Vocabulary) { v.tools = replaceIfSet(v.tools, words) }
}

// WithSoftSkills 替换软技能短语
func WithSoftSkills(words []string) Option {
	return func(v *Vocabulary) { v.softSkills = replaceIfSet(v.softSkills, words) }
}

// WithCertifications 替换证书关键词
func WithCertifications(words []string) Option {
	return func(v *Vocabulary) { v.certifications = replaceIfSet(v.certifications, words) }
}

// WithActionVerbs 替换动作动词
func WithActionVerbs(words []string) Option {
	return func(v *Vocabulary) { v.actionVerbs = replaceIfSet(v.actionVerbs, words) }
}

// New 以内置词表为基础构建，应用覆盖项
func New(opts ...Option) *Vocabulary {
	v := &Vocabulary{
		languages:      defaultLanguages,
		technical:      defaultTechnical,
		tools:          defaultTools,
		softSkills:     defaultSoftSkills,
		certifications: defaultCertifications,
		actionVerbs:    defaultActionVerbs,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.languageIndex = make(map[string]string, len(v.languages)*2)
	for _, l := range v.languages {
		v.languageIndex[strings.ToLower(l.Key)] = l.Display
		v.languageIndex[strings.ToLower(l.Display)] = l.Display
	}
	return v
}

// Default 内置词表
func Default() *Vocabulary {
	return New()
}

// FromConfig 按配置文件的覆盖项构建；配置里语言表是无序 map，按键排序后使用
func FromConfig(cfg config.VocabularyConfig) *Vocabulary {
	var opts []Option
	if len(cfg.Languages) > 0 {
		opts = append(opts, WithLanguages(languagesFromMap(cfg.Languages)))
	}
	opts = append(opts,
		WithTechnical(cfg.Technical),
		WithTools(cfg.Tools),
		WithSoftSkills(cfg.SoftSkills),
		WithCertifications(cfg.Certifications),
		WithActionVerbs(cfg.ActionVerbs),
	)
	return New(opts...)
}

// LookupLanguage 大小写不敏感地匹配语言键或展示名
func (v *Vocabulary) LookupLanguage(token string) (string, bool) {
	display, ok := v.languageIndex[strings.ToLower(strings.TrimSpace(token))]
	return display, ok
}

// IsCanonicalLanguage 是否为规范展示名
func (v *Vocabulary) IsCanonicalLanguage(name string) bool {
	for _, l := range v.languages {
		if l.Display == name {
			return true
		}
	}
	return false
}

// Languages 语言词表副本
func (v *Vocabulary) Languages() []Language { return append([]Language(nil), v.languages...) }

// Technical 技术关键词副本
func (v *Vocabulary) Technical() []string { return cloneStrings(v.technical) }

// Tools 工具关键词副本
func (v *Vocabulary) Tools() []string { return cloneStrings(v.tools) }

// SoftSkills 软技能短语副本
func (v *Vocabulary) SoftSkills() []string { return cloneStrings(v.softSkills) }

// Certifications 证书关键词副本
func (v *Vocabulary) Certifications() []string { return cloneStrings(v.certifications) }

// ActionVerbs 动作动词副本
func (v *Vocabulary) ActionVerbs() []string { return cloneStrings(v.actionVerbs) }

func replaceIfSet(current, words []string) []string {
	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			cleaned = append(cleaned, w)
		}
	}
	if len(cleaned) == 0 {
		return current
	}
	return cleaned
}

func cloneStrings(in []string) []string {
	return append([]string(nil), in...)
}

func languagesFromMap(m map[string]string) []Language {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Language, 0, len(keys))
	for _, k := range keys {
		display := strings.TrimSpace(m[k])
		if display == "" {
			continue
		}
		out = append(out, Language{Key: strings.ToLower(strings.TrimSpace(k)), Display: display})
	}
	return out
}
