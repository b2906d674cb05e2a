package scoring

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"ats-resume-go/internal/types"
	"ats-resume-go/internal/vocab"
)

// Engine ATS 评分引擎，创建后只读，可被多个 goroutine 共享
type Engine struct {
	rubric      Rubric
	technical   []string
	tools       []string
	softSkills  []string
	certs       []string
	verbPattern *regexp.Regexp
}

// NewEngine 创建评分引擎，v 为 nil 时使用内置词表
func NewEngine(v *vocab.Vocabulary, r Rubric) *Engine {
	if v == nil {
		v = vocab.Default()
	}
	return &Engine{
		rubric:      r,
		technical:   dedupe(v.Technical()),
		tools:       dedupe(v.Tools()),
		softSkills:  dedupe(v.SoftSkills()),
		certs:       dedupe(v.Certifications()),
		verbPattern: buildVerbPattern(v.ActionVerbs()),
	}
}

// Score 计算十二项得分与总分。
// 每项先截断到 [0, 满分] 再保留两位小数，总分为各项之和，截断到 100 后保留两位小数。
// jobDescription 为空时 JD Match 为 0。
func (e *Engine) Score(record *types.ResumeRecord, text, jobDescription string) types.ScoreBreakdown {
	if record == nil {
		record = &types.ResumeRecord{}
	}
	lower := strings.ToLower(text)
	blank := strings.TrimSpace(text) == ""

	raw := map[string]float64{
		CategorySections:     e.sectionCoverage(record),
		CategoryContact:      e.contactInfo(record, lower),
		CategoryWordCount:    e.wordCount(text),
		CategoryBullets:      e.rubric.Bullets.score(countBullets(text), maxOf(CategoryBullets)),
		CategoryActionVerbs:  e.actionVerbs(lower),
		CategoryAchievements: e.rubric.Metrics.score(countMatches(metricPattern, lower), maxOf(CategoryAchievements)),
		CategoryTechnical:    float64(countKeywords(lower, e.technical)) * e.rubric.TechPointPerHit,
		CategoryTools:        float64(countKeywords(lower, e.tools)) * e.rubric.ToolPointPerHit,
		CategorySoftSkills:   float64(countKeywords(lower, e.softSkills)) * e.rubric.SoftPointPerHit,
		CategoryCerts:        float64(countKeywords(lower, e.certs)) * e.rubric.CertPointPerHit,
		CategoryFormatting:   e.formatting(text, lower, blank),
		CategoryJDMatch:      e.jdMatch(lower, jobDescription),
	}

	breakdown := types.ScoreBreakdown{Items: make([]types.ScoreItem, 0, len(Categories))}
	var total float64
	for _, c := range Categories {
		s := round2(clamp(raw[c.Name], 0, c.Max))
		breakdown.Items = append(breakdown.Items, types.ScoreItem{Category: c.Name, Score: s, Max: c.Max})
		total += s
	}
	breakdown.Total = round2(clamp(total, 0, MaxTotal))
	return breakdown
}

// minSectionText 文字形态的章节超过该长度才算存在
const minSectionText = 50

// sectionCoverage 每个有内容的必需章节计分。列表非空即可，整段文字需超过 minSectionText 个字符
func (e *Engine) sectionCoverage(record *types.ResumeRecord) float64 {
	var score float64
	for _, name := range e.rubric.Sections {
		if text, ok := sectionText(record, name); ok {
			if utf8.RuneCountInString(text) > minSectionText {
				score += e.rubric.SectionPoints
			}
			continue
		}
		if len(sectionEntries(record, name)) > 0 {
			score += e.rubric.SectionPoints
		}
	}
	return score
}

// sectionText 章节以整段文字给出时返回该文字
func sectionText(record *types.ResumeRecord, name string) (string, bool) {
	var c types.SectionContent
	switch strings.ToLower(name) {
	case "experience":
		c = record.Experience
	case "projects":
		c = record.Projects
	default:
		return "", false
	}
	return c.Text, c.Text != ""
}

func sectionEntries(record *types.ResumeRecord, name string) []string {
	var entries []string
	switch strings.ToLower(name) {
	case "experience":
		entries = record.Experience.Entries()
	case "education":
		entries = record.Education.Entries()
	case "skills":
		entries = record.Skills.All()
	case "projects":
		entries = record.Projects.Entries()
	case "certificates", "certifications":
		entries = record.Certificates
	}
	out := entries[:0:0]
	for _, s := range entries {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) contactInfo(record *types.ResumeRecord, lower string) float64 {
	var score float64
	if record.Email != "" {
		score++
	}
	if record.Phone != "" {
		score++
	}
	if linkedInURL.MatchString(lower) {
		score++
	}
	if gitHubURL.MatchString(lower) {
		score++
	}
	if record.Location != "" {
		score++
	}
	return score
}

func (e *Engine) wordCount(text string) float64 {
	n := WordCount(text)
	switch {
	case n >= e.rubric.WordCountMin && n <= e.rubric.WordCountMax:
		return maxOf(CategoryWordCount)
	case n >= e.rubric.WordCountPartial:
		return e.rubric.WordCountPartialScore
	default:
		return 0
	}
}

func (e *Engine) actionVerbs(lower string) float64 {
	if e.verbPattern == nil {
		return 0
	}
	return e.rubric.ActionVerbs.score(countMatches(e.verbPattern, lower), maxOf(CategoryActionVerbs))
}

// formatting 满分起扣：表格、图片引用、超长行。空文本记 0 分。
// 表格与图片按小写文本匹配，行长按原文计算
func (e *Engine) formatting(text, lower string, blank bool) float64 {
	if blank {
		return 0
	}
	full := maxOf(CategoryFormatting)
	var penalty float64
	if tablePattern.MatchString(lower) {
		penalty += e.rubric.TablePenalty
	}
	if imagePattern.MatchString(lower) {
		penalty += e.rubric.ImagePenalty
	}
	if longestLine(text) > e.rubric.LongLineChars {
		penalty += e.rubric.LongLinePenalty
	}
	return full - math.Min(penalty, full)
}

// jdMatch 简历与职位描述共有的不同字母词个数
func (e *Engine) jdMatch(lower, jobDescription string) float64 {
	if strings.TrimSpace(jobDescription) == "" {
		return 0
	}
	jdWords := wordSet(strings.ToLower(jobDescription))
	resumeWords := wordSet(lower)
	common := 0
	for w := range jdWords {
		if _, ok := resumeWords[w]; ok {
			common++
		}
	}
	return float64(common) * e.rubric.JDMatchPerWord
}

func maxOf(name string) float64 {
	for _, c := range Categories {
		if c.Name == name {
			return c.Max
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
