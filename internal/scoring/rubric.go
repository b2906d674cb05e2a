// Package scoring 对简历文本和结构化记录做确定性的 ATS 打分。
// 没有 I/O，没有随机性，同样的输入永远得到同样的明细。
package scoring

import "ats-resume-go/internal/config"

// 类别名与满分，顺序即明细输出顺序
const (
	CategorySections     = "Section Coverage"
	CategoryContact      = "Contact Info"
	CategoryWordCount    = "Word Count"
	CategoryBullets      = "Bullet Points"
	CategoryActionVerbs  = "Action Verbs"
	CategoryAchievements = "Achievements"
	CategoryTechnical    = "Technical Skills"
	CategoryTools        = "Tools & Platforms"
	CategorySoftSkills   = "Soft Skills Mention"
	CategoryCerts        = "Certifications"
	CategoryFormatting   = "Formatting & Layout"
	CategoryJDMatch      = "JD Match"
)

// Category 类别及其满分
type Category struct {
	Name string
	Max  float64
}

// Categories 十二个类别，按输出顺序
var Categories = []Category{
	{CategorySections, 20},
	{CategoryContact, 5},
	{CategoryWordCount, 5},
	{CategoryBullets, 5},
	{CategoryActionVerbs, 10},
	{CategoryAchievements, 10},
	{CategoryTechnical, 15},
	{CategoryTools, 10},
	{CategorySoftSkills, 5},
	{CategoryCerts, 5},
	{CategoryFormatting, 5},
	{CategoryJDMatch, 25},
}

// MaxTotal 总分上限
const MaxTotal = 100.0

// Tier 阶梯式计分：达到 Full 拿满分，达到 Partial 拿部分分
type Tier struct {
	Full         int
	Partial      int
	PartialScore float64
}

func (t Tier) score(n int, max float64) float64 {
	switch {
	case n >= t.Full:
		return max
	case n >= t.Partial:
		return t.PartialScore
	default:
		return 0
	}
}

// Rubric 评分细则中的可调参数
type Rubric struct {
	// 必需章节，每个章节 SectionPoints 分
	Sections      []string
	SectionPoints float64

	// 字数在 [WordCountMin, WordCountMax] 满分；不少于 WordCountPartial 得部分分
	WordCountMin          int
	WordCountMax          int
	WordCountPartial      int
	WordCountPartialScore float64

	Bullets     Tier
	ActionVerbs Tier
	Metrics     Tier

	TechPointPerHit float64
	ToolPointPerHit float64
	SoftPointPerHit float64
	CertPointPerHit float64

	TablePenalty    float64
	ImagePenalty    float64
	LongLinePenalty float64
	LongLineChars   int

	JDMatchPerWord float64
}

// DefaultRubric 默认细则
func DefaultRubric() Rubric {
	return Rubric{
		Sections:      []string{"experience", "education", "skills", "projects"},
		SectionPoints: 5,

		WordCountMin:          500,
		WordCountMax:          1200,
		WordCountPartial:      300,
		WordCountPartialScore: 3,

		Bullets:     Tier{Full: 8, Partial: 3, PartialScore: 3},
		ActionVerbs: Tier{Full: 12, Partial: 5, PartialScore: 5},
		Metrics:     Tier{Full: 8, Partial: 3, PartialScore: 5},

		TechPointPerHit: 1,
		ToolPointPerHit: 0.8,
		SoftPointPerHit: 1,
		CertPointPerHit: 1,

		TablePenalty:    2,
		ImagePenalty:    2,
		LongLinePenalty: 1,
		LongLineChars:   160,

		JDMatchPerWord: 0.2,
	}
}

// RubricFromConfig 用配置覆盖默认细则，未配置(nil)的字段保持默认，显式的 0 照常生效
func RubricFromConfig(cfg config.ScoringConfig) Rubric {
	r := DefaultRubric()

	override(&r.JDMatchPerWord, cfg.JDMatchPerWord)
	override(&r.TechPointPerHit, cfg.TechPointPerHit)
	override(&r.ToolPointPerHit, cfg.ToolPointPerHit)
	override(&r.SoftPointPerHit, cfg.SoftPointPerHit)
	override(&r.CertPointPerHit, cfg.CertPointPerHit)

	override(&r.LongLineChars, cfg.LongLineChars)
	override(&r.WordCountMin, cfg.WordCountMin)
	override(&r.WordCountMax, cfg.WordCountMax)
	override(&r.WordCountPartial, cfg.WordCountPartial)
	override(&r.ActionVerbs.Full, cfg.ActionVerbsFull)
	override(&r.ActionVerbs.Partial, cfg.ActionVerbsPartial)
	override(&r.Metrics.Full, cfg.MetricsFull)
	override(&r.Metrics.Partial, cfg.MetricsPartial)
	override(&r.Bullets.Full, cfg.BulletsFull)
	override(&r.Bullets.Partial, cfg.BulletsPartial)

	return r
}

func override[T int | float64](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
