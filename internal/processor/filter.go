package processor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ats-resume-go/internal/types"

	"github.com/go-playground/validator/v10"
)

var (
	criteriaValidator = validator.New()
	firstNumber       = regexp.MustCompile(`\d+(\.\d+)?`)
)

// FilterCriteria 批量筛选条件，数值为 0 或字符串为空表示不限制
type FilterCriteria struct {
	MinCGPA    float64  `json:"cgpa" validate:"gte=0,lte=10"`
	MinTenth   float64  `json:"tenth" validate:"gte=0,lte=100"`
	MinTwelfth float64  `json:"twelfth" validate:"gte=0,lte=100"`
	MinATS     float64  `json:"ats" validate:"gte=0,lte=100"`
	Skills     []string `json:"skills" validate:"max=50,dive,max=64"`
	Language   string   `json:"language" validate:"max=64"`
	Department string   `json:"department" validate:"max=128"`
	Degree     string   `json:"degree" validate:"max=128"`
}

// Normalize 统一小写并去掉空白项
func (c *FilterCriteria) Normalize() {
	skills := make([]string, 0, len(c.Skills))
	for _, s := range c.Skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			skills = append(skills, s)
		}
	}
	c.Skills = skills
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	c.Department = strings.ToLower(strings.TrimSpace(c.Department))
	c.Degree = strings.ToLower(strings.TrimSpace(c.Degree))
}

// Validate 校验取值范围
func (c FilterCriteria) Validate() error {
	if err := criteriaValidator.Struct(c); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			return fmt.Errorf("invalid filter criteria: %s(%s)", vErrs[0].Field(), vErrs[0].Tag())
		}
		return fmt.Errorf("invalid filter criteria: %w", err)
	}
	return nil
}

// SplitSkills 逗号分隔的技能列表
func SplitSkills(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// ParsePercentage "92.6%" -> 92.6，无法解析时为 0
func ParsePercentage(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(value, "%", "")), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseCGPA 取第一个数字，"8.32 (upto 5th semester)" -> 8.32
func ParseCGPA(value string) float64 {
	m := firstNumber.FindString(value)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// Match 判断结果是否满足全部条件。调用前需先 Normalize
func (c FilterCriteria) Match(result *types.PipelineResult) bool {
	if result == nil || result.Data == nil {
		return false
	}
	rec := result.Data
	edu := rec.Education

	if c.MinCGPA > 0 && ParseCGPA(edu.Bachelor.CGPA.String()) < c.MinCGPA {
		return false
	}
	if c.MinTenth > 0 && ParsePercentage(edu.Tenth.Percentage.String()) < c.MinTenth {
		return false
	}
	if c.MinTwelfth > 0 && ParsePercentage(edu.Twelfth.Percentage.String()) < c.MinTwelfth {
		return false
	}
	if c.MinATS > 0 && result.ATSScore < c.MinATS {
		return false
	}
	if c.Language != "" && !anyContains(lowerAll(rec.Languages), c.Language) {
		return false
	}
	degree := strings.ToLower(edu.Bachelor.Degree.String())
	if c.Department != "" && !strings.Contains(degree, c.Department) {
		return false
	}
	if c.Degree != "" && !strings.Contains(degree, c.Degree) {
		return false
	}
	if len(c.Skills) > 0 {
		technical := lowerAll(rec.Skills.Technical)
		for _, skill := range c.Skills {
			if !anyContains(technical, skill) {
				return false
			}
		}
	}
	return true
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func anyContains(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

// ToFilterMatch 构造筛选结果行
func ToFilterMatch(fileName string, result *types.PipelineResult) types.FilterMatch {
	rec := result.Data
	return types.FilterMatch{
		FileName:  fileName,
		Name:      rec.Name.String(),
		Email:     rec.Email.String(),
		Phone:     rec.Phone.String(),
		ATSScore:  result.ATSScore,
		Education: rec.Education,
		Skills:    rec.Skills,
		Languages: lowerAll(rec.Languages),
	}
}

// ResumeFilter 批量分析并按条件筛选，逐份推送进度
type ResumeFilter struct {
	runner *BatchRunner
}

// NewResumeFilter 创建筛选器
func NewResumeFilter(runner *BatchRunner) *ResumeFilter {
	return &ResumeFilter{runner: runner}
}

// Run 按输入顺序对每份文档调用 onProgress，结束后返回汇总事件。
// 解析失败或被跳过的文档不计入结果。
func (f *ResumeFilter) Run(ctx context.Context, docs []Document, criteria FilterCriteria, onProgress func(types.FilterProgress)) (types.FilterDone, error) {
	criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		return types.FilterDone{}, err
	}

	matches := make([]types.FilterMatch, 0)
	done := types.FilterDone{Done: true}

	_, err := f.runner.Run(ctx, docs, func(item ItemResult) {
		ev := types.FilterProgress{
			Progress:       item.Index + 1,
			Total:          len(docs),
			LatestFilename: item.Name,
		}
		switch {
		case item.Skipped:
			ev.Skipped = true
			done.Skipped++
		case item.Err != nil:
			ev.Skipped = true
		default:
			ev.LatestName = item.Result.Data.Name.String()
			if criteria.Match(item.Result) {
				matches = append(matches, ToFilterMatch(item.Name, item.Result))
			}
		}
		ev.Processed = len(matches)
		ev.ResultsSoFar = append(make([]types.FilterMatch, 0, len(matches)), matches...)
		if onProgress != nil {
			onProgress(ev)
		}
	})
	done.Results = matches
	done.Count = len(matches)
	return done, err
}
