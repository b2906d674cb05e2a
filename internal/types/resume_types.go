package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString 接受 JSON 字符串、数字或 null，统一保存为字符串。
// 模型经常把 percentage / year / cgpa 输出成数字。
type FlexString string

// UnmarshalJSON 实现 json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("types: 无法把 %s 解析为字符串", string(data))
}

// String 返回底层字符串
func (f FlexString) String() string { return string(f) }

// FlexStrings 接受字符串数组、单个字符串或 null
type FlexStrings []string

// UnmarshalJSON 实现 json.Unmarshaler
func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = nil
			return nil
		}
		*f = FlexStrings{s}
		return nil
	}
	var items []FlexString
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(FlexStrings, 0, len(items))
	for _, it := range items {
		if s := it.String(); s != "" {
			out = append(out, s)
		}
	}
	*f = out
	return nil
}

// SectionContent 章节内容。模型可能给出列表，也可能给出一整段文字
type SectionContent struct {
	Items []string
	Text  string
}

// UnmarshalJSON 字符串进 Text，数组进 Items
func (c *SectionContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = SectionContent{}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Text = strings.TrimSpace(s)
		return nil
	}
	var items FlexStrings
	if err := items.UnmarshalJSON(data); err != nil {
		return err
	}
	c.Items = items
	return nil
}

// MarshalJSON 保持输入时的形态
func (c SectionContent) MarshalJSON() ([]byte, error) {
	if c.Text != "" {
		return json.Marshal(c.Text)
	}
	if c.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Items)
}

// IsZero 没有任何内容
func (c SectionContent) IsZero() bool { return c.Text == "" && len(c.Items) == 0 }

// Entries 文字形态按一条返回
func (c SectionContent) Entries() []string {
	if c.Text != "" {
		return []string{c.Text}
	}
	return c.Items
}

// SchoolRecord 10th / 12th 学校信息
type SchoolRecord struct {
	School     FlexString `json:"school"`
	Location   FlexString `json:"location"`
	Year       FlexString `json:"year"`
	Percentage FlexString `json:"percentage"`
}

// IsZero 所有字段为空
func (s SchoolRecord) IsZero() bool {
	return s.School == "" && s.Location == "" && s.Year == "" && s.Percentage == ""
}

// BachelorRecord 本科信息
type BachelorRecord struct {
	Institute          FlexString `json:"institute"`
	Location           FlexString `json:"location"`
	Degree             FlexString `json:"degree"`
	ExpectedGraduation FlexString `json:"expected_graduation"`
	CGPA               FlexString `json:"cgpa"`
}

// IsZero 所有字段为空
func (b BachelorRecord) IsZero() bool {
	return b.Institute == "" && b.Location == "" && b.Degree == "" && b.ExpectedGraduation == "" && b.CGPA == ""
}

// Education 固定三段式教育经历，JSON 键名 "10th"/"12th"/"bachelor" 不可更改
type Education struct {
	Tenth    SchoolRecord   `json:"10th"`
	Twelfth  SchoolRecord   `json:"12th"`
	Bachelor BachelorRecord `json:"bachelor"`
}

// Entries 返回非空的教育条目描述，评分时作为列表型章节
func (e Education) Entries() []string {
	var out []string
	if !e.Tenth.IsZero() {
		out = append(out, "10th: "+joinNonEmpty(e.Tenth.School, e.Tenth.Year, e.Tenth.Percentage))
	}
	if !e.Twelfth.IsZero() {
		out = append(out, "12th: "+joinNonEmpty(e.Twelfth.School, e.Twelfth.Year, e.Twelfth.Percentage))
	}
	if !e.Bachelor.IsZero() {
		out = append(out, "bachelor: "+joinNonEmpty(e.Bachelor.Institute, e.Bachelor.Degree, e.Bachelor.CGPA))
	}
	return out
}

// Skills 技能
type Skills struct {
	Technical FlexStrings `json:"technical"`
	Soft      FlexStrings `json:"soft"`
}

// All 技术技能在前，软技能在后
func (s Skills) All() []string {
	out := make([]string, 0, len(s.Technical)+len(s.Soft))
	out = append(out, s.Technical...)
	out = append(out, s.Soft...)
	return out
}

// ResumeRecord 模型抽取后的结构化简历
type ResumeRecord struct {
	Name     FlexString `json:"name"`
	Email    FlexString `json:"email"`
	Phone    FlexString `json:"phone"`
	LinkedIn FlexString `json:"linkedin"`
	GitHub   FlexString `json:"github"`
	LeetCode FlexString `json:"leetcode"`
	CodeChef FlexString `json:"codechef"`
	Location FlexString `json:"location,omitempty"`

	// 从 github / leetcode / codechef 链接中取出的用户名，键为站点域名
	ProfileHandles map[string]string `json:"profile_handles,omitempty"`

	// 规范化后的语言列表，归一化之后不会为空
	Languages []string `json:"languages"`

	Education    Education      `json:"education"`
	Skills       Skills         `json:"skills"`
	Certificates FlexStrings    `json:"certificates"`
	Experience   SectionContent `json:"experience"`
	Projects     SectionContent `json:"projects"`

	RoleMatch FlexString `json:"role_match"`
	Summary   FlexString `json:"summary"`
}

// PipelineResult 一次流水线调用的产出，也是对外返回与持久化的单位
type PipelineResult struct {
	Data         *ResumeRecord  `json:"data"`
	ATSScore     float64        `json:"ats_score"`
	ATSBreakdown ScoreBreakdown `json:"ats_breakdown"`
	WordCount    int            `json:"word_count"`
	ReportID     string         `json:"report_id,omitempty"`
	Cached       bool           `json:"cached,omitempty"`
}

// ErrorResponse 边界统一错误结构
type ErrorResponse struct {
	Error string `json:"error"`
}

func joinNonEmpty(parts ...FlexString) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, string(p))
		}
	}
	return strings.Join(out, ", ")
}
