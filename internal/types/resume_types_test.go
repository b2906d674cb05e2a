package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeRecordAcceptsLooseModelOutput(t *testing.T) {
	raw := `{
		"name": "Priya",
		"phone": 9876543210,
		"education": {
			"10th": {"school": "KV", "year": 2016, "percentage": 92.6},
			"12th": null,
			"bachelor": {"institute": "Anna University", "cgpa": "8.32 (upto 5th semester)"}
		},
		"skills": {"technical": "Go", "soft": ["teamwork", null, ""]},
		"certificates": null,
		"projects": ["ATS scorer"]
	}`

	var rec ResumeRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	assert.Equal(t, FlexString("9876543210"), rec.Phone)
	assert.Equal(t, FlexString("2016"), rec.Education.Tenth.Year)
	assert.Equal(t, FlexString("92.6"), rec.Education.Tenth.Percentage)
	assert.True(t, rec.Education.Twelfth.IsZero())
	assert.Equal(t, FlexString("8.32 (upto 5th semester)"), rec.Education.Bachelor.CGPA)
	assert.Equal(t, FlexStrings{"Go"}, rec.Skills.Technical)
	assert.Equal(t, FlexStrings{"teamwork"}, rec.Skills.Soft)
	assert.Nil(t, rec.Certificates)
	assert.Len(t, rec.Education.Entries(), 2)
}

func TestSectionContentShapes(t *testing.T) {
	var rec ResumeRecord
	require.NoError(t, json.Unmarshal([]byte(`{"experience": " Five years building payment systems ", "projects": ["ATS scorer", ""]}`), &rec))
	assert.Equal(t, "Five years building payment systems", rec.Experience.Text)
	assert.Empty(t, rec.Experience.Items)
	assert.Equal(t, []string{"ATS scorer"}, rec.Projects.Items)
	assert.Equal(t, []string{"Five years building payment systems"}, rec.Experience.Entries())

	out, err := json.Marshal(rec.Experience)
	require.NoError(t, err)
	assert.JSONEq(t, `"Five years building payment systems"`, string(out))

	out, err = json.Marshal(SectionContent{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestFlexStringRejectsObjects(t *testing.T) {
	var rec ResumeRecord
	err := json.Unmarshal([]byte(`{"name": {"first": "a"}}`), &rec)
	assert.Error(t, err)
}

func TestEducationKeysAreLoadBearing(t *testing.T) {
	out, err := json.Marshal(Education{})
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `"10th"`)
	assert.Contains(t, s, `"12th"`)
	assert.Contains(t, s, `"bachelor"`)
	assert.Contains(t, s, `"expected_graduation"`)
}

func TestScoreBreakdownKeepsOrder(t *testing.T) {
	b := ScoreBreakdown{
		Items: []ScoreItem{
			{Category: "Section Coverage", Score: 20, Max: 20},
			{Category: "Contact Info", Score: 3, Max: 5},
			{Category: "Tools & Platforms", Score: 2.4, Max: 10},
		},
		Total: 25.4,
	}

	out, err := b.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"Section Coverage":20,"Contact Info":3,"Tools & Platforms":2.4,"Total ATS Score":25.4}`, string(out))

	// 嵌套在结果结构体里时类别名同样不转义
	wrapped, err := MarshalPlain(struct {
		Breakdown ScoreBreakdown `json:"breakdown"`
	}{b})
	require.NoError(t, err)
	assert.Contains(t, string(wrapped), `"Tools & Platforms":2.4`)
	assert.NotContains(t, string(wrapped), `\u0026`)

	var back ScoreBreakdown
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, b.Categories(), back.Categories())
	assert.Equal(t, 25.4, back.Total)

	v, ok := back.Get("Contact Info")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	_, ok = back.Get("missing")
	assert.False(t, ok)
}

func TestPipelineResultShape(t *testing.T) {
	res := PipelineResult{Data: &ResumeRecord{Languages: []string{"English"}}, ATSScore: 10, WordCount: 42}
	out, err := json.Marshal(res)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &m))
	for _, key := range []string{"data", "ats_score", "ats_breakdown", "word_count"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "report_id")
}
