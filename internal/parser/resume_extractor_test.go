package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/types"
	"ats-resume-go/internal/vocab"
	"ats-resume-go/pkg/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleModelJSON = `{
  "name": "Asha K",
  "email": "asha@example.com",
  "phone": 9876543210,
  "linkedin": "linkedin.com/in/asha",
  "github": "https://github.com/octocat",
  "leetcode": "leetcode.com/u/coder1",
  "codechef": "",
  "languages": "English and Tamil",
  "education": {
    "10th": {"school": "KV", "location": "Chennai", "year": 2015, "percentage": 92.4},
    "12th": {"school": "KV", "location": "Chennai", "year": "2017", "percentage": "88%"},
    "bachelor": {"institute": "Anna University", "degree": "B.E. CSE", "expected_graduation": "2021", "cgpa": 8.6}
  },
  "skills": {"technical": ["Go", "Docker"], "soft": "leadership"},
  "certificates": ["AWS Certified Cloud Practitioner"],
  "experience": ["Built payment APIs"],
  "projects": [],
  "role_match": "",
  "summary": "Backend engineer"
}`

func TestExtractDecodesFencedOutput(t *testing.T) {
	mock := agent.NewMockChatClient("\uFEFF```json\n"+sampleModelJSON+"\n```", nil)
	e := NewLLMResumeExtractor(mock)

	record, err := e.Extract(context.Background(), "resume text", "")
	require.NoError(t, err)

	assert.Equal(t, "Asha K", record.Name.String())
	assert.Equal(t, "9876543210", record.Phone.String())
	assert.Equal(t, []string{"English", "Tamil"}, record.Languages)
	assert.Equal(t, "92.4", record.Education.Tenth.Percentage.String())
	assert.Equal(t, "8.6", record.Education.Bachelor.CGPA.String())
	assert.Equal(t, types.FlexStrings{"leadership"}, record.Skills.Soft)
	assert.Equal(t, map[string]string{"github.com": "octocat", "leetcode.com": "coder1"}, record.ProfileHandles)
}

func TestExtractFallsBackToDefaultLanguage(t *testing.T) {
	mock := agent.NewMockChatClient(`{"name": "B", "languages": []}`, nil)
	e := NewLLMResumeExtractor(mock)

	record, err := e.Extract(context.Background(), "Go developer with five years of backend work", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"English"}, record.Languages)

	// 文本中出现的语言优先于默认值
	record, err = e.Extract(context.Background(), "Fluent in Hindi, basic German", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hindi", "German"}, record.Languages)
}

func TestExtractMalformedOutputIsParseError(t *testing.T) {
	cases := map[string]string{
		"no object":   "Sorry, I cannot help with that.",
		"broken json": `{"name": , "email": "x"}`,
		"bad shape":   `{"name": "A", "languages": {"primary": "English"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			e := NewLLMResumeExtractor(agent.NewMockChatClient(raw, nil))
			_, err := e.Extract(context.Background(), "text", "")
			require.Error(t, err)

			var parseErr *AIParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, raw, parseErr.Raw)
			assert.Contains(t, err.Error(), "Failed to parse AI JSON")
		})
	}
}

func TestExtractEmptyResponse(t *testing.T) {
	e := NewLLMResumeExtractor(agent.NewMockChatClient("   ", nil))
	_, err := e.Extract(context.Background(), "text", "")

	var parseErr *AIParseError
	require.True(t, errors.As(err, &parseErr))
	assert.ErrorIs(t, err, ErrEmptyModelResponse)
}

func TestExtractRequestFailureIsNotRetried(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("dial tcp: connection refused"))
	e := NewLLMResumeExtractor(mock)

	_, err := e.Extract(context.Background(), "text", "")
	var reqErr *AIRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Contains(t, err.Error(), "AI request failed")
	assert.Equal(t, 1, mock.CallCount())

	_, err = NewLLMResumeExtractor(nil).Extract(context.Background(), "text", "")
	assert.True(t, errors.As(err, &reqErr))
}

func TestExtractRepairsInnerQuotes(t *testing.T) {
	raw := `{"name": "A", "summary": "Known as "the fixer" in team"}`
	e := NewLLMResumeExtractor(agent.NewMockChatClient(raw, nil))

	record, err := e.Extract(context.Background(), "text", "")
	require.NoError(t, err)
	assert.Equal(t, `Known as "the fixer" in team`, record.Summary.String())
}

func TestExtractSendsOptionsAndTruncates(t *testing.T) {
	mock := agent.NewMockChatClient(`{"name": "A"}`, nil)
	e := NewLLMResumeExtractor(mock,
		WithModelName("extract-model"),
		WithSampling(0, 1500),
		WithInputLimit(10, "[CUT]"),
	)

	_, err := e.Extract(context.Background(), "abcdefghijklmnop", "")
	require.NoError(t, err)

	prompt := mock.LastUserMessage()
	assert.Contains(t, prompt, "abcdefghij[CUT]")
	assert.NotContains(t, prompt, "abcdefghijk")
	assert.Contains(t, prompt, "single job title")

	calls := mock.Calls()
	require.Len(t, calls, 1)
	opts := calls[0].Options
	require.NotNil(t, opts.Temperature)
	assert.Equal(t, float32(0), *opts.Temperature)
	require.NotNil(t, opts.MaxTokens)
	assert.Equal(t, 1500, *opts.MaxTokens)
	require.NotNil(t, opts.Model)
	assert.Equal(t, "extract-model", *opts.Model)
}

func TestExtractPromptCarriesJobDescription(t *testing.T) {
	mock := agent.NewMockChatClient(`{"name": "A"}`, nil)
	e := NewLLMResumeExtractor(mock)

	_, err := e.Extract(context.Background(), "resume", "Golang backend role, Kubernetes")
	require.NoError(t, err)
	prompt := mock.LastUserMessage()
	assert.Contains(t, prompt, "Golang backend role, Kubernetes")
	assert.Contains(t, prompt, "how well the candidate fits")
}

func TestExtractorOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.MaxInputChars = 5000
	cfg.Extraction.TruncatedMarker = "<cut>"
	cfg.LLM.TaskModels = map[string]string{"extraction": "big-model"}

	e := NewLLMResumeExtractor(nil, ExtractorOptionsFromConfig(cfg, vocab.Default())...)
	assert.Equal(t, 5000, e.maxInputChars)
	assert.Equal(t, "<cut>", e.truncatedMarker)
	assert.Equal(t, "big-model", e.modelName)
}

func TestJSONHelpers(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanModelOutput("\uFEFF```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":"}{"}`, extractJSONObject(`prefix {"a":"}{"} trailing`))
	assert.Equal(t, `{"a":{"b":[1]}}`, extractJSONObject(`{"a":{"b":[1]}}}`))
	assert.Empty(t, extractJSONObject(`{"a": 1`))
	assert.Empty(t, extractJSONObject("no braces"))

	assert.Equal(t, `{"s": "say \"hi\" now"}`, repairQuotes(`{"s": "say "hi" now"}`))
	// 合法 JSON 不变
	valid := `{"a": "x", "b": ["y", "z"]}`
	assert.Equal(t, valid, repairQuotes(valid))
}

func TestValidateShape(t *testing.T) {
	require.NoError(t, validateShape(sampleModelJSON))
	assert.Error(t, validateShape(`{"skills": {"technical": {"go": true}}}`))
	assert.Error(t, validateShape(`[]`))
}

func TestRoleInferrer(t *testing.T) {
	mock := agent.NewMockChatClient("\"Backend Engineer.\"\nBecause of Go.", nil)
	r := NewLLMRoleInferrer(mock, "role-model")

	record := &types.ResumeRecord{
		Skills:       types.Skills{Technical: types.FlexStrings{"go", "docker"}},
		Certificates: types.FlexStrings{"CKA"},
		Summary:      "Builds APIs",
	}
	role, err := r.InferRole(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", role)

	prompt := mock.LastUserMessage()
	assert.Contains(t, prompt, "Technical skills: go, docker")
	assert.Contains(t, prompt, "Certificates: CKA")

	opts := mock.Calls()[0].Options
	assert.Equal(t, 32, *opts.MaxTokens)
	assert.Equal(t, "role-model", *opts.Model)

	_, err = NewLLMRoleInferrer(agent.NewMockChatClient("", errors.New("down")), "").InferRole(context.Background(), record)
	var reqErr *AIRequestError
	assert.True(t, errors.As(err, &reqErr))
}

func TestCleanRoleTitleLimitsLength(t *testing.T) {
	long := strings.Repeat("x", 200)
	assert.Len(t, []rune(cleanRoleTitle(long)), maxRoleTitleRunes)
}

func TestCareerAdvisor(t *testing.T) {
	mock := agent.NewMockChatClient("  Focus on system design.  ", nil)
	a := NewCareerAdvisor(mock, "")

	_, err := a.Answer(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrMissingQuery)
	assert.Equal(t, 0, mock.CallCount())

	answer, err := a.Answer(context.Background(), "What should I learn next?", map[string]any{"name": "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "Focus on system design.", answer)

	prompt := mock.LastUserMessage()
	assert.Contains(t, prompt, `"name": "Asha"`)
	assert.Contains(t, prompt, "What should I learn next?")
	assert.Equal(t, advisorSystemMessage, mock.Calls()[0].Messages[0].Content)

	_, err = NewCareerAdvisor(agent.NewMockChatClient("", errors.New("down")), "").Answer(context.Background(), "q", nil)
	var reqErr *AIRequestError
	assert.True(t, errors.As(err, &reqErr))
}

func TestCleanJobDescription(t *testing.T) {
	html := `<div><p>We need <b>Go</b> engineers</p><script>var x = 1</script><ul><li>Docker</li><li>Kubernetes</li></ul></div>`
	got := CleanJobDescription(html)
	assert.Contains(t, got, "We need Go engineers")
	assert.Contains(t, got, "Docker\nKubernetes")
	assert.NotContains(t, got, "var x")
	assert.NotContains(t, got, "<")

	assert.Equal(t, "Senior Go\n\nEngineer", CleanJobDescription("  Senior   Go\r\n\r\n\r\n\r\nEngineer "))
	assert.Equal(t, "", CleanJobDescription("   "))
	// 比较符号不应被当成 HTML
	assert.Equal(t, "experience > 3 years", CleanJobDescription("experience > 3 years"))
}
