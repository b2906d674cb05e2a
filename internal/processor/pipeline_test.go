package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ats-resume-go/internal/parser"
	"ats-resume-go/internal/scoring"
	"ats-resume-go/internal/types"
	"ats-resume-go/internal/vocab"
	"ats-resume-go/pkg/agent"
	"ats-resume-go/pkg/ratelimit"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelJSON = `{
  "name": "Asha K",
  "email": "asha@example.com",
  "phone": "9876543210",
  "linkedin": "linkedin.com/in/asha",
  "github": "https://github.com/asha",
  "leetcode": "",
  "codechef": "",
  "languages": "English and Tamil",
  "education": {
    "10th": {"school": "KV", "location": "Chennai", "year": "2015", "percentage": "92.4%"},
    "12th": {"school": "KV", "location": "Chennai", "year": "2017", "percentage": 88},
    "bachelor": {"institute": "Anna University", "degree": "B.E. Computer Science", "expected_graduation": "2021", "cgpa": "8.32 (upto 5th semester)"}
  },
  "skills": {"technical": ["Go", "Docker", "Kubernetes"], "soft": ["leadership"]},
  "certificates": ["AWS Certified Cloud Practitioner"],
  "experience": ["Built payment APIs"],
  "projects": ["ATS scorer"],
  "role_match": "ROLE_MATCH",
  "summary": "Backend engineer"
}`

func modelOutput(role string) string {
	return strings.Replace(modelJSON, "ROLE_MATCH", role, 1)
}

const resumeText = "Asha K\nasha@example.com\n• Developed REST APIs in Go\n• Reduced latency by 30%\nSkills: Go, Docker, Kubernetes"

type fakePDF struct {
	text  string
	err   error
	mu    sync.Mutex
	calls int
}

func (f *fakePDF) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.text, f.err
}

type fakeStore struct {
	mu       sync.Mutex
	err      error
	reports  []*types.AnalysisReport
	original [][]byte
}

func (s *fakeStore) SaveReport(ctx context.Context, report *types.AnalysisReport, original []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.reports = append(s.reports, report)
	s.original = append(s.original, original)
	return fmt.Sprintf("report-%d", len(s.reports)), nil
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]*types.PipelineResult
	ttls  map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string]*types.PipelineResult{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) GetResult(ctx context.Context, fingerprint string) (*types.PipelineResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[fingerprint], nil
}

func (c *memoryCache) SetResult(ctx context.Context, fingerprint string, result *types.PipelineResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[fingerprint] = result
	c.ttls[fingerprint] = ttl
	return nil
}

type stubRole struct {
	role  string
	err   error
	calls int
}

func (s *stubRole) InferRole(ctx context.Context, record *types.ResumeRecord) (string, error) {
	s.calls++
	return s.role, s.err
}

func newTestPipeline(t *testing.T, pdf PDFExtractor, llm *agent.MockChatClient, opts ...ComponentOpt) *ResumePipeline {
	t.Helper()
	comp := &Components{
		PDFExtractor: pdf,
		Extractor:    parser.NewLLMResumeExtractor(llm),
		Scorer:       scoring.NewEngine(vocab.Default(), scoring.DefaultRubric()),
	}
	for _, opt := range opts {
		opt(comp)
	}
	p, err := NewResumePipeline(comp, nil, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return p
}

func TestProcessSuccess(t *testing.T) {
	llm := agent.NewMockChatClient(modelOutput("Backend Engineer"), nil)
	store := &fakeStore{}
	p := newTestPipeline(t, &fakePDF{text: resumeText}, llm, WithReportStore(store))

	doc := Document{Name: "asha.pdf", Data: []byte("%PDF-1.7"), JobDescription: "<p>Go and Kubernetes</p>"}
	result, err := p.Process(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "Asha K", result.Data.Name.String())
	assert.Equal(t, []string{"English", "Tamil"}, result.Data.Languages)
	assert.Equal(t, result.ATSBreakdown.Total, result.ATSScore)
	assert.Len(t, result.ATSBreakdown.Items, len(scoring.Categories))
	assert.Equal(t, scoring.WordCount(resumeText), result.WordCount)
	assert.Equal(t, "report-1", result.ReportID)
	assert.False(t, result.Cached)

	jd, ok := result.ATSBreakdown.Get(scoring.CategoryJDMatch)
	require.True(t, ok)
	assert.Greater(t, jd, 0.0)

	// 抽取提示中的 JD 已清洗掉 HTML
	assert.Contains(t, llm.LastUserMessage(), "Go and Kubernetes")
	assert.NotContains(t, llm.LastUserMessage(), "<p>")

	require.Len(t, store.reports, 1)
	saved := store.reports[0]
	assert.Equal(t, "asha.pdf", saved.FileName)
	assert.Equal(t, hashHex(doc.Data), saved.FileMD5)
	assert.Equal(t, resumeText, saved.ExtractedText)
	assert.Equal(t, "Go and Kubernetes", saved.JobDescription)
	assert.Equal(t, doc.Data, store.original[0])
}

func TestProcessEmptyFileNeverCallsModel(t *testing.T) {
	llm := agent.NewMockChatClient(modelOutput(""), nil)
	pdf := &fakePDF{text: resumeText}
	p := newTestPipeline(t, pdf, llm)

	_, err := p.Process(context.Background(), Document{Name: "empty.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.EqualError(t, err, MsgEmptyFile)
	assert.True(t, IsClientError(err))
	assert.Equal(t, 0, pdf.calls)
	assert.Equal(t, 0, llm.CallCount())
}

func TestProcessUnreadablePDF(t *testing.T) {
	cases := map[string]*fakePDF{
		"blank text":     {text: " \n\t "},
		"extract failed": {err: errors.New("malformed xref table")},
	}
	for name, pdf := range cases {
		t.Run(name, func(t *testing.T) {
			llm := agent.NewMockChatClient(modelOutput(""), nil)
			p := newTestPipeline(t, pdf, llm)

			_, err := p.Process(context.Background(), Document{Name: "scan.pdf", Data: []byte("%PDF")})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmptyDocument)
			assert.EqualError(t, err, MsgNoReadableText)
			assert.Equal(t, 0, llm.CallCount())

			var pe *PipelineError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, StageReceived, pe.Stage)
		})
	}
}

func TestProcessMalformedModelOutput(t *testing.T) {
	raw := `{"name": "A", "skills": `
	store := &fakeStore{}
	p := newTestPipeline(t, &fakePDF{text: resumeText}, agent.NewMockChatClient(raw, nil), WithReportStore(store))

	_, err := p.Process(context.Background(), Document{Name: "a.pdf", Data: []byte("%PDF")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAIParse)
	assert.True(t, IsClientError(err))
	assert.Contains(t, err.Error(), "Failed to parse AI JSON")

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, raw, pe.Raw)
	assert.Equal(t, StageTextExtracted, pe.Stage)

	var parseErr *parser.AIParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Empty(t, store.reports, "失败时不应持久化任何记录")
}

func TestProcessModelRequestFailure(t *testing.T) {
	llm := agent.NewMockChatClient("", errors.New("401 unauthorized"))
	p := newTestPipeline(t, &fakePDF{text: resumeText}, llm)

	_, err := p.Process(context.Background(), Document{Name: "a.pdf", Data: []byte("%PDF")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAIRequest)
	assert.NotErrorIs(t, err, ErrQuotaExhausted)
	assert.False(t, IsClientError(err))
	assert.Contains(t, err.Error(), "401 unauthorized")
	assert.Equal(t, 1, llm.CallCount(), "调用失败不应重试")
}

func TestProcessQuotaExhausted(t *testing.T) {
	llm := agent.NewMockChatClient("", fmt.Errorf("429: %w", ratelimit.ErrQuotaExhausted))
	p := newTestPipeline(t, &fakePDF{text: resumeText}, llm)

	_, err := p.Process(context.Background(), Document{Name: "a.pdf", Data: []byte("%PDF")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.ErrorIs(t, err, ratelimit.ErrQuotaExhausted)
	assert.EqualError(t, err, MsgQuotaExhausted)
}

func TestPersistenceFailureStillReturnsResult(t *testing.T) {
	store := &fakeStore{err: errors.New("mysql: connection refused")}
	p := newTestPipeline(t, &fakePDF{text: resumeText}, agent.NewMockChatClient(modelOutput("SRE"), nil), WithReportStore(store))

	result, err := p.Process(context.Background(), Document{Name: "a.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Empty(t, result.ReportID)
	assert.Equal(t, "SRE", result.Data.RoleMatch.String())
}

func TestProcessCacheHitSkipsModel(t *testing.T) {
	llm := agent.NewMockChatClient(modelOutput("SRE"), nil)
	cache := newMemoryCache()
	p := newTestPipeline(t, &fakePDF{text: resumeText}, llm, WithResultCache(cache))

	doc := Document{Name: "a.pdf", Data: []byte("%PDF same bytes"), JobDescription: "Go"}
	first, err := p.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 24*time.Hour, cache.ttls[Fingerprint(doc.Data, "Go")])

	second, err := p.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ATSScore, second.ATSScore)
	assert.Equal(t, 1, llm.CallCount())

	// JD 不同则不命中
	doc.JobDescription = "Python"
	third, err := p.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, llm.CallCount())
}

func TestRoleInference(t *testing.T) {
	role := &stubRole{role: "Backend Engineer"}
	p := newTestPipeline(t, &fakePDF{text: resumeText}, agent.NewMockChatClient(modelOutput(""), nil), WithRoleInferrer(role))

	result, err := p.Process(context.Background(), Document{Name: "a.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", result.Data.RoleMatch.String())
	assert.Equal(t, 1, role.calls)

	// 已有 role_match 时不调用
	role = &stubRole{role: "ignored"}
	p = newTestPipeline(t, &fakePDF{text: resumeText}, agent.NewMockChatClient(modelOutput("SRE"), nil), WithRoleInferrer(role))
	result, err = p.Process(context.Background(), Document{Name: "a.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "SRE", result.Data.RoleMatch.String())
	assert.Equal(t, 0, role.calls)

	// 推断失败不影响结果
	role = &stubRole{err: errors.New("down")}
	p = newTestPipeline(t, &fakePDF{text: resumeText}, agent.NewMockChatClient(modelOutput(""), nil), WithRoleInferrer(role))
	result, err = p.Process(context.Background(), Document{Name: "a.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Empty(t, result.Data.RoleMatch.String())
}

func TestNewResumePipelineRequiresComponents(t *testing.T) {
	_, err := NewResumePipeline(nil, nil)
	assert.ErrorIs(t, err, ErrMissingComponent)

	_, err = NewResumePipeline(&Components{PDFExtractor: &fakePDF{}}, nil)
	assert.ErrorIs(t, err, ErrMissingComponent)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("x"), "jd")
	assert.Equal(t, a, Fingerprint([]byte("x"), "jd"))
	assert.NotEqual(t, a, Fingerprint([]byte("x"), ""))
	assert.NotEqual(t, a, Fingerprint([]byte("y"), "jd"))
}
