package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *types.AnalysisReport {
	return &types.AnalysisReport{
		ID:             "0190f3c2-7b1e-7cc0-8a55-3f1a2b3c4d5e",
		FileName:       "asha.pdf",
		FileMD5:        "9e107d9d372bb6826bd81d3542a419d6",
		JobDescription: "Backend engineer, Go",
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Result: &types.PipelineResult{
			Data: &types.ResumeRecord{
				Name:      "Asha K",
				Email:     "asha@example.com",
				RoleMatch: "Backend Developer",
				Languages: []string{"English"},
			},
			ATSScore: 71.25,
			ATSBreakdown: types.ScoreBreakdown{
				Items: []types.ScoreItem{
					{Category: "Contact Information", Score: 10, Max: 10},
					{Category: "Skills", Score: 8.5, Max: 10},
					{Category: "Tools & Platforms", Score: 1.6, Max: 10},
				},
				Total: 71.25,
			},
			WordCount: 412,
		},
	}
}

func TestReportModelConversion(t *testing.T) {
	report := sampleReport()
	row, err := ReportToModel(report)
	require.NoError(t, err)

	assert.Equal(t, report.ID, row.ReportID)
	assert.Equal(t, "Asha K", row.CandidateName)
	assert.Equal(t, "asha@example.com", row.CandidateEmail)
	assert.Equal(t, "Backend Developer", row.RoleMatch)
	assert.Equal(t, 71.25, row.ATSScore)
	// 评分明细保持细则顺序，总分在最后
	assert.Equal(t, `{"Contact Information":10,"Skills":8.5,"Tools & Platforms":1.6,"Total ATS Score":71.25}`, string(row.BreakdownJSON))

	back, err := ReportFromModel(row)
	require.NoError(t, err)
	assert.Equal(t, report.ID, back.Result.ReportID)
	assert.Equal(t, []string{"Contact Information", "Skills", "Tools & Platforms"}, back.Result.ATSBreakdown.Categories())
	assert.Equal(t, 71.25, back.Result.ATSBreakdown.Total)
	assert.Equal(t, "asha@example.com", back.Result.Data.Email.String())
	assert.Equal(t, 412, back.Result.WordCount)
}

func TestReportToModelRequiresResult(t *testing.T) {
	_, err := ReportToModel(&types.AnalysisReport{ID: "x"})
	assert.Error(t, err)
}

func TestNewCompletedOutbox(t *testing.T) {
	msg, err := NewCompletedOutbox(sampleReport(), "ats.analysis", "analysis.completed")
	require.NoError(t, err)

	assert.Equal(t, EventTypeAnalysisCompleted, msg.EventType)
	assert.Equal(t, OutboxStatusPending, msg.Status)
	assert.Equal(t, "ats.analysis", msg.TargetExchange)
	assert.Equal(t, "analysis.completed", msg.TargetRoutingKey)

	var payload AnalysisCompletedMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, "Asha K", payload.CandidateName)
	assert.True(t, payload.HasJD)
	assert.Equal(t, 71.25, payload.ATSScore)
}

func TestObjectAndCacheKeys(t *testing.T) {
	assert.Equal(t, "resume/abc/original.pdf", OriginalObjectKey("abc"))
	assert.Equal(t, "resume/abc/parsed_text.txt", ParsedTextObjectKey("abc"))
	assert.Equal(t, "app:analysis:result:f1:f2", ResultKey("f1:f2"))
}

func TestLifecycleConfig(t *testing.T) {
	assert.Nil(t, lifecycleConfig("expire", 0))
	cfg := lifecycleConfig("expire", 30)
	require.NotNil(t, cfg)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "Enabled", cfg.Rules[0].Status)
}

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(&config.MySQLConfig{
		Host: "db", Port: 3306, Username: "ats", Password: "pw", Database: "ats_reports",
		ConnectTimeoutSeconds: 5, ReadTimeoutSeconds: 10, WriteTimeoutSeconds: 10,
	})
	assert.Contains(t, dsn, "ats:pw@tcp(db:3306)/ats_reports?")
	assert.Contains(t, dsn, "parseTime=True")
	assert.Contains(t, dsn, "timeout=5s")
}

func TestCachedResultEncoding(t *testing.T) {
	result := sampleReport().Result
	result.Cached = true

	raw, err := EncodeCachedResult(result)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"cached"`)
	assert.True(t, result.Cached, "原对象不应被修改")

	back, err := DecodeCachedResult(raw)
	require.NoError(t, err)
	assert.Equal(t, 71.25, back.ATSScore)

	_, err = DecodeCachedResult([]byte(`{"ats_score":1}`))
	assert.Error(t, err)
	_, err = DecodeCachedResult([]byte(`not json`))
	assert.Error(t, err)
}

func TestDisabledStorage(t *testing.T) {
	s := &Storage{cfg: config.Default(), logger: zerolog.Nop()}
	ctx := context.Background()

	_, err := s.SaveReport(ctx, sampleReport(), []byte("%PDF"))
	assert.ErrorIs(t, err, ErrReportStoreDisabled)
	_, err = s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrReportStoreDisabled)

	got, err := s.GetResult(ctx, "fp")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, s.SetResult(ctx, "fp", sampleReport().Result, time.Minute))
}

func TestShouldSampleRedisOp(t *testing.T) {
	assert.False(t, shouldSampleRedisOp(""))
}
