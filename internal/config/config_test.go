package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigMergesDefaults 验证文件中未出现的字段保持默认值
func TestLoadConfigMergesDefaults(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  provider: mock
  model: test-model
pipeline:
  batch_concurrency: 8
vocabulary:
  technical: ["go", "rust"]
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 8, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, []string{"go", "rust"}, cfg.Vocabulary.Technical)

	// 默认值
	assert.Equal(t, 80000, cfg.Extraction.MaxInputChars)
	assert.Equal(t, 0.2, cfg.Extraction.Temperature)
	assert.Equal(t, "English", cfg.Extraction.DefaultLanguage)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  provider: openai
  model: from-file
`)
	t.Setenv("OPENROUTER_API_KEY", "sk-env")
	t.Setenv("LLM_MODEL", "from-env")
	t.Setenv("BATCH_CONCURRENCY", "3")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Pipeline.BatchConcurrency)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	tests := []struct {
		name    string
		content string
	}{
		{"未知provider", "llm:\n  provider: bogus\n"},
		{"并发为0", "llm:\n  provider: mock\npipeline:\n  batch_concurrency: 0\n"},
		{"openai缺少key", "llm:\n  provider: openai\n  api_key: \"\"\n"},
		{"采样率越界", "llm:\n  provider: mock\ntracing:\n  sample_ratio: 1.5\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "配置校验失败")
		})
	}
}

// TestLoadConfigWithIncorrectMapSyntax 缩进错误的 map 字段不会被解析进去
func TestLoadConfigWithIncorrectMapSyntax(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  provider: mock
  task_models: # map类型
  chat: some-model
`)
	cfg, err := LoadConfig(configPath)
	if err != nil {
		// yaml 层面直接报错也可以接受
		return
	}
	assert.NotEqual(t, "some-model", cfg.GetModelForTask("chat"))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))
	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")

	t.Setenv("OPENROUTER_API_KEY", "sk-sample")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Extraction, cfg.Extraction)
	assert.Equal(t, "\n...[Truncated for AI]...", cfg.Extraction.TruncatedMarker)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `truncated_marker: "\n...[Truncated for AI]..."`)
}

func TestGetModelAndQPM(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "gpt-4o-mini", cfg.GetModelForTask("chat"))
	assert.Equal(t, cfg.LLM.Model, cfg.GetModelForTask("extraction"))
	assert.Equal(t, 500, cfg.GetQPMForModel("gpt-4.1-mini"))
	assert.Equal(t, cfg.LLM.QPM, cfg.GetQPMForModel("unknown"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, GetDuration("garbage", 5*time.Second))
	assert.Equal(t, 90*time.Second, GetDuration("90s", time.Second))
}
