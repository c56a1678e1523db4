package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "无法写入临时配置文件")
	return path
}

// TestLoadConfigMergesDefaults 验证文件中未出现的字段保持默认值
func TestLoadConfigMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
extraction:
  similarity_threshold: 0.55
  skill_strategy: phrase
  gazetteer:
    home_country: morocco
    locations: [rabat, casablanca]
rabbitmq:
  enabled: true
  prefetch_count: 20
`)

	config, err := LoadConfig(path)
	require.NoError(t, err, "加载配置不应返回错误")
	require.NotNil(t, config)

	assert.Equal(t, ":9090", config.Server.Address)
	assert.Equal(t, 0.55, config.Extraction.SimilarityThreshold)
	assert.Equal(t, "phrase", config.Extraction.SkillStrategy)
	assert.Equal(t, "morocco", config.Extraction.Gazetteer.HomeCountry)
	assert.Equal(t, []string{"rabat", "casablanca"}, config.Extraction.Gazetteer.Locations)
	assert.Nil(t, config.Extraction.Gazetteer.JobTitles, "未配置的词表应为 nil，以便使用默认值")
	assert.True(t, config.RabbitMQ.Enabled)
	assert.Equal(t, 20, config.RabbitMQ.PrefetchCount)

	// 默认值
	assert.Equal(t, 15, config.Extraction.ExperienceWindow)
	assert.Equal(t, "q.resume_text", config.RabbitMQ.ResumeTextQueue)
	assert.Equal(t, "http://localhost:9998", config.Tika.ServerURL)
	assert.Equal(t, 4, config.Processing.Workers)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "logger:\n  level: info\n")
	t.Setenv("CVISION_LOG_LEVEL", "debug")
	t.Setenv("CVISION_API_KEYS", "k1, k2,,")
	t.Setenv("CVISION_SIMILARITY_THRESHOLD", "0.7")
	t.Setenv("CVISION_WORKERS", "8")
	t.Setenv("CVISION_OTLP_ENDPOINT", "otel:4317")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logger.Level)
	assert.Equal(t, []string{"k1", "k2"}, config.Auth.APIKeys)
	assert.Equal(t, 0.7, config.Extraction.SimilarityThreshold)
	assert.Equal(t, 8, config.Processing.Workers)
	assert.True(t, config.Tracing.Enabled)
	assert.Equal(t, "otel:4317", config.Tracing.Endpoint)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "文件不存在应返回错误")

	_, err = LoadConfig(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err, "YAML 语法错误应返回错误")

	_, err = LoadConfig(writeConfig(t, "extraction:\n  similarity_threshold: 1.5\n"))
	assert.Error(t, err, "阈值超出范围应返回错误")

	_, err = LoadConfig(writeConfig(t, "extraction:\n  skill_strategy: spacy\n"))
	assert.Error(t, err, "未知策略应返回错误")
}

// TestLoadConfigWithIncorrectIndentation 缩进错误时 yaml.v3 不报错，但嵌套字段不会被解析
func TestLoadConfigWithIncorrectIndentation(t *testing.T) {
	path := writeConfig(t, `
extraction:
  gazetteer:
  locations: [paris]
`)
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Nil(t, config.Extraction.Gazetteer.Locations)
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().RabbitMQ.ResumeTextQueue, config.RabbitMQ.ResumeTextQueue)

	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, GetDuration("abc", 5*time.Second))
	assert.Equal(t, 2*time.Minute, GetDuration("2m", 5*time.Second))
}
