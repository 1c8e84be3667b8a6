package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"AGENTICFLOW_JWT_SECRET",
		"AGENTICFLOW_SERVER_HOST",
		"AGENTICFLOW_SERVER_PORT",
		"AGENTICFLOW_PIPELINE_PLATFORMS",
		"AGENTICFLOW_PIPELINE_WORKERS",
		"AGENTICFLOW_PIPELINE_FETCH_LIMIT",
		"AGENTICFLOW_SOCIAL_ENDPOINTS",
		"AGENTICFLOW_SMTP_BIND_ADDR",
		"AGENTICFLOW_LOG_LEVEL",
		"AGENTICFLOW_LOG_DEVELOPMENT",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnvs := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("AGENTICFLOW_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnvs()

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.False(t, cfg.Gmail.Enabled)
		assert.Equal(t, "gpt-4-turbo-preview", cfg.LLM.Model)
		assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, 10, cfg.Pipeline.FetchLimit)
		assert.Equal(t, 5*time.Minute, cfg.Pipeline.PollInterval)
		assert.Equal(t, time.Minute, cfg.Pipeline.SweepInterval)
		assert.Equal(t, 4, cfg.Pipeline.Workers)
		assert.Equal(t, []string{"twitter", "linkedin"}, cfg.Pipeline.Platforms)
		assert.Equal(t, "professional", cfg.Pipeline.DefaultTone)
		assert.True(t, cfg.Pipeline.AutoPublish)
		assert.Equal(t, 72*time.Hour, cfg.Pipeline.DedupTTL)
		assert.Equal(t, ":2525", cfg.SMTP.BindAddr)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "", cfg.Database.Type)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.Equal(t, "admin", cfg.Admin.Username)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		clearEnvs()
		os.Setenv("AGENTICFLOW_SERVER_HOST", "127.0.0.1")
		os.Setenv("AGENTICFLOW_SERVER_PORT", "9090")
		os.Setenv("AGENTICFLOW_PIPELINE_PLATFORMS", "Twitter, Facebook")
		os.Setenv("AGENTICFLOW_LOG_LEVEL", "debug")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, []string{"twitter", "facebook"}, cfg.Pipeline.Platforms)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("解析社交端点映射", func(t *testing.T) {
		clearEnvs()
		os.Setenv("AGENTICFLOW_SOCIAL_ENDPOINTS", "Twitter=https://gw.example/tw, linkedin=https://gw.example/li")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, map[string]string{
			"twitter":  "https://gw.example/tw",
			"linkedin": "https://gw.example/li",
		}, cfg.Social.Endpoints)
	})

	t.Run("缺少JWT密钥时返回错误", func(t *testing.T) {
		clearEnvs()
		os.Unsetenv("AGENTICFLOW_JWT_SECRET")

		_, err := Load()

		assert.Error(t, err)
	})

	t.Run("JWT密钥过短时返回错误", func(t *testing.T) {
		clearEnvs()
		os.Setenv("AGENTICFLOW_JWT_SECRET", "too-short")

		_, err := Load()

		assert.Error(t, err)
	})

	t.Run("负的拉取数量返回错误", func(t *testing.T) {
		clearEnvs()
		os.Setenv("AGENTICFLOW_PIPELINE_FETCH_LIMIT", "-1")

		_, err := Load()

		assert.Error(t, err)
	})

	t.Run("非法的并发数回退默认值", func(t *testing.T) {
		clearEnvs()
		os.Setenv("AGENTICFLOW_PIPELINE_WORKERS", "0")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, 4, cfg.Pipeline.Workers)
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList("a,b"))
	assert.Equal(t, []string{"a", "b"}, parseList(" A , B "))
	assert.Empty(t, parseList(""))
	assert.Empty(t, parseList(" , , "))
}

func TestParseEndpoints(t *testing.T) {
	assert.Equal(t, map[string]string{"twitter": "https://x"}, parseEndpoints("twitter=https://x"))
	assert.Empty(t, parseEndpoints(""))
	// 没有等号或键为空的条目被忽略
	assert.Empty(t, parseEndpoints("noequals, =https://x"))
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseDurationOr("5s", time.Minute))
	assert.Equal(t, time.Minute, parseDurationOr("bogus", time.Minute))
	assert.Equal(t, time.Minute, parseDurationOr("", time.Minute))
}
