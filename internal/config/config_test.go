package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearQuorumEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "QUORUM_API_KEY",
		"QUORUM_PROVIDER", "QUORUM_MODEL", "QUORUM_ADDR", "QUORUM_DB",
		"QUORUM_MAX_ROUNDS", "QUORUM_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaultsWhenFileMissing(t *testing.T) {
	clearQuorumEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Council.MaxRounds)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.True(t, cfg.Archive.Enabled)
}

func TestLoadFromYAML(t *testing.T) {
	clearQuorumEnv(t)
	path := filepath.Join(t.TempDir(), "quorum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: gemini
  model: gemini-2.5-pro
council:
  max_rounds: 5
  decision_timeout: 30s
server:
  addr: ":9000"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Council.MaxRounds)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.DecisionTimeout())
	// untouched sections keep defaults
	assert.Equal(t, "data/quorum.db", cfg.Archive.DatabasePath)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("ANTHROPIC_API_KEY sets key and provider", func(t *testing.T) {
		clearQuorumEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "ant-key", cfg.LLM.APIKey)
		assert.Equal(t, "anthropic", cfg.LLM.Provider)
	})

	t.Run("QUORUM_PROVIDER wins over key-derived provider", func(t *testing.T) {
		clearQuorumEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("QUORUM_PROVIDER", "gemini")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "gemini", cfg.LLM.Provider)
		assert.Equal(t, "ant-key", cfg.LLM.APIKey)
	})

	t.Run("QUORUM_MAX_ROUNDS ignores garbage", func(t *testing.T) {
		clearQuorumEnv(t)
		t.Setenv("QUORUM_MAX_ROUNDS", "not-a-number")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, 3, cfg.Council.MaxRounds)
	})

	t.Run("QUORUM_ADDR and QUORUM_DB", func(t *testing.T) {
		clearQuorumEnv(t)
		t.Setenv("QUORUM_ADDR", ":7070")
		t.Setenv("QUORUM_DB", "/tmp/x.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, ":7070", cfg.Server.Addr)
		assert.Equal(t, "/tmp/x.db", cfg.Archive.DatabasePath)
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Council.MaxRounds = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.Provider = "openai"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Council.DecisionTimeout = "soon"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	clearQuorumEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "quorum.yaml")
	cfg := DefaultConfig()
	cfg.Council.MaxRounds = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Council.MaxRounds)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "bogus"
	assert.Equal(t, 120*time.Second, cfg.LLMTimeout())

	cfg.Council.DecisionTimeout = ""
	assert.Equal(t, time.Duration(0), cfg.DecisionTimeout())

	cfg.Server.ShutdownTimeout = ""
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
}
