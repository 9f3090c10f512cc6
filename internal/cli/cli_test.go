package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/worker"
)

func TestRegisterDefaults_EnvOverride(t *testing.T) {
	t.Setenv("CLAIMCHECK_STORE_DRIVER", "postgres")
	t.Setenv("CLAIMCHECK_LLM_API_KEY", "sk-from-env")
	t.Setenv("CLAIMCHECK_CACHE_MEMORY_TTL", "90m")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := registerDefaults(v, model.DefaultConfig()); err != nil {
		t.Fatalf("registerDefaults() error = %v", err)
	}

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if cfg.Store.Driver != "postgres" {
		t.Errorf("store.driver = %q, want postgres", cfg.Store.Driver)
	}
	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("llm.api_key = %q, want sk-from-env", cfg.LLM.APIKey)
	}
	if cfg.Cache.MemoryTTL != 90*time.Minute {
		t.Errorf("cache.memory_ttl = %v, want 90m", cfg.Cache.MemoryTTL)
	}
	if cfg.LLM.Model != model.DefaultConfig().LLM.Model {
		t.Errorf("llm.model = %q, want default", cfg.LLM.Model)
	}
}

func TestApplyEnvFallbacks(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":    "sk-openai",
		"ANTHROPIC_API_KEY": "sk-ant",
		"OLLAMA_BASE_URL":   "http://ollama:11434",
	}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		name       string
		llm        model.LLMConfig
		embedding  model.EmbeddingConfig
		wantLLMKey string
		wantEmbURL string
		wantEmbKey string
	}{
		{
			name:       "openai fills both",
			llm:        model.LLMConfig{Provider: "openai"},
			embedding:  model.EmbeddingConfig{Provider: "openai"},
			wantLLMKey: "sk-openai",
			wantEmbKey: "sk-openai",
		},
		{
			name:       "explicit key wins",
			llm:        model.LLMConfig{Provider: "anthropic", APIKey: "sk-config"},
			embedding:  model.EmbeddingConfig{Provider: "ollama"},
			wantLLMKey: "sk-config",
			wantEmbURL: "http://ollama:11434",
		},
		{
			name:       "claude alias",
			llm:        model.LLMConfig{Provider: "Claude"},
			embedding:  model.EmbeddingConfig{Provider: "ollama", BaseURL: "http://local"},
			wantLLMKey: "sk-ant",
			wantEmbURL: "http://local",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &model.Config{LLM: tt.llm, Embedding: tt.embedding}
			applyEnvFallbacks(cfg, getenv)

			if cfg.LLM.APIKey != tt.wantLLMKey {
				t.Errorf("llm key = %q, want %q", cfg.LLM.APIKey, tt.wantLLMKey)
			}
			if cfg.Embedding.APIKey != tt.wantEmbKey {
				t.Errorf("embedding key = %q, want %q", cfg.Embedding.APIKey, tt.wantEmbKey)
			}
			if cfg.Embedding.BaseURL != tt.wantEmbURL {
				t.Errorf("embedding base url = %q, want %q", cfg.Embedding.BaseURL, tt.wantEmbURL)
			}
		})
	}
}

func TestInitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := initConfigFile(path); err != nil {
		t.Fatalf("initConfigFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# claimcheck configuration") {
		t.Errorf("missing header:\n%s", data)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Store.Driver != model.DefaultConfig().Store.Driver {
		t.Errorf("store.driver = %q", cfg.Store.Driver)
	}

	if err := initConfigFile(path); err == nil {
		t.Error("second init should refuse to overwrite")
	}
}

func TestMaskSecrets(t *testing.T) {
	cfg := *model.DefaultConfig()
	cfg.LLM.APIKey = "sk-1234567890abcdef"
	cfg.Embedding.APIKey = "short"
	cfg.Cache.RedisURL = "redis://:pw@host:6379/0"
	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = "postgres://user:pw@host/db"

	masked := maskSecrets(cfg)

	if masked.LLM.APIKey != "sk-1...cdef" {
		t.Errorf("llm key = %q", masked.LLM.APIKey)
	}
	if masked.Embedding.APIKey != "***" {
		t.Errorf("embedding key = %q", masked.Embedding.APIKey)
	}
	if masked.Cache.RedisURL != "***" || masked.Store.DSN != "***" {
		t.Errorf("connection strings not masked: %q %q", masked.Cache.RedisURL, masked.Store.DSN)
	}
	if cfg.LLM.APIKey != "sk-1234567890abcdef" {
		t.Error("maskSecrets must not modify its input")
	}
}

func TestResultFileName(t *testing.T) {
	tests := []struct {
		index int
		req   worker.Request
		want  string
	}{
		{0, worker.Request{Policy: "Star Health", Condition: "cataract"}, "001-star-health-cataract"},
		{9, worker.Request{Policy: "a/b:c", Condition: "x?y"}, "010-a_b_c-x_y"},
		{1, worker.Request{Policy: "../etc", Condition: "passwd"}, "002-etc-passwd"},
	}

	for _, tt := range tests {
		if got := resultFileName(tt.index, tt.req); got != tt.want {
			t.Errorf("resultFileName(%d, %+v) = %q, want %q", tt.index, tt.req, got, tt.want)
		}
	}

	long := worker.Request{Policy: strings.Repeat("p", 200), Condition: "c"}
	if got := resultFileName(0, long); len(got) > 84 {
		t.Errorf("name too long: %d", len(got))
	}
}
