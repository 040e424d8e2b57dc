package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cogito.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEnvSubstitution(t *testing.T) {
	t.Setenv("COGITO_TEST_KEY", "sk-from-env")

	path := writeConfig(t, `{
		"server": {"port": 9090},
		"providers": [
			{"id": "main", "type": "openai", "api_key": "${COGITO_TEST_KEY}"},
			{"id": "alt", "type": "anthropic", "api_key": "${COGITO_MISSING:fallback-key}"}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if got := cfg.Providers[0].APIKey; got != "sk-from-env" {
		t.Errorf("api_key = %q, want sk-from-env", got)
	}
	if got := cfg.Providers[1].APIKey; got != "fallback-key" {
		t.Errorf("fallback api_key = %q, want fallback-key", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.RAG.ChunkSize != 1000 || cfg.RAG.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d, want 1000/200", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK != 5 || cfg.RAG.MaxContextChars != 4000 {
		t.Errorf("retrieval defaults = %d/%d, want 5/4000", cfg.RAG.TopK, cfg.RAG.MaxContextChars)
	}
	if cfg.Agent.ThinkingTemperature != 0.7 || cfg.Agent.ResponseTemperature != 0.3 {
		t.Errorf("temperatures = %v/%v, want 0.7/0.3", cfg.Agent.ThinkingTemperature, cfg.Agent.ResponseTemperature)
	}
	if cfg.VectorStore.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.VectorStore.Backend)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
