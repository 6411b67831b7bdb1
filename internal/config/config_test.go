package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"LISTEN_ADDR", "DB_PATH", "DATA_DIR", "EXPORT_DIR", "PUBLIC_BASE_URL", "CORS_ORIGINS",
	"LOG_LEVEL", "LOG_FILE", "BLOB_BACKEND", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_PREFIX",
	"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE", "STT_PROVIDER", "SPEECH_LANGUAGE",
	"SOURCE_LANGUAGE", "TARGET_LANGUAGE", "DEEPGRAM_MODEL", "TTS_VOICES", "TEXT_MODEL",
	"IMAGE_MODEL", "ADAPTER_TIMEOUT", "MAX_UPLOAD_BYTES", "DEMO_FALLBACK", "JWT_TTL",
	"JWT_SECRET", "GOOGLE_API_KEY", "DEEPGRAM_API_KEY", "CLIPDROP_API_KEY", "GROQ_API_KEY",
	"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(EnvPrefix+key, "")
		_ = os.Unsetenv(EnvPrefix + key)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "data/kalakaar.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.ListenAddr != ":5000" {
		t.Fatalf("expected default listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.SpeechLanguage != "pa-IN" || cfg.SourceLanguage != "pa" || cfg.TargetLanguage != "en" {
		t.Fatalf("unexpected default languages %q/%q/%q", cfg.SpeechLanguage, cfg.SourceLanguage, cfg.TargetLanguage)
	}
	if cfg.TextModel != "groq/llama-3.3-70b-versatile" {
		t.Fatalf("expected default text_model, got %q", cfg.TextModel)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("expected 10MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if !cfg.DemoFallback {
		t.Fatal("expected demo fallback enabled by default")
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /custom/db.sqlite
data_dir: /custom/files
adapter_timeout: 45s
stt_provider: deepgram
tts_voices: ["pa-IN:pa-IN-Standard-A"]
text_model: anthropic/claude-sonnet-4-5
blob_backend: gdrive
gdrive_folder_id: my-folder
google_credentials_file: /path/to/creds.json
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if cfg.DataDir != "/custom/files" {
		t.Fatalf("expected yaml data_dir, got %q", cfg.DataDir)
	}
	if cfg.ParsedAdapterTimeout() != 45*time.Second {
		t.Fatalf("expected yaml adapter_timeout, got %v", cfg.ParsedAdapterTimeout())
	}
	if cfg.STTProvider != "deepgram" {
		t.Fatalf("expected yaml stt_provider, got %q", cfg.STTProvider)
	}
	if !reflect.DeepEqual(cfg.ParsedVoices(), []Voice{{LanguageCode: "pa-IN", Name: "pa-IN-Standard-A"}}) {
		t.Fatalf("expected yaml tts_voices, got %v", cfg.ParsedVoices())
	}
	if cfg.BlobBackend != "gdrive" || cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive backend, got %q/%q", cfg.BlobBackend, cfg.GDriveFolderID)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /from/yaml
text_model: openai/gpt-yaml
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")
	t.Setenv(EnvPrefix+"TEXT_MODEL", "openai/gpt-env")
	t.Setenv(EnvPrefix+"CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv(EnvPrefix+"MAX_UPLOAD_BYTES", "2048")
	t.Setenv(EnvPrefix+"DEMO_FALLBACK", "false")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env db_path, got %q", cfg.DBPath)
	}
	if cfg.TextModel != "openai/gpt-env" {
		t.Fatalf("expected env text_model, got %q", cfg.TextModel)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Fatalf("expected env cors_origins, got %v", cfg.CORSOrigins)
	}
	if cfg.MaxUploadBytes != 2048 {
		t.Fatalf("expected env max_upload_bytes, got %d", cfg.MaxUploadBytes)
	}
	if cfg.DemoFallback {
		t.Fatal("expected env to disable demo fallback")
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("groq_api_key: from-yaml\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvPrefix+"CLIPDROP_API_KEY", "clip-key")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GroqAPIKey != "" {
		t.Fatalf("expected yaml to be ignored for secrets, got %q", cfg.GroqAPIKey)
	}
	if cfg.ClipdropAPIKey != "clip-key" {
		t.Fatalf("expected env clipdrop key, got %q", cfg.ClipdropAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GOOGLE_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv(EnvPrefix+"ADAPTER_TIMEOUT", "soon")
	t.Setenv(EnvPrefix+"BLOB_BACKEND", "s3")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	joined := strings.Join(warnings, "\n")
	for _, want := range []string{"JWT secret", "Google credentials", "Clipdrop", "text model", "adapter_timeout", "s3_bucket"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected warning mentioning %q, got:\n%s", want, joined)
		}
	}
	if cfg.ParsedAdapterTimeout() != 30*time.Second {
		t.Fatalf("expected fallback timeout, got %v", cfg.ParsedAdapterTimeout())
	}
	if cfg.BlobBackend != "local" {
		t.Fatalf("expected fallback to local blob backend, got %q", cfg.BlobBackend)
	}
}

func TestNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"JWT_SECRET", "s")
	t.Setenv(EnvPrefix+"GOOGLE_API_KEY", "g")
	t.Setenv(EnvPrefix+"CLIPDROP_API_KEY", "c")
	t.Setenv(EnvPrefix+"GROQ_API_KEY", "q")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "o")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if cfg.DBPath != "data/kalakaar.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
}

func TestInvalidYAML(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("db_path: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, err := Load(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}
