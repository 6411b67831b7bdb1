package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "KALAKAAR_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr    string   `yaml:"listen_addr" env:"LISTEN_ADDR"`
	DBPath        string   `yaml:"db_path" env:"DB_PATH"`
	DataDir       string   `yaml:"data_dir" env:"DATA_DIR"`
	ExportDir     string   `yaml:"export_dir" env:"EXPORT_DIR"`
	PublicBaseURL string   `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	CORSOrigins   []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFile  string `yaml:"log_file" env:"LOG_FILE"`

	BlobBackend           string `yaml:"blob_backend" env:"BLOB_BACKEND"`
	S3Bucket              string `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Region              string `yaml:"s3_region" env:"S3_REGION"`
	S3Endpoint            string `yaml:"s3_endpoint" env:"S3_ENDPOINT"`
	S3Prefix              string `yaml:"s3_prefix" env:"S3_PREFIX"`
	GDriveFolderID        string `yaml:"gdrive_folder_id" env:"GDRIVE_FOLDER_ID"`
	GoogleCredentialsFile string `yaml:"google_credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`

	STTProvider    string   `yaml:"stt_provider" env:"STT_PROVIDER"`
	SpeechLanguage string   `yaml:"speech_language" env:"SPEECH_LANGUAGE"`
	SourceLanguage string   `yaml:"source_language" env:"SOURCE_LANGUAGE"`
	TargetLanguage string   `yaml:"target_language" env:"TARGET_LANGUAGE"`
	DeepgramModel  string   `yaml:"deepgram_model" env:"DEEPGRAM_MODEL"`
	TTSVoices      []string `yaml:"tts_voices" env:"TTS_VOICES" envSeparator:","`

	TextModel      string `yaml:"text_model" env:"TEXT_MODEL"`
	ImageModel     string `yaml:"image_model" env:"IMAGE_MODEL"`
	AdapterTimeout string `yaml:"adapter_timeout" env:"ADAPTER_TIMEOUT"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	DemoFallback bool   `yaml:"demo_fallback" env:"DEMO_FALLBACK"`
	JWTTTL       string `yaml:"jwt_ttl" env:"JWT_TTL"`

	// Secrets: env vars only, never serialized to YAML.
	JWTSecret         string `yaml:"-" env:"JWT_SECRET"`
	GoogleAPIKey      string `yaml:"-" env:"GOOGLE_API_KEY"`
	DeepgramAPIKey    string `yaml:"-" env:"DEEPGRAM_API_KEY"`
	ClipdropAPIKey    string `yaml:"-" env:"CLIPDROP_API_KEY"`
	GroqAPIKey        string `yaml:"-" env:"GROQ_API_KEY"`
	OpenAIAPIKey      string `yaml:"-" env:"OPENAI_API_KEY"`
	AnthropicAPIKey   string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey      string `yaml:"-" env:"GEMINI_API_KEY"`
	S3AccessKeyID     string `yaml:"-" env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `yaml:"-" env:"S3_SECRET_ACCESS_KEY"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":5000",
		DBPath:                "data/kalakaar.db",
		DataDir:               "data/files",
		ExportDir:             "data/exports",
		CORSOrigins:           []string{"*"},
		LogLevel:              "info",
		BlobBackend:           "local",
		S3Region:              "us-east-1",
		GoogleCredentialsFile: "./service-account.json",
		STTProvider:           "google",
		SpeechLanguage:        "pa-IN",
		SourceLanguage:        "pa",
		TargetLanguage:        "en",
		DeepgramModel:         "nova-2",
		TTSVoices:             []string{"pa-IN:pa-IN-Wavenet-B", "hi-IN:hi-IN-Wavenet-D"},
		TextModel:             "groq/llama-3.3-70b-versatile",
		ImageModel:            "openai/dall-e-3",
		AdapterTimeout:        "30s",
		MaxUploadBytes:        10 << 20,
		DemoFallback:          true,
		JWTTTL:                "168h",
	}
}

// Load layers the YAML file, then .env, then environment variables, and
// validates the result. A missing file is not an error.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(".env"); err != nil {
			return cfg, nil, fmt.Errorf("load .env: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, nil, fmt.Errorf("parse environment: %w", err)
	}

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

func (c *Config) ParsedAdapterTimeout() time.Duration {
	d, err := time.ParseDuration(c.AdapterTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (c *Config) ParsedJWTTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTTTL)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

type Voice struct {
	LanguageCode string
	Name         string
}

func (c *Config) ParsedVoices() []Voice {
	voices := make([]Voice, 0, len(c.TTSVoices))
	for _, raw := range c.TTSVoices {
		lang, name, ok := strings.Cut(strings.TrimSpace(raw), ":")
		if !ok || lang == "" || name == "" {
			continue
		}
		voices = append(voices, Voice{LanguageCode: lang, Name: name})
	}
	return voices
}

func (c *Config) GoogleConfigured() bool {
	if c.GoogleAPIKey != "" {
		return true
	}
	if c.GoogleCredentialsFile == "" {
		return false
	}
	_, err := os.Stat(c.GoogleCredentialsFile)
	return err == nil
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.JWTSecret == "" {
		warnings = append(warnings, "JWT secret not configured, using a random per-process secret so sessions end on restart. Set "+EnvPrefix+"JWT_SECRET.")
	}
	if !cfg.GoogleConfigured() {
		warnings = append(warnings, "Google credentials not configured: speech recognition, translation and prompt audio are disabled. Set "+EnvPrefix+"GOOGLE_API_KEY or "+EnvPrefix+"GOOGLE_CREDENTIALS_FILE.")
	}
	if cfg.STTProvider == "deepgram" && cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram selected but no API key configured, speech recognition is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.STTProvider != "google" && cfg.STTProvider != "deepgram" {
		warnings = append(warnings, fmt.Sprintf("Unknown stt_provider %q, using google.", cfg.STTProvider))
		cfg.STTProvider = "google"
	}
	if cfg.ClipdropAPIKey == "" {
		warnings = append(warnings, "Clipdrop API key not configured, image enhancement is disabled. Set "+EnvPrefix+"CLIPDROP_API_KEY.")
	}
	if !cfg.hasKeyFor(cfg.TextModel) {
		warnings = append(warnings, fmt.Sprintf("No API key for text model %q, content generation is disabled.", cfg.TextModel))
	}
	if !cfg.hasKeyFor(cfg.ImageModel) {
		warnings = append(warnings, fmt.Sprintf("No API key for image model %q, image generation is disabled.", cfg.ImageModel))
	}
	if _, err := time.ParseDuration(cfg.AdapterTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid adapter_timeout %q, using default 30s.", cfg.AdapterTimeout))
	}
	if _, err := time.ParseDuration(cfg.JWTTTL); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid jwt_ttl %q, using default 168h.", cfg.JWTTTL))
	}
	if cfg.MaxUploadBytes <= 0 {
		warnings = append(warnings, "Invalid max_upload_bytes, using default 10MB.")
		cfg.MaxUploadBytes = 10 << 20
	}
	switch cfg.BlobBackend {
	case "local", "s3", "gdrive":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown blob_backend %q, using local.", cfg.BlobBackend))
		cfg.BlobBackend = "local"
	}
	if cfg.BlobBackend == "s3" && cfg.S3Bucket == "" {
		warnings = append(warnings, "blob_backend s3 requires s3_bucket, using local.")
		cfg.BlobBackend = "local"
	}
	if cfg.BlobBackend == "gdrive" && cfg.GDriveFolderID == "" {
		warnings = append(warnings, "blob_backend gdrive requires gdrive_folder_id, using local.")
		cfg.BlobBackend = "local"
	}

	return warnings
}

func (c *Config) ProviderKey(provider string) string {
	switch provider {
	case "groq":
		return c.GroqAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func (c *Config) hasKeyFor(model string) bool {
	provider, _, ok := strings.Cut(model, "/")
	if !ok {
		return false
	}
	return c.ProviderKey(provider) != ""
}
