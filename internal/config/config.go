package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Transcribe TranscribeConfig `yaml:"transcribe" mapstructure:"transcribe"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts" mapstructure:"artifacts"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the evidence sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig tunes the document reconstruction components.
type PipelineConfig struct {
	HeaderSeparator        string  `yaml:"header_separator" mapstructure:"header_separator"`
	StatementMinConfidence float64 `yaml:"statement_min_confidence" mapstructure:"statement_min_confidence"`
	PreviewChars           int     `yaml:"preview_chars" mapstructure:"preview_chars"`
	MetricContextChars     int     `yaml:"metric_context_chars" mapstructure:"metric_context_chars"`
	MetricPatternsFile     string  `yaml:"metric_patterns_file" mapstructure:"metric_patterns_file"`
	ReportWeek             string  `yaml:"report_week" mapstructure:"report_week"`
}

// OCRConfig configures the image/PDF text extraction chain.
type OCRConfig struct {
	TesseractPath string   `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	PdfToTextPath string   `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	Language      string   `yaml:"language" mapstructure:"language"`
	MistralKey    string   `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string   `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
	MistralRPS    float64  `yaml:"mistral_rps" mapstructure:"mistral_rps"`
	SidecarExts   []string `yaml:"sidecar_exts" mapstructure:"sidecar_exts"`
}

// TranscribeConfig configures the audio transcription chain.
type TranscribeConfig struct {
	WhisperPath string   `yaml:"whisper_path" mapstructure:"whisper_path"`
	Model       string   `yaml:"model" mapstructure:"model"`
	FFprobePath string   `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	SidecarExts []string `yaml:"sidecar_exts" mapstructure:"sidecar_exts"`
}

// ArtifactsConfig locates the exported artifact tree.
type ArtifactsConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// BatchConfig bounds concurrent document processing.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and DOCRECON_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "docrecon.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.header_separator", " / ")
	v.SetDefault("pipeline.statement_min_confidence", 0.5)
	v.SetDefault("pipeline.preview_chars", 280)
	v.SetDefault("pipeline.metric_context_chars", 80)
	v.SetDefault("pipeline.metric_patterns_file", "")
	v.SetDefault("pipeline.report_week", "")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_ocr_model", "mistral-ocr-latest")
	v.SetDefault("ocr.mistral_rps", 1.0)
	v.SetDefault("ocr.sidecar_exts", []string{".txt"})
	v.SetDefault("transcribe.whisper_path", "whisper")
	v.SetDefault("transcribe.model", "base")
	v.SetDefault("transcribe.ffprobe_path", "ffprobe")
	v.SetDefault("transcribe.sidecar_exts", []string{".txt", ".srt", ".vtt"})
	v.SetDefault("artifacts.root", "artifacts")
	v.SetDefault("batch.max_concurrent_documents", 4)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes: "ingest",
// "migrate", "ocr", "transcribe", "evidence".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "ingest":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Artifacts.Root == "" {
			errs = append(errs, "artifacts.root is required")
		}
	case "migrate", "evidence":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "ocr", "transcribe":
		if c.Artifacts.Root == "" {
			errs = append(errs, "artifacts.root is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Pipeline.StatementMinConfidence < 0 || c.Pipeline.StatementMinConfidence > 1 {
		errs = append(errs, "pipeline.statement_min_confidence must be between 0 and 1")
	}
	if c.Pipeline.PreviewChars < 0 || c.Pipeline.MetricContextChars < 0 {
		errs = append(errs, "pipeline.preview_chars and pipeline.metric_context_chars must be >= 0")
	}
	if c.Batch.MaxConcurrentDocuments < 1 || c.Batch.MaxConcurrentDocuments > 64 {
		errs = append(errs, "batch.max_concurrent_documents must be between 1 and 64")
	}
	if c.OCR.MistralRPS < 0 {
		errs = append(errs, "ocr.mistral_rps must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger sets up the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
