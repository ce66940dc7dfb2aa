package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Storage    StorageConfig    `yaml:"storage"`
	LogLevel   string           `yaml:"log_level"`
}

// DatabaseConfig holds the optional Postgres (pgvector) connection. Empty DSN keeps the index in memory.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// ExtractionConfig holds text extraction tier settings
type ExtractionConfig struct {
	Pdftotext      string        `yaml:"pdftotext"`
	Pdftoppm       string        `yaml:"pdftoppm"`
	DPI            int           `yaml:"dpi"`
	MinChars       int           `yaml:"min_chars"`
	MaxPages       int           `yaml:"max_pages"`
	VisionInterval time.Duration `yaml:"vision_interval"`
	VisionTimeout  time.Duration `yaml:"vision_timeout"`
	TempDir        string        `yaml:"temp_dir"`
}

// ChunkingConfig holds chunker window sizes
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// LLMConfig holds language-model settings
type LLMConfig struct {
	Provider     string        `yaml:"provider"` // gemini | openai
	Model        string        `yaml:"model"`
	VisionModel  string        `yaml:"vision_model"`
	APIKey       string        `yaml:"-"`
	BaseURL      string        `yaml:"base_url"`
	Temperature  float32       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	CallInterval time.Duration `yaml:"call_interval"`
	Concurrency  int           `yaml:"concurrency"`
}

// EmbeddingConfig holds embedding model settings
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// AnalysisConfig holds discovery, retrieval and anomaly thresholds
type AnalysisConfig struct {
	SampleChars      int     `yaml:"sample_chars"`
	TopK             int     `yaml:"top_k"`
	StdDevs          float64 `yaml:"std_devs"`
	RareThreshold    float64 `yaml:"rare_threshold"`
	MinRows          int     `yaml:"min_rows"`
	MissingDominance float64 `yaml:"missing_dominance"`
}

// StorageConfig holds local persistence settings
type StorageConfig struct {
	SQLitePath   string `yaml:"sqlite_path"`
	CacheEnabled bool   `yaml:"cache_enabled"`
}

// DefaultConfig returns the built-in defaults before file and environment overrides.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Extraction: ExtractionConfig{
			Pdftotext:      "pdftotext",
			Pdftoppm:       "pdftoppm",
			DPI:            300,
			MinChars:       100,
			VisionInterval: 2 * time.Second,
			VisionTimeout:  90 * time.Second,
		},
		Chunking: ChunkingConfig{Size: 1500, Overlap: 200},
		LLM: LLMConfig{
			Provider:     "gemini",
			Model:        "gemini-2.5-flash",
			VisionModel:  "gemini-2.5-flash",
			Temperature:  0.0,
			Timeout:      60 * time.Second,
			CallInterval: 1500 * time.Millisecond,
			Concurrency:  1,
		},
		Embedding: EmbeddingConfig{
			Provider:   "gemini",
			Model:      "text-embedding-004",
			Dimensions: 768,
			BatchSize:  64,
		},
		Analysis: AnalysisConfig{
			SampleChars:      25000,
			TopK:             5,
			StdDevs:          2.0,
			RareThreshold:    0.10,
			MinRows:          5,
			MissingDominance: 0.5,
		},
		Storage: StorageConfig{
			SQLitePath:   "./contracts.db",
			CacheEnabled: true,
		},
		LogLevel: "info",
	}
}

// LoadDotEnv loads a .env file from the working directory when present.
func LoadDotEnv(logger *slog.Logger) {
	if os.Getenv("GO_ENVIRONMENT") == "test" {
		return
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("config.dotenv.load_failed", "error", err)
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)

	c.Extraction.Pdftotext = getEnv("PDFTOTEXT_BIN", c.Extraction.Pdftotext)
	c.Extraction.Pdftoppm = getEnv("PDFTOPPM_BIN", c.Extraction.Pdftoppm)
	c.Extraction.DPI = getEnvAsInt("EXTRACT_DPI", c.Extraction.DPI)
	c.Extraction.MinChars = getEnvAsInt("EXTRACT_MIN_CHARS", c.Extraction.MinChars)
	c.Extraction.MaxPages = getEnvAsInt("EXTRACT_MAX_PAGES", c.Extraction.MaxPages)
	c.Extraction.VisionInterval = getEnvAsDuration("VISION_INTERVAL", c.Extraction.VisionInterval)
	c.Extraction.VisionTimeout = getEnvAsDuration("VISION_TIMEOUT", c.Extraction.VisionTimeout)
	c.Extraction.TempDir = getEnv("EXTRACT_TEMP_DIR", c.Extraction.TempDir)

	c.Chunking.Size = getEnvAsInt("CHUNK_SIZE", c.Chunking.Size)
	c.Chunking.Overlap = getEnvAsInt("CHUNK_OVERLAP", c.Chunking.Overlap)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.VisionModel = getEnv("LLM_VISION_MODEL", c.LLM.VisionModel)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.CallInterval = getEnvAsDuration("LLM_CALL_INTERVAL", c.LLM.CallInterval)
	c.LLM.Concurrency = getEnvAsInt("LLM_CONCURRENCY", c.LLM.Concurrency)
	switch c.LLM.Provider {
	case "openai":
		c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	default:
		c.LLM.APIKey = getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", c.LLM.APIKey))
	}

	c.Embedding.Provider = strings.ToLower(getEnv("EMBEDDING_PROVIDER", c.Embedding.Provider))
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimensions = getEnvAsInt("EMBEDDING_DIMENSIONS", c.Embedding.Dimensions)
	c.Embedding.BatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", c.Embedding.BatchSize)

	c.Analysis.SampleChars = getEnvAsInt("DISCOVERY_SAMPLE_CHARS", c.Analysis.SampleChars)
	c.Analysis.TopK = getEnvAsInt("RETRIEVAL_TOP_K", c.Analysis.TopK)
	c.Analysis.StdDevs = getEnvAsFloat64("ANOMALY_STD_DEVS", c.Analysis.StdDevs)
	c.Analysis.RareThreshold = getEnvAsFloat64("ANOMALY_RARE_THRESHOLD", c.Analysis.RareThreshold)
	c.Analysis.MinRows = getEnvAsInt("ANOMALY_MIN_ROWS", c.Analysis.MinRows)
	c.Analysis.MissingDominance = getEnvAsFloat64("ANOMALY_MISSING_DOMINANCE", c.Analysis.MissingDominance)

	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.CacheEnabled = getEnvAsBool("CACHE_ENABLED", c.Storage.CacheEnabled)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("llm.provider", c.LLM.Provider, OneOf("gemini", "openai")).
		Field("llm.api_key", c.LLM.APIKey, Required).
		Field("embedding.provider", c.Embedding.Provider, OneOf("gemini", "openai")).
		Field("extraction.dpi", c.Extraction.DPI, AtLeast(200)).
		Field("extraction.min_chars", c.Extraction.MinChars, AtLeast(1)).
		Field("chunking.size", c.Chunking.Size, AtLeast(1)).
		Field("chunking.overlap", c.Chunking.Overlap, AtLeast(0)).
		Field("analysis.top_k", c.Analysis.TopK, AtLeast(1)).
		Field("analysis.rare_threshold", c.Analysis.RareThreshold, Fraction).
		Field("analysis.missing_dominance", c.Analysis.MissingDominance, Fraction).
		Field("storage.sqlite_path", c.Storage.SQLitePath, Required)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
