package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/canteen-orders/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Local    LocalConfig    `yaml:"local"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // sqlite | postgres
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractBin string        `yaml:"tesseract_bin"`
	Language     string        `yaml:"language"`
	TessdataDir  string        `yaml:"tessdata_dir"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LLMConfig holds inference backend configuration
type LLMConfig struct {
	Backend  string        `yaml:"backend"`  // local | gemini | genai | openai
	Fallback string        `yaml:"fallback"` // optional second backend, tried once when the first fails
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LocalConfig holds the on-device model configuration
type LocalConfig struct {
	VocabPath             string `yaml:"vocab_path"`
	MergesPath            string `yaml:"merges_path"`
	WeightsPath           string `yaml:"weights_path"`
	MaxPromptTokens       int    `yaml:"max_prompt_tokens"`
	MaxNewTokens          int    `yaml:"max_new_tokens"`
	MaxConcurrentSessions int    `yaml:"max_concurrent_sessions"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := defaultConfig()
	applyEnv(cfg)
	return cfg
}

// LoadConfigFile loads a YAML file on top of the defaults; environment variables
// still win over values from the file. An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// ConfigFileFromEnv returns CONFIG_FILE, the default for --config.
func ConfigFileFromEnv() string {
	return os.Getenv("CONFIG_FILE")
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:canteen.db?_pragma=busy_timeout(5000)",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:    ":8080",
			MetricsAddr: ":9090",
		},
		OCR: OCRConfig{
			TesseractBin: "tesseract",
			Language:     "eng+ind",
			Timeout:      60 * time.Second,
		},
		// model and base URL default per backend client
		LLM: LLMConfig{
			Backend: string(constants.BackendLocal),
			Timeout: 45 * time.Second,
		},
		Local: LocalConfig{
			VocabPath:             "./models/vocab.json",
			MergesPath:            "./models/merges.txt",
			WeightsPath:           "./models/receipt-lm.bin",
			MaxPromptTokens:       512,
			MaxNewTokens:          256,
			MaxConcurrentSessions: 2,
		},
	}
}

func applyEnv(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MetricsAddr = getEnv("METRICS_ADDR", c.Server.MetricsAddr)

	c.OCR.TesseractBin = getEnv("TESSERACT_BIN", c.OCR.TesseractBin)
	c.OCR.Language = getEnv("OCR_LANG", c.OCR.Language)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Timeout = getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout)

	c.LLM.Backend = getEnv("LLM_BACKEND", c.LLM.Backend)
	c.LLM.Fallback = getEnv("LLM_FALLBACK", c.LLM.Fallback)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)

	c.Local.VocabPath = getEnv("LOCAL_VOCAB_PATH", c.Local.VocabPath)
	c.Local.MergesPath = getEnv("LOCAL_MERGES_PATH", c.Local.MergesPath)
	c.Local.WeightsPath = getEnv("LOCAL_WEIGHTS_PATH", c.Local.WeightsPath)
	c.Local.MaxPromptTokens = getEnvAsInt("LOCAL_MAX_PROMPT_TOKENS", c.Local.MaxPromptTokens)
	c.Local.MaxNewTokens = getEnvAsInt("LOCAL_MAX_NEW_TOKENS", c.Local.MaxNewTokens)
	c.Local.MaxConcurrentSessions = getEnvAsInt("LOCAL_MAX_SESSIONS", c.Local.MaxConcurrentSessions)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return configError("DB_URL is required")
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return configError("DB_DRIVER must be sqlite or postgres")
	}
	backend, ok := constants.ParseBackend(c.LLM.Backend)
	if !ok {
		return configError("unknown LLM_BACKEND %q", c.LLM.Backend)
	}
	if err := c.validateBackend(backend); err != nil {
		return err
	}
	if c.LLM.Fallback != "" {
		fallback, ok := constants.ParseBackend(c.LLM.Fallback)
		if !ok {
			return configError("unknown LLM_FALLBACK %q", c.LLM.Fallback)
		}
		if fallback == backend {
			return configError("LLM_FALLBACK must differ from LLM_BACKEND")
		}
		if err := c.validateBackend(fallback); err != nil {
			return err
		}
	}
	if c.Server.GRPCAddr == "" {
		return configError("GRPC_ADDR is required")
	}
	return nil
}

func (c *Config) validateBackend(b constants.Backend) error {
	if b.IsRemote() {
		if c.LLM.APIKey == "" {
			return configError("LLM_API_KEY is required for backend %s", b)
		}
		return nil
	}
	if c.Local.MaxNewTokens <= 0 {
		return configError("LOCAL_MAX_NEW_TOKENS must be > 0")
	}
	if c.Local.MaxPromptTokens <= 0 {
		return configError("LOCAL_MAX_PROMPT_TOKENS must be > 0")
	}
	return nil
}
