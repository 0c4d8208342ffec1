package gemini

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
)

// Decoding parameters are fixed for every call.
const (
	Temperature     = 0.7
	TopK            = 40
	TopP            = 0.95
	MaxOutputTokens = 2048
)

// Config for the Gemini generateContent client.
type Config struct {
	APIKey  string
	BaseURL string        // default https://generativelanguage.googleapis.com/v1beta
	Model   string        // e.g., "gemini-2.5-flash"
	Timeout time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
	}
}

func (c *Client) Name() string { return "gemini" }
