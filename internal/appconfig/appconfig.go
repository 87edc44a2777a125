// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout is the per-call timeout for model requests.
	defaultRequestTimeout = 120 * time.Second
	// defaultStaleJobThreshold is how long a running job may go without a
	// progress write before a reader declares it lost.
	defaultStaleJobThreshold = 10 * time.Minute
	// defaultListenAddr is the API server's bind address.
	defaultListenAddr = ":8001"
	// defaultAPIURL is the OpenRouter chat-completions endpoint.
	defaultAPIURL = "https://openrouter.ai/api/v1/chat/completions"
	// defaultToolIterations bounds the tool-call loop inside a single invocation.
	defaultToolIterations = 4
)

// Config represents the top-level application configuration.
type Config struct {
	DataDir           string `json:"dataDir"`
	ListenAddr        string `json:"listen,omitempty"`
	Debug             bool   `json:"debug"`
	TimeoutSeconds    int    `json:"timeout,omitempty"`
	StaleJobSeconds   int    `json:"staleJobThreshold,omitempty"`
	LogFile           string `json:"logFile,omitempty"`
	OpenRouterURL     string `json:"openrouterUrl,omitempty"`
	OpenRouterAPIKey  string `json:"-"`
	TavilyAPIKey      string `json:"-"`
	MaxToolIterations int    `json:"maxToolIterations,omitempty"`
	DisableTitleGen   bool   `json:"disableTitleGeneration,omitempty"`
	AllowedOrigins    string `json:"allowedOrigins,omitempty"`
	ConfigPath        string `json:"-"`
}

// RequestTimeout returns the per-call model request timeout, falling back to
// the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StaleJobThreshold returns the staleness window after which a persisted
// running job is declared lost.
func (c Config) StaleJobThreshold() time.Duration {
	if c.StaleJobSeconds <= 0 {
		return defaultStaleJobThreshold
	}
	return time.Duration(c.StaleJobSeconds) * time.Second
}

// Listen returns the API server bind address, applying a default if not set.
func (c Config) Listen() string {
	if addr := strings.TrimSpace(c.ListenAddr); addr != "" {
		return addr
	}
	return defaultListenAddr
}

// APIURL returns the OpenRouter endpoint, applying a default if not set.
func (c Config) APIURL() string {
	if u := strings.TrimSpace(c.OpenRouterURL); u != "" {
		return u
	}
	return defaultAPIURL
}

// DataDirPath returns the base data directory, applying a default if not set.
func (c Config) DataDirPath() string {
	if d := strings.TrimSpace(c.DataDir); d != "" {
		return d
	}
	return "data"
}

// CouncilConfigPath returns the path of the council document.
func (c Config) CouncilConfigPath() string {
	return filepath.Join(c.DataDirPath(), "council_config.json")
}

// JobDBPath returns the path of the job progress database.
func (c Config) JobDBPath() string {
	return filepath.Join(c.DataDirPath(), "jobs.db")
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "llm-council.log"
}

// ToolIterationLimit returns the maximum tool-call round trips per invocation.
func (c Config) ToolIterationLimit() int {
	if c.MaxToolIterations <= 0 {
		return defaultToolIterations
	}
	return c.MaxToolIterations
}

// Origins returns the allowed CORS origins. "*" means all.
func (c Config) Origins() []string {
	raw := strings.TrimSpace(c.AllowedOrigins)
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
