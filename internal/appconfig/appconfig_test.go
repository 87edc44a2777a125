package appconfig

import (
	"strings"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	if got := cfg.RequestTimeout(); got != 120*time.Second {
		t.Fatalf("default request timeout: %v", got)
	}
	if got := cfg.StaleJobThreshold(); got != 10*time.Minute {
		t.Fatalf("default staleness threshold: %v", got)
	}
	if got := cfg.Listen(); got != ":8001" {
		t.Fatalf("default listen addr: %s", got)
	}
	if got := cfg.APIURL(); !strings.Contains(got, "openrouter.ai") {
		t.Fatalf("default api url: %s", got)
	}
	if got := cfg.DataDirPath(); got != "data" {
		t.Fatalf("default data dir: %s", got)
	}
	if got := cfg.LogFilePath(); got != "llm-council.log" {
		t.Fatalf("default log file: %s", got)
	}
	if got := cfg.ToolIterationLimit(); got != 4 {
		t.Fatalf("default tool iterations: %d", got)
	}
}

func TestConfigOverrides(t *testing.T) {
	cfg := Config{
		DataDir:         "/tmp/council",
		ListenAddr:      "127.0.0.1:9000",
		TimeoutSeconds:  5,
		StaleJobSeconds: 60,
	}
	if got := cfg.RequestTimeout(); got != 5*time.Second {
		t.Fatalf("request timeout override: %v", got)
	}
	if got := cfg.StaleJobThreshold(); got != time.Minute {
		t.Fatalf("staleness override: %v", got)
	}
	if got := cfg.CouncilConfigPath(); got != "/tmp/council/council_config.json" {
		t.Fatalf("council config path: %s", got)
	}
	if got := cfg.JobDBPath(); got != "/tmp/council/jobs.db" {
		t.Fatalf("job db path: %s", got)
	}
}

func TestOrigins(t *testing.T) {
	var cfg Config
	origins := cfg.Origins()
	if len(origins) != 1 || origins[0] != "*" {
		t.Fatalf("default origins: %v", origins)
	}
	cfg.AllowedOrigins = "http://a.example, http://b.example ,"
	origins = cfg.Origins()
	if len(origins) != 2 || origins[0] != "http://a.example" || origins[1] != "http://b.example" {
		t.Fatalf("parsed origins: %v", origins)
	}
}
