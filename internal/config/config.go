// Package config loads server configuration from config files, a .env
// file, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the resolved server configuration.
type Config struct {
	Host string
	Port int

	GeminiAPIKey string
	GeminiModel  string

	SearchAPIKey   string
	SearchEngineID string

	PromptDir string
	DataDir   string

	RowCap      int
	DownloadCap int
	SearchCap   int
	MaxRetries  int

	Debug     bool
	LogFormat string
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LedgerPath is where the strategy ledger lives.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "strategy_ledger.json")
}

// MemoryPath is where the success memory lives.
func (c *Config) MemoryPath() string {
	return filepath.Join(c.DataDir, "success_memory.json")
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("gemini API key is not configured (set PHARMABOOST_GEMINI_API_KEY or GEMINI_API_KEY)")
	}
	if info, err := os.Stat(c.PromptDir); err != nil || !info.IsDir() {
		return fmt.Errorf("prompt directory %q does not exist", c.PromptDir)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
