// Package llm provides a provider-neutral client for text generation
// backends, plus the retry executor used by the content agents.
package llm

import (
	"fmt"
	"sync"
	"time"
)

// ProviderType identifies a generation backend implementation.
type ProviderType string

const (
	// ProviderGemini is Google's Gemini API.
	ProviderGemini ProviderType = "gemini"
)

// Request is a single generation call.
type Request struct {
	// Prompt is the fully rendered prompt text.
	Prompt string
	// DisableSafety relaxes the backend's content filters. Required for
	// pharmaceutical leaflet text, which trips medical-content filters.
	DisableSafety bool
	// Timeout bounds this call. Zero means the client default.
	Timeout time.Duration
}

// Response is the text returned by a generation call.
type Response struct {
	Text string
}

// Config holds provider construction settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns a Config with sane defaults applied.
func DefaultConfig() Config {
	return Config{
		Timeout: 180 * time.Second,
	}
}

// Factory constructs a provider from a Config.
type Factory func(cfg Config) (Provider, error)

var (
	providersMu sync.RWMutex
	providers   = map[ProviderType]Factory{}
)

// RegisterProvider registers a provider factory. Called from provider
// package init functions.
func RegisterProvider(name ProviderType, factory Factory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// NewProvider constructs the named provider.
func NewProvider(name ProviderType, cfg Config) (Provider, error) {
	providersMu.RLock()
	factory, ok := providers[name]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", name)
	}
	return factory(cfg)
}
