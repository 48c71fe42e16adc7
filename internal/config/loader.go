package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PHARMABOOST"

// ConfigLoader reads and merges configuration from its sources: defaults,
// an optional YAML config file, an optional .env file, and environment
// variables, in increasing precedence.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

// ConfigLoaderOption configures a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) ConfigLoaderOption {
	return func(l *ConfigLoader) { l.configFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) ConfigLoaderOption {
	return func(l *ConfigLoader) { l.envFile = path }
}

// NewConfigLoader creates a loader on the given viper instance.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v, envFile: ".env"}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load resolves the configuration. A missing config or .env file is fine;
// an unreadable one is not.
func (l *ConfigLoader) Load() (*Config, error) {
	// .env feeds the process environment before viper reads it.
	_ = godotenv.Load(l.envFile)

	l.setDefaults()

	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Credentials also come from the conventional unprefixed names.
	_ = l.v.BindEnv("gemini.apikey", envPrefix+"_GEMINI_APIKEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = l.v.BindEnv("search.apikey", envPrefix+"_SEARCH_APIKEY", "SEARCH_API_KEY")
	_ = l.v.BindEnv("search.engineid", envPrefix+"_SEARCH_ENGINEID", "GOOGLE_CSE_ID")

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("pharmaboost")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
	}
	if err := l.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Host:           l.v.GetString("host"),
		Port:           l.v.GetInt("port"),
		GeminiAPIKey:   l.v.GetString("gemini.apikey"),
		GeminiModel:    l.v.GetString("gemini.model"),
		SearchAPIKey:   l.v.GetString("search.apikey"),
		SearchEngineID: l.v.GetString("search.engineid"),
		PromptDir:      l.v.GetString("promptdir"),
		DataDir:        l.v.GetString("datadir"),
		RowCap:         l.v.GetInt("limits.rows"),
		DownloadCap:    l.v.GetInt("limits.downloads"),
		SearchCap:      l.v.GetInt("limits.searches"),
		MaxRetries:     l.v.GetInt("limits.retries"),
		Debug:          l.v.GetBool("debug"),
		LogFormat:      l.v.GetString("logformat"),
	}
	return cfg, nil
}

func (l *ConfigLoader) setDefaults() {
	l.v.SetDefault("host", "127.0.0.1")
	l.v.SetDefault("port", 8080)
	l.v.SetDefault("gemini.model", "gemini-2.0-flash")
	l.v.SetDefault("promptdir", "prompts")
	l.v.SetDefault("datadir", "data")
	l.v.SetDefault("limits.rows", 50)
	l.v.SetDefault("limits.downloads", 10)
	l.v.SetDefault("limits.searches", 5)
	l.v.SetDefault("limits.retries", 5)
	l.v.SetDefault("logformat", "text")
}
