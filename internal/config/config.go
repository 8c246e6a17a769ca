// Package config loads and validates newsdesk configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. NEWSDESK_RUN_MAX_ARTICLES.
const EnvPrefix = "NEWSDESK"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Run       RunConfig       `mapstructure:"run"`
	Retention RetentionConfig `mapstructure:"retention"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Scorer    ScorerConfig    `mapstructure:"scorer"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Classify  ClassifyConfig  `mapstructure:"classify"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// RunConfig governs one pipeline run.
type RunConfig struct {
	MaxArticles  int    `mapstructure:"max_articles"`
	QuotaSource  string `mapstructure:"quota_source"`
	QuotaLimit   int    `mapstructure:"quota_limit"`
	MaxPages     int    `mapstructure:"max_pages"`
	MaxPerSource int    `mapstructure:"max_per_source"`
}

// RetentionConfig controls the age sweep.
type RetentionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Days    int  `mapstructure:"days"`
}

// SheetsConfig selects the document store.
type SheetsConfig struct {
	// Backend is "google" or "memory".
	Backend         string `mapstructure:"backend"`
	DocumentID      string `mapstructure:"document_id"`
	DocumentName    string `mapstructure:"document_name"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// RetryConfig tunes rate-limit handling for store calls.
type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts"`
	Step      time.Duration `mapstructure:"step"`
	FinalWait time.Duration `mapstructure:"final_wait"`
	Pause     time.Duration `mapstructure:"pause"`
}

// ScorerConfig selects and tunes the summarizer.
type ScorerConfig struct {
	// Provider is "gemini" or "static".
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens"`
	Interval        time.Duration `mapstructure:"interval"`
}

// SourcesConfig configures the site adapters.
type SourcesConfig struct {
	// File is an optional YAML site list; the built-in list is used when empty.
	File      string        `mapstructure:"file"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// Interval is the minimum gap between requests to one host.
	Interval time.Duration `mapstructure:"interval"`
}

// ClassifyConfig points at an optional keyword file.
type ClassifyConfig struct {
	File string `mapstructure:"file"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features and the level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StorageConfig selects where run reports are archived.
type StorageConfig struct {
	// Backend is "none", "local", "gcs" or "memory".
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
}

// DBConfig controls access to the run ledger. An empty DSN keeps runs in memory.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// PubSubConfig holds the commit event destination. An empty topic disables
// publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// CatalogConfig tunes the read-side cache.
type CatalogConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	Concurrency int           `mapstructure:"concurrency"`
}

// aliases maps config keys to the plain environment names operators
// already use.
var aliases = map[string]string{
	"run.max_articles":     "MAX_ARTICLES_PER_RUN",
	"retention.days":       "ARTICLE_RETENTION_DAYS",
	"scorer.api_key":       "GEMINI_API_KEY",
	"sheets.document_name": "SPREADSHEET_NAME",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, env := range aliases {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.max_articles", 10)
	v.SetDefault("run.quota_source", "PR TIMES")
	v.SetDefault("run.quota_limit", 4)
	v.SetDefault("run.max_pages", 10)
	v.SetDefault("run.max_per_source", 15)
	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.days", 45)
	v.SetDefault("sheets.backend", "google")
	v.SetDefault("sheets.document_name", "AIニュース要約（マルチサイト）")
	v.SetDefault("sheets.credentials_file", "credentials.json")
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.step", 3*time.Second)
	v.SetDefault("retry.final_wait", 60*time.Second)
	v.SetDefault("retry.pause", 200*time.Millisecond)
	v.SetDefault("scorer.provider", "gemini")
	v.SetDefault("scorer.model", "gemini-1.5-flash")
	v.SetDefault("scorer.temperature", 0.3)
	v.SetDefault("scorer.max_output_tokens", 512)
	v.SetDefault("scorer.interval", 500*time.Millisecond)
	v.SetDefault("sources.user_agent", "Mozilla/5.0 (compatible; newsdesk/1.0)")
	v.SetDefault("sources.timeout", 30*time.Second)
	v.SetDefault("sources.interval", time.Second)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.prefix", "newsdesk")
	v.SetDefault("storage.local_dir", "var/reports")
	v.SetDefault("db.migrate", true)
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("catalog.ttl", time.Minute)
	v.SetDefault("catalog.concurrency", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.MaxArticles <= 0 {
		return fmt.Errorf("run.max_articles must be > 0")
	}
	if c.Run.QuotaLimit < 0 || c.Run.QuotaLimit > c.Run.MaxArticles {
		return fmt.Errorf("run.quota_limit must be between 0 and run.max_articles")
	}
	if c.Run.MaxPages <= 0 || c.Run.MaxPerSource <= 0 {
		return fmt.Errorf("run.max_pages and run.max_per_source must be > 0")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be > 0")
	}
	switch c.Sheets.Backend {
	case "google":
		if c.Sheets.DocumentID == "" && c.Sheets.DocumentName == "" {
			return fmt.Errorf("sheets.document_id or sheets.document_name must be set")
		}
	case "memory":
	default:
		return fmt.Errorf("sheets.backend must be google or memory")
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be > 0")
	}
	if c.Retry.Step < 0 || c.Retry.FinalWait < 0 || c.Retry.Pause < 0 {
		return fmt.Errorf("retry durations must be >= 0")
	}
	switch c.Scorer.Provider {
	case "gemini":
		if c.Scorer.APIKey == "" {
			return fmt.Errorf("scorer.api_key must be set when scorer.provider is gemini")
		}
	case "static":
	default:
		return fmt.Errorf("scorer.provider must be gemini or static")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Storage.Backend {
	case "none", "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set when storage.backend is local")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend must be none, local, gcs or memory")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// ServerTimeout converts the request timeout into a duration.
func (c Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
