package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"FinanceFlow/internal/domain"
)

const (
	configPathEnv     = "FINANCEFLOW_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	httpAddrEnv       = "HTTP_ADDR"
	corsOriginsEnv    = "CORS_ORIGINS"
	readerLevelEnv    = "READER_LEVEL"
	llmProviderEnv    = "LLM_PROVIDER"
	llmAPIKeyEnv      = "LLM_API_KEY"
	groqAPIKeyEnv     = "GROQ_API_KEY"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	llmBaseURLEnv     = "LLM_BASE_URL"
	cacheBackendEnv   = "CACHE_BACKEND"
	databaseDSNEnv    = "DATABASE_DSN"
	redisURLEnv       = "REDIS_URL"
	sqlitePathEnv     = "SQLITE_PATH"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	quotesEndpointEnv = "QUOTES_ENDPOINT"
	quotesAPIKeyEnv   = "QUOTES_API_KEY"
	otelEndpointEnv   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	otelHeadersEnv    = "OTEL_EXPORTER_OTLP_HEADERS"
)

const (
	groqBaseURL    = "https://api.groq.com/openai/v1"
	groqModel      = "llama-3.1-8b-instant"
	anthropicModel = "claude-3-5-haiku-latest"
)

// Cache backends.
const (
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
	CacheNone     = "none"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Server        ServerConfig       `yaml:"server"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	WorkingSet    WorkingSetConfig   `yaml:"workingSet"`
	LLM           LLMConfig          `yaml:"llm"`
	Cache         CacheConfig        `yaml:"cache"`
	Notifications NotificationConfig `yaml:"notifications"`
	Quotes        QuotesConfig       `yaml:"quotes"`
	Telemetry     TelemetryConfig    `yaml:"telemetry"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects verbosity and output encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows
	// any origin and an empty list disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PipelineConfig bounds the refresh pipeline.
type PipelineConfig struct {
	MaxItems          int           `yaml:"maxItems"`
	FetchConcurrency  int           `yaml:"fetchConcurrency"`
	LookupConcurrency int           `yaml:"lookupConcurrency"`
	EnrichConcurrency int           `yaml:"enrichConcurrency"`
	RefreshTimeout    time.Duration `yaml:"refreshTimeout"`
	MinBodyChars      int           `yaml:"minBodyChars"`
	MaxBodyChars      int           `yaml:"maxBodyChars"`
	AlertImpact       int           `yaml:"alertImpact"`
	// Level is the reader level (beginner|intermediate|advanced) summaries are written for.
	Level string `yaml:"level"`
}

// WorkingSetConfig controls the in-process result cache.
type WorkingSetConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	ServeStale      bool          `yaml:"serveStale"`
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// LLMConfig defines how to contact the analysis service.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Enabled reports whether enough is configured to call the service.
func (c LLMConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// CacheConfig selects and configures the persistent annotation store.
type CacheConfig struct {
	Backend     string        `yaml:"backend"`
	SQLitePath  string        `yaml:"sqlitePath"`
	PostgresDSN string        `yaml:"postgresDsn"`
	RedisURL    string        `yaml:"redisUrl"`
	RedisPrefix string        `yaml:"redisPrefix"`
	RedisTTL    time.Duration `yaml:"redisTtl"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether alerts can be delivered.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// QuotesConfig points at an HTTP quote service.
type QuotesConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether quotes should be attached to responses.
func (c QuotesConfig) Enabled() bool {
	return c.Endpoint != ""
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Headers        string `yaml:"headers"`
	ServiceName    string `yaml:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion"`
}

// Enabled reports whether traces should be exported.
func (c TelemetryConfig) Enabled() bool {
	return c.Endpoint != ""
}

// SourceConfig describes a single feed with its scanner strategy.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	Scanner  string            `yaml:"scanner"`
	URL      string            `yaml:"url"`
	Category string            `yaml:"category"`
	Limit    int               `yaml:"limit"`
	Options  map[string]string `yaml:"options"`
}

// DomainSources converts configured feeds into pipeline descriptors.
func (c Config) DomainSources() []domain.Source {
	out := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, domain.Source{
			Name:     s.Name,
			Scanner:  s.Scanner,
			URL:      s.URL,
			Category: s.Category,
			Limit:    s.Limit,
			Options:  s.Options,
		})
	}
	return out
}

// Load reads .env files, the YAML configuration (if present) and applies
// environment overrides. path wins over $FINANCEFLOW_CONFIG.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !(errors.Is(err, fs.ErrNotExist) && path == os.Getenv(configPathEnv)) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Logging.Level, logLevelEnv)
	setString(&c.Logging.Format, logFormatEnv)
	setString(&c.Server.Addr, httpAddrEnv)
	if v := strings.TrimSpace(os.Getenv(corsOriginsEnv)); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	setString(&c.Pipeline.Level, readerLevelEnv)

	setString(&c.LLM.Provider, llmProviderEnv)
	setString(&c.LLM.Model, llmModelEnv)
	setString(&c.LLM.BaseURL, llmBaseURLEnv)
	for _, key := range []string{openAIAPIKeyEnv, groqAPIKeyEnv, llmAPIKeyEnv} {
		setString(&c.LLM.APIKey, key)
	}

	setString(&c.Cache.Backend, cacheBackendEnv)
	setString(&c.Cache.PostgresDSN, databaseDSNEnv)
	setString(&c.Cache.RedisURL, redisURLEnv)
	setString(&c.Cache.SQLitePath, sqlitePathEnv)

	setString(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)

	setString(&c.Quotes.Endpoint, quotesEndpointEnv)
	setString(&c.Quotes.APIKey, quotesAPIKeyEnv)

	setString(&c.Telemetry.Endpoint, otelEndpointEnv)
	setString(&c.Telemetry.Headers, otelHeadersEnv)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		Server: ServerConfig{
			Addr:         ":5000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			CORSOrigins:  []string{"*"},
		},
		Pipeline: PipelineConfig{
			MaxItems:          30,
			FetchConcurrency:  4,
			LookupConcurrency: 8,
			EnrichConcurrency: 3,
			RefreshTimeout:    90 * time.Second,
			MinBodyChars:      80,
			MaxBodyChars:      1500,
			AlertImpact:       8,
			Level:             domain.LevelIntermediate,
		},
		WorkingSet: WorkingSetConfig{
			TTL:             10 * time.Minute,
			ServeStale:      true,
			RefreshInterval: 15 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     groqBaseURL,
			Model:       groqModel,
			Temperature: 0.2,
			MaxTokens:   1024,
			Timeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:     CacheSQLite,
			SQLitePath:  "financeflow.db",
			RedisPrefix: "financeflow:annotation:",
			RedisTTL:    30 * 24 * time.Hour,
		},
		Quotes:    QuotesConfig{Timeout: 5 * time.Second},
		Telemetry: TelemetryConfig{ServiceName: "financeflow", ServiceVersion: "dev"},
		Sources: []SourceConfig{
			{
				Name:     "cnbc-markets",
				Scanner:  "rss",
				URL:      "https://www.cnbc.com/id/20910258/device/rss/rss.html",
				Category: "markets",
				Limit:    15,
			},
			{
				Name:     "marketwatch-top",
				Scanner:  "rss",
				URL:      "https://feeds.content.dowjones.io/public/rss/mw_topstories",
				Category: "general",
				Limit:    15,
			},
			{
				Name:     "yahoo-finance",
				Scanner:  "rss",
				URL:      "https://finance.yahoo.com/news/rssindex",
				Category: "general",
				Limit:    15,
			},
		},
	}
}
