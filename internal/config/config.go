package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	ProfileSimple = "simple"
	ProfileDeep   = "deep"

	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	deepseekEndpoint = "https://api.deepseek.com/v1"
	deepseekModel    = "deepseek-chat"
	anthropicModel   = "claude-3-5-haiku-latest"

	configPathEnv     = "SOTAWATCH_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	reasonerKeyEnv    = "REASONER_API_KEY"
	deepseekKeyEnv    = "DEEPSEEK_API_KEY"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	geminiKeyEnv      = "GEMINI_API_KEY"
	githubTokenEnv    = "GH_TOKEN"
	hfTokenEnv        = "HF_TOKEN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	feishuWebhookEnv  = "FEISHU_WEBHOOK_URL"
)

// geminiModels is the default primary model followed by its fallbacks.
var geminiModels = []string{"gemini-2.0-flash-lite", "gemini-flash-latest", "gemini-pro"}

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Sites         []SiteConfig       `yaml:"sites"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Reasoner      ReasonerConfig     `yaml:"reasoner"`
	Reader        ReaderConfig       `yaml:"reader"`
	Embedding     EmbeddingConfig    `yaml:"embedding"`
	Storage       StorageConfig      `yaml:"storage"`
	Search        SearchConfig       `yaml:"search"`
	Notifications NotificationConfig `yaml:"notifications"`
	HTTP          HTTPConfig         `yaml:"http"`
}

// LoggingConfig selects slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig selects the store driver and its connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines how often the pipeline runs.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SiteConfig describes a single source with its scanner strategy.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
}

// CategoryConfig holds concrete endpoints to crawl (feed URLs, arXiv listings).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// EnrichmentConfig parameterizes the enrichment engine.
// Threshold, RequireNoiseVerdict and DeepRead fall back to the profile values.
type EnrichmentConfig struct {
	Profile             string        `yaml:"profile"`
	Threshold           *int          `yaml:"threshold"`
	RequireNoiseVerdict *bool         `yaml:"requireNoiseVerdict"`
	DeepRead            *bool         `yaml:"deepRead"`
	MaxCandidates       int           `yaml:"maxCandidates"`
	Interval            time.Duration `yaml:"interval"`
	ExpandTimeout       time.Duration `yaml:"expandTimeout"`
	PromptContentLimit  int           `yaml:"promptContentLimit"`
	SummaryLanguage     string        `yaml:"summaryLanguage"`
	NoiseKeywords       []string      `yaml:"noiseKeywords"`
}

// ReasonerConfig defines how to contact the language model.
type ReasonerConfig struct {
	Provider       string        `yaml:"provider"`
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	FallbackModels []string      `yaml:"fallbackModels"`
	APIKey         string        `yaml:"apiKey"`
	SystemPrompt   string        `yaml:"systemPrompt"`
	Temperature    float64       `yaml:"temperature"`
	MaxTokens      int           `yaml:"maxTokens"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ReaderConfig selects the content expander used for deep reading.
type ReaderConfig struct {
	Kind     string        `yaml:"kind"`
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	MaxChars int           `yaml:"maxChars"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheDir string        `yaml:"cacheDir"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Backend       string `yaml:"backend"`
	Dimensions    int    `yaml:"dimensions"`
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"apiKey"`
	ModelPath     string `yaml:"modelPath"`
	TokenizerPath string `yaml:"tokenizerPath"`
	LibraryPath   string `yaml:"libraryPath"`
}

// StorageConfig tunes the write path.
type StorageConfig struct {
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retryDelay"`
}

// SearchConfig holds browse and semantic search defaults.
type SearchConfig struct {
	Threshold   float64 `yaml:"threshold"`
	Limit       int     `yaml:"limit"`
	MinScore    int     `yaml:"minScore"`
	BrowseLimit int     `yaml:"browseLimit"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Feishu   FeishuConfig   `yaml:"feishu"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// FeishuConfig holds the incoming webhook address.
type FeishuConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
}

// HTTPConfig configures the read-only API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env, the YAML file (explicit path or SOTAWATCH_CONFIG) and
// applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyReasonerDefaults()
	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.applyProfile()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg, nil
}

// applyReasonerDefaults fills endpoint and models for the selected provider.
// Only OpenAI-compatible providers get a default endpoint; the SDKs of the
// others know their own hosts.
func (c *Config) applyReasonerDefaults() {
	r := &c.Reasoner
	r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
	switch r.Provider {
	case "", ProviderOpenAI, ProviderDeepSeek:
		if r.Provider == "" {
			r.Provider = ProviderOpenAI
		}
		if r.Endpoint == "" {
			r.Endpoint = deepseekEndpoint
		}
		if r.Model == "" {
			r.Model = deepseekModel
		}
	case ProviderAnthropic:
		if r.Model == "" {
			r.Model = anthropicModel
		}
	case ProviderGemini:
		if r.Model == "" {
			r.Model = geminiModels[0]
			if len(r.FallbackModels) == 0 {
				r.FallbackModels = append([]string(nil), geminiModels[1:]...)
			}
		}
	}
}

func (c *Config) applyEnvOverrides() {
	setIf(&c.Logging.Level, logLevelEnv)
	setIf(&c.Database.DSN, databaseDSNEnv)
	setIf(&c.Database.Driver, databaseDriverEnv)
	setIf(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setIf(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)
	setIf(&c.Notifications.Feishu.WebhookURL, feishuWebhookEnv)

	switch c.Reasoner.Provider {
	case ProviderAnthropic:
		setIf(&c.Reasoner.APIKey, anthropicKeyEnv)
	case ProviderGemini:
		setIf(&c.Reasoner.APIKey, geminiKeyEnv)
	default:
		setIf(&c.Reasoner.APIKey, deepseekKeyEnv)
	}
	setIf(&c.Reasoner.APIKey, reasonerKeyEnv)

	for i := range c.Sites {
		var env string
		switch c.Sites[i].Scanner {
		case "github":
			env = githubTokenEnv
		case "huggingface":
			env = hfTokenEnv
		default:
			continue
		}
		if v := os.Getenv(env); v != "" {
			if c.Sites[i].Options == nil {
				c.Sites[i].Options = map[string]string{}
			}
			if c.Sites[i].Options["token"] == "" {
				c.Sites[i].Options["token"] = v
			}
		}
	}
}

func setIf(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// applyProfile fills gate settings the file left unset.
func (c *Config) applyProfile() {
	e := &c.Enrichment
	deep := strings.EqualFold(e.Profile, ProfileDeep)
	if deep {
		e.Profile = ProfileDeep
	} else {
		e.Profile = ProfileSimple
	}

	if e.Threshold == nil {
		threshold := e.GateThreshold()
		e.Threshold = &threshold
	}
	if e.RequireNoiseVerdict == nil {
		e.RequireNoiseVerdict = boolPtr(deep)
	}
	if e.DeepRead == nil {
		e.DeepRead = boolPtr(deep)
	}
}

// GateThreshold is the configured minimum score, or the profile default when
// the file left it unset. Zero is a valid explicit value.
func (e EnrichmentConfig) GateThreshold() int {
	if e.Threshold != nil {
		return *e.Threshold
	}
	if strings.EqualFold(e.Profile, ProfileDeep) {
		return 7
	}
	return 6
}

func boolPtr(v bool) *bool { return &v }

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "file:sotawatch.db"},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour, Timezone: defaultTimezone, location: tz},
		Enrichment: EnrichmentConfig{
			Profile:            ProfileSimple,
			MaxCandidates:      10,
			Interval:           time.Second,
			ExpandTimeout:      20 * time.Second,
			PromptContentLimit: 3000,
			SummaryLanguage:    "Simplified Chinese",
			NoiseKeywords: []string{
				"tutorial", "course", "learn", "101", "introduction", "guide for beginners",
				"interview", "awesome-", "resources", "cheat sheet", "cheatsheet", "roadmap",
			},
		},
		Reasoner: ReasonerConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.1,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
			SystemPrompt: "You are a senior AI analyst. You only answer with a single JSON object " +
				"and never add any other text.",
		},
		Reader: ReaderConfig{
			Kind:     "jina",
			Endpoint: "https://r.jina.ai/",
			MaxChars: 6000,
			Timeout:  20 * time.Second,
			CacheTTL: 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{Backend: "hash", Dimensions: 384},
		Storage:   StorageConfig{Retries: 3, RetryDelay: time.Second},
		Search:    SearchConfig{Threshold: 0.25, Limit: 20, MinScore: 7, BrowseLimit: 50},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Sites: []SiteConfig{
			{Name: "github-trending", Scanner: "github"},
			{Name: "huggingface-models", Scanner: "huggingface"},
			{Name: "hackernews-top", Scanner: "hackernews"},
		},
	}
}
