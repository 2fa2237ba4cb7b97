package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/GustavoLR548/news-relay-bot/internal/ratelimit"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Publisher and rewrite provider names.
const (
	PublisherTelegram = "telegram"
	PublisherDiscord  = "discord"

	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderNone       = "none"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

// DefaultErrorNotice is sent to the channel when a run fails.
const DefaultErrorNotice = "Произошла ошибка при получении новостей."

// TelegramConfig holds Bot API delivery settings.
type TelegramConfig struct {
	Token  string
	ChatID string
	APIURL string
}

// DiscordConfig holds Discord delivery settings.
type DiscordConfig struct {
	Token     string
	ChannelID string
}

// ChannelConfig names the channel promoted in every caption.
type ChannelConfig struct {
	Name        string
	DisplayName string
}

// RewriteConfig selects and configures the rewrite backend.
type RewriteConfig struct {
	Provider          string
	OpenRouterToken   string
	OpenRouterBaseURL string
	Model             string
	GeminiAPIKey      string
	GeminiModel       string
	Prompt            string
	Limits            ratelimit.Config
}

// SourcesConfig holds per-source URLs.
type SourcesConfig struct {
	BaseURLV     string
	BaseURLSF    string
	BaseURLG     string
	ListingURLV  string
	ListingURLSF string
	GCategories  []string
	FeedURL      string
	FeedCategory string
}

// StoreConfig selects the title store backing.
type StoreConfig struct {
	Backend       string
	StatePath     string
	BoltPath      string
	RedisURL      string
	RedisPassword string
}

// CaptionConfig holds the presentation probabilities.
type CaptionConfig struct {
	QuoteSkipProbability float64
	AccentProbability    float64
	SpoilerProbability   float64
}

// Config is the whole process configuration.
type Config struct {
	Debug      bool
	Port       string
	AdminToken string

	Timezone     *time.Location
	TimezoneName string
	CronSpec     string
	ScheduleFile string
	RunTimeout   time.Duration
	HTTPTimeout  time.Duration
	ErrorNotice  string

	Publisher string
	Telegram  TelegramConfig
	Discord   DiscordConfig
	Channel   ChannelConfig
	Rewrite   RewriteConfig
	Sources   SourcesConfig
	Store     StoreConfig
	Caption   CaptionConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("DEBUG", false)
	v.SetDefault("TIMEZONE", "Europe/Moscow")
	v.SetDefault("CRON_SPEC", "0 6-18 * * *")
	v.SetDefault("RUN_TIMEOUT_MINUTES", 5)
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	v.SetDefault("ERROR_NOTICE_TEXT", DefaultErrorNotice)

	v.SetDefault("PUBLISHER", PublisherTelegram)
	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")

	v.SetDefault("REWRITE_PROVIDER", ProviderOpenRouter)
	v.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("REWRITE_MAX_REQUESTS_PER_MINUTE", 10)
	v.SetDefault("REWRITE_RETRY_ATTEMPTS", 2)
	v.SetDefault("REWRITE_RETRY_BACKOFF_SECONDS", 1)
	v.SetDefault("REWRITE_CIRCUIT_BREAKER_THRESHOLD", 5)
	v.SetDefault("REWRITE_CIRCUIT_BREAKER_TIMEOUT_MINUTES", 5)

	v.SetDefault("G_CATEGORIES", "politics,social,army,business,science,tech")
	v.SetDefault("FEED_CATEGORY", "feed")

	v.SetDefault("STORE_BACKEND", BackendFile)
	v.SetDefault("STATE_PATH", "cache/state.json")
	v.SetDefault("BOLT_PATH", "cache/state.db")
	v.SetDefault("REDIS_URL", "localhost:6379")

	v.SetDefault("CAPTION_QUOTE_SKIP_PROBABILITY", 0.35)
	v.SetDefault("CAPTION_ACCENT_PROBABILITY", 0.35)
	v.SetDefault("CAPTION_SPOILER_PROBABILITY", 0.25)
}

// LoadDotEnv loads variables from .env files (default ".env") into the
// process environment without overriding variables already set.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

// Load reads the environment, applies defaults and validates.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.TimezoneName, err)
	}
	cfg.Timezone = loc

	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Debug:      v.GetBool("DEBUG"),
		Port:       v.GetString("PORT"),
		AdminToken: v.GetString("ADMIN_TOKEN"),

		TimezoneName: v.GetString("TIMEZONE"),
		CronSpec:     v.GetString("CRON_SPEC"),
		ScheduleFile: v.GetString("SCHEDULE_FILE"),
		RunTimeout:   time.Duration(v.GetInt("RUN_TIMEOUT_MINUTES")) * time.Minute,
		HTTPTimeout:  time.Duration(v.GetInt("HTTP_TIMEOUT_SECONDS")) * time.Second,
		ErrorNotice:  v.GetString("ERROR_NOTICE_TEXT"),

		Publisher: strings.ToLower(v.GetString("PUBLISHER")),
		Telegram: TelegramConfig{
			Token:  v.GetString("TELEGRAM_TOKEN"),
			ChatID: v.GetString("CHAT_ID"),
			APIURL: strings.TrimRight(v.GetString("TELEGRAM_API_URL"), "/"),
		},
		Discord: DiscordConfig{
			Token:     v.GetString("DISCORD_TOKEN"),
			ChannelID: v.GetString("DISCORD_CHANNEL_ID"),
		},
		Channel: ChannelConfig{
			Name:        v.GetString("TELEGRAM_CHANNEL"),
			DisplayName: v.GetString("TELEGRAM_NAME_GROUP"),
		},
		Rewrite: RewriteConfig{
			Provider:          strings.ToLower(v.GetString("REWRITE_PROVIDER")),
			OpenRouterToken:   v.GetString("OPENROUTER_TOKEN"),
			OpenRouterBaseURL: v.GetString("OPENROUTER_BASE_URL"),
			Model:             v.GetString("LLM_MODEL"),
			GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
			GeminiModel:       v.GetString("GEMINI_MODEL"),
			Prompt:            strings.ReplaceAll(v.GetString("MODEL_PROMPT"), `\n`, "\n"),
			Limits: ratelimit.Config{
				MaxRequestsPerMinute:    v.GetInt("REWRITE_MAX_REQUESTS_PER_MINUTE"),
				CircuitBreakerThreshold: v.GetInt("REWRITE_CIRCUIT_BREAKER_THRESHOLD"),
				CircuitBreakerTimeout:   time.Duration(v.GetInt("REWRITE_CIRCUIT_BREAKER_TIMEOUT_MINUTES")) * time.Minute,
				RetryAttempts:           v.GetInt("REWRITE_RETRY_ATTEMPTS"),
				RetryBackoffBase:        time.Duration(v.GetInt("REWRITE_RETRY_BACKOFF_SECONDS")) * time.Second,
			},
		},
		Sources: SourcesConfig{
			BaseURLV:     v.GetString("BASE_NEWS_URL_V"),
			BaseURLSF:    v.GetString("BASE_NEWS_URL_SF"),
			BaseURLG:     v.GetString("BASE_NEWS_URL_G"),
			ListingURLV:  v.GetString("LISTING_URL_V"),
			ListingURLSF: v.GetString("LISTING_URL_SF"),
			GCategories:  splitList(v.GetString("G_CATEGORIES")),
			FeedURL:      v.GetString("FEED_URL"),
			FeedCategory: v.GetString("FEED_CATEGORY"),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(v.GetString("STORE_BACKEND")),
			StatePath:     v.GetString("STATE_PATH"),
			BoltPath:      v.GetString("BOLT_PATH"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
		},
		Caption: CaptionConfig{
			QuoteSkipProbability: v.GetFloat64("CAPTION_QUOTE_SKIP_PROBABILITY"),
			AccentProbability:    v.GetFloat64("CAPTION_ACCENT_PROBABILITY"),
			SpoilerProbability:   v.GetFloat64("CAPTION_SPOILER_PROBABILITY"),
		},
	}
}

// Validate reports every missing or malformed value at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require(c.Channel.Name, "TELEGRAM_CHANNEL")
	require(c.Channel.DisplayName, "TELEGRAM_NAME_GROUP")

	switch c.Publisher {
	case PublisherTelegram:
		require(c.Telegram.Token, "TELEGRAM_TOKEN")
		require(c.Telegram.ChatID, "CHAT_ID")
	case PublisherDiscord:
		require(c.Discord.Token, "DISCORD_TOKEN")
		require(c.Discord.ChannelID, "DISCORD_CHANNEL_ID")
	default:
		errs = append(errs, fmt.Errorf("PUBLISHER must be %q or %q, got %q", PublisherTelegram, PublisherDiscord, c.Publisher))
	}

	switch c.Rewrite.Provider {
	case ProviderOpenRouter:
		require(c.Rewrite.OpenRouterToken, "OPENROUTER_TOKEN")
		require(c.Rewrite.Model, "LLM_MODEL")
		require(c.Rewrite.Prompt, "MODEL_PROMPT")
	case ProviderGemini:
		require(c.Rewrite.GeminiAPIKey, "GEMINI_API_KEY")
		require(c.Rewrite.Prompt, "MODEL_PROMPT")
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("REWRITE_PROVIDER must be one of openrouter, gemini, none, got %q", c.Rewrite.Provider))
	}

	switch c.Store.Backend {
	case BackendFile:
		require(c.Store.StatePath, "STATE_PATH")
	case BackendBolt:
		require(c.Store.BoltPath, "BOLT_PATH")
	case BackendRedis:
		require(c.Store.RedisURL, "REDIS_URL")
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of file, memory, bolt, redis, got %q", c.Store.Backend))
	}

	probabilities := map[string]float64{
		"CAPTION_QUOTE_SKIP_PROBABILITY": c.Caption.QuoteSkipProbability,
		"CAPTION_ACCENT_PROBABILITY":     c.Caption.AccentProbability,
		"CAPTION_SPOILER_PROBABILITY":    c.Caption.SpoilerProbability,
	}
	for _, name := range []string{"CAPTION_QUOTE_SKIP_PROBABILITY", "CAPTION_ACCENT_PROBABILITY", "CAPTION_SPOILER_PROBABILITY"} {
		if p := probabilities[name]; p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 1, got %v", name, p))
		}
	}

	if c.RunTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RUN_TIMEOUT_MINUTES must be positive"))
	}
	require(c.CronSpec, "CRON_SPEC")
	require(c.TimezoneName, "TIMEZONE")

	return errors.Join(errs...)
}

// RequireSources checks the base URLs of the source keys a schedule uses.
func (c *Config) RequireSources(sourceKeys []string) error {
	var errs []error
	for _, key := range sourceKeys {
		var value, name string
		switch key {
		case "V":
			value, name = c.Sources.BaseURLV, "BASE_NEWS_URL_V"
		case "SF":
			value, name = c.Sources.BaseURLSF, "BASE_NEWS_URL_SF"
		case "G":
			value, name = c.Sources.BaseURLG, "BASE_NEWS_URL_G"
		case "RSS":
			value, name = c.Sources.FeedURL, "FEED_URL"
		default:
			errs = append(errs, fmt.Errorf("unknown source key %q", key))
			continue
		}
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required by the schedule", name))
		}
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
