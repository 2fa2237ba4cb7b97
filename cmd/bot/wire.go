package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/ai"
	"github.com/GustavoLR548/news-relay-bot/internal/bot"
	"github.com/GustavoLR548/news-relay-bot/internal/caption"
	"github.com/GustavoLR548/news-relay-bot/internal/config"
	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/GustavoLR548/news-relay-bot/internal/news"
	"github.com/GustavoLR548/news-relay-bot/internal/publish"
	"github.com/GustavoLR548/news-relay-bot/internal/schedule"
	"github.com/GustavoLR548/news-relay-bot/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

// app holds every wired component plus what must be released on exit.
type app struct {
	cfg   *config.Config
	base  *zap.Logger
	log   *zap.SugaredLogger
	state storage.Snapshotter
	ctrl  *bot.Controller

	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warnf("Error during shutdown: %v", err)
		}
	}
	_ = a.base.Sync()
}

func buildApp(ctx context.Context, envFile string) (*app, error) {
	envErr := config.LoadDotEnv(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	base, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, base: base, log: base.Sugar()}
	if envErr != nil {
		a.log.Warnf("Warning: %s not loaded, using environment variables", envFile)
	}

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	entries, err := schedule.LoadFile(cfg.ScheduleFile)
	if err != nil {
		return err
	}
	ids := schedule.Sources(entries)

	keys, err := sourceKeys(ids)
	if err != nil {
		return err
	}
	if err := cfg.RequireSources(keys); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	parsers, err := buildParsers(cfg, ids, news.Deps{
		Fetcher: news.NewHTTPFetcher(cfg.HTTPTimeout),
		Store:   store,
		Log:     a.log.Named("parser"),
	})
	if err != nil {
		return err
	}

	rewriter, err := a.buildRewriter()
	if err != nil {
		return err
	}

	publisher, err := a.buildPublisher()
	if err != nil {
		return err
	}

	a.ctrl, err = bot.NewController(bot.Config{
		Selector:    schedule.NewSelector(cfg.Timezone),
		Schedule:    entries,
		Parsers:     parsers,
		Rewriter:    rewriter,
		Publisher:   publisher,
		Stats:       &bot.Stats{},
		ErrorNotice: cfg.ErrorNotice,
		RunTimeout:  cfg.RunTimeout,
		Log:         a.log.Named("pipeline"),
	})
	if err != nil {
		return err
	}

	a.log.Infof("Wired %d source(s), rewrite provider %s, publisher %s, store %s",
		len(parsers), cfg.Rewrite.Provider, cfg.Publisher, cfg.Store.Backend)
	return nil
}

func (a *app) openStore(ctx context.Context) (storage.TitleStore, error) {
	cfg := a.cfg.Store
	log := a.log.Named("store")

	switch cfg.Backend {
	case config.BackendFile:
		backing := storage.NewFileBacking(cfg.StatePath)
		log.Infof("Using state file %s", backing.Path())
		s := storage.NewDocumentTitleStore(backing, log)
		a.state = s
		return s, nil

	case config.BackendMemory:
		s := storage.NewDocumentTitleStore(storage.NewMemoryBacking(nil), log)
		a.state = s
		return s, nil

	case config.BackendBolt:
		backing, err := storage.NewBoltBacking(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, backing.Close)
		s := storage.NewDocumentTitleStore(backing, log)
		a.state = s
		return s, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		a.closers = append(a.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("Connected to Redis successfully")

		repo := storage.NewRedisTitleRepository(client, log)
		a.state = repo
		return repo, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func (a *app) buildRewriter() (ai.Rewriter, error) {
	cfg := a.cfg.Rewrite
	log := a.log.Named("rewrite")

	switch cfg.Provider {
	case config.ProviderOpenRouter:
		return ai.NewOpenRouterRewriter(ai.OpenRouterConfig{
			Token:   cfg.OpenRouterToken,
			BaseURL: cfg.OpenRouterBaseURL,
			Model:   cfg.Model,
			Prompt:  cfg.Prompt,
			Limits:  cfg.Limits,
			Log:     log,
		})
	case config.ProviderGemini:
		return ai.NewGeminiRewriter(ai.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Prompt: cfg.Prompt,
			Limits: cfg.Limits,
			Log:    log,
		})
	case config.ProviderNone:
		log.Warn("Rewriting disabled, captions are published as prepared")
		return ai.Passthrough{}, nil
	}
	return nil, fmt.Errorf("unknown rewrite provider %q", cfg.Provider)
}

func (a *app) buildPublisher() (publish.Publisher, error) {
	cfg := a.cfg
	log := a.log.Named("publish")

	switch cfg.Publisher {
	case config.PublisherTelegram:
		return publish.NewTelegramPublisher(publish.TelegramConfig{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
			APIURL: cfg.Telegram.APIURL,
			Log:    log,
		})
	case config.PublisherDiscord:
		session, err := publish.NewDiscordSession(cfg.Discord.Token)
		if err != nil {
			return nil, err
		}
		if err := session.Open(); err != nil {
			return nil, fmt.Errorf("failed to open Discord connection: %w", err)
		}
		a.closers = append(a.closers, session.Close)
		return publish.NewDiscordPublisher(session, cfg.Discord.ChannelID, log)
	}
	return nil, fmt.Errorf("unknown publisher %q", cfg.Publisher)
}

// parseSourceID splits "g:tech" into its source key ("G") and category.
func parseSourceID(id string) (key, category string, err error) {
	prefix, category, ok := strings.Cut(id, ":")
	if !ok || prefix == "" || category == "" {
		return "", "", fmt.Errorf("invalid source %q, expected <source>:<category>", id)
	}
	return strings.ToUpper(prefix), category, nil
}

func sourceKeys(ids []string) ([]string, error) {
	seen := make(map[string]bool)
	var keys []string
	var errs []error
	for _, id := range ids {
		key, _, err := parseSourceID(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, errors.Join(errs...)
}

// buildParsers creates one parser per scheduled source. Caption preparers
// are shared per source key.
func buildParsers(cfg *config.Config, ids []string, deps news.Deps) ([]news.SourceParser, error) {
	footer := caption.Footer{ChannelName: cfg.Channel.Name, DisplayName: cfg.Channel.DisplayName}
	probabilities := caption.Probabilities{
		QuoteSkip: cfg.Caption.QuoteSkipProbability,
		Accent:    cfg.Caption.AccentProbability,
		Spoiler:   cfg.Caption.SpoilerProbability,
	}

	preparers := make(map[string]*caption.Preparer)
	captionsFor := func(key string) (*caption.Preparer, error) {
		if p, ok := preparers[key]; ok {
			return p, nil
		}
		p, err := caption.ForSource(key, footer, probabilities, nil)
		if err != nil {
			return nil, err
		}
		preparers[key] = p
		return p, nil
	}

	parsers := make([]news.SourceParser, 0, len(ids))
	for _, id := range ids {
		key, category, err := parseSourceID(id)
		if err != nil {
			return nil, err
		}
		captions, err := captionsFor(key)
		if err != nil {
			return nil, err
		}

		parser, err := newParser(cfg.Sources, key, category, captions, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to create parser %s: %w", id, err)
		}
		if parser.ID() != id {
			return nil, fmt.Errorf("source %q is not supported, did you mean %q?", id, parser.ID())
		}
		parsers = append(parsers, parser)
	}
	return parsers, nil
}

func newParser(src config.SourcesConfig, key, category string, captions news.CaptionBuilder, deps news.Deps) (*news.Parser, error) {
	switch key {
	case news.SourceKeyV:
		return news.NewVParser(src.BaseURLV, src.ListingURLV, captions, deps)
	case news.SourceKeySF:
		return news.NewSFParser(src.BaseURLSF, src.ListingURLSF, captions, deps)
	case news.SourceKeyG:
		if !contains(src.GCategories, category) {
			return nil, fmt.Errorf("category %q is not listed in G_CATEGORIES", category)
		}
		return news.NewGParser(src.BaseURLG, category, captions, deps)
	case news.SourceKeyRSS:
		if category != src.FeedCategory {
			return nil, fmt.Errorf("category %q does not match FEED_CATEGORY %q", category, src.FeedCategory)
		}
		return news.NewFeedParser(src.FeedURL, category, captions, deps)
	}
	return nil, fmt.Errorf("unknown source key %q", key)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
