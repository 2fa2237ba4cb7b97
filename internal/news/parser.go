package news

import (
	"context"
	"fmt"
	"strings"

	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/GustavoLR548/news-relay-bot/internal/storage"
	"go.uber.org/zap"
)

// Source keys used in the persisted dedup document.
const (
	SourceKeyV   = "V"
	SourceKeySF  = "SF"
	SourceKeyG   = "G"
	SourceKeyRSS = "RSS"
)

// CaptionBuilder formats an article into a publishable caption.
type CaptionBuilder interface {
	Prepare(title, body string, tags []string, hasImage bool) string
}

// SourceParser produces at most one new item per call.
type SourceParser interface {
	// ID is the schedule identifier, e.g. "g:tech"
	ID() string
	SourceKey() string
	Category() string
	Parse(ctx context.Context) Result
}

// SelectOptions tune candidate selection.
type SelectOptions struct {
	// ScanWindow caps how many listing entries are considered (<= 0 means all)
	ScanWindow int
	// RequireImage drops candidates without a listing image
	RequireImage bool
	// StubImageSuffix marks placeholder images; such candidates are never eligible
	StubImageSuffix string
	// PriorityTag makes the first candidate carrying it the preferred pick
	PriorityTag string
	// RequireTitle drops untitled candidates, for extractors whose article
	// pages carry no title of their own
	RequireTitle bool
}

// ParserConfig groups the collaborators of a Parser.
type ParserConfig struct {
	ID        string
	SourceKey string
	Category  string
	Extractor Extractor
	Captions  CaptionBuilder
	Store     storage.TitleStore
	Options   SelectOptions
	Log       *zap.SugaredLogger
}

// Parser implements SourceParser on top of an Extractor.
type Parser struct {
	id        string
	sourceKey string
	category  string
	extractor Extractor
	captions  CaptionBuilder
	store     storage.TitleStore
	opts      SelectOptions
	log       *zap.SugaredLogger
}

// NewParser validates cfg and builds a parser.
func NewParser(cfg ParserConfig) (*Parser, error) {
	switch {
	case cfg.SourceKey == "":
		return nil, fmt.Errorf("source key cannot be empty")
	case cfg.Category == "":
		return nil, fmt.Errorf("category cannot be empty")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case cfg.Captions == nil:
		return nil, fmt.Errorf("caption builder is required")
	case cfg.Store == nil:
		return nil, fmt.Errorf("title store is required")
	}

	id := cfg.ID
	if id == "" {
		id = strings.ToLower(cfg.SourceKey) + ":" + cfg.Category
	}

	return &Parser{
		id:        id,
		sourceKey: cfg.SourceKey,
		category:  cfg.Category,
		extractor: cfg.Extractor,
		captions:  cfg.Captions,
		store:     cfg.Store,
		opts:      cfg.Options,
		log:       logger.OrNop(cfg.Log).With("source", id),
	}, nil
}

func (p *Parser) ID() string        { return p.id }
func (p *Parser) SourceKey() string { return p.sourceKey }
func (p *Parser) Category() string  { return p.category }

// Parse checks the source for a new item. A Some result has already been
// recorded in the title store.
func (p *Parser) Parse(ctx context.Context) Result {
	lastTitle := p.store.LoadTitle(p.sourceKey, p.category)

	candidates, err := p.extractor.Listing(ctx)
	if err != nil {
		p.log.Warnf("Failed to fetch listing: %v", err)
		return Failed(fmt.Errorf("failed to fetch listing: %w", err))
	}

	chosen, reason := p.pick(candidates, lastTitle)
	if chosen == nil {
		p.log.Infof("No new news: %s", reason)
		return None(reason)
	}

	article, err := p.extractor.Article(ctx, *chosen)
	if err != nil {
		p.log.Warnf("Failed to fetch article %s: %v", chosen.URL, err)
		return Failed(fmt.Errorf("failed to fetch article: %w", err))
	}

	title := chosen.Title
	if article.Title != "" {
		title = article.Title
	}
	image := chosen.ImageURL
	if image == "" {
		image = article.ImageURL
	}
	body := NormalizeText(article.Text)

	switch {
	case title == "":
		return None("article has no title")
	case body == "":
		return None("article has no body text")
	case title == lastTitle:
		p.log.Infof("No new news: %q already published", title)
		return None("already published")
	}

	caption := p.captions.Prepare(title, body, chosen.Tags, image != "")
	p.store.SaveTitle(p.sourceKey, p.category, title)

	p.log.Infof("New item: %q", title)

	return Some(Item{
		SourceKey:   p.sourceKey,
		Category:    p.category,
		Title:       title,
		ImageURL:    image,
		ArticleText: body,
		Tags:        chosen.Tags,
		ArticleURL:  chosen.URL,
	}, caption)
}

// pick walks the scan window. With no memory the first eligible candidate
// wins outright. Otherwise the first priority-tagged candidate beats the first
// eligible one, and scanning stops at the last published title.
func (p *Parser) pick(candidates []Candidate, lastTitle string) (*Candidate, string) {
	window := len(candidates)
	if p.opts.ScanWindow > 0 && p.opts.ScanWindow < window {
		window = p.opts.ScanWindow
	}

	var fallback, priority *Candidate
	for i := 0; i < window; i++ {
		c := &candidates[i]
		if !p.eligible(c) {
			continue
		}

		if lastTitle == "" {
			return c, ""
		}

		if fallback == nil {
			fallback = c
		}

		if priority == nil && hasTag(c.Tags, p.opts.PriorityTag) {
			priority = c
			if c.Title == lastTitle {
				return nil, "priority item already published"
			}
		}

		if c.Title == lastTitle {
			break
		}
	}

	if priority != nil {
		return priority, ""
	}
	if fallback != nil {
		return fallback, ""
	}
	return nil, "no eligible candidates in scan window"
}

func (p *Parser) eligible(c *Candidate) bool {
	if c.URL == "" {
		return false
	}
	if p.opts.RequireTitle && c.Title == "" {
		return false
	}
	if p.opts.RequireImage && c.ImageURL == "" {
		return false
	}
	if p.opts.StubImageSuffix != "" && c.ImageURL != "" && strings.HasSuffix(c.ImageURL, p.opts.StubImageSuffix) {
		return false
	}
	return true
}
