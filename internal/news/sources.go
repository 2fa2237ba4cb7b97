package news

import (
	"github.com/GustavoLR548/news-relay-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	// VScanWindow is how many V listing entries are considered per run
	VScanWindow = 10
	// VStubImageSuffix is the placeholder image V serves before the real one loads
	VStubImageSuffix = "526/788/3.jpg"
	// VPriorityTag marks headline news on V
	VPriorityTag = "Главные события"
)

// Deps are the collaborators shared by every source parser.
type Deps struct {
	Fetcher DocumentFetcher
	Store   storage.TitleStore
	Log     *zap.SugaredLogger
}

// NewVParser builds the V source parser (category "news").
func NewVParser(baseURL, listingURL string, captions CaptionBuilder, deps Deps) (*Parser, error) {
	extractor, err := NewHTMLExtractor(RulesV(baseURL, listingURL), deps.Fetcher)
	if err != nil {
		return nil, err
	}

	return NewParser(ParserConfig{
		SourceKey: SourceKeyV,
		Category:  "news",
		Extractor: extractor,
		Captions:  captions,
		Store:     deps.Store,
		Options: SelectOptions{
			ScanWindow:      VScanWindow,
			RequireImage:    true,
			StubImageSuffix: VStubImageSuffix,
			PriorityTag:     VPriorityTag,
		},
		Log: deps.Log,
	})
}

// NewSFParser builds the SF source parser (category "criminal", no images).
func NewSFParser(baseURL, listingURL string, captions CaptionBuilder, deps Deps) (*Parser, error) {
	extractor, err := NewHTMLExtractor(RulesSF(baseURL, listingURL), deps.Fetcher)
	if err != nil {
		return nil, err
	}

	return NewParser(ParserConfig{
		SourceKey: SourceKeySF,
		Category:  "criminal",
		Extractor: extractor,
		Captions:  captions,
		Store:     deps.Store,
		Options:   SelectOptions{ScanWindow: 1},
		Log:       deps.Log,
	})
}

// NewGParser builds a G parser for one category section.
func NewGParser(baseURL, category string, captions CaptionBuilder, deps Deps) (*Parser, error) {
	rules := RulesG(baseURL, category)
	if derived := CategoryFromListingURL(rules.ListingURL); derived != "" {
		category = derived
	}

	extractor, err := NewHTMLExtractor(rules, deps.Fetcher)
	if err != nil {
		return nil, err
	}

	return NewParser(ParserConfig{
		SourceKey: SourceKeyG,
		Category:  category,
		Extractor: extractor,
		Captions:  captions,
		Store:     deps.Store,
		Options:   SelectOptions{ScanWindow: 1},
		Log:       deps.Log,
	})
}

// NewFeedParser builds a parser over an RSS/Atom feed.
func NewFeedParser(feedURL, category string, captions CaptionBuilder, deps Deps) (*Parser, error) {
	extractor, err := NewFeedExtractor(feedURL, deps.Fetcher)
	if err != nil {
		return nil, err
	}

	return NewParser(ParserConfig{
		SourceKey: SourceKeyRSS,
		Category:  category,
		Extractor: extractor,
		Captions:  captions,
		Store:     deps.Store,
		Options:   SelectOptions{ScanWindow: VScanWindow, RequireTitle: true},
		Log:       deps.Log,
	})
}
