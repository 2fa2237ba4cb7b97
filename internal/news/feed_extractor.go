package news

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// FeedExtractor reads candidates from an RSS/Atom feed and article text from
// the linked pages through readability.
type FeedExtractor struct {
	feedURL string
	fetcher DocumentFetcher
	parser  *gofeed.Parser
}

// NewFeedExtractor creates a feed-based extractor. A nil fetcher uses NewHTTPFetcher(0).
func NewFeedExtractor(feedURL string, fetcher DocumentFetcher) (*FeedExtractor, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, fmt.Errorf("feed URL cannot be empty")
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0)
	}

	return &FeedExtractor{
		feedURL: feedURL,
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
	}, nil
}

// Listing returns feed items in feed order.
func (e *FeedExtractor) Listing(ctx context.Context) ([]Candidate, error) {
	page, err := e.fetcher.Fetch(ctx, e.feedURL)
	if err != nil {
		return nil, err
	}

	feed, err := e.parser.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, shapeError(e.feedURL, "failed to parse RSS feed: %w", err)
	}

	if len(feed.Items) == 0 {
		return nil, shapeError(e.feedURL, "no articles found in RSS feed: %w", ErrNoCandidates)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		summary := item.Content
		if summary == "" {
			summary = item.Description
		}

		candidates = append(candidates, Candidate{
			Title:    strings.TrimSpace(item.Title),
			URL:      strings.TrimSpace(item.Link),
			ImageURL: feedImage(item),
			Tags:     uniqueTags(item.Categories),
			Summary:  summary,
		})
	}

	return candidates, nil
}

// Article reads the linked page and falls back to the feed's own content.
func (e *FeedExtractor) Article(ctx context.Context, c Candidate) (Article, error) {
	var text string

	if c.URL != "" {
		page, err := e.fetcher.Fetch(ctx, c.URL)
		if err == nil {
			text = readableText(page)
		} else if c.Summary == "" {
			return Article{}, err
		}
	}

	if text == "" {
		text = htmlToText(c.Summary)
	}

	return Article{Text: text}, nil
}

func feedImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

// htmlToText strips markup from feed content, one paragraph per <p>.
func htmlToText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content)
	}
	return selectionText(doc.Find("body"))
}
