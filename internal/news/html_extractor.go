package news

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Extractor reads candidates from a source listing and article pages from candidates.
type Extractor interface {
	Listing(ctx context.Context) ([]Candidate, error)
	Article(ctx context.Context, c Candidate) (Article, error)
}

// HTMLExtractor applies a Rules table to HTML pages.
type HTMLExtractor struct {
	rules   Rules
	fetcher DocumentFetcher
	base    *url.URL
}

// NewHTMLExtractor creates an extractor. A nil fetcher uses NewHTTPFetcher(0).
func NewHTMLExtractor(rules Rules, fetcher DocumentFetcher) (*HTMLExtractor, error) {
	if rules.ListingURL == "" {
		return nil, fmt.Errorf("listing URL cannot be empty")
	}
	if rules.Item == "" {
		return nil, fmt.Errorf("listing item selector cannot be empty")
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0)
	}

	baseRaw := rules.BaseURL
	if baseRaw == "" {
		baseRaw = rules.ListingURL
	}
	base, err := url.Parse(baseRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return &HTMLExtractor{rules: rules, fetcher: fetcher, base: base}, nil
}

// Listing returns listing entries in document order.
func (e *HTMLExtractor) Listing(ctx context.Context) ([]Candidate, error) {
	page, err := e.fetcher.Fetch(ctx, e.rules.ListingURL)
	if err != nil {
		return nil, err
	}

	doc, err := page.Document()
	if err != nil {
		return nil, err
	}

	items := doc.Find(e.rules.Item)
	if items.Length() == 0 {
		return nil, shapeError(e.rules.ListingURL, "%w: nothing matches %q", ErrNoCandidates, e.rules.Item)
	}

	candidates := make([]Candidate, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		candidates = append(candidates, e.candidate(item))
	})

	return candidates, nil
}

func (e *HTMLExtractor) candidate(item *goquery.Selection) Candidate {
	link := item
	if e.rules.Link != "" {
		link = item.Find(e.rules.Link).First()
	}
	href, _ := link.Attr("href")

	var title string
	if e.rules.Title != "" {
		title = strings.TrimSpace(item.Find(e.rules.Title).First().Text())
	}

	var tags []string
	if e.rules.Tags != "" {
		item.Find(e.rules.Tags).Each(func(_ int, s *goquery.Selection) {
			tags = append(tags, s.Text())
		})
	}
	tags = append(tags, e.rules.StaticTags...)

	return Candidate{
		Title:    title,
		URL:      resolveURL(e.base, href),
		ImageURL: e.image(item, e.rules.ListImages),
		Tags:     uniqueTags(tags),
	}
}

func (e *HTMLExtractor) image(scope *goquery.Selection, rules []ImageRule) string {
	for _, rule := range rules {
		value, ok := scope.Find(rule.Selector).First().Attr(rule.Attr)
		if ok && strings.TrimSpace(value) != "" {
			return resolveURL(e.base, value)
		}
	}
	return ""
}

// Article fetches the candidate page and extracts title, body and image.
// An empty body selector result falls back to readability.
func (e *HTMLExtractor) Article(ctx context.Context, c Candidate) (Article, error) {
	if c.URL == "" {
		return Article{}, shapeError(e.rules.ListingURL, "candidate has no article URL")
	}

	page, err := e.fetcher.Fetch(ctx, c.URL)
	if err != nil {
		return Article{}, err
	}

	doc, err := page.Document()
	if err != nil {
		return Article{}, err
	}

	article := Article{}
	if e.rules.ArticleTitle != "" {
		article.Title = strings.TrimSpace(doc.Find(e.rules.ArticleTitle).First().Text())
	}
	if e.rules.ArticleBody != "" {
		article.Text = selectionText(doc.Find(e.rules.ArticleBody))
	}
	article.ImageURL = e.image(doc.Selection, e.rules.ArticleImages)

	if article.Text == "" {
		article.Text = readableText(page)
	}

	return article, nil
}

// blockTags start a new paragraph in selectionText.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "pre": true, "figcaption": true,
	"table": true, "tr": true,
}

var skippedTags = map[string]bool{"script": true, "style": true, "noscript": true}

// selectionText renders a body selection as plain text with one paragraph per
// block element or per <br>-separated run. Loose text between blocks is kept
// as its own paragraph.
func selectionText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	sel.Find("br").ReplaceWithHtml("\n\n")

	var parts []string
	var run strings.Builder
	flush := func() {
		if text := strings.TrimSpace(run.String()); text != "" {
			parts = append(parts, text)
		}
		run.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				run.WriteString(c.Data)
			case c.Type != html.ElementNode || skippedTags[c.Data]:
			case blockTags[c.Data]:
				flush()
				walk(c)
				flush()
			default:
				walk(c)
			}
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
		flush()
	}

	return strings.Join(parts, "\n\n")
}

// readableText extracts the main text of a page with readability. "" on failure.
func readableText(page *Page) string {
	parsed, err := readability.FromReader(bytes.NewReader(page.Body), page.URL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.TextContent)
}
