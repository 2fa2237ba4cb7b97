package news

import "strings"

// ImageRule reads an image URL from the first node matching Selector.
type ImageRule struct {
	Selector string
	Attr     string
}

// Rules describes one site's markup. Selectors for listing fields are relative
// to the listing entry; an empty Link selector means the entry is the anchor itself.
type Rules struct {
	ListingURL string
	BaseURL    string

	Item       string
	Link       string
	Title      string
	ListImages []ImageRule
	Tags       string

	ArticleTitle  string
	ArticleBody   string
	ArticleImages []ImageRule

	// StaticTags are attached to every candidate, after listing tags
	StaticTags []string
}

// Candidate is a listing entry before its article page is read.
type Candidate struct {
	Title    string
	URL      string
	ImageURL string
	Tags     []string
	// Summary is inline content some sources ship with the listing (feeds)
	Summary string
}

// Article is the extracted detail page.
type Article struct {
	Title    string
	Text     string
	ImageURL string
}

// RulesV is the markup of the V site: a scan-window listing with images and tags.
// Only data-src carries the real listing image; src is the lazy-load placeholder.
func RulesV(baseURL, listingURL string) Rules {
	return Rules{
		ListingURL:  orDefault(listingURL, joinURL(baseURL, "news")),
		BaseURL:     baseURL,
		Item:        ".list.list-news .list__item",
		Link:        ".list__title a",
		Title:       ".list__title a",
		ListImages:  []ImageRule{{Selector: "img.list__pic", Attr: "data-src"}},
		Tags:        ".list__subtitle .list__src",
		ArticleBody: ".article__text",
	}
}

// RulesSF is the markup of the SF site: first listing block, text only.
func RulesSF(baseURL, listingURL string) Rules {
	return Rules{
		ListingURL:   orDefault(listingURL, joinURL(baseURL, "criminal/")),
		BaseURL:      baseURL,
		Item:         `[data-qa="lb-block"]`,
		Link:         "a",
		ArticleTitle: "h1",
		ArticleBody:  ".lead",
		StaticTags:   []string{"criminal"},
	}
}

// RulesG is the markup of the G site for one category section.
func RulesG(baseURL, category string) Rules {
	return Rules{
		ListingURL:   joinURL(baseURL, category+"/news/"),
		BaseURL:      baseURL,
		Item:         "#_id_article_listing a",
		ArticleTitle: "h1",
		ArticleBody:  `[itemprop="articleBody"]`,
		ArticleImages: []ImageRule{
			{Selector: "img.item-image", Attr: "data-hq"},
			{Selector: "img.item-image-hq", Attr: "src"},
		},
		StaticTags: []string{category},
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
