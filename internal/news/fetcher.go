package news

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrNoCandidates is wrapped by shape errors for listings without entries.
var ErrNoCandidates = errors.New("no listing entries found")

// ErrorKind classifies document fetch failures.
type ErrorKind int

const (
	// KindTransport covers network errors and non-2xx responses
	KindTransport ErrorKind = iota
	// KindShape covers documents that parse but lack the expected structure
	KindShape
)

func (k ErrorKind) String() string {
	if k == KindShape {
		return "shape"
	}
	return "transport"
}

// FetchError is the single error type returned by document fetching and extraction.
type FetchError struct {
	URL  string
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsShapeError reports whether err is a FetchError of KindShape.
func IsShapeError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindShape
}

func shapeError(pageURL string, format string, args ...any) error {
	return &FetchError{URL: pageURL, Kind: KindShape, Err: fmt.Errorf(format, args...)}
}

// Page is a fetched document. The DOM is parsed on first use.
type Page struct {
	URL  *url.URL
	Body []byte

	once sync.Once
	doc  *goquery.Document
	err  error
}

// NewPage wraps raw bytes fetched from pageURL.
func NewPage(pageURL *url.URL, body []byte) *Page {
	return &Page{URL: pageURL, Body: body}
}

// Document returns the parsed DOM.
func (p *Page) Document() (*goquery.Document, error) {
	p.once.Do(func() {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
		if err != nil {
			p.err = &FetchError{URL: p.URL.String(), Kind: KindShape, Err: fmt.Errorf("failed to parse HTML: %w", err)}
			return
		}
		doc.Url = p.URL
		p.doc = doc
	})
	return p.doc, p.err
}

// DocumentFetcher retrieves a document by URL.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// HTTPFetcher implements DocumentFetcher over resty.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher with the given timeout (0 means 30s).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", defaultUserAgent).
		SetHeader("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")

	return &HTTPFetcher{client: client}
}

// Fetch performs a GET and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || pageURL.Host == "" {
		return nil, &FetchError{URL: rawURL, Kind: KindTransport, Err: fmt.Errorf("invalid URL")}
	}

	resp, err := f.client.R().SetContext(ctx).Get(pageURL.String())
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindTransport, Err: err}
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &FetchError{URL: rawURL, Kind: KindTransport, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode())}
	}

	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		pageURL = raw.Request.URL
	}

	return NewPage(pageURL, resp.Body()), nil
}
