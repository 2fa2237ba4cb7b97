package news

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxArticleLength bounds normalized article text, in characters.
const MaxArticleLength = 1024

// NormalizeText trims every line, keeps blank lines as paragraph breaks and
// stops before the first line that would push the text past MaxArticleLength.
// Lines are never split.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	length := 0
	for _, line := range strings.Split(text, "\n") {
		add := "\n" + strings.TrimSpace(line)
		n := utf8.RuneCountInString(add)
		if length+n > MaxArticleLength {
			break
		}
		b.WriteString(add)
		length += n
	}

	return strings.TrimSpace(b.String())
}

// uniqueTags trims tags and drops empties and repeats, keeping first occurrence order.
func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func hasTag(tags []string, want string) bool {
	if want == "" {
		return false
	}
	for _, tag := range tags {
		if strings.EqualFold(strings.TrimSpace(tag), want) {
			return true
		}
	}
	return false
}

// CategoryFromListingURL returns the path segment naming the section in a
// listing URL shaped like {base}/{category}/news/.
func CategoryFromListingURL(listingURL string) string {
	parts := strings.Split(listingURL, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-3]
}

// resolveURL turns href into an absolute URL against base.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
