package caption

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxLength is the hard caption limit, in characters, markup included.
const MaxLength = 1024

// Rand is the randomness a Preparer draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Layout selects how the first paragraphs are presented.
type Layout int

const (
	// LayoutFlat appends every paragraph in order
	LayoutFlat Layout = iota
	// LayoutQuoteLead wraps the first two paragraphs in one block quote
	LayoutQuoteLead
)

// Decoration maps a lowercase tag to the symbols that may prefix the headline.
type Decoration struct {
	Tag     string
	Symbols []string
}

// Style holds the presentation choices of one output style.
type Style struct {
	Layout Layout
	// QuoteSkipProbability leaves the lead block unquoted
	QuoteSkipProbability float64
	// AccentIndex is the paragraph (0-based, whole body) that may be block-quoted
	AccentIndex int
	// AccentProbability of quoting AccentIndex; 0 disables
	AccentProbability float64
	// SpoilerTags enable the spoiler headline variant
	SpoilerTags []string
	// SpoilerProbability of hiding the headline when a spoiler tag is present
	SpoilerProbability float64
	// Hashtags appends a tag footer when it fits
	Hashtags bool
}

// Footer names the channel promoted at the end of every caption.
type Footer struct {
	ChannelName string
	DisplayName string
}

func (f Footer) markup() string {
	if f.ChannelName == "" {
		return ""
	}
	display := f.DisplayName
	if display == "" {
		display = f.ChannelName
	}
	return `⚡️<a href="https://t.me/` + Escape(f.ChannelName) + `"><b>` + Escape(display) + `</b></a>`
}

// Preparer builds length-bounded HTML captions.
type Preparer struct {
	style     Style
	table     []Decoration
	subscribe string
	rng       Rand
}

// NewPreparer creates a preparer. A nil rng draws from a time-seeded source.
func NewPreparer(style Style, table []Decoration, footer Footer, rng Rand) *Preparer {
	if rng == nil {
		rng = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	return &Preparer{
		style:     style,
		table:     table,
		subscribe: footer.markup(),
		rng:       rng,
	}
}

// Prepare formats an article. The result never exceeds MaxLength characters
// and only uses <b>, <i>, <blockquote>, <a> and <span class="tg-spoiler">.
// hasImage does not change the layout: photo captions and text messages share the limit.
func (p *Preparer) Prepare(title, body string, tags []string, hasImage bool) string {
	header := p.header(title, tags)
	paragraphs := splitParagraphs(body)

	reserve := 0
	if p.subscribe != "" {
		reserve = runeLen("\n\n" + p.subscribe)
	}

	var b strings.Builder
	b.WriteString(header)
	used := runeLen(header)

	rest, offset := paragraphs, 0
	if p.style.Layout == LayoutQuoteLead {
		lead, consumed := p.lead(paragraphs, MaxLength-used)
		b.WriteString(lead)
		used += runeLen(lead)
		rest, offset = paragraphs[consumed:], consumed
	}

	appended := 0
	for i, para := range rest {
		formatted := p.paragraph(para, offset+i)
		n := runeLen(formatted)
		if used+n+reserve > MaxLength {
			break
		}
		b.WriteString(formatted)
		used += n
		appended++
	}

	if appended == 0 && offset == 0 && len(rest) > 0 {
		// nothing fit: keep a clipped first paragraph rather than an empty caption
		if budget := MaxLength - used - reserve - 2; budget > 0 {
			b.WriteString(clipEscaped(rest[0], budget) + "\n\n")
		}
	}

	return p.withFooter(strings.TrimSpace(b.String()), tags)
}

func (p *Preparer) header(title string, tags []string) string {
	prefix := p.prefix(tags)
	spoiler := p.spoiler(tags)

	build := func(escTitle string) string {
		if spoiler {
			escTitle = `<span class="tg-spoiler">` + escTitle + `</span>`
		}
		if prefix != "" {
			escTitle = prefix + " " + escTitle
		}
		return "<b>" + escTitle + "</b>\n\n"
	}

	header := build(Escape(strings.TrimSpace(title)))
	if runeLen(header) > MaxLength {
		header = build(clipEscaped(strings.TrimSpace(title), MaxLength-runeLen(build(""))))
	}
	return header
}

// prefix walks the table in order and returns a symbol of the first tag present.
func (p *Preparer) prefix(tags []string) string {
	if len(tags) == 0 {
		return ""
	}

	lower := make(map[string]bool, len(tags))
	for _, tag := range tags {
		lower[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	for _, dec := range p.table {
		if !lower[dec.Tag] || len(dec.Symbols) == 0 {
			continue
		}
		if len(dec.Symbols) == 1 {
			return dec.Symbols[0]
		}
		return dec.Symbols[p.rng.Intn(len(dec.Symbols))]
	}
	return ""
}

func (p *Preparer) spoiler(tags []string) bool {
	if p.style.SpoilerProbability <= 0 || len(p.style.SpoilerTags) == 0 {
		return false
	}
	for _, tag := range tags {
		lower := strings.ToLower(strings.TrimSpace(tag))
		for _, st := range p.style.SpoilerTags {
			if lower == st {
				return p.rng.Float64() < p.style.SpoilerProbability
			}
		}
	}
	return false
}

// lead renders the quote-lead block within budget and reports how many paragraphs it used.
func (p *Preparer) lead(paragraphs []string, budget int) (string, int) {
	if len(paragraphs) == 0 {
		return "", 0
	}

	quoted := p.rng.Float64() >= p.style.QuoteSkipProbability
	wrap := func(content string) string {
		if quoted {
			return "<blockquote>" + content + "</blockquote>\n\n"
		}
		return content + "\n\n"
	}

	count := 2
	if len(paragraphs) < count {
		count = len(paragraphs)
	}

	for n := count; n >= 1; n-- {
		escaped := make([]string, n)
		for i := 0; i < n; i++ {
			escaped[i] = Escape(paragraphs[i])
		}
		if block := wrap(strings.Join(escaped, "\n\n")); runeLen(block) <= budget {
			return block, n
		}
	}

	room := budget - runeLen(wrap(""))
	if room <= 0 {
		return "", 1
	}
	return wrap(clipEscaped(paragraphs[0], room)), 1
}

func (p *Preparer) paragraph(para string, index int) string {
	escaped := Escape(para)

	if p.style.AccentProbability > 0 && index == p.style.AccentIndex && p.rng.Float64() < p.style.AccentProbability {
		return "<blockquote>" + escaped + "</blockquote>\n\n"
	}
	if startsWithQuote(para) {
		return "<i>" + escaped + "</i>\n\n"
	}
	return escaped + "\n\n"
}

// withFooter appends subscribe + hashtags, then subscribe only, then nothing,
// whichever first fits.
func (p *Preparer) withFooter(body string, tags []string) string {
	var hashtags string
	if p.style.Hashtags {
		hashtags = Hashtags(tags)
	}

	var options []string
	if p.subscribe != "" && hashtags != "" {
		options = append(options, body+"\n\n"+p.subscribe+"\n\n"+hashtags)
	}
	if p.subscribe != "" {
		options = append(options, body+"\n\n"+p.subscribe)
	}
	if p.subscribe == "" && hashtags != "" {
		options = append(options, body+"\n\n"+hashtags)
	}

	for _, option := range options {
		if runeLen(option) <= MaxLength {
			return strings.TrimSpace(option)
		}
	}
	return body
}

var (
	escaper        = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	paragraphSplit = regexp.MustCompile(`\n[ \t]*\n`)
	hashtagSpace   = regexp.MustCompile(`\s+`)
	hashtagStrip   = regexp.MustCompile(`[^a-zа-яё0-9_]`)
)

// Escape replaces &, < and > with their entities.
func Escape(text string) string {
	return escaper.Replace(text)
}

// Hashtags renders tags as "#tag_one #tag_two", skipping tags that reduce to nothing.
func Hashtags(tags []string) string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		t = hashtagSpace.ReplaceAllString(t, "_")
		t = hashtagStrip.ReplaceAllString(t, "")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, "#"+t)
	}
	return strings.Join(out, " ")
}

func splitParagraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	parts := paragraphSplit.Split(body, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func startsWithQuote(text string) bool {
	r, _ := utf8.DecodeRuneInString(text)
	return strings.ContainsRune(`“"«'‘`, r)
}

// clipEscaped escapes text rune by rune and stops so the result, plus an
// ellipsis when clipped, stays within budget characters. Entities are never split.
func clipEscaped(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if escaped := Escape(text); runeLen(escaped) <= budget {
		return escaped
	}

	var b strings.Builder
	used := 0
	for _, r := range text {
		piece := Escape(string(r))
		n := runeLen(piece)
		if used+n > budget-1 {
			break
		}
		b.WriteString(piece)
		used += n
	}
	return strings.TrimSpace(b.String()) + "…"
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
