package caption

import "fmt"

// Probabilities of the cosmetic variants.
type Probabilities struct {
	QuoteSkip float64
	Accent    float64
	Spoiler   float64
}

// DefaultProbabilities are the presentation odds used in production.
func DefaultProbabilities() Probabilities {
	return Probabilities{QuoteSkip: 0.35, Accent: 0.35, Spoiler: 0.25}
}

// TableV decorates V headlines. Order is priority.
var TableV = []Decoration{
	{Tag: "главные события", Symbols: []string{"❗️", "‼️", "❗️📣"}},
	{Tag: "спецоперация россии", Symbols: []string{"🪖"}},
	{Tag: "телефонное мошенничество", Symbols: []string{"📵"}},
	{Tag: "экономика", Symbols: []string{"📊"}},
	{Tag: "борьба с коррупцией в россии", Symbols: []string{"⚖️"}},
	{Tag: "политика", Symbols: []string{"🏛️", "🌏"}},
	{Tag: "авто", Symbols: []string{"🚗"}},
	{Tag: "медицина", Symbols: []string{"🩺", "🏥"}},
	{Tag: "культура", Symbols: []string{"🎭"}},
	{Tag: "спорт", Symbols: []string{"🏅"}},
	{Tag: "прогноз погоды", Symbols: []string{"🌦️"}},
	{Tag: "наука", Symbols: []string{"🔬", "⚗️", "🚀"}},
	{Tag: "hi-tech", Symbols: []string{"🤖", "🚀"}},
	{Tag: "атаки украинских дронов и ракет", Symbols: []string{"💥"}},
	{Tag: "ситуация на украине", Symbols: []string{"💥"}},
	{Tag: "происшествия", Symbols: []string{"🚨"}},
}

// TableSF decorates SF headlines.
var TableSF = []Decoration{
	{Tag: "criminal", Symbols: []string{"❗️", "‼️"}},
}

// TableG decorates G headlines by section.
var TableG = []Decoration{
	{Tag: "army", Symbols: []string{"🪖", "⚔️", "🛡️"}},
	{Tag: "business", Symbols: []string{"📊", "🪙", "🏦"}},
	{Tag: "politics", Symbols: []string{"🏛️", "🌏"}},
	{Tag: "science", Symbols: []string{"🔬", "⚗️", "👨‍🔬"}},
	{Tag: "tech", Symbols: []string{"👨‍💻", "🖥", "💻"}},
}

// StyleV quotes the lead, may hide the headline of breaking news and adds hashtags.
func StyleV(p Probabilities) Style {
	return Style{
		Layout:               LayoutQuoteLead,
		QuoteSkipProbability: p.QuoteSkip,
		SpoilerTags:          []string{"главные события", "происшествия"},
		SpoilerProbability:   p.Spoiler,
		Hashtags:             true,
	}
}

// StyleSF is a plain flat layout.
func StyleSF() Style {
	return Style{Layout: LayoutFlat}
}

// StyleG is flat with an occasional quoted second paragraph.
func StyleG(p Probabilities) Style {
	return Style{
		Layout:            LayoutFlat,
		AccentIndex:       1,
		AccentProbability: p.Accent,
	}
}

// StyleFeed quotes the lead and adds hashtags from feed categories.
func StyleFeed(p Probabilities) Style {
	return Style{
		Layout:               LayoutQuoteLead,
		QuoteSkipProbability: p.QuoteSkip,
		Hashtags:             true,
	}
}

// ForSource returns the preparer of a source key ("V", "SF", "G", "RSS").
func ForSource(sourceKey string, footer Footer, p Probabilities, rng Rand) (*Preparer, error) {
	switch sourceKey {
	case "V":
		return NewPreparer(StyleV(p), TableV, footer, rng), nil
	case "SF":
		return NewPreparer(StyleSF(), TableSF, footer, rng), nil
	case "G":
		return NewPreparer(StyleG(p), TableG, footer, rng), nil
	case "RSS":
		return NewPreparer(StyleFeed(p), nil, footer, rng), nil
	default:
		return nil, fmt.Errorf("no caption style for source %q", sourceKey)
	}
}
