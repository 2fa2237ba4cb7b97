package publish

import (
	"strings"

	"golang.org/x/net/html"
)

// ToDiscordMarkdown converts the caption tag subset (<b>, <i>, <blockquote>,
// <a>, tg-spoiler spans) to Discord markdown. Unknown tags keep their text.
func ToDiscordMarkdown(caption string) string {
	doc, err := html.Parse(strings.NewReader("<body>" + caption + "</body>"))
	if err != nil {
		return caption
	}
	return strings.TrimSpace(render(doc))
}

func render(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
		switch n.Data {
		case "b", "strong":
			return "**" + children(n) + "**"
		case "i", "em":
			return "*" + children(n) + "*"
		case "a":
			return "[" + children(n) + "](" + attr(n, "href") + ")"
		case "blockquote":
			return quoteLines(children(n))
		case "span":
			if attr(n, "class") == "tg-spoiler" {
				return "||" + children(n) + "||"
			}
		}
	}
	return children(n)
}

func children(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(render(c))
	}
	return b.String()
}

func quoteLines(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
