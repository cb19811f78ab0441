package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor walks the DOM and keeps text outside navigation chrome.
// It is the fallback when readability finds no article.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

func (h *HTMLExtractor) Extract(ctx context.Context, content []byte, pageURL string) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var b strings.Builder
	var title string
	walkText(doc, &b, &title)

	return &Result{
		Text:   cleanupText(b.String()),
		Title:  title,
		Method: MethodHTML,
	}, nil
}

func walkText(n *html.Node, b *strings.Builder, title *string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "nav", "header", "footer", "aside", "form", "iframe", "svg", "button", "select":
			return
		case "title":
			if *title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				*title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case "br":
			b.WriteByte('\n')
		}
	}

	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteByte(' ')
			b.WriteString(text)
			b.WriteByte(' ')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, b, title)
	}

	if n.Type == html.ElementNode && isBlockElement(n.Data) {
		b.WriteByte('\n')
	}
}

var blockElements = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "blockquote": true,
	"article": true, "section": true, "main": true, "pre": true,
	"td": true, "th": true, "dt": true, "dd": true, "tr": true,
}

func isBlockElement(tag string) bool {
	return blockElements[tag]
}

// cleanupText collapses spaces inside lines and drops blank lines. Lines are
// joined with a single newline so line-level filters see one block per line.
func cleanupText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
