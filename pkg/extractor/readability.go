package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const blockSelector = "h1,h2,h3,h4,h5,h6,p,li,blockquote,pre,td,th,dt,dd"

// ReadabilityExtractor isolates the main article with go-readability and
// emits one line per leaf text block of the cleaned article HTML.
type ReadabilityExtractor struct{}

func NewReadabilityExtractor() *ReadabilityExtractor {
	return &ReadabilityExtractor{}
}

func (r *ReadabilityExtractor) Extract(ctx context.Context, content []byte, pageURL string) (*Result, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(content), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse article HTML: %w", err)
	}

	var lines []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Outer blocks are covered by their inner ones
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if line := normalizeText(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		if text := normalizeText(doc.Text()); text != "" {
			lines = append(lines, text)
		}
	}

	res := &Result{
		Text:     strings.Join(lines, "\n"),
		Title:    normalizeText(article.Title),
		Byline:   article.Byline,
		SiteName: article.SiteName,
		Method:   MethodReadability,
	}
	if article.PublishedTime != nil {
		res.Published = article.PublishedTime.Format("2006-01-02")
	}
	return res, nil
}

// normalizeText folds a block onto one line
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
