package extractor

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Extraction methods recorded in document metadata
const (
	MethodReadability = "readability"
	MethodHTML        = "html_fallback"
	MethodText        = "text"
)

// ErrNoContent is returned when a page yields no text at all
var ErrNoContent = errors.New("no text content extracted")

// Result is the main text of one page
type Result struct {
	Text      string
	Title     string
	Byline    string
	SiteName  string
	Published string
	Method    string
}

// Extractor pulls main text from one payload
type Extractor interface {
	Extract(ctx context.Context, content []byte, pageURL string) (*Result, error)
}

// Engine picks an extractor by content type. HTML goes through readability
// first and falls back to the plain DOM walker when readability finds nothing.
type Engine struct {
	extractors map[string]Extractor
	fallback   Extractor
	timeout    time.Duration
}

// NewEngine creates an engine bounding each extraction by timeout. Zero
// disables the bound.
func NewEngine(timeout time.Duration) *Engine {
	return &Engine{
		extractors: map[string]Extractor{
			"html":  NewReadabilityExtractor(),
			"xhtml": NewReadabilityExtractor(),
			"text":  &TextExtractor{},
			"plain": &TextExtractor{},
		},
		fallback: NewHTMLExtractor(),
		timeout:  timeout,
	}
}

// Extract returns the main text of content. contentType may be a MIME type
// ("text/html; charset=utf-8") or a short kind ("html"). It returns
// context.DeadlineExceeded when the engine timeout fires first.
func (e *Engine) Extract(ctx context.Context, content []byte, contentType, pageURL string) (*Result, error) {
	kind := contentKind(contentType)
	ext, ok := e.extractors[kind]
	if !ok {
		ext = e.extractors["html"]
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := ext.Extract(ctx, content, pageURL)
		if kind != "text" && kind != "plain" && (err != nil || res == nil || strings.TrimSpace(res.Text) == "") {
			res, err = e.fallback.Extract(ctx, content, pageURL)
		}
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		if strings.TrimSpace(out.res.Text) == "" {
			return nil, ErrNoContent
		}
		return out.res, nil
	}
}

func contentKind(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "", strings.HasSuffix(ct, "/html"), ct == "html":
		return "html"
	case strings.HasSuffix(ct, "xhtml+xml"), ct == "xhtml":
		return "xhtml"
	case ct == "text/plain", ct == "text", ct == "txt":
		return "text"
	}
	if i := strings.IndexByte(ct, '/'); i >= 0 {
		return ct[i+1:]
	}
	return ct
}

// TextExtractor passes plain text through
type TextExtractor struct{}

func (t *TextExtractor) Extract(ctx context.Context, content []byte, pageURL string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{Text: strings.TrimSpace(string(content)), Method: MethodText}, nil
}
