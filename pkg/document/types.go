package document

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Metadata keys shared across stages
const (
	MetaURL              = "url"
	MetaWARCFile         = "warc_file"
	MetaDate             = "date"
	MetaTitle            = "title"
	MetaFilterReason     = "filter_reason"
	MetaOriginalText     = "original_text_normalized"
	MetaLanguage         = "language"
	MetaLanguageScore    = "language_score"
	MetaExtractionMethod = "extraction_method"
)

// Document represents one unit of crawled text moving through the curation pipeline
type Document struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Source describes where a document came from
type Source struct {
	Type string `json:"type"`           // Payload type: html, text
	URL  string `json:"url,omitempty"`  // WARC-Target-URI
	Path string `json:"path,omitempty"` // WARC file the record was read from
}

// Content holds the document's text and accumulated metadata
type Content struct {
	Raw      []byte                 `json:"-"`        // Raw payload (not serialized)
	Text     string                 `json:"text"`     // Extracted text, rewritten in place by filters
	Metadata map[string]interface{} `json:"metadata"` // Provenance and filter statistics
}

// New creates a text document with a fresh ID and an empty metadata map
func New(text string) *Document {
	return &Document{
		ID:        uuid.New().String(),
		Source:    Source{Type: "text"},
		Content:   Content{Text: text, Metadata: make(map[string]interface{})},
		CreatedAt: time.Now().UTC(),
	}
}

// Meta returns the metadata map, creating it on first use
func (d *Document) Meta() map[string]interface{} {
	if d.Content.Metadata == nil {
		d.Content.Metadata = make(map[string]interface{})
	}
	return d.Content.Metadata
}

// MetaString returns a metadata value formatted as a string, or "" when absent
func (d *Document) MetaString(key string) string {
	v, ok := d.Content.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Validate checks if the document has required fields
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if d.Source.Type == "" {
		return fmt.Errorf("document source type cannot be empty")
	}
	return nil
}
