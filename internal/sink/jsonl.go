// Package sink writes and reads gzip-compressed JSONL document dumps, the
// format of both the cleaned dataset and the per-stage rejection folders.
package sink

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/Fatnaoui/crawler-project/pkg/document"
)

// ErrMalformedLine is returned by Reader.Next for a line that is not a JSON
// object. The reader stays usable.
var ErrMalformedLine = errors.New("malformed JSONL line")

const maxLineSize = 32 << 20

// Record is the on-disk shape of one document
type Record struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// FromDocument flattens doc into its on-disk record
func FromDocument(doc *document.Document) Record {
	meta := make(map[string]interface{}, len(doc.Content.Metadata)+2)
	for k, v := range doc.Content.Metadata {
		meta[k] = v
	}
	if doc.Source.URL != "" {
		if _, ok := meta[document.MetaURL]; !ok {
			meta[document.MetaURL] = doc.Source.URL
		}
	}
	if doc.Source.Path != "" {
		if _, ok := meta[document.MetaWARCFile]; !ok {
			meta[document.MetaWARCFile] = doc.Source.Path
		}
	}
	return Record{ID: doc.ID, Text: doc.Content.Text, Metadata: meta}
}

// Document rebuilds a pipeline document from a record
func (r Record) Document() *document.Document {
	doc := document.New(r.Text)
	if r.ID != "" {
		doc.ID = r.ID
	}
	for k, v := range r.Metadata {
		doc.Content.Metadata[k] = v
	}
	doc.Source.URL = doc.MetaString(document.MetaURL)
	doc.Source.Path = doc.MetaString(document.MetaWARCFile)
	return doc
}

// Reason returns the filter reason recorded on a rejected record
func (r Record) Reason() string {
	if v, ok := r.Metadata[document.MetaFilterReason]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// DataPath is where rank writes accepted documents
func DataPath(output string, rank int) string {
	return filepath.Join(output, "data", fmt.Sprintf("%05d.jsonl.gz", rank))
}

// RejectedDir is the folder collecting documents dropped by the stage at
// position index of the chain.
func RejectedDir(output string, index int, stage string) string {
	return filepath.Join(output, "rejected", fmt.Sprintf("%d_%s", index, stage))
}

// RejectedPath is where rank writes documents dropped by one stage
func RejectedPath(output string, index int, stage string, rank int) string {
	return filepath.Join(RejectedDir(output, index, stage), fmt.Sprintf("%05d.jsonl.gz", rank))
}

// Writer appends records to one .jsonl.gz file. The file is created on the
// first write, so a stage that rejects nothing leaves no file behind.
type Writer struct {
	path  string
	mu    sync.Mutex
	file  *os.File
	gz    *gzip.Writer
	buf   *bufio.Writer
	enc   *json.Encoder
	count int64
}

// NewWriter prepares a writer for path
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", w.path, err)
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.path, err)
	}
	w.file = f
	w.gz = gzip.NewWriter(f)
	w.buf = bufio.NewWriterSize(w.gz, 256<<10)
	w.enc = json.NewEncoder(w.buf)
	w.enc.SetEscapeHTML(false)
	return nil
}

// Write appends doc as one JSON line
func (w *Writer) Write(doc *document.Document) error {
	return w.WriteRecord(FromDocument(doc))
}

// WriteRecord appends rec as one JSON line
func (w *Writer) WriteRecord(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write record %s to %s: %w", rec.ID, w.path, err)
	}
	w.count++
	return nil
}

// Count returns the number of records written so far
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the target file path
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and closes the file, if one was opened
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	var errs []error
	if err := w.buf.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := w.gz.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, err)
	}
	w.file = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close %s: %w", w.path, err)
	}
	return nil
}

// Reader iterates over the records of one .jsonl or .jsonl.gz file
type Reader struct {
	path    string
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
	line    int
}

// Open opens path for reading. Files ending in .gz are decompressed.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r := &Reader{path: path, file: f}

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		r.gz = gz
		src = gz
	}
	r.scanner = bufio.NewScanner(src)
	r.scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return r, nil
}

// Next returns the next record or io.EOF. Blank lines are skipped.
func (r *Reader) Next() (*Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedLine, r.path, r.line, err)
		}
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]interface{})
		}
		return &rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}
	return nil, io.EOF
}

// Close releases the file
func (r *Reader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	return r.file.Close()
}

// ReadN returns up to n records from path, skipping malformed lines. n <= 0
// reads everything.
func ReadN(path string, n int) ([]Record, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var records []Record
	for n <= 0 || len(records) < n {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrMalformedLine) {
			continue
		}
		if err != nil {
			return records, err
		}
		records = append(records, *rec)
	}
	return records, nil
}
