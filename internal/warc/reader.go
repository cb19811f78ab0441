// Package warc reads WARC 1.0/1.1 archives, plain or gzip compressed, and
// exposes the HTTP payload of response records.
package warc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html/charset"
)

// ErrMalformedRecord marks a record that could not be parsed. The reader
// resynchronizes on the next "WARC/" version line, so callers may log it and
// keep reading.
var ErrMalformedRecord = errors.New("malformed WARC record")

// Record types
const (
	TypeWarcinfo = "warcinfo"
	TypeResponse = "response"
	TypeRequest  = "request"
	TypeMetadata = "metadata"
	TypeResource = "resource"
)

const maxRecordSize = 64 << 20

// Record is one WARC record with its named headers and raw block
type Record struct {
	Version   string
	Type      string
	ID        string
	TargetURI string
	Date      string
	Header    textproto.MIMEHeader
	Content   []byte
}

// Reader iterates over the records of one archive
type Reader struct {
	br     *bufio.Reader
	closer []io.Closer
	resync bool
}

// Open opens a .warc or .warc.gz file. Gzip archives may hold one member per
// record; all members are read as one stream.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		r := NewReader(f)
		r.closer = append(r.closer, f)
		return r, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
	}
	r := NewReader(gz)
	r.closer = append(r.closer, gz, f)
	return r, nil
}

// NewReader reads uncompressed WARC data from r
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64<<10)}
}

// Close releases the underlying file and decompressor
func (r *Reader) Close() error {
	var firstErr error
	for _, c := range r.closer {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Next returns the next record, io.EOF at the end of the archive, or an
// error wrapping ErrMalformedRecord for a record that was skipped.
func (r *Reader) Next() (*Record, error) {
	version, err := r.versionLine()
	if err != nil {
		return nil, err
	}

	tp := textproto.NewReader(r.br)
	header, err := tp.ReadMIMEHeader()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated header: %v", ErrMalformedRecord, err)
		}
		r.resync = true
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	length, err := strconv.ParseInt(strings.TrimSpace(header.Get("Content-Length")), 10, 64)
	if err != nil || length < 0 || length > maxRecordSize {
		r.resync = true
		return nil, fmt.Errorf("%w: bad Content-Length %q", ErrMalformedRecord, header.Get("Content-Length"))
	}

	content := make([]byte, length)
	if _, err := io.ReadFull(r.br, content); err != nil {
		return nil, fmt.Errorf("%w: truncated block: %v", ErrMalformedRecord, err)
	}

	return &Record{
		Version:   version,
		Type:      header.Get("WARC-Type"),
		ID:        strings.Trim(header.Get("WARC-Record-ID"), "<>"),
		TargetURI: header.Get("WARC-Target-URI"),
		Date:      header.Get("WARC-Date"),
		Header:    header,
		Content:   content,
	}, nil
}

// versionLine skips the blank lines separating records, and after a
// malformed record any line until the next version line.
func (r *Reader) versionLine() (string, error) {
	for {
		line, err := r.br.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(trimmed, "WARC/") {
			r.resync = false
			return trimmed, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) && (strings.TrimSpace(line) == "" || r.resync) {
				return "", io.EOF
			}
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: trailing data %q", ErrMalformedRecord, trimmed)
			}
			return "", err
		}
		if trimmed == "" || r.resync {
			continue
		}
		r.resync = true
		return "", fmt.Errorf("%w: expected version line, got %q", ErrMalformedRecord, truncate(trimmed, 40))
	}
}

// Payload is the decoded HTTP response carried by a response record
type Payload struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// HTTPPayload parses the record block as an HTTP response and returns its
// body converted to UTF-8.
func (rec *Record) HTTPPayload() (*Payload, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(rec.Content)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTTP response for %s: %w", rec.TargetURI, err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress body for %s: %w", rec.TargetURI, err)
		}
		defer gz.Close()
		body = gz
	}

	contentType := resp.Header.Get("Content-Type")
	utf8Body, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode charset for %s: %w", rec.TargetURI, err)
	}
	data, err := io.ReadAll(utf8Body)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read body for %s: %w", rec.TargetURI, err)
	}

	return &Payload{StatusCode: resp.StatusCode, ContentType: contentType, Body: data}, nil
}

// IsHTML reports whether the payload content type is HTML
func (p *Payload) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
