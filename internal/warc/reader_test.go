package warc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const htmlResponse = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>Salam</title></head><body><p>واش كاين شي جديد؟</p></body></html>"

func buildRecord(typ, id, uri, block string) string {
	var b strings.Builder
	b.WriteString("WARC/1.0\r\n")
	fmt.Fprintf(&b, "WARC-Type: %s\r\n", typ)
	fmt.Fprintf(&b, "WARC-Record-ID: <urn:uuid:%s>\r\n", id)
	if uri != "" {
		fmt.Fprintf(&b, "WARC-Target-URI: %s\r\n", uri)
	}
	b.WriteString("WARC-Date: 2024-05-01T10:00:00Z\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(block))
	b.WriteString("\r\n")
	b.WriteString(block)
	b.WriteString("\r\n\r\n")
	return b.String()
}

func readAll(t *testing.T, r *Reader) ([]*Record, int) {
	t.Helper()
	var records []*Record
	malformed := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, malformed
		}
		if errors.Is(err, ErrMalformedRecord) {
			malformed++
			continue
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

func TestReaderParsesRecords(t *testing.T) {
	data := buildRecord(TypeWarcinfo, "info-1", "", "software: test\r\n") +
		buildRecord(TypeRequest, "req-1", "https://hespress.com/a", "GET /a HTTP/1.1\r\n\r\n") +
		buildRecord(TypeResponse, "resp-1", "https://hespress.com/a", htmlResponse)

	records, malformed := readAll(t, NewReader(strings.NewReader(data)))
	require.Len(t, records, 3)
	assert.Zero(t, malformed)

	resp := records[2]
	assert.Equal(t, "WARC/1.0", resp.Version)
	assert.Equal(t, TypeResponse, resp.Type)
	assert.Equal(t, "urn:uuid:resp-1", resp.ID)
	assert.Equal(t, "https://hespress.com/a", resp.TargetURI)
	assert.Equal(t, "2024-05-01T10:00:00Z", resp.Date)
	assert.Equal(t, htmlResponse, string(resp.Content))
}

func TestReaderSkipsMalformedRecords(t *testing.T) {
	data := buildRecord(TypeResponse, "ok-1", "https://a.ma/1", htmlResponse) +
		"garbage line\r\nmore junk\r\n" +
		"WARC/1.0\r\nWARC-Type: response\r\nContent-Length: abc\r\n\r\nlost body\r\n\r\n" +
		buildRecord(TypeResponse, "ok-2", "https://a.ma/2", htmlResponse)

	records, malformed := readAll(t, NewReader(strings.NewReader(data)))
	require.Len(t, records, 2)
	assert.Equal(t, 2, malformed)
	assert.Equal(t, "urn:uuid:ok-1", records[0].ID)
	assert.Equal(t, "urn:uuid:ok-2", records[1].ID)
}

func TestReaderTruncatedBlock(t *testing.T) {
	full := buildRecord(TypeResponse, "cut", "https://a.ma/cut", htmlResponse)
	data := full[:len(full)-40]

	r := NewReader(strings.NewReader(data))
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrMalformedRecord)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenMultiMemberGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.warc.gz")

	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte(buildRecord(TypeResponse, fmt.Sprintf("r-%d", i), fmt.Sprintf("https://a.ma/%d", i), htmlResponse)))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	records, malformed := readAll(t, r)
	assert.Zero(t, malformed)
	require.Len(t, records, 3)
	assert.Equal(t, "https://a.ma/2", records[2].TargetURI)
}

func TestOpenPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.warc")
	require.NoError(t, os.WriteFile(path, []byte(buildRecord(TypeResponse, "p", "https://a.ma/p", htmlResponse)), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	records, _ := readAll(t, r)
	require.Len(t, records, 1)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.warc.gz"))
	assert.Error(t, err)
}

func TestHTTPPayload(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		status   int
		html     bool
		contains string
	}{
		{
			name:     "UTF8",
			block:    htmlResponse,
			status:   200,
			html:     true,
			contains: "واش كاين شي جديد؟",
		},
		{
			name: "Latin1",
			block: "HTTP/1.1 200 OK\r\nContent-Type: text/html; charset=iso-8859-1\r\n\r\n" +
				"<html><body><p>caf\xe9 au lait</p></body></html>",
			status:   200,
			html:     true,
			contains: "café au lait",
		},
		{
			name:     "NotFoundJSON",
			block:    "HTTP/1.1 404 Not Found\r\nContent-Type: application/json\r\n\r\n{}",
			status:   404,
			html:     false,
			contains: "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{Type: TypeResponse, TargetURI: "https://a.ma", Content: []byte(tt.block)}
			p, err := rec.HTTPPayload()
			require.NoError(t, err)
			assert.Equal(t, tt.status, p.StatusCode)
			assert.Equal(t, tt.html, p.IsHTML())
			assert.Contains(t, string(p.Body), tt.contains)
		})
	}
}

func TestHTTPPayloadGzipBody(t *testing.T) {
	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	_, err := zw.Write([]byte("<p>mrehba</p>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	block := "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Encoding: gzip\r\n\r\n" + body.String()
	rec := &Record{Content: []byte(block)}
	p, err := rec.HTTPPayload()
	require.NoError(t, err)
	assert.Equal(t, "<p>mrehba</p>", string(p.Body))
}

func TestHTTPPayloadInvalid(t *testing.T) {
	rec := &Record{Content: []byte("not an http response")}
	_, err := rec.HTTPPayload()
	assert.Error(t, err)
}
