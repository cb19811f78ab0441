package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fatnaoui/crawler-project/internal/sink"
	"github.com/Fatnaoui/crawler-project/pkg/document"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"darija-curate"}, args...))
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input")
	require.NoError(t, os.MkdirAll(in, 0o755))

	_, err := runCLI(t, "validate", "--input", in, "--output", filepath.Join(dir, "output"))
	assert.Error(t, err, "empty input folder")

	require.NoError(t, os.WriteFile(filepath.Join(in, "crawl.warc.gz"), nil, 0o644))
	out, err := runCLI(t, "validate", "--input", in, "--output", filepath.Join(dir, "output"))
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 WARC files to process")
	assert.DirExists(t, filepath.Join(dir, "output"))

	_, err = runCLI(t, "validate", "--input", in, "--tasks", "0")
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00000.jsonl.gz")
	w := sink.NewWriter(path)
	doc := document.New("السلام عليكم، هادي غير تجربة صغيرة")
	doc.ID = "doc-1"
	doc.Meta()[document.MetaURL] = "https://a.ma/1"
	doc.Meta()[document.MetaFilterReason] = "gopher_short_doc"
	require.NoError(t, w.Write(doc))
	require.NoError(t, w.Write(document.New("second")))
	require.NoError(t, w.Close())

	out, err := runCLI(t, "inspect", "--n", "1", "--chars", "6", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ID:     doc-1")
	assert.Contains(t, out, "URL:    https://a.ma/1")
	assert.Contains(t, out, "Reason: gopher_short_doc")
	assert.Contains(t, out, "السلام...")
	assert.Contains(t, out, "1 documents shown")
	assert.NotContains(t, out, "second")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", preview("abc", 0))
	assert.Equal(t, "abc", preview("abc", 3))
	assert.Equal(t, "ab...", preview("abc", 2))
}
