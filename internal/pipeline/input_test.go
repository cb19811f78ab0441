package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListInputFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.warc.gz", "a.warc.gz", "notes.txt", filepath.Join("2024", "c.warc.gz")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := ListInputFiles(dir, "*.warc.gz")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "2024", "c.warc.gz"),
		filepath.Join(dir, "a.warc.gz"),
		filepath.Join(dir, "b.warc.gz"),
	}, files)

	_, err = ListInputFiles(dir, "*.warc")
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = ListInputFiles(filepath.Join(dir, "missing"), "*.warc.gz")
	assert.Error(t, err)
}

func TestShard(t *testing.T) {
	files := []string{"f0", "f1", "f2", "f3", "f4"}
	tests := []struct {
		tasks, rank int
		want        []string
	}{
		{tasks: 1, rank: 0, want: files},
		{tasks: 2, rank: 0, want: []string{"f0", "f2", "f4"}},
		{tasks: 2, rank: 1, want: []string{"f1", "f3"}},
		{tasks: 3, rank: 2, want: []string{"f2"}},
		{tasks: 8, rank: 6, want: nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Shard(files, tt.tasks, tt.rank), "tasks=%d rank=%d", tt.tasks, tt.rank)
	}
}

func TestValidateInputs(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input")
	require.NoError(t, os.MkdirAll(in, 0o755))

	_, err := ValidateInputs(filepath.Join(dir, "missing"), "*.warc.gz", filepath.Join(dir, "out"))
	assert.Error(t, err)

	_, err = ValidateInputs(in, "*.warc.gz", filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, ErrNoInput)

	require.NoError(t, os.WriteFile(filepath.Join(in, "a.warc.gz"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.warc.gz"), nil, 0o644))
	n, err := ValidateInputs(in, "*.warc.gz", filepath.Join(dir, "out", "nested"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.DirExists(t, filepath.Join(dir, "out", "nested"))

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = ValidateInputs(file, "*.warc.gz", filepath.Join(dir, "out"))
	assert.Error(t, err)
}
