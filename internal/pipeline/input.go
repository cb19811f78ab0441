package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoInput is returned when the input folder holds no matching archive
var ErrNoInput = errors.New("no input files")

// ListInputFiles walks dir and returns the files whose base name matches
// pattern, sorted so sharding is stable across runs.
func ListInputFiles(dir, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w matching %q in %s", ErrNoInput, pattern, dir)
	}
	sort.Strings(files)
	return files, nil
}

// Shard returns the files assigned to rank out of tasks, round-robin
func Shard(files []string, tasks, rank int) []string {
	var shard []string
	for i := rank; i < len(files); i += tasks {
		shard = append(shard, files[i])
	}
	return shard
}

// ValidateInputs checks that the input folder exists and holds archives and
// that the output folder can be created. It returns the number of archives.
func ValidateInputs(inputDir, pattern, outputDir string) (int, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return 0, fmt.Errorf("input directory not found: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("input path %s is not a directory", inputDir)
	}
	files, err := ListInputFiles(inputDir, pattern)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	return len(files), nil
}
