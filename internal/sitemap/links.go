package sitemap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyOrigin is returned when the links file has no origin on its first line
var ErrEmptyOrigin = errors.New("first line (origin url) is empty")

// ReadOrigin returns the trimmed first line of a links file
func ReadOrigin(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open links file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read links file: %w", err)
		}
		return "", ErrEmptyOrigin
	}
	origin := strings.TrimSpace(scanner.Text())
	if origin == "" {
		return "", ErrEmptyOrigin
	}
	return origin, nil
}

// AppendLinks appends one link per line, first terminating an unfinished last line
func AppendLinks(path string, links []string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read links file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open links file: %w", err)
	}

	w := bufio.NewWriter(f)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		w.WriteByte('\n')
	}
	for _, link := range links {
		w.WriteString(link)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to append links: %w", err)
	}
	return f.Close()
}

// UpdateLinksFile discovers the sitemap links of the origin named on the
// first line of path and appends them to the file. It returns how many were added.
func UpdateLinksFile(ctx context.Context, path string, d *Discoverer) (int, error) {
	origin, err := ReadOrigin(path)
	if err != nil {
		return 0, err
	}
	links, err := d.Discover(ctx, origin)
	if err != nil {
		return 0, fmt.Errorf("sitemap discovery for %s failed: %w", origin, err)
	}
	if err := AppendLinks(path, links); err != nil {
		return 0, err
	}
	return len(links), nil
}
