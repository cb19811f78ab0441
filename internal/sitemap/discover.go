// Package sitemap discovers article URLs of a site from its robots.txt and sitemaps.
package sitemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"

	"github.com/Fatnaoui/crawler-project/pkg/logging"
	"github.com/Fatnaoui/crawler-project/pkg/ratelimit"
)

// ErrInvalidOrigin is returned for origins that are not absolute http(s) URLs
var ErrInvalidOrigin = errors.New("invalid origin url")

const maxSitemapBytes = 50 << 20

var defaultSitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml"}

var cdataStripper = strings.NewReplacer("<![CDATA[", "", "]]>", "")

// Config holds discovery settings
type Config struct {
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxSitemaps       int
}

// Discoverer walks sitemap indexes and collects page URLs of one host
type Discoverer struct {
	cfg     Config
	client  *http.Client
	limiter *ratelimit.HostLimiter
	logger  zerolog.Logger
}

// Option configures a Discoverer
type Option func(*Discoverer)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(d *Discoverer) { d.client = client }
}

// NewDiscoverer creates a discoverer
func NewDiscoverer(cfg Config, opts ...Option) *Discoverer {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "darija-curate/1.0"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxSitemaps <= 0 {
		cfg.MaxSitemaps = 500
	}

	d := &Discoverer{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:  logging.GetLogger("sitemap"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns per-host request statistics
func (d *Discoverer) Stats() map[string]ratelimit.HostStats {
	return d.limiter.GetStats()
}

// Discover returns the deduplicated page URLs listed in the sitemaps of origin.
// Sitemaps come from robots.txt, falling back to the usual locations. Links
// pointing at other hosts are dropped.
func (d *Discoverer) Discover(ctx context.Context, origin string) ([]string, error) {
	base, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrigin, origin)
	}
	root := base.Scheme + "://" + base.Host

	robots := d.fetchRobots(ctx, root)

	var queue []string
	if isSitemapURL(base) {
		queue = append(queue, base.String())
	} else if robots != nil && len(robots.Sitemaps) > 0 {
		queue = append(queue, robots.Sitemaps...)
	} else {
		for _, p := range defaultSitemapPaths {
			queue = append(queue, root+p)
		}
	}

	seenSitemaps := make(map[string]bool)
	seenLinks := make(map[string]bool)
	var links []string
	fetched := 0

	for len(queue) > 0 && fetched < d.cfg.MaxSitemaps {
		if err := ctx.Err(); err != nil {
			return links, err
		}
		current := queue[0]
		queue = queue[1:]
		if seenSitemaps[current] {
			continue
		}
		seenSitemaps[current] = true

		u, err := url.Parse(current)
		if err != nil || !sameHost(u.Host, base.Host) {
			d.logger.Debug().Str("sitemap", current).Msg("Skipping foreign sitemap")
			continue
		}
		if robots != nil && !robots.TestAgent(u.EscapedPath(), d.cfg.UserAgent) {
			d.logger.Info().Str("sitemap", current).Msg("Sitemap disallowed by robots.txt")
			continue
		}

		body, err := d.fetch(ctx, u)
		fetched++
		if err != nil {
			if ctx.Err() != nil {
				return links, ctx.Err()
			}
			d.logger.Warn().Err(err).Str("sitemap", current).Msg("Failed to fetch sitemap")
			continue
		}

		children, pages, err := parseSitemap(body)
		if err != nil {
			d.logger.Warn().Err(err).Str("sitemap", current).Msg("Failed to parse sitemap")
			continue
		}
		queue = append(queue, children...)

		for _, page := range pages {
			pu, err := url.Parse(page)
			if err != nil || !sameHost(pu.Host, base.Host) || seenLinks[page] {
				continue
			}
			seenLinks[page] = true
			links = append(links, page)
		}

		d.logger.Debug().
			Str("sitemap", current).
			Int("children", len(children)).
			Int("pages", len(pages)).
			Msg("Sitemap processed")
	}

	d.logger.Info().
		Str("origin", origin).
		Int("sitemaps", fetched).
		Int("links", len(links)).
		Msg("Sitemap discovery finished")
	return links, nil
}

func (d *Discoverer) fetchRobots(ctx context.Context, root string) *robotstxt.RobotsData {
	u, err := url.Parse(root + "/robots.txt")
	if err != nil {
		return nil
	}
	body, err := d.fetch(ctx, u)
	if err != nil {
		d.logger.Debug().Err(err).Str("url", u.String()).Msg("No usable robots.txt")
		return nil
	}
	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		d.logger.Warn().Err(err).Str("url", u.String()).Msg("Failed to parse robots.txt")
		return nil
	}
	return robots
}

func (d *Discoverer) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := d.limiter.Wait(ctx, u.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		d.limiter.RecordError(u.Host)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			d.limiter.RecordError(u.Host)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	d.limiter.RecordSuccess(u.Host)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// parseSitemap splits a sitemap into child sitemaps and page URLs.
// Gzipped, XML and plain-text sitemaps are accepted.
func parseSitemap(body []byte) (children, pages []string, err error) {
	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip sitemap: %w", err)
		}
		defer zr.Close()
		body, err = io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress sitemap: %w", err)
		}
	}

	text := string(body)
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "<urlset") && !strings.Contains(lower, "<sitemapindex") {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
				pages = append(pages, line)
			}
		}
		return nil, pages, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cdataStripper.Replace(text)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse sitemap xml: %w", err)
	}
	doc.Find("sitemap > loc").Each(func(_ int, s *goquery.Selection) {
		if loc := strings.TrimSpace(s.Text()); loc != "" {
			children = append(children, loc)
		}
	})
	doc.Find("url > loc").Each(func(_ int, s *goquery.Selection) {
		if loc := strings.TrimSpace(s.Text()); loc != "" {
			pages = append(pages, loc)
		}
	})
	return children, pages, nil
}

func isSitemapURL(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, ".xml") || strings.HasSuffix(p, ".xml.gz") || strings.Contains(p, "sitemap")
}

func sameHost(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") == strings.TrimPrefix(strings.ToLower(b), "www.")
}
