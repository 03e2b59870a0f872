package tenant

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// templatePattern gates which URLs are worth caching: names that look
// like prompts/lexicons/system text, or that carry a text-ish extension.
var templatePattern = regexp.MustCompile(`(?i)(template|prompt|system|affirmation|validator)|\.(txt|md|json)$`)

// IsCacheable reports whether url looks like a template/prompt/lexicon
// asset worth caching, per the URL-text cache's gating rule.
func IsCacheable(url string) bool {
	return templatePattern.MatchString(url)
}

// URLTextCache fetches and caches small UTF-8 text assets (prompts,
// lexicons, phoneme dictionaries) addressed by URL.
type URLTextCache struct {
	cache  *TTLCache[string]
	client *http.Client
}

// NewURLTextCache wraps client with the standard TTL/early-refresh
// policy. Zero durations select the package defaults.
func NewURLTextCache(client *http.Client, ttl, earlyRefresh time.Duration) *URLTextCache {
	c := &URLTextCache{client: client}
	c.cache = New(c.fetch, ttl, earlyRefresh)
	return c
}

func (c *URLTextCache) fetch(url string) (string, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(body), ""), nil
}

// Get returns the cached text at url. Non-cacheable URLs (those that
// don't match the template/prompt naming convention) are fetched fresh
// every call, bypassing the cache entirely.
func (c *URLTextCache) Get(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", nil
	}
	if !IsCacheable(url) {
		return c.fetch(url)
	}
	return c.cache.Get(url)
}
