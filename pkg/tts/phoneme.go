// Package tts implements the TTS Cache + Synthesizer (SSML construction,
// phoneme substitution, cloud synthesis, blob caching) and the TTS
// Streamer that buffers parsed voice text by the "<break/>" marker.
package tts

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PhonemeTerm is one entry fetched from a tenant's phoneme dictionary.
type PhonemeTerm struct {
	Term           string
	ReplacementTag string
}

// PhonemeFetcher retrieves the raw term list declared at a dictionary
// URL. Implementations perform the HTTP GET; this package only caches
// and length-sorts the result.
type PhonemeFetcher func(ctx context.Context, url string) ([]PhonemeTerm, error)

// PhonemeCache is the globally shared phoneme-pattern cache described
// in the supporting-caches design: a per-key mutex guards concurrent
// first loads, and results are cached by URL (raw term lists) and by
// (key, language) (length-sorted substitution term lists).
type PhonemeCache struct {
	fetch PhonemeFetcher

	mu          sync.Mutex
	keyLocks    map[string]*sync.Mutex
	rawByURL    map[string][]PhonemeTerm
	byKeyLang   map[string]map[string][]PhonemeTerm
}

// NewPhonemeCache creates an empty cache backed by fetch.
func NewPhonemeCache(fetch PhonemeFetcher) *PhonemeCache {
	return &PhonemeCache{
		fetch:     fetch,
		keyLocks:  make(map[string]*sync.Mutex),
		rawByURL:  make(map[string][]PhonemeTerm),
		byKeyLang: make(map[string]map[string][]PhonemeTerm),
	}
}

// DictionaryKey hashes a tenant's declared phoneme-dictionary URL set
// (global + per-language) into the cache's partition key.
func DictionaryKey(urls ...string) string {
	sorted := append([]string(nil), urls...)
	sort.Strings(sorted)
	h := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return fmt.Sprintf("%x", h)[:16]
}

func (c *PhonemeCache) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.keyLocks[key] = l
	}
	return l
}

// Patterns returns the substitution terms for language, loading and
// sorting them on first use. globalURL is always consulted as the
// fallback for languages with no dedicated dictionary. languageURLs
// maps language code to its dictionary URL, when the tenant declared
// one.
func (c *PhonemeCache) Patterns(ctx context.Context, key, globalURL string, languageURLs map[string]string, language string) ([]PhonemeTerm, error) {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	if langs, ok := c.byKeyLang[key]; ok {
		if terms, ok := langs[language]; ok {
			c.mu.Unlock()
			return terms, nil
		}
	}
	c.mu.Unlock()

	urls := []string{globalURL}
	if u, ok := languageURLs[language]; ok && u != "" {
		urls = append(urls, u)
	}

	var merged []PhonemeTerm
	for _, u := range urls {
		if u == "" {
			continue
		}
		terms, err := c.loadURL(ctx, u)
		if err != nil {
			return nil, err
		}
		merged = append(merged, terms...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return len(merged[i].Term) > len(merged[j].Term)
	})

	c.mu.Lock()
	if _, ok := c.byKeyLang[key]; !ok {
		c.byKeyLang[key] = make(map[string][]PhonemeTerm)
	}
	c.byKeyLang[key][language] = merged
	c.mu.Unlock()

	return merged, nil
}

func (c *PhonemeCache) loadURL(ctx context.Context, url string) ([]PhonemeTerm, error) {
	c.mu.Lock()
	if terms, ok := c.rawByURL[url]; ok {
		c.mu.Unlock()
		return terms, nil
	}
	c.mu.Unlock()

	terms, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rawByURL[url] = terms
	c.mu.Unlock()
	return terms, nil
}
