package tts

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/lokutor-ai/answerflow/internal/metrics"
)

const blobReadTimeout = 3 * time.Second

// BlobStore is the thread-safe object-store client the TTS cache reads
// and writes through. Reads are timeout-guarded by the caller; writes
// are fire-and-forget.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Cache is the per-phrase TTS blob cache: key = sha256(phoneme_text ∥
// language ∥ voice)[:16], stored at <language>/<safe voice>/<hash>.wav.
type Cache struct {
	store BlobStore
}

// NewCache wraps store with the cache's key/timeout policy.
func NewCache(store BlobStore) *Cache {
	return &Cache{store: store}
}

var safeVoiceChar = func(r rune) rune {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		return r
	default:
		return '_'
	}
}

// SafeVoiceName replaces every character outside [A-Za-z0-9_.-] with '_'.
func SafeVoiceName(voice string) string {
	return strings.Map(safeVoiceChar, voice)
}

// BlobHash computes the 16-hex-char cache key for a synthesized phrase.
func BlobHash(phonemeText, language, voice string) string {
	sum := sha256.Sum256([]byte(phonemeText + "\x00" + language + "\x00" + voice))
	return fmt.Sprintf("%x", sum)[:16]
}

// BlobPath builds the object-store key for a cache entry.
func BlobPath(language, voice, hash string) string {
	return language + "/" + SafeVoiceName(voice) + "/" + hash + ".wav"
}

// Get fetches a cached WAV blob, guarded by a 3s timeout. A miss or
// timeout both report ok=false; callers fall back to resynthesis.
func (c *Cache) Get(ctx context.Context, language, voice, phonemeText string) (data []byte, ok bool) {
	if c.store == nil {
		return nil, false
	}
	key := BlobPath(language, voice, BlobHash(phonemeText, language, voice))

	ctx, cancel := context.WithTimeout(ctx, blobReadTimeout)
	defer cancel()

	blob, found, err := c.store.Get(ctx, key)
	if err != nil || !found {
		metrics.TTSCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.TTSCacheHitsTotal.Inc()
	return blob, true
}

// PutAsync schedules a fire-and-forget write of a freshly synthesized
// phrase; the caller never waits on it.
func (c *Cache) PutAsync(language, voice, phonemeText string, data []byte) {
	if c.store == nil {
		return
	}
	key := BlobPath(language, voice, BlobHash(phonemeText, language, voice))
	go func() {
		_ = c.store.Put(context.Background(), key, data)
	}()
}
