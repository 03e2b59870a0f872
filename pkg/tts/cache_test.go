package tts

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func TestSafeVoiceNameReplacesUnsafeChars(t *testing.T) {
	if got := SafeVoiceName("en-US/Jenny Neural!"); got != "en-US_Jenny_Neural_" {
		t.Errorf("unexpected safe voice name: %q", got)
	}
}

func TestBlobPathLayout(t *testing.T) {
	path := BlobPath("en-US", "Jenny Neural", "abc123")
	if path != "en-US/Jenny_Neural/abc123.wav" {
		t.Errorf("unexpected blob path: %q", path)
	}
}

func TestCacheGetMissThenHitAfterPutAsync(t *testing.T) {
	store := newMemStore()
	c := NewCache(store)

	if _, ok := c.Get(context.Background(), "en-US", "voice-a", "hello"); ok {
		t.Fatal("expected a miss before any write")
	}

	c.PutAsync("en-US", "voice-a", "hello", []byte("wav-bytes"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if data, ok := c.Get(context.Background(), "en-US", "voice-a", "hello"); ok {
			if string(data) != "wav-bytes" {
				t.Fatalf("unexpected cached bytes: %q", data)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected the async write to become visible within the deadline")
}

func TestCacheGetWithNilStoreIsAlwaysMiss(t *testing.T) {
	c := NewCache(nil)
	if _, ok := c.Get(context.Background(), "en-US", "voice-a", "hello"); ok {
		t.Fatal("expected a miss with no backing store")
	}
}
