package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestURLTextCacheCachesTemplateLikeNames(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("hello prompt text"))
	}))
	defer server.Close()

	c := NewURLTextCache(server.Client(), time.Minute, 30*time.Second)
	url := server.URL + "/system_prompt.txt"

	for i := 0; i < 3; i++ {
		text, err := c.Get(context.Background(), url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "hello prompt text" {
			t.Errorf("unexpected text: %q", text)
		}
	}
	if hits != 1 {
		t.Errorf("expected the cacheable URL to be fetched once, got %d", hits)
	}
}

func TestURLTextCacheBypassesNonTemplateURLs(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("audio-asset-bytes"))
	}))
	defer server.Close()

	c := NewURLTextCache(server.Client(), time.Minute, 30*time.Second)
	url := server.URL + "/assets/chime.wav"

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), url); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if hits != 3 {
		t.Errorf("expected a non-template URL to bypass the cache on every call, got %d", hits)
	}
}

func TestIsCacheable(t *testing.T) {
	cases := map[string]bool{
		"https://x/system_prompt.txt": true,
		"https://x/validator":         true,
		"https://x/affirmations.json": true,
		"https://x/audio/chime.wav":   false,
	}
	for url, want := range cases {
		if got := IsCacheable(url); got != want {
			t.Errorf("IsCacheable(%q) = %v, want %v", url, got, want)
		}
	}
}
