package tts

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestPhonemeCachePatternsAreSortedLongestFirst(t *testing.T) {
	fetch := func(ctx context.Context, url string) ([]PhonemeTerm, error) {
		return []PhonemeTerm{
			{Term: "a", ReplacementTag: "<a/>"},
			{Term: "abcdef", ReplacementTag: "<abcdef/>"},
			{Term: "abc", ReplacementTag: "<abc/>"},
		}, nil
	}
	c := NewPhonemeCache(fetch)

	terms, err := c.Patterns(context.Background(), "k1", "https://x/global.json", nil, "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(terms) != 3 || terms[0].Term != "abcdef" || terms[2].Term != "a" {
		t.Fatalf("expected longest-first ordering, got %v", terms)
	}
}

func TestPhonemeCacheFetchesEachURLOnce(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context, url string) ([]PhonemeTerm, error) {
		atomic.AddInt32(&calls, 1)
		return []PhonemeTerm{{Term: "x", ReplacementTag: "<x/>"}}, nil
	}
	c := NewPhonemeCache(fetch)

	for i := 0; i < 3; i++ {
		if _, err := c.Patterns(context.Background(), "k1", "https://x/global.json", nil, "en-US"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("expected a single fetch across repeated calls, got %d", calls)
	}
}

func TestPhonemeCacheMergesGlobalAndLanguageSpecificURLs(t *testing.T) {
	fetch := func(ctx context.Context, url string) ([]PhonemeTerm, error) {
		if url == "https://x/global.json" {
			return []PhonemeTerm{{Term: "global", ReplacementTag: "<g/>"}}, nil
		}
		return []PhonemeTerm{{Term: "thai-term", ReplacementTag: "<t/>"}}, nil
	}
	c := NewPhonemeCache(fetch)

	terms, err := c.Patterns(context.Background(), "k1", "https://x/global.json",
		map[string]string{"th-TH": "https://x/th.json"}, "th-TH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected both the global and language dictionary merged, got %v", terms)
	}
}

func TestDictionaryKeyIsOrderIndependent(t *testing.T) {
	a := DictionaryKey("https://x/global.json", "https://x/th.json")
	b := DictionaryKey("https://x/th.json", "https://x/global.json")
	if a != b {
		t.Errorf("expected DictionaryKey to be order-independent, got %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected a 16-char key, got %d chars", len(a))
	}
}
