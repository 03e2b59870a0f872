package kmsearch

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
)

type stubBackend struct {
	inFlight  int32
	maxInFlight int32
	byQuery   map[string]Result
}

func (s *stubBackend) Search(ctx context.Context, query, assistantKey string) (Result, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&s.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&s.maxInFlight, cur, n) {
			break
		}
	}
	return s.byQuery[query], nil
}

func item(id string, score float64) Item {
	raw, _ := json.Marshal(map[string]any{"documentId": id, "rerankerScore": score, "title": id})
	return Item{DocumentID: id, RerankerScore: score, Raw: raw}
}

func TestSearchMergesDedupesAndSortsByScore(t *testing.T) {
	backend := &stubBackend{byQuery: map[string]Result{
		"a": {Total: 2, Source: "svc", Data: []Item{item("doc-1", 0.5), item("doc-2", 0.9)}},
		"b": {Total: 1, Source: "svc", Data: []Item{item("doc-1", 0.8), item("doc-3", 0.7)}},
	}}
	c := New(backend)

	result, err := c.Search(context.Background(), []string{"a", "b"}, "assistant-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Data) != 3 {
		t.Fatalf("expected 3 deduplicated hits, got %d", len(result.Data))
	}
	if result.Data[0].DocumentID != "doc-2" || result.Data[0].RerankerScore != 0.9 {
		t.Errorf("expected doc-2 (score 0.9) first, got %+v", result.Data[0])
	}
	for _, it := range result.Data {
		if it.DocumentID == "doc-1" && it.RerankerScore != 0.8 {
			t.Errorf("expected doc-1 to keep its higher score 0.8, got %v", it.RerankerScore)
		}
	}
}

func TestSearchTruncatesToMaxResults(t *testing.T) {
	backend := &stubBackend{byQuery: map[string]Result{
		"a": {Data: []Item{item("doc-1", 0.9), item("doc-2", 0.8), item("doc-3", 0.7)}},
	}}
	c := New(backend)

	result, err := c.Search(context.Background(), []string{"a"}, "assistant-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Data) != 2 {
		t.Fatalf("expected truncation to 2 results, got %d", len(result.Data))
	}
}

func TestSearchDeduplicatesQueriesBeforeFanOut(t *testing.T) {
	calls := make(map[string]int)
	backend := &countingBackend{calls: calls}
	c := New(backend)

	if _, err := c.Search(context.Background(), []string{"map", "map", " map "}, "assistant-1", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls["map"] != 1 {
		t.Errorf("expected the query to be deduplicated to a single call, got %d", calls["map"])
	}
}

type countingBackend struct {
	calls map[string]int
}

func (b *countingBackend) Search(ctx context.Context, query, assistantKey string) (Result, error) {
	b.calls[query]++
	return Result{}, nil
}

func TestSearchBoundsConcurrencyToTen(t *testing.T) {
	queries := make([]string, 30)
	byQuery := make(map[string]Result, 30)
	for i := range queries {
		q := string(rune('a' + i%26))
		queries[i] = q + string(rune('0'+i/26))
		byQuery[queries[i]] = Result{}
	}
	backend := &stubBackend{byQuery: byQuery}
	c := New(backend)

	if _, err := c.Search(context.Background(), queries, "assistant-1", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.maxInFlight > maxConcurrentQueries {
		t.Errorf("expected at most %d concurrent queries, observed %d", maxConcurrentQueries, backend.maxInFlight)
	}
}
