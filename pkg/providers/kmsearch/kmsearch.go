// Package kmsearch implements the Knowledge Search external-call
// adapter: a bounded-parallel fan-out of queries to a search service,
// merged by document id and truncated to the tenant's max_results.
package kmsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

const maxConcurrentQueries = 10

// Item is one knowledge-search hit. Only the two fields the merge
// policy needs are typed; everything else passes through verbatim so
// the client sees the search service's own shape, per the "km_result
// ... verbatim from search service" contract.
type Item struct {
	DocumentID    string          `json:"documentId"`
	RerankerScore float64         `json:"rerankerScore"`
	Raw           json.RawMessage `json:"-"`
}

// MarshalJSON re-emits the original payload so extra fields the search
// service sent are preserved byte-for-byte.
func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.Raw) > 0 {
		return i.Raw, nil
	}
	type alias Item
	return json.Marshal(alias(i))
}

func (i *Item) UnmarshalJSON(data []byte) error {
	i.Raw = append([]byte(nil), data...)
	var shape struct {
		DocumentID    string  `json:"documentId"`
		RerankerScore float64 `json:"rerankerScore"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	i.DocumentID = shape.DocumentID
	i.RerankerScore = shape.RerankerScore
	return nil
}

// Result is the search service's per-query response shape, and also
// the merged shape returned to the orchestrator — the km_result event
// forwards this verbatim.
type Result struct {
	Total   int    `json:"total"`
	Source  string `json:"source"`
	Answers []string `json:"answers,omitempty"`
	Data    []Item `json:"data"`
}

// Backend performs a single query against the search service.
type Backend interface {
	Search(ctx context.Context, query, assistantKey string) (Result, error)
}

// HTTPBackend POSTs {query, assistantKey} and expects a Result back.
type HTTPBackend struct {
	URL    string
	Client *http.Client
}

func (b *HTTPBackend) Search(ctx context.Context, query, assistantKey string) (Result, error) {
	body, err := json.Marshal(map[string]string{"query": query, "assistantKey": assistantKey})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("kmsearch: status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// Client fans queries out to a Backend, bounded to maxConcurrentQueries
// in flight at once, and merges the results.
type Client struct {
	backend Backend
}

func New(backend Backend) *Client {
	return &Client{backend: backend}
}

// Search runs one query per entry in queries (deduplicated, order
// preserved) against assistantKey, merges hits across all of them by
// documentId (keeping the highest rerankerScore per id), sorts
// descending by score, and truncates to maxResults.
func (c *Client) Search(ctx context.Context, queries []string, assistantKey string, maxResults int) (Result, error) {
	queries = dedupeStrings(queries)
	if len(queries) == 0 {
		return Result{Data: []Item{}}, nil
	}

	sem := make(chan struct{}, maxConcurrentQueries)
	var wg sync.WaitGroup
	results := make([]Result, len(queries))
	errs := make([]error, len(queries))

	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			r, err := c.backend.Search(ctx, q, assistantKey)
			results[i] = r
			errs[i] = err
		}(i, q)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Result{}, fmt.Errorf("kmsearch: %w", err)
		}
	}

	return mergeResults(results, maxResults), nil
}

func mergeResults(results []Result, maxResults int) Result {
	bestByID := make(map[string]Item)
	order := make([]string, 0)
	var sources []string
	var answers []string
	total := 0

	for _, r := range results {
		if r.Source != "" {
			sources = append(sources, r.Source)
		}
		answers = append(answers, r.Answers...)
		total += r.Total
		for _, item := range r.Data {
			existing, ok := bestByID[item.DocumentID]
			if !ok {
				order = append(order, item.DocumentID)
				bestByID[item.DocumentID] = item
				continue
			}
			if item.RerankerScore > existing.RerankerScore {
				bestByID[item.DocumentID] = item
			}
		}
	}

	merged := make([]Item, 0, len(order))
	for _, id := range order {
		merged = append(merged, bestByID[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RerankerScore > merged[j].RerankerScore
	})
	if maxResults > 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}

	return Result{
		Total:   total,
		Source:  strings.Join(dedupeStrings(sources), ","),
		Answers: answers,
		Data:    merged,
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
