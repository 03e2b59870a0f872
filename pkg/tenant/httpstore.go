package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// HTTPStore resolves tenant records from a REST backend keyed by
// tenant id, mirroring the same fetch-and-decode shape as the other
// external-call adapters (validator, knowledge search, cloud TTS).
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore builds a Store backed by GET <baseURL>/<tenantID>.
func NewHTTPStore(baseURL string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{baseURL: baseURL, client: client}
}

func (s *HTTPStore) GetTenant(ctx context.Context, tenantID string) (Record, error) {
	endpoint := s.baseURL + "/" + url.PathEscape(tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Record{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("tenant: fetching %s: %w", tenantID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Record{}, fmt.Errorf("tenant: %q not found", tenantID)
	}
	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("tenant: fetching %s: status %d", tenantID, resp.StatusCode)
	}

	var record Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return Record{}, fmt.Errorf("tenant: decoding %s: %w", tenantID, err)
	}
	return record, nil
}
