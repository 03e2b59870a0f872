package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPStoreDecodesRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tenant-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Record{
			TenantID: "tenant-1",
			Configs:  map[string]Config{"default": {ConfigID: "default", DefaultLanguage: "en"}},
		})
	}))
	defer server.Close()

	s := NewHTTPStore(server.URL, server.Client())
	rec, err := s.GetTenant(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.TenantID != "tenant-1" {
		t.Errorf("unexpected tenant id: %q", rec.TenantID)
	}
	if rec.Configs["default"].DefaultLanguage != "en" {
		t.Errorf("unexpected config: %+v", rec.Configs["default"])
	}
}

func TestHTTPStoreEscapesTenantIDInPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/tenant%2Fslash" {
			t.Errorf("expected escaped path, got %s", r.URL.EscapedPath())
		}
		json.NewEncoder(w).Encode(Record{TenantID: "tenant/slash"})
	}))
	defer server.Close()

	s := NewHTTPStore(server.URL, server.Client())
	if _, err := s.GetTenant(context.Background(), "tenant/slash"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHTTPStoreNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := NewHTTPStore(server.URL, server.Client())
	if _, err := s.GetTenant(context.Background(), "missing"); err == nil {
		t.Fatal("expected a not-found error")
	}
}

func TestHTTPStoreNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewHTTPStore(server.URL, server.Client())
	if _, err := s.GetTenant(context.Background(), "tenant-1"); err == nil {
		t.Fatal("expected an error on 500")
	}
}
