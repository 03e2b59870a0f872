package cloudtts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesizeReturnsPCMOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "<speak>hi</speak>" {
			t.Errorf("unexpected request body: %s", body)
		}
		if r.URL.Query().Get("voice") != "en-US-JennyNeural" {
			t.Errorf("expected voice query param, got %s", r.URL.RawQuery)
		}
		w.Write([]byte{1, 2, 3, 4})
	}))
	defer server.Close()

	c := New(server.URL, server.Client())
	pcm, err := c.Synthesize(context.Background(), "<speak>hi</speak>", "en-US-JennyNeural")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pcm) != 4 {
		t.Errorf("expected 4 bytes of PCM, got %d", len(pcm))
	}
}

func TestSynthesizeReturnsNilOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(server.URL, server.Client())
	pcm, err := c.Synthesize(context.Background(), "<speak>hi</speak>", "voice")
	if err != nil {
		t.Fatalf("expected a non-2xx status to be a silent miss, got error: %v", err)
	}
	if pcm != nil {
		t.Errorf("expected nil PCM on failure, got %d bytes", len(pcm))
	}
}
