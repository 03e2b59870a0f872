// Package cloudtts implements tts.CloudTTSClient against an external
// cloud text-to-speech HTTP service: POST the SSML document, read back
// raw 16 kHz/16-bit/mono PCM.
package cloudtts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Client POSTs SSML to a cloud TTS endpoint and returns raw PCM.
type Client struct {
	URL    string
	Client *http.Client
}

// New builds a Client against url using the given pooled http.Client.
func New(url string, client *http.Client) *Client {
	return &Client{URL: url, Client: client}
}

// Synthesize sends ssml as the request body and returns the raw PCM
// response, or nil (not an error) on a non-2xx status, so the caller
// can treat a TTS outage as a silent miss rather than a fatal failure.
func (c *Client) Synthesize(ctx context.Context, ssml string, voice string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader([]byte(ssml)))
	if err != nil {
		return nil, fmt.Errorf("cloudtts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.URL.RawQuery = "voice=" + voice

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudtts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cloudtts: read response: %w", err)
	}
	return pcm, nil
}
