// Package ai talks to the photo quality-assessment and image-edit services
// over JSON/HTTP.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aq2208/stitch-order-api/internal/usecase"
)

const maxResponseBytes = 32 << 20

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type client struct {
	url    string
	apiKey string
	http   *http.Client
}

func newClient(cfg Config) client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return client{url: cfg.URL, apiKey: cfg.APIKey, http: &http.Client{Timeout: timeout}}
}

// encodeImage returns the bare base64 payload. The media type travels in its
// own field, never as a data-URI prefix.
func encodeImage(img usecase.Upload) string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

func (c client) post(ctx context.Context, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s: status %d: %s", c.url, resp.StatusCode, bytes.TrimSpace(raw[:min(len(raw), 256)]))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
