// Package extractor talks to the third-party media-extraction service that
// turns a social-media URL into a list of downloadable media variants.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Media is one variant in the upstream response.
type Media struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Bandwidth int64  `json:"bandwidth"`
	Extension string `json:"extension,omitempty"`
	IsAudio   bool   `json:"is_audio,omitempty"`
}

// Response is the upstream service's envelope. StatusCode is the service's
// own status field, not the HTTP status.
type Response struct {
	StatusCode int     `json:"statusCode"`
	Medias     []Media `json:"medias"`
}

// Client wraps calls to the extraction service.
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    *rate.Limiter
}

// NewClient creates a client for the given endpoint. The endpoint is a URL
// prefix the encoded target is appended to (".../?url="). ratePerSec caps
// outbound calls; 0 disables the limiter.
func NewClient(endpoint string, timeout time.Duration, ratePerSec int) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: endpoint,
	}
	if ratePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return c
}

// Extract asks the service for the media variants of targetURL. The target is
// percent-encoded with no characters left bare, matching what the service
// expects in its url query parameter.
func (c *Client) Extract(ctx context.Context, targetURL string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	reqURL := c.endpoint + url.QueryEscape(targetURL)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "MediaRelay/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		// Truncate body to avoid flooding logs with HTML
		errMsg := string(body)
		if len(errMsg) > 200 {
			errMsg = errMsg[:200] + "..."
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, errMsg)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}
