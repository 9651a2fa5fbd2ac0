// Package weather looks up the current weather condition for a location
// from an HTTP endpoint, answering with a fixed fallback whenever the
// endpoint is slow, down, or unconfigured.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ghatsafe/ghatsafe/internal/monitoring"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Defaults used when the corresponding Client field is zero.
const (
	DefaultTimeout  = 2 * time.Second
	DefaultFallback = "Clear"
)

// ErrNotConfigured is returned by Lookup when no endpoint is set.
var ErrNotConfigured = errors.New("weather endpoint not configured")

// Client queries BaseURL?location=<name> and expects {"condition": "..."}.
type Client struct {
	BaseURL  string
	HTTP     Doer
	Timeout  time.Duration
	Fallback string
}

// Source says whether a report came from the endpoint.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Report is the answer for one location.
type Report struct {
	Location  string `json:"location"`
	Condition string `json:"condition"`
	Source    Source `json:"source"`
}

// Current returns the live condition, or the fallback on any failure.
func (c *Client) Current(ctx context.Context, location string) Report {
	cond, err := c.Lookup(ctx, location)
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			monitoring.Logf("weather: %s: %v; using %q", location, err, c.fallback())
		}
		return Report{Location: location, Condition: c.fallback(), Source: SourceFallback}
	}
	return Report{Location: location, Condition: cond, Source: SourceLive}
}

// Lookup queries the endpoint once, bounded by the client timeout.
func (c *Client) Lookup(ctx context.Context, location string) (string, error) {
	if c == nil || c.BaseURL == "" {
		return "", ErrNotConfigured
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse weather url: %w", err)
	}
	q := u.Query()
	q.Set("location", location)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	doer := c.HTTP
	if doer == nil {
		doer = http.DefaultClient
	}
	resp, err := doer.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Condition string `json:"condition"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode weather response: %w", err)
	}
	cond := strings.TrimSpace(body.Condition)
	if cond == "" {
		return "", errors.New("weather response has no condition")
	}
	return cond, nil
}

func (c *Client) fallback() string {
	if c == nil || c.Fallback == "" {
		return DefaultFallback
	}
	return c.Fallback
}
