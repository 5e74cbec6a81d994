// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package hound is the client for the activity tracker HTTP API. Each
// tracked room stores the absolute URL of its challenge; all endpoints
// are relative to that URL.
package hound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/trailhound/challenger/lib/netutil"
	"github.com/trailhound/challenger/lib/secret"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Token authenticates requests to the tracker API. May be nil if
	// the tracker allows anonymous reads.
	Token *secret.Buffer
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
}

// Client fetches challenge data from the tracker service. A single
// Client is shared across all tracked rooms; the challenge URL is
// passed per call.
type Client struct {
	token      *secret.Buffer
	httpClient *http.Client
}

// NewClient creates a tracker API client.
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		token:      config.Token,
		httpClient: httpClient,
	}
}

// ValidateURL checks that raw is an absolute http(s) URL suitable for
// use as a challenge URL. Returns the normalized form with any trailing
// slash stripped.
func ValidateURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("hound: invalid challenge URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("hound: challenge URL %q must be http or https", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("hound: challenge URL %q missing host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// Challenge fetches the challenge description (name and targets) from
// the given challenge URL.
func (c *Client) Challenge(ctx context.Context, challengeURL string) (*Challenge, error) {
	var challenge Challenge
	if err := c.get(ctx, challengeURL, &challenge); err != nil {
		return nil, fmt.Errorf("hound: fetching challenge: %w", err)
	}
	return &challenge, nil
}

// Activities fetches the most recent activities for a challenge,
// newest first. The endpoint returns a bare JSON array. limit bounds
// the number returned; 0 uses the server default.
func (c *Client) Activities(ctx context.Context, challengeURL string, limit int) ([]Activity, error) {
	endpoint := challengeURL + "/activities"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var activities []Activity
	if err := c.get(ctx, endpoint, &activities); err != nil {
		return nil, fmt.Errorf("hound: fetching activities: %w", err)
	}
	return activities, nil
}

// Leaders fetches the challenge leaderboard, ordered by the tracker
// (typically descending distance).
func (c *Client) Leaders(ctx context.Context, challengeURL string) ([]LeaderboardEntry, error) {
	endpoint := challengeURL + "/leaders"
	var response struct {
		Leaders []LeaderboardEntry `json:"leaders"`
	}
	if err := c.get(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("hound: fetching leaders: %w", err)
	}
	return response.Leaders, nil
}

// get performs an authenticated GET and decodes the JSON response into
// target. Non-2xx responses become an *APIError.
func (c *Client) get(ctx context.Context, endpoint string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if c.token != nil {
		request.Header.Set("Authorization", "Bearer "+c.token.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &APIError{
			StatusCode: response.StatusCode,
			Endpoint:   endpoint,
			Body:       truncateBody(body),
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	return nil
}

// Close releases the token buffer. Idempotent.
func (c *Client) Close() error {
	if c.token != nil {
		return c.token.Close()
	}
	return nil
}

// APIError is a non-2xx response from the tracker service.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hound: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func truncateBody(body []byte) string {
	const maxErrorBody = 512
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
