// Package syncclient pushes unlocked milestone tokens to a remote site
// instance that owns the account database.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type saveRequest struct {
	Tokens []string `json:"tokens"`
}

// SaveUserMilestones implements milestone.Syncer.
func (c *Client) SaveUserMilestones(ctx context.Context, userID string, tokens []string) (bool, error) {
	body, err := json.Marshal(saveRequest{Tokens: tokens})
	if err != nil {
		return false, err
	}
	endpoint := c.BaseURL + "/internal/users/" + url.PathEscape(userID) + "/milestones"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("sync milestones: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("sync milestones: unexpected status %d", resp.StatusCode)
	}
	return true, nil
}
