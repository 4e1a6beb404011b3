// Package farcaster talks to the Neynar API for frame signature
// validation and profile lookups.
package farcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

type Profile struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
}

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}
}

// VerifySignature asks Neynar whether a signed frame message is valid.
func (c *Client) VerifySignature(ctx context.Context, messageBytes string) (bool, error) {
	body := strings.NewReader(fmt.Sprintf(`{"message_bytes_in_hex":%q}`, messageBytes))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/farcaster/frame/validate", body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_key", c.APIKey)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("neynar validate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("neynar validate: decode: %w", err)
	}
	return out.Valid, nil
}

// UserByFID fetches the profile for a Farcaster ID.
func (c *Client) UserByFID(ctx context.Context, fid int64) (Profile, error) {
	url := fmt.Sprintf("%s/farcaster/user/bulk?fids=%d", c.BaseURL, fid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("api_key", c.APIKey)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Profile{}, fmt.Errorf("neynar user lookup: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out struct {
		Users []Profile `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Profile{}, fmt.Errorf("neynar user lookup: decode: %w", err)
	}
	if len(out.Users) == 0 {
		return Profile{}, fmt.Errorf("neynar user lookup: no user for fid %d", fid)
	}
	return out.Users[0], nil
}
