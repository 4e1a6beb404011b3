package taskflowsdk

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

// Client is a minimal TaskFlow HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents the API user model.
type User struct {
	UserID            string `json:"user_id"`
	DisplayName       string `json:"display_name"`
	FarcasterUsername string `json:"farcaster_username,omitempty"`
	FarcasterFID      int64  `json:"farcaster_fid"`
}

// Task represents the API task model.
type Task struct {
	TaskID      string  `json:"task_id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	DueDate     string  `json:"due_date"`
	IsCompleted bool    `json:"is_completed"`
	ProjectID   *string `json:"project_id,omitempty"`
}

// Project represents the API project model.
type Project struct {
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

// Subscription represents a feature grant.
type Subscription struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	FeatureType string  `json:"feature_type"`
	IsActive    bool    `json:"is_active"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
}

// AuthResult carries the session token from a sign-in.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login signs in with a Farcaster signed message and stores the session
// token on the client.
func (c *Client) Login(ctx context.Context, fid int64, signature, message string) (AuthResult, error) {
	body := map[string]any{
		"fid":       fid,
		"signature": signature,
		"message":   message,
	}
	var resp AuthResult
	if err := c.do(ctx, http.MethodPost, "auth/farcaster", body, &resp); err != nil {
		return AuthResult{}, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title, description string) (Task, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// Tasks lists the caller's tasks.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (Task, error) {
	body := map[string]any{"is_completed": true}
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	endpoint := fmt.Sprintf("tasks/%s", url.PathEscape(taskID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// CreateProject creates a project. Requires the project_linking feature.
func (c *Client) CreateProject(ctx context.Context, title, description string) (Project, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

// Projects lists the caller's projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp, err
}

// PurchaseFeature records a completed purchase and activates the grant.
func (c *Client) PurchaseFeature(ctx context.Context, featureType, txHash string) ([]Subscription, error) {
	body := map[string]any{
		"feature_type": featureType,
		"tx_hash":      txHash,
	}
	var resp []Subscription
	err := c.do(ctx, http.MethodPost, "subscriptions", body, &resp)
	return resp, err
}

// Subscriptions lists the caller's active grants.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var resp []Subscription
	err := c.do(ctx, http.MethodGet, "subscriptions", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/api/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
