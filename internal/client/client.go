package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

var (
	// ErrUnauthorized indicates the server rejected the session or trigger credential.
	ErrUnauthorized = errors.New("client: unauthorized")
	// ErrNotFound indicates the referenced resource does not exist for the caller.
	ErrNotFound = errors.New("client: not found")

	errMissingBaseURL = errors.New("client: base url is required")
)

// StatusError carries an unexpected HTTP status and the server's error code.
type StatusError struct {
	StatusCode int
	Code       string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("client: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("client: unexpected status %d: %s", e.StatusCode, e.Code)
}

type Config struct {
	BaseURL      string
	SessionToken string
	HTTPClient   *http.Client
}

// Client calls the habit tracker HTTP API.
type Client struct {
	baseURL      *url.URL
	sessionToken string
	httpClient   *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errMissingBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("client: invalid base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:      baseURL,
		sessionToken: cfg.SessionToken,
		httpClient:   httpClient,
	}, nil
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unread_count"`
}

type TriggerResult struct {
	Success            bool `json:"success"`
	RemindersProcessed int  `json:"reminders_processed"`
}

// ListNotifications returns the caller's most recent notifications.
func (c *Client) ListNotifications(ctx context.Context) (NotificationList, error) {
	var list NotificationList
	err := c.do(ctx, http.MethodGet, "notifications", c.sessionToken, nil, &list)
	return list, err
}

func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	path := "notifications/" + url.PathEscape(notificationID) + "/read"
	return c.do(ctx, http.MethodPost, path, c.sessionToken, nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	var response struct {
		Updated int `json:"updated"`
	}
	err := c.do(ctx, http.MethodPost, "notifications/read-all", c.sessionToken, nil, &response)
	return response.Updated, err
}

// TriggerReminders runs one reminder pass authenticated by the shared trigger secret.
func (c *Client) TriggerReminders(ctx context.Context, secret string) (TriggerResult, error) {
	var result TriggerResult
	err := c.do(ctx, http.MethodPost, "cron/reminders", secret, nil, &result)
	return result, err
}

func (c *Client) do(ctx context.Context, method string, path string, bearer string, body any, out any) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})

	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case response.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case response.StatusCode >= http.StatusBadRequest:
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(response.Body).Decode(&payload)
		return &StatusError{StatusCode: response.StatusCode, Code: payload.Error}
	}

	if out == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(out)
}
