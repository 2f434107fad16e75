package client

// http_client.go = REST calls the CLI makes against the taskhub API.

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

	"taskhub/cmd/cli/dto"
	"taskhub/internal/reconcile"
)

// ErrUnauthorized is returned when the API rejects the stored token.
var ErrUnauthorized = errors.New("not authorized: run 'taskhub auth login' first")

// HTTPClient talks to the REST API with a bearer token.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// constructor for HTTP client
func NewHTTPClient(apiURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		token: token,
	}
}

// FetchUnread returns the caller's unread notifications, newest first.
func (c *HTTPClient) FetchUnread(ctx context.Context) ([]reconcile.Item, error) {
	return c.listNotifications(ctx, url.Values{"isRead": {"false"}})
}

// FetchAll returns every notification of the caller, read or not.
func (c *HTTPClient) FetchAll(ctx context.Context) ([]reconcile.Item, error) {
	return c.listNotifications(ctx, nil)
}

func (c *HTTPClient) listNotifications(ctx context.Context, query url.Values) ([]reconcile.Item, error) {
	endpoint := c.baseURL + "/api/notifications"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var items []reconcile.Item
	if err := c.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK, &items); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []reconcile.Item{}
	}
	return items, nil
}

// MarkRead flags one notification read on the server.
func (c *HTTPClient) MarkRead(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/api/notifications/%s/read", c.baseURL, url.PathEscape(id))
	if err := c.do(ctx, http.MethodPatch, endpoint, nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

func (c *HTTPClient) MarkAllRead(ctx context.Context) (int64, error) {
	var result dto.MarkAllReadResponse
	if err := c.do(ctx, http.MethodPatch, c.baseURL+"/api/notifications/read-all", nil, http.StatusOK, &result); err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.Updated, nil
}

// CreateComment posts a comment on a task; the server fans out notifications for it.
func (c *HTTPClient) CreateComment(ctx context.Context, taskID, content string) (*dto.CreateCommentResponse, error) {
	body, err := json.Marshal(dto.CreateCommentRequest{Content: content})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/api/tasks/%s/comments", c.baseURL, url.PathEscape(taskID))
	var result dto.CreateCommentResponse
	if err := c.do(ctx, http.MethodPost, endpoint, body, http.StatusCreated, &result); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &result, nil
}

// do sends one request and decodes the body into out when the status matches.
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte, want int, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // Ensure the response body is closed

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != want {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError surfaces the API's {"error": ...} message when there is one.
func statusError(resp *http.Response) error {
	var apiErr dto.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
	}
	return fmt.Errorf("unexpected status: %s", resp.Status)
}
