package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/blackmichael/reader-tagsfeed/internal/stream"
)

// apiClient is a thin client for the tags feed server's HTTP API.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

type apiError struct {
	Status  int
	Type    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type tagsBody struct {
	Tags []stream.TagMessage `json:"tags"`
}

type actionBody struct {
	Action string `json:"action"`
	Tag    string `json:"tag,omitempty"`
	PostID int64  `json:"post_id,omitempty"`
	BlogID int64  `json:"blog_id,omitempty"`
}

func (c *apiClient) Feed(ctx context.Context) (*stream.SnapshotMessage, error) {
	var snap stream.SnapshotMessage
	if err := c.do(ctx, http.MethodGet, "/v1/feed", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Start starts the feed with the given tags, or with the server's followed
// tags when tags is nil.
func (c *apiClient) Start(ctx context.Context, tags []stream.TagMessage) (*stream.SnapshotMessage, error) {
	var snap stream.SnapshotMessage
	if err := c.do(ctx, http.MethodPost, "/v1/feed/start", tagsBody{Tags: tags}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) Action(ctx context.Context, action actionBody) error {
	return c.do(ctx, http.MethodPost, "/v1/feed/actions", action, nil)
}

func (c *apiClient) Tags(ctx context.Context) ([]stream.TagMessage, error) {
	var body tagsBody
	if err := c.do(ctx, http.MethodGet, "/v1/tags", nil, &body); err != nil {
		return nil, err
	}
	return body.Tags, nil
}

func (c *apiClient) SetTags(ctx context.Context, tags []stream.TagMessage) error {
	return c.do(ctx, http.MethodPut, "/v1/tags", tagsBody{Tags: tags}, nil)
}

// StreamURL returns the websocket URL of the feed event stream.
func (c *apiClient) StreamURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/v1/feed/stream")
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
