// Package agentcore provides a small HTTP client for the awsagentd REST API.
package agentcore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. Agent turns can involve several tool round trips, so it
// is considerably longer than a plain REST call would need.
const DefaultHTTPTimeout = 120 * time.Second

// Client wraps the HTTP interactions with the awsagentd REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// ChatResponse is the result of one agent turn.
type ChatResponse struct {
	Result   string         `json:"result"`
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionInfo describes the active memory session.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	ActorID   string `json:"actor_id,omitempty"`
}

// HistoryResponse carries the rendered conversation history.
type HistoryResponse struct {
	SessionID string `json:"session_id"`
	ActorID   string `json:"actor_id"`
	History   string `json:"history"`
}

// ToolInfo is one entry of the tool catalogue.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("agentcore api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the awsagentd API. When httpClient is
// nil, a default client with a generous timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Chat sends one natural-language command and returns the agent's reply.
func (c *Client) Chat(ctx context.Context, prompt string) (ChatResponse, error) {
	var resp ChatResponse
	payload := map[string]string{"prompt": prompt}
	if err := c.post(ctx, "/api/v1/chat", payload, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

// RotateSession starts a fresh memory session, keeping the actor.
func (c *Client) RotateSession(ctx context.Context) (SessionInfo, error) {
	var info SessionInfo
	if err := c.post(ctx, "/api/v1/sessions/rotate", struct{}{}, &info); err != nil {
		return SessionInfo{}, err
	}
	return info, nil
}

// History fetches the rendered conversation history of the active session.
func (c *Client) History(ctx context.Context) (HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.get(ctx, "/api/v1/history", &resp); err != nil {
		return HistoryResponse{}, err
	}
	return resp, nil
}

// ListTools fetches the registered tool catalogue.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var resp struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := c.get(ctx, "/api/v1/tools", &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read error response: %w", readErr)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
