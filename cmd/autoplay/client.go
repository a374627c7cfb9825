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
	"time"

	"github.com/wricardo/tilematch/game/engine"
	"github.com/wricardo/tilematch/game/service"
)

// Client plays one session through the REST API
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionID is the session the client is playing
func (c *Client) SessionID() string { return c.sessionID }

// Use switches the client to an existing session
func (c *Client) Use(sessionID string) { c.sessionID = sessionID }

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

// CreateSession starts a new session and plays it from now on. A nil seed
// lets the server pick one.
func (c *Client) CreateSession(ctx context.Context, configID string, seed *uint64) (*service.SessionInfo, error) {
	req := map[string]interface{}{}
	if configID != "" {
		req["config_id"] = configID
	}
	if seed != nil {
		req["seed"] = *seed
	}

	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = info.ID
	return &info, nil
}

// GetSession fetches the current session
func (c *Client) GetSession(ctx context.Context) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodGet, c.sessionPath(""), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Hints lists up to limit moves, best first
func (c *Client) Hints(ctx context.Context, limit int) ([]engine.MatchSet, error) {
	var resp struct {
		Hints []engine.MatchSet `json:"hints"`
	}
	path := fmt.Sprintf("%s?limit=%d", c.sessionPath("/hint"), limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Hints, nil
}

// Select taps a cell and lets the board settle
func (c *Client) Select(ctx context.Context, p engine.Position) (*service.ActionResult, error) {
	req := map[string]interface{}{"x": p.X, "y": p.Y, "settle": true}
	var result service.ActionResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/select"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Swap exchanges two neighbours and lets the board settle
func (c *Client) Swap(ctx context.Context, a, b engine.Position) (*service.ActionResult, error) {
	req := map[string]interface{}{"a": a, "b": b, "settle": true}
	var result service.ActionResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/swap"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reset deals the session's opening board again
func (c *Client) Reset(ctx context.Context) (*engine.BoardView, error) {
	var resp struct {
		Board *engine.BoardView `json:"board"`
	}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return resp.Board, nil
}
