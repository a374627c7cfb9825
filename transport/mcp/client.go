package mcp

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

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/tilematch/game/engine"
	"github.com/wricardo/tilematch/game/service"
	"github.com/wricardo/tilematch/logger"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Tilematch",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Tilematch - MCP Interface

Every tool proxies to the REST API server.

Boards are grids of coloured tokens shown as letters (A, B, C, ...). Column x
runs left to right, row y runs bottom to top, so (0,0) is the bottom-left
cell. Removed tokens leave gaps that the tokens above fall into, and new
tokens drop in from the top.

AVAILABLE TOOLS:
- create_session: Create a board session (optional config and seed)
- list_sessions / get_session: Inspect sessions
- board_state: Current board, state and score
- select_token: Tap a token (tap boards) or pick a swap partner (swap boards)
- bulk_select: Several taps in one call
- swap_tokens: Swap two adjacent tokens (swap boards)
- tick / settle: Advance animations by hand or play them out
- hint: Largest groups (tap) or productive swaps (swap)
- describe_cell: Token, group and neighbours of one cell
- reset_board: Deal the session's opening board again
- move_history: Past actions
- list_configs: Available board configurations
- game_instructions: Rules and scoring`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func coordinateProperty(axis string) map[string]interface{} {
	desc := "Column, 0 is the leftmost"
	if axis == "y" {
		desc = "Row, 0 is the bottom"
	}
	return map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"description": desc,
	}
}

func positionProperty(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": desc,
		"properties": map[string]interface{}{
			"x": coordinateProperty("x"),
			"y": coordinateProperty("y"),
		},
		"required": []string{"x", "y"},
	}
}

func settleProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": "Play the resulting animations out before returning (default true)",
	}
}

func sessionOnly() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"session_id": sessionProperty(),
		},
		Required: []string{"session_id"},
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new board session with optional config and seed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to use, see list_configs (optional)",
				},
				"seed": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"description": "Seed for the token sequence; the same seed deals the same board (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List active board sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: sessionOnly(),
	}, c.handleGetSession)

	// Board operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "board_state",
		Description: "Get the current board",
		InputSchema: sessionOnly(),
	}, c.handleBoardState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_token",
		Description: "Select the token at (x, y)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x":          coordinateProperty("x"),
				"y":          coordinateProperty("y"),
				"settle":     settleProperty(),
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of why this token (helps you reason about the board)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleSelect)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_select",
		Description: "Select several tokens in order, settling after each; stops at the first selection with no effect",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"cells": map[string]interface{}{
					"type":        "array",
					"items":       positionProperty("Cell to select"),
					"description": "Cells to select, in order",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset the board first",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the plan",
				},
			},
			Required: []string{"session_id", "cells"},
		},
	}, c.handleBulkSelect)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "swap_tokens",
		Description: "Swap two orthogonally adjacent tokens on a swap board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"a":          positionProperty("First token"),
				"b":          positionProperty("Adjacent token to swap with"),
				"settle":     settleProperty(),
			},
			Required: []string{"session_id", "a", "b"},
		},
	}, c.handleSwap)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the board's animations by dt_ms milliseconds",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"dt_ms": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"description": "Milliseconds to advance",
				},
			},
			Required: []string{"session_id", "dt_ms"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "settle",
		Description: "Play all pending animations out until the board is idle",
		InputSchema: sessionOnly(),
	}, c.handleSettle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_board",
		Description: "Deal the session's opening board again",
		InputSchema: sessionOnly(),
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_history",
		Description: "Get the session's action history",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Entries per page (default 20)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest first (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMoveHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "hint",
		Description: "Suggest the largest groups to tap, or swaps that complete a line",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Number of hints (default 3)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleHint)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe one cell: its token, group and neighbours",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x":          coordinateProperty("x"),
				"y":          coordinateProperty("y"),
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available board configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Rules, coordinates and scoring",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Argument helpers. JSON numbers arrive as float64.

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}

func positionArg(raw interface{}) (engine.Position, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return engine.Position{}, false
	}
	x, okX := intArg(m, "x")
	y, okY := intArg(m, "y")
	return engine.Position{X: x, Y: y}, okX && okY
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	body := map[string]interface{}{}
	if configID := stringArg(args, "config_id"); configID != "" {
		body["config_id"] = configID
	}
	if seed, ok := intArg(args, "seed"); ok {
		if seed < 0 {
			return mcp.NewToolResultError("seed must not be negative"), nil
		}
		body["seed"] = uint64(seed)
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\nSeed: %d\n\n%s",
		session.ID, session.ConfigName, session.Seed, formatBoard(session.Board))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Sessions) == 0 {
		return mcp.NewToolResultText("No active sessions"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, session := range response.Sessions {
		b.WriteString("• " + formatSessionInfo(session) + "\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatSessionInfo(&session) + "\n\n" + formatBoard(session.Board)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleBoardState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var board engine.BoardView
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/board"), nil, &board); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBoard(&board)), nil
}

func (c *Client) handleSelect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}

	body := map[string]interface{}{
		"x":      x,
		"y":      y,
		"settle": boolArg(args, "settle", true),
	}

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/select"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleBulkSelect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")
	raw, _ := args["cells"].([]interface{})

	cells := make([]engine.Position, 0, len(raw))
	for i, item := range raw {
		p, ok := positionArg(item)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("cell %d must be an object with integer x and y", i+1)), nil
		}
		cells = append(cells, p)
	}
	if len(cells) == 0 {
		return mcp.NewToolResultError("cells must not be empty"), nil
	}

	body := map[string]interface{}{
		"cells": cells,
		"reset": boolArg(args, "reset", false),
	}

	var result service.BulkSelectResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/bulk-select"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkSelectResult(sessionID, &result)), nil
}

func (c *Client) handleSwap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")
	a, okA := positionArg(args["a"])
	b, okB := positionArg(args["b"])
	if !okA || !okB {
		return mcp.NewToolResultError("a and b must be objects with integer x and y"), nil
	}

	body := map[string]interface{}{
		"a":      a,
		"b":      b,
		"settle": boolArg(args, "settle", true),
	}

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/swap"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")
	dt, ok := intArg(args, "dt_ms")
	if !ok {
		return mcp.NewToolResultError("dt_ms is required"), nil
	}

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/tick"), map[string]int{"dt_ms": dt}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleSettle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/settle"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var response struct {
		Message string            `json:"message"`
		Board   *engine.BoardView `json:"board"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s\n\n%s", response.Message, formatBoard(response.Board))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")

	query := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		query.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		query.Set("limit", fmt.Sprint(limit))
	}
	if order := stringArg(args, "order"); order != "" {
		query.Set("order", order)
	}

	path := sessionPath(sessionID, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleHint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")

	path := sessionPath(sessionID, "/hint")
	if limit, ok := intArg(args, "limit"); ok && limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var response struct {
		Hints []engine.MatchSet `json:"hints"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHints(response.Hints)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}

	var info service.CellInfo
	path := sessionPath(sessionID, fmt.Sprintf("/cell?x=%d&y=%d", x, y))
	if err := c.apiCall(ctx, "GET", path, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCellInfo(&info)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Grid: %dx%d, Mode: %s, Match: %d, Types: %d\n\n",
			cfg.Name, cfg.ConfigID, cfg.Description, cfg.GridX, cfg.GridY, cfg.Mode, cfg.MatchSize, cfg.TokenTypes)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `Tilematch - Instructions

THE BOARD:
A grid of tokens, each shown as a letter: A is type 0, B type 1 and so on.
Board rows are printed top row first. Column x counts from the left and row y
counts from the bottom, so the last printed row is y = 0.
Lowercase letters are tokens that are being removed; '.' is an empty cell.

GROUPS:
A group is a set of same-letter tokens connected up, down, left or right.
Diagonals do not connect.

TAP BOARDS (mode "tap"):
Selecting any token of a group at least match_size large removes the whole
group. Smaller groups ignore the selection.

SWAP BOARDS (mode "swap"):
Swap two adjacent tokens with swap_tokens, or select one token and then an
adjacent one with select_token. If the swap completes a straight line of at
least match_size tokens, the line is removed. Otherwise the swap is undone
(or kept, depending on the board's no_match_policy).

FALLING AND REFILL:
Tokens above a gap fall straight down. New random tokens drop in from above
to fill each column. On boards with chain_reactions, lines formed by falling
tokens are removed too and count as a chain.

SCORING:
Each removed group scores size x (size - match_size + 1) x (chain + 1),
where chain is 0 for the group you picked and grows with each reaction.

ANIMATION:
Actions play out over time (removal, then falling). By default the tools
settle the board before returning. Pass settle=false and use tick to watch
each stage. A board only accepts input when it is idle.

STRATEGY:
- Use hint to find the largest groups or productive swaps.
- Bigger groups score disproportionately more than several small ones.
- Removing tokens low on the board reshapes everything above them.
- describe_cell shows a cell's group and neighbours before you commit.`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	line := fmt.Sprintf("Session %s (config: %s, seed: %d, created: %s)",
		session.ID, session.ConfigName, session.Seed, session.CreatedAt.Format(time.RFC3339))
	if session.Board != nil {
		line += fmt.Sprintf(" score %d, %d moves, %s", session.Board.Stats.Score, session.Board.Stats.Moves, session.Board.State)
	}
	return line
}

// formatBoard renders the board with axis labels, top row first
func formatBoard(board *engine.BoardView) string {
	if board == nil {
		return "Board: unavailable"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Board %dx%d (%s, %s)\n", board.Width, board.Height, board.Mode, board.State)
	for i, row := range board.Rows {
		y := len(board.Rows) - 1 - i
		fmt.Fprintf(&b, "%3d | %s\n", y, spaced(row))
	}
	b.WriteString("    +" + strings.Repeat("--", board.Width) + "\n")
	b.WriteString("      ")
	for x := 0; x < board.Width; x++ {
		fmt.Fprintf(&b, "%d ", x%10)
	}
	b.WriteString("\n\n")

	s := board.Stats
	fmt.Fprintf(&b, "Score: %d | Moves: %d | Groups removed: %d | Tokens removed: %d | Longest chain: %d\n",
		s.Score, s.Moves, s.Matches, s.TokensRemoved, s.LongestChain)
	if board.Pending != nil {
		fmt.Fprintf(&b, "Pending swap selection: (%d,%d)\n", board.Pending.X, board.Pending.Y)
	}
	if board.State == engine.Idle && !board.Playable {
		b.WriteString("No playable groups remain.\n")
	}
	return b.String()
}

func spaced(row string) string {
	out := make([]string, 0, len(row))
	for _, r := range row {
		out = append(out, string(r))
	}
	return strings.Join(out, " ")
}

func formatActionResult(result *service.ActionResult) string {
	var b strings.Builder
	status := "✓"
	if !result.Success {
		status = "✗"
	}
	fmt.Fprintf(&b, "%s %s: %s\n", status, result.Action, result.Message)
	if result.Removed > 0 || result.ScoreDelta > 0 {
		fmt.Fprintf(&b, "Removed %d tokens, +%d points, %d cascades\n", result.Removed, result.ScoreDelta, result.Cascades)
	}

	spawned, destroyed := 0, 0
	for _, e := range result.Events {
		switch e.Type {
		case "spawn":
			spawned++
		case "destroy":
			destroyed++
		}
	}
	if spawned > 0 || destroyed > 0 {
		fmt.Fprintf(&b, "Events: %d destroyed, %d spawned\n", destroyed, spawned)
	}
	if !result.Settled && result.Board != nil && result.Board.State != engine.Idle {
		b.WriteString("Board is still animating; use tick or settle.\n")
	}
	b.WriteString("\n" + formatBoard(result.Board))
	return b.String()
}

func formatBulkSelectResult(sessionID string, result *service.BulkSelectResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bulk select on %s: %d/%d executed, %d removed, +%d points\n",
		sessionID, result.Executed, result.Requested, result.Removed, result.ScoreDelta)
	if result.Truncated {
		fmt.Fprintf(&b, "Request truncated to %d selections\n", result.Limit)
	}
	if result.StoppedReason != "" {
		fmt.Fprintf(&b, "Stopped on selection %d: %s\n", result.StoppedOn, result.StoppedReason)
	}
	for _, step := range result.Steps {
		status := "✓"
		if !step.Success {
			status = "✗"
		}
		fmt.Fprintf(&b, "%d. (%d,%d) %s group %d, removed %d, +%d\n",
			step.Idx, step.Cell.X, step.Cell.Y, status, step.GroupSize, step.Removed, step.ScoreDelta)
	}
	b.WriteString("\n" + formatBoard(result.Board))
	return b.String()
}

func formatHints(hints []engine.MatchSet) string {
	if len(hints) == 0 {
		return "No playable moves on this board."
	}
	var b strings.Builder
	b.WriteString("Hints:\n")
	for i, set := range hints {
		cells := make([]string, 0, len(set))
		for _, p := range set {
			cells = append(cells, fmt.Sprintf("(%d,%d)", p.X, p.Y))
		}
		fmt.Fprintf(&b, "%d. %d tokens: %s\n", i+1, len(set), strings.Join(cells, " "))
	}
	return b.String()
}

func formatCellInfo(info *service.CellInfo) string {
	var b strings.Builder
	if info.Empty {
		fmt.Fprintf(&b, "Cell (%d,%d) is empty\n", info.X, info.Y)
	} else {
		fmt.Fprintf(&b, "Cell (%d,%d): %s", info.X, info.Y, info.Glyph)
		if info.Token != nil {
			fmt.Fprintf(&b, " (type %d, token #%d", info.Token.Type, info.Token.ID)
			if info.Token.Transition != engine.TransitionNone {
				fmt.Fprintf(&b, ", %s %.0f%%", info.Token.Transition, info.Token.Progress*100)
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Group size: %d", info.GroupSize)
		if info.Playable {
			b.WriteString(" (playable)")
		}
		b.WriteString("\n")
	}
	for _, dir := range []string{"up", "down", "left", "right"} {
		if glyph, ok := info.Neighbours[dir]; ok {
			fmt.Fprintf(&b, "  %s: %s\n", dir, glyph)
		}
	}
	fmt.Fprintf(&b, "Board state: %s, score %d\n", info.State, info.Stats.Score)
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (Page %d/%d), total %d\n\n", history.Page, history.TotalPages, history.TotalMoves)

	for _, move := range history.Moves {
		fmt.Fprintf(&b, "%d. %s", move.Seq, move.Action)
		if move.From != nil {
			fmt.Fprintf(&b, " (%d,%d)", move.From.X, move.From.Y)
		}
		if move.To != nil {
			fmt.Fprintf(&b, " -> (%d,%d)", move.To.X, move.To.Y)
		}
		if move.DeltaMS > 0 {
			fmt.Fprintf(&b, " %dms", move.DeltaMS)
		}
		fmt.Fprintf(&b, " removed %d, +%d [score %d]\n", move.Removed, move.ScoreDelta, move.Score)
	}
	if len(history.Moves) == 0 {
		b.WriteString("(no actions yet)\n")
	}
	return b.String()
}

// ServeStdio runs the MCP server over stdin and stdout until the input closes
func (c *Client) ServeStdio() error {
	logger.Log.Infow("MCP stdio server ready", "api", c.baseURL)
	return server.ServeStdio(c.mcpServer)
}
