// Package mcp exposes tile boards to AI agents over the Model Context
// Protocol.
//
// The Client registers MCP tools and answers every call by proxying to the
// REST API, so an agent and a browser watching /ws see the same sessions.
// Results are rendered as text: the board is printed top row first with row
// and column labels, followed by the score and any pending swap selection.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - board_state, select_token, bulk_select, swap_tokens
//   - tick, settle, reset_board
//   - hint, describe_cell, move_history
//   - list_configs, game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//
//	// stdio, for local MCP clients
//	client.ServeStdio()
//
//	// or mount on an HTTP server
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
