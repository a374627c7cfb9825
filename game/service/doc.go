// Package service is the business logic layer between the transports
// (HTTP, websocket, MCP) and the board engine.
//
// GameService exposes every player operation: creating sessions, selecting
// and swapping tokens, ticking or settling animations, hints, cell
// descriptions and move history. Each operation returns a transport-ready
// result carrying the board view and the spawn and destroy events the board
// reported while the action played out.
//
// Core Interfaces:
//
// SessionManager stores sessions and ConfigManager loads board
// configurations; both are implemented in their own packages and injected.
//
// Usage:
//
//	configs, _ := config.NewManager("configs")
//	svc := service.NewGameService(session.NewManager(), configs,
//		service.WithMonitor(monitor.NewMonitor("tilematch")))
//
//	info, err := svc.CreateSession(ctx, "classic", nil)
//	result, err := svc.Select(ctx, info.ID, 3, 0, true)
//
// Actions that settle play the board forward in SettleStep frames. Callers
// that animate on their own pass settle=false and drive the board with Tick.
//
// All operations on one service are serialised by a single lock, so a board
// is never ticked and selected at the same time.
package service
