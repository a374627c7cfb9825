// Package websocket pushes board updates to browsers watching a session.
//
// A single Hub goroutine owns registration and fan-out. Each connection gets
// a reader that only keeps the connection alive and a writer that drains the
// client's queue and sends pings. Clients that fall behind are dropped.
//
// Outgoing messages are JSON:
//
//	{"session_id": "ab12", "event": "board_update", "board": {...}}
//
// The board is an engine.BoardView, including in-flight transitions, so a
// client can animate falls and removals itself.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithMonitor(m))
//	go hub.Run()
//	defer hub.Close()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
//	hub.BroadcastToSession(sessionID, board.View())
package websocket
