// Package api provides the HTTP REST API for tile boards.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_id": "classic", "seed": 42})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Board:
//   - GET /api/sessions/{id}/board - Current board view
//   - POST /api/sessions/{id}/select - {"x": 3, "y": 0, "settle": true}
//   - POST /api/sessions/{id}/bulk-select - {"cells": [{"x":0,"y":0}], "reset": false}
//   - POST /api/sessions/{id}/swap - {"a": {"x":2,"y":0}, "b": {"x":2,"y":1}}
//   - POST /api/sessions/{id}/tick - {"dt_ms": 16}
//   - POST /api/sessions/{id}/settle - Play animations out
//   - POST /api/sessions/{id}/reset - Deal the session's opening board again
//   - GET /api/sessions/{id}/history - ?page=1&limit=20&order=desc
//   - GET /api/sessions/{id}/hint - ?limit=3
//   - GET /api/sessions/{id}/cell - ?x=1&y=2
//
// Configuration:
//   - GET /api/configs - List configurations
//   - POST /api/configs - Save a configuration (JSON by default, YAML with a .yaml config_id)
//   - GET /api/configs/{name} - Get a configuration
//
// Other:
//   - GET /api/health
//   - GET /metrics - Prometheus metrics, when the server has a monitor
//   - GET /ws?session={id} - Board updates over a websocket
//
// Coordinates are column x and row y, with y = 0 the bottom row. Select and
// swap settle by default; pass "settle": false and drive the board with tick
// to watch the animation.
//
// Errors are returned as JSON:
//
//	{"error": "select (9,0): coordinates out of range", "code": 400}
//
// Invalid coordinates, swaps on a tap board, non-adjacent swaps, negative
// ticks and invalid configurations are 400. Unknown sessions and
// configurations are 404.
package api
