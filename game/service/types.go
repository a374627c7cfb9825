package service

import (
	"sync"
	"time"

	"github.com/wricardo/tilematch/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string            `json:"id"`
	ConfigName     string            `json:"config_name"`
	Seed           uint64            `json:"seed"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Board          *engine.BoardView `json:"board"`
	BoardConfig    *engine.Config    `json:"board_config"`
}

// ActionResult contains the outcome of a select, swap, tick or settle
type ActionResult struct {
	Success    bool              `json:"success"`
	Action     string            `json:"action"`
	Message    string            `json:"message"`
	Board      *engine.BoardView `json:"board"`
	Events     []GameEvent       `json:"events,omitempty"`
	Removed    int               `json:"removed"`
	ScoreDelta int               `json:"score_delta"`
	Cascades   int               `json:"cascades"`
	Ticks      int               `json:"ticks,omitempty"`
	Settled    bool              `json:"settled"`
}

// BulkSelectResult contains the result of several selections in one call
type BulkSelectResult struct {
	Requested     int               `json:"requested"`
	Executed      int               `json:"executed"`
	Success       bool              `json:"success"`
	Truncated     bool              `json:"truncated,omitempty"`
	Limit         int               `json:"limit,omitempty"`
	StoppedReason string            `json:"stopped_reason,omitempty"`
	StoppedOn     int               `json:"stopped_on,omitempty"` // 1-based index of the selection that stopped the run
	Steps         []StepInfo        `json:"steps"`
	Removed       int               `json:"removed"`
	ScoreDelta    int               `json:"score_delta"`
	Board         *engine.BoardView `json:"board"`
}

// StepInfo is a compact record of one selection in a bulk call
type StepInfo struct {
	Idx        int             `json:"idx"`
	Cell       engine.Position `json:"cell"`
	GroupSize  int             `json:"group_size"`
	Removed    int             `json:"removed"`
	ScoreDelta int             `json:"score_delta"`
	Success    bool            `json:"success"`
}

// CellInfo describes one cell and the group it belongs to
type CellInfo struct {
	X          int               `json:"x"`
	Y          int               `json:"y"`
	Empty      bool              `json:"empty"`
	Token      *engine.TokenView `json:"token,omitempty"`
	Glyph      string            `json:"glyph,omitempty"`
	GroupSize  int               `json:"group_size"`
	Group      []engine.Position `json:"group,omitempty"`
	Playable   bool              `json:"playable"`
	Neighbours map[string]string `json:"neighbours,omitempty"` // direction -> glyph
	State      engine.State      `json:"state"`
	Stats      engine.Stats      `json:"stats"`
}

// GameEvent represents something that happened while an action played out
type GameEvent struct {
	Type      string           `json:"type"` // "select", "swap", "tick", "destroy", "spawn", "settled", "reset", "ignored"
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Position  *engine.Position `json:"position,omitempty"`
	TokenID   uint64           `json:"token_id,omitempty"`
	TokenType *int             `json:"token_type,omitempty"`
}

// HistoryEntry records one player action on a session
type HistoryEntry struct {
	Seq        int              `json:"seq"`
	Action     string           `json:"action"`
	From       *engine.Position `json:"from,omitempty"`
	To         *engine.Position `json:"to,omitempty"`
	DeltaMS    int64            `json:"delta_ms,omitempty"`
	Removed    int              `json:"removed"`
	ScoreDelta int              `json:"score_delta"`
	Score      int              `json:"score"`
	State      engine.State     `json:"state"`
	Timestamp  time.Time        `json:"timestamp"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []HistoryEntry `json:"moves"`
	TotalMoves  int            `json:"total_moves"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	TotalPages  int            `json:"total_pages"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
}

// ConfigInfo provides information about a board configuration
type ConfigInfo struct {
	Filename    string      `json:"filename"`
	ConfigID    string      `json:"config_id"` // The identifier to use for session creation
	Name        string      `json:"name"`      // Display name
	Description string      `json:"description"`
	GridX       int         `json:"grid_x"`
	GridY       int         `json:"grid_y"`
	MatchSize   int         `json:"match_size"`
	TokenTypes  int         `json:"token_types"`
	Mode        engine.Mode `json:"mode"`
}

// EventRecorder collects the board's spawn and destroy notifications until
// the service drains them into an ActionResult.
type EventRecorder struct {
	mu     sync.Mutex
	events []GameEvent
}

func (r *EventRecorder) OnSpawn(s engine.Spawn) {
	t := int(s.Token.Type)
	r.add(GameEvent{
		Type:      "spawn",
		Message:   "token dropped in",
		Position:  &engine.Position{X: s.Token.X, Y: s.Token.Y},
		TokenID:   s.Token.ID,
		TokenType: &t,
	})
}

func (r *EventRecorder) OnDestroy(token *engine.Token) {
	t := int(token.Type)
	r.add(GameEvent{
		Type:      "destroy",
		Message:   "token removed",
		Position:  &engine.Position{X: token.X, Y: token.Y},
		TokenID:   token.ID,
		TokenType: &t,
	})
}

func (r *EventRecorder) add(e GameEvent) {
	e.Timestamp = time.Now()
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Drain returns the recorded events and forgets them
func (r *EventRecorder) Drain() []GameEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}
