package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/tilematch/game/engine"
)

var (
	// ErrSessionNotFound is returned for session IDs no manager knows
	ErrSessionNotFound = errors.New("session not found")
	// ErrConfigNotFound is returned for configuration names no manager knows
	ErrConfigNotFound = errors.New("configuration not found")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string, seed *uint64) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Board Operations
	Select(ctx context.Context, sessionID string, x, y int, settle bool) (*ActionResult, error)
	BulkSelect(ctx context.Context, sessionID string, cells []engine.Position, reset bool) (*BulkSelectResult, error)
	Swap(ctx context.Context, sessionID string, a, b engine.Position, settle bool) (*ActionResult, error)
	Tick(ctx context.Context, sessionID string, dt time.Duration) (*ActionResult, error)
	Settle(ctx context.Context, sessionID string) (*ActionResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.BoardView, error)

	// Board State
	GetBoardView(ctx context.Context, sessionID string) (*engine.BoardView, error)
	DescribeCell(ctx context.Context, sessionID string, x, y int) (*CellInfo, error)
	GetHints(ctx context.Context, sessionID string, limit int) ([]engine.MatchSet, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.Config, error)
	SaveConfig(ctx context.Context, configName string, config *engine.Config) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configName string, config *engine.Config, seed uint64) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, configName string, config *engine.Config, seed uint64) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	Count() int
}

// ConfigManager handles board configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.Config, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.Config
	SaveConfig(name string, config *engine.Config) error
}

// Session represents an active game session. The board is rebuilt from Seed
// on reset, so the same seed always deals the same opening layout.
type Session struct {
	ID             string
	Board          *engine.Board
	Config         *engine.Config
	ConfigName     string
	Seed           uint64
	History        []HistoryEntry
	Recorder       *EventRecorder
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// NewBoard deals a fresh board for the session's config and seed, wired to
// the session's event recorder.
func (s *Session) NewBoard() (*engine.Board, error) {
	if s.Recorder == nil {
		s.Recorder = &EventRecorder{}
	}
	return engine.NewBoard(s.Config, engine.WithSeed(s.Seed), engine.WithListener(s.Recorder))
}

// RestoreBoard rebuilds the session's board from a snapshot
func (s *Session) RestoreBoard(snap *engine.Snapshot) (*engine.Board, error) {
	if s.Recorder == nil {
		s.Recorder = &EventRecorder{}
	}
	return engine.RestoreBoard(s.Config, snap, engine.WithListener(s.Recorder))
}
