package session

import (
	"fmt"
	"time"

	"github.com/wricardo/tilematch/game/engine"
	"github.com/wricardo/tilematch/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored shape of a session. The board travels as
// an engine snapshot, so in-flight animations and the random state survive a
// restart.
type PersistedSessionData struct {
	ID             string                 `json:"id"`
	ConfigName     string                 `json:"config_name"`
	Seed           uint64                 `json:"seed"`
	CreatedAt      time.Time              `json:"created_at"`
	LastAccessedAt time.Time              `json:"last_accessed_at"`
	Board          *engine.Snapshot       `json:"board"`
	History        []service.HistoryEntry `json:"history,omitempty"`
}

func snapshotSession(session *service.Session) (*PersistedSessionData, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if session.Board == nil {
		return nil, fmt.Errorf("session %s has no board", session.ID)
	}
	snap, err := session.Board.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot board: %w", err)
	}
	return &PersistedSessionData{
		ID:             session.ID,
		ConfigName:     session.ConfigName,
		Seed:           session.Seed,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		Board:          snap,
		History:        session.History,
	}, nil
}

// restoreSession loads the board configuration by name and rebuilds the board
// from the stored snapshot.
func restoreSession(data *PersistedSessionData, configs service.ConfigManager) (*service.Session, error) {
	if data.Board == nil {
		return nil, fmt.Errorf("session %s has no stored board", data.ID)
	}

	var config *engine.Config
	if data.ConfigName == "" || data.ConfigName == "default" {
		config = configs.GetDefault()
	} else {
		var err error
		config, err = configs.LoadConfig(data.ConfigName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
		}
	}

	session := &service.Session{
		ID:             data.ID,
		Config:         config,
		ConfigName:     data.ConfigName,
		Seed:           data.Seed,
		History:        data.History,
		Recorder:       &service.EventRecorder{},
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}
	board, err := session.RestoreBoard(data.Board)
	if err != nil {
		return nil, fmt.Errorf("failed to restore board: %w", err)
	}
	session.Board = board
	return session, nil
}
