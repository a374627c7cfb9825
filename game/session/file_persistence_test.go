package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/tilematch/game/config"
	"github.com/wricardo/tilematch/game/engine"
	"github.com/wricardo/tilematch/game/service"
)

func newTestSession(t *testing.T, id string, configs service.ConfigManager, seed uint64) *service.Session {
	t.Helper()
	boardConfig := configs.GetDefault()
	session := &service.Session{
		ID:             id,
		Config:         boardConfig,
		ConfigName:     "classic",
		Seed:           seed,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
	board, err := session.NewBoard()
	if err != nil {
		t.Fatalf("Failed to create board: %v", err)
	}
	session.Board = board
	return session
}

func TestFilePersistence(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "session_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	persistence, err := NewFilePersistence(tempDir, configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newTestSession(t, "test1", configManager, 2024)

	t.Run("Save and Load Session", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loadedSession, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}

		if loadedSession.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loadedSession.ID)
		}
		if loadedSession.Config.Name != session.Config.Name {
			t.Errorf("Expected config name %s, got %s", session.Config.Name, loadedSession.Config.Name)
		}
		if loadedSession.Seed != session.Seed {
			t.Errorf("Expected seed %d, got %d", session.Seed, loadedSession.Seed)
		}
		if fmt.Sprint(loadedSession.Board.Rows()) != fmt.Sprint(session.Board.Rows()) {
			t.Errorf("Board layout not persisted correctly")
		}
		if loadedSession.Recorder == nil {
			t.Error("Loaded session should have an event recorder")
		}
	})

	t.Run("Save Mid-Animation State", func(t *testing.T) {
		groups := session.Board.Groups(session.Config.MatchSize)
		if len(groups) == 0 {
			t.Skip("Cannot test state persistence without a playable group")
		}
		target := groups[0][0]
		if err := session.Board.Select(target.X, target.Y); err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if err := session.Board.Tick(50 * time.Millisecond); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
		session.History = append(session.History, service.HistoryEntry{Seq: 1, Action: "select", From: &target})

		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save updated session: %v", err)
		}

		loadedSession, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load updated session: %v", err)
		}

		if loadedSession.Board.State() != engine.Matching {
			t.Errorf("Expected restored board to still be matching, got %s", loadedSession.Board.State())
		}
		if len(loadedSession.History) != 1 || loadedSession.History[0].Action != "select" {
			t.Errorf("Move history not persisted correctly: %+v", loadedSession.History)
		}

		// Both boards share the random state, so they settle identically
		if _, err := session.Board.Settle(16*time.Millisecond, 1000); err != nil {
			t.Fatalf("Settle original failed: %v", err)
		}
		if _, err := loadedSession.Board.Settle(16*time.Millisecond, 1000); err != nil {
			t.Fatalf("Settle restored failed: %v", err)
		}
		if fmt.Sprint(loadedSession.Board.Rows()) != fmt.Sprint(session.Board.Rows()) {
			t.Errorf("Boards diverged after settling:\n%v\n%v", session.Board.Rows(), loadedSession.Board.Rows())
		}
		if loadedSession.Board.Stats() != session.Board.Stats() {
			t.Errorf("Stats diverged: %+v vs %+v", session.Board.Stats(), loadedSession.Board.Stats())
		}
	})

	t.Run("List All Sessions", func(t *testing.T) {
		session2 := newTestSession(t, "test2", configManager, 7)
		if err := persistence.Save(session2); err != nil {
			t.Fatalf("Failed to save second session: %v", err)
		}

		sessionIDs, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}

		if len(sessionIDs) != 2 {
			t.Errorf("Expected 2 sessions, got %d", len(sessionIDs))
		}

		found := make(map[string]bool)
		for _, id := range sessionIDs {
			found[id] = true
		}
		if !found["test1"] || !found["test2"] {
			t.Error("Expected sessions not found in list")
		}
	})

	t.Run("Case-Insensitive Lookup", func(t *testing.T) {
		if !persistence.Exists("TEST2") {
			t.Error("Expected upper-case lookup to find the session")
		}
	})

	t.Run("Delete Session", func(t *testing.T) {
		if err := persistence.Delete("test2"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}

		if persistence.Exists("test2") {
			t.Error("Session should not exist after delete")
		}

		if _, err := persistence.Load("test2"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Error Cases", func(t *testing.T) {
		if _, err := persistence.Load("nonexistent"); err == nil {
			t.Error("Should get error when loading non-existent session")
		}

		if err := persistence.Delete("nonexistent"); err == nil {
			t.Error("Should get error when deleting non-existent session")
		}

		if err := persistence.Save(nil); err == nil {
			t.Error("Should get error when saving nil session")
		}

		if err := persistence.Save(&service.Session{ID: "boardless"}); err == nil {
			t.Error("Should get error when saving a session without a board")
		}
	})

	t.Run("Unknown Config", func(t *testing.T) {
		orphan := newTestSession(t, "orphan", configManager, 1)
		orphan.ConfigName = "deleted-config"
		if err := persistence.Save(orphan); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if _, err := persistence.Load("orphan"); err == nil {
			t.Error("Expected an error when the stored config no longer exists")
		}
	})
}

func TestFilePersistenceFileStructure(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "session_file_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	persistence, err := NewFilePersistence(tempDir, configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newTestSession(t, "File_Test", configManager, 11)
	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	expectedFile := filepath.Join(tempDir, "file_test.json")
	if _, err := os.Stat(expectedFile); os.IsNotExist(err) {
		t.Errorf("Expected file %s does not exist", expectedFile)
	}
	if _, err := os.Stat(expectedFile + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file should be renamed into place")
	}

	data, err := os.ReadFile(expectedFile)
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}

	content := string(data)
	expectedFields := []string{`"id"`, `"config_name"`, `"seed"`, `"created_at"`, `"board"`, `"cells"`, `"rand"`}
	for _, field := range expectedFields {
		if !strings.Contains(content, field) {
			t.Errorf("Session file should contain field %s", field)
		}
	}
}
