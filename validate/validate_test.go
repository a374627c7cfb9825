package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/tilematch/game/engine"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func hasMessage(result ValidationResult, substr string) bool {
	for _, msg := range result.Errors {
		if contains(msg, substr) {
			return true
		}
	}
	return false
}

func TestValidateConfig_ValidConfig(t *testing.T) {
	validConfig := `{
		"name": "Test Config",
		"description": "Test configuration",
		"grid_x": 6,
		"grid_y": 6,
		"match_size": 3,
		"token_types": 4,
		"fall_ms_per_cell": 50,
		"shrink_ms": 100,
		"swap_ms_per_cell": 80,
		"mode": "tap",
		"no_match_policy": "revert"
	}`

	path := writeConfig(t, t.TempDir(), "test.json", validConfig)

	result := validateConfig(path)
	if !result.Valid {
		t.Errorf("Expected valid config, but got errors: %v", result.Errors)
	}
	if result.File != "test.json" {
		t.Errorf("Expected file name test.json, got %s", result.File)
	}
	if !hasMessage(result, "✓ Board: 6x6") {
		t.Errorf("Expected board info line, got %v", result.Errors)
	}
}

func TestValidateConfig_YAML(t *testing.T) {
	yamlConfig := `name: Swap
grid_x: 8
grid_y: 8
token_types: 6
mode: swap
strict_bounds: true
chain_reactions: true
`
	path := writeConfig(t, t.TempDir(), "swap.yaml", yamlConfig)

	result := validateConfig(path)
	if !result.Valid {
		t.Errorf("Expected valid config, but got errors: %v", result.Errors)
	}
	if !hasMessage(result, "Mode: swap") {
		t.Errorf("Expected mode info line, got %v", result.Errors)
	}
}

func TestValidateConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "broken.json", `{"name": "test", invalid json}`)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid result for malformed JSON")
	}
	if !hasMessage(result, "Failed to parse file") {
		t.Errorf("Expected parse error, got %v", result.Errors)
	}
}

func TestValidateConfig_MissingFile(t *testing.T) {
	result := validateConfig("/non/existent/file.json")
	if result.Valid {
		t.Error("Expected invalid result for missing file")
	}
	if result.File != "file.json" {
		t.Errorf("Expected file name file.json, got %s", result.File)
	}
}

func TestValidateConfig_MissingRequiredFields(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "empty.json", `{"description": "no size"}`)

	result := validateConfig(path)
	if result.Valid {
		t.Fatal("Expected invalid result")
	}
	for _, field := range []string{"name", "grid_x", "grid_y"} {
		if !hasMessage(result, "Missing required field: "+field) {
			t.Errorf("Expected missing %s error, got %v", field, result.Errors)
		}
	}
}

func TestValidateConfig_UnknownField(t *testing.T) {
	config := `{"name": "Typo", "grid_x": 5, "grid_y": 5, "token_type": 4}`
	path := writeConfig(t, t.TempDir(), "typo.json", config)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid result for unknown field")
	}
	if !hasMessage(result, "Unknown field: token_type") {
		t.Errorf("Expected unknown field error, got %v", result.Errors)
	}
}

func TestValidateConfig_EngineRules(t *testing.T) {
	tests := []struct {
		name   string
		config string
		field  string
	}{
		{"zero width", `{"name":"x","grid_x":0,"grid_y":5}`, "grid_x"},
		{"too tall", `{"name":"x","grid_x":5,"grid_y":65}`, "grid_y"},
		{"match size one", `{"name":"x","grid_x":5,"grid_y":5,"match_size":1}`, "match_size"},
		{"too few types", `{"name":"x","grid_x":5,"grid_y":5,"match_size":4,"token_types":3}`, "token_types"},
		{"negative shrink", `{"name":"x","grid_x":5,"grid_y":5,"shrink_ms":-1}`, "shrink_ms"},
		{"bad mode", `{"name":"x","grid_x":5,"grid_y":5,"mode":"drag"}`, "mode"},
		{"bad policy", `{"name":"x","grid_x":5,"grid_y":5,"no_match_policy":"undo"}`, "no_match_policy"},
	}

	dir := t.TempDir()
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, dir, "case"+string(rune('a'+i))+".json", tt.config)

			result := validateConfig(path)
			if result.Valid {
				t.Fatalf("Expected invalid result")
			}
			if !hasMessage(result, tt.field) {
				t.Errorf("Expected an error naming %s, got %v", tt.field, result.Errors)
			}
		})
	}
}

func TestValidateConfig_NoOpeningMoves(t *testing.T) {
	// One cell never forms a group of two
	path := writeConfig(t, t.TempDir(), "dot.json", `{"name":"Dot","grid_x":1,"grid_y":1,"match_size":2,"token_types":2}`)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid result for a board with no moves")
	}
	if !hasMessage(result, "opening boards has a move") {
		t.Errorf("Expected playability error, got %v", result.Errors)
	}
}

func TestCountPlayableOpenings(t *testing.T) {
	cfg := engine.DefaultConfig()
	if got := countPlayableOpenings(cfg, 5); got < 1 || got > 5 {
		t.Errorf("Expected between 1 and 5 playable openings on the default board, got %d", got)
	}

	dot := &engine.Config{Name: "dot", GridX: 1, GridY: 1, MatchSize: 2, TokenTypes: 2, Mode: engine.ModeTap, NoMatchPolicy: engine.PolicyRevert}
	if got := countPlayableOpenings(dot, 5); got != 0 {
		t.Errorf("Expected no playable openings, got %d", got)
	}
}

func TestKnownKeys(t *testing.T) {
	keys := knownKeys()
	for _, key := range []string{"name", "grid_x", "grid_y", "match_size", "token_types", "mode", "no_match_policy", "strict_bounds", "chain_reactions"} {
		if !keys[key] {
			t.Errorf("Expected %s to be a known key", key)
		}
	}
}

func TestValidateDir_ProjectConfigs(t *testing.T) {
	results, err := validateDir(filepath.Join("..", "configs"))
	if err != nil {
		t.Fatalf("validateDir failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Expected project configs")
	}
	for _, result := range results {
		if !result.Valid {
			t.Errorf("%s: expected valid, got %v", result.File, result.Errors)
		}
	}
}

func TestValidateDir_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "board.json", `{"name":"A","grid_x":6,"grid_y":6}`)
	writeConfig(t, dir, "board.yaml", "name: B\ngrid_x: 6\ngrid_y: 6\n")
	writeConfig(t, dir, "notes.txt", "ignored")

	results, err := validateDir(dir)
	if err != nil {
		t.Fatalf("validateDir failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, result := range results {
		if result.Valid || !hasMessage(result, `Duplicate config id "board"`) {
			t.Errorf("%s: expected duplicate id error, got %v", result.File, result.Errors)
		}
	}
}

func TestValidateDir_Missing(t *testing.T) {
	if _, err := validateDir("/non/existent/path"); err == nil {
		t.Error("Expected error for non-existent directory")
	}
}

func TestCommand(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "good.json", `{"name":"Good","grid_x":6,"grid_y":6}`)

	var buf bytes.Buffer
	if err := newCommand(&buf).Run(context.Background(), []string{"validate", "--config-dir", dir}); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if !strings.Contains(buf.String(), "All configurations are valid") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}

	writeConfig(t, dir, "bad.json", `{"name":"Bad","grid_x":0,"grid_y":6}`)
	buf.Reset()
	err := newCommand(&buf).Run(context.Background(), []string{"validate", "--config-dir", dir})
	if err != errInvalidConfigs {
		t.Errorf("Expected errInvalidConfigs, got %v", err)
	}
	if !strings.Contains(buf.String(), "❌ INVALID") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
