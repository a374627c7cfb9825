package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/wricardo/tilematch/game/engine"
)

func tinyConfig(x, y, matchSize, types int, mode engine.Mode) *engine.Config {
	return &engine.Config{
		Name:          "tiny",
		GridX:         x,
		GridY:         y,
		MatchSize:     matchSize,
		TokenTypes:    types,
		Mode:          mode,
		NoMatchPolicy: engine.PolicyRevert,
	}
}

func TestAnalyzeConfig_DeadBoards(t *testing.T) {
	// A single cell can never hold a group of two
	report, err := analyzeConfig("tiny", tinyConfig(1, 1, 2, 2, engine.ModeTap), 5, 1)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}

	if report.Boards != 5 {
		t.Errorf("Expected 5 boards, got %d", report.Boards)
	}
	if report.Dead != 5 {
		t.Errorf("Expected every board dead, got %d", report.Dead)
	}
	if report.GroupSizes[1] != 5 {
		t.Errorf("Expected five singleton groups, got %v", report.GroupSizes)
	}
	if report.Largest != 1 {
		t.Errorf("Expected largest group 1, got %d", report.Largest)
	}
	if report.AveragePlayable() != 0 {
		t.Errorf("Expected no playable groups, got %.2f", report.AveragePlayable())
	}
}

func TestAnalyzeConfig_CountsEveryToken(t *testing.T) {
	cfg := tinyConfig(6, 5, 3, 4, engine.ModeTap)
	report, err := analyzeConfig("tap", cfg, 20, 100)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}

	tokens := 0
	for size, count := range report.GroupSizes {
		tokens += size * count
	}
	if want := 6 * 5 * 20; tokens != want {
		t.Errorf("Expected groups to cover %d tokens, got %d", want, tokens)
	}
	if report.Largest < 1 || report.Largest > 30 {
		t.Errorf("Largest group out of range: %d", report.Largest)
	}
	if report.LargestSeed < 100 || report.LargestSeed >= 120 {
		t.Errorf("Largest seed %d outside the dealt range", report.LargestSeed)
	}
}

func TestAnalyzeConfig_Deterministic(t *testing.T) {
	cfg := tinyConfig(8, 8, 3, 6, engine.ModeSwap)

	first, err := analyzeConfig("swap", cfg, 10, 7)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}
	second, err := analyzeConfig("swap", cfg, 10, 7)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical reports for identical seeds:\n%+v\n%+v", first, second)
	}
}

func TestAnalyzeConfig_InvalidConfig(t *testing.T) {
	_, err := analyzeConfig("bad", tinyConfig(0, 4, 3, 4, engine.ModeTap), 1, 1)
	if err == nil {
		t.Error("Expected error for a zero-width board")
	}
}

func TestAnalyzeDir(t *testing.T) {
	reports, err := analyzeDir(filepath.Join("..", "..", "configs"), 3, 1)
	if err != nil {
		t.Fatalf("analyzeDir failed: %v", err)
	}
	if len(reports) == 0 {
		t.Fatal("Expected at least one report")
	}

	for i, r := range reports {
		if r.Boards != 3 {
			t.Errorf("%s: expected 3 boards, got %d", r.ConfigID, r.Boards)
		}
		if i > 0 && reports[i-1].ConfigID >= r.ConfigID {
			t.Errorf("Reports not sorted by config id: %s before %s", reports[i-1].ConfigID, r.ConfigID)
		}
	}
}

func TestAnalyzeDir_Missing(t *testing.T) {
	if _, err := analyzeDir("/non/existent/path", 1, 1); err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestAnalyzeDir_SkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	valid := `{"name":"Mini","grid_x":4,"grid_y":4,"match_size":3,"token_types":3}`
	if err := os.WriteFile(filepath.Join(dir, "mini.json"), []byte(valid), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"name": invalid}`), 0644); err != nil {
		t.Fatal(err)
	}

	reports, err := analyzeDir(dir, 2, 1)
	if err != nil {
		t.Fatalf("analyzeDir failed: %v", err)
	}
	if len(reports) != 1 || reports[0].ConfigID != "mini" {
		t.Fatalf("Expected only the mini report, got %+v", reports)
	}
}

func TestPrintReport(t *testing.T) {
	report := &Report{
		ConfigID:   "tiny",
		Name:       "Tiny",
		Mode:       engine.ModeTap,
		GridX:      1,
		GridY:      1,
		MatchSize:  2,
		Boards:     4,
		GroupSizes: map[int]int{1: 4},
		Dead:       4,
		Largest:    1,
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	for _, want := range []string{
		"=== tiny (Tiny) ===",
		"Board: 1x1, tap mode, match size 2",
		"Average playable groups per board: 0.00",
		"   1: 4",
		"4 of 4 opening boards have no move",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestCommand(t *testing.T) {
	var buf bytes.Buffer
	args := []string{"analyze", "--config-dir", filepath.Join("..", "..", "configs"), "--boards", "2"}
	if err := newCommand(&buf).Run(context.Background(), args); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Boards dealt: 2") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}

func TestCommand_RejectsBadFlags(t *testing.T) {
	for _, args := range [][]string{
		{"analyze", "--boards", "0"},
		{"analyze", "--seed", "-1"},
	} {
		var buf bytes.Buffer
		if err := newCommand(&buf).Run(context.Background(), args); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}
}
