// Command validate checks the board configuration files in a configs
// directory (../configs by default). For each JSON or YAML file it checks:
//   - the file parses and every key is a known configuration field
//   - name, grid_x and grid_y are present
//   - the engine accepts the configuration (sizes, match size, token types,
//     timings, mode and no-match policy)
//   - seeded opening boards offer at least one move
//
// It also reports config ids that more than one file resolves to.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/tilematch/game/config"
	"github.com/wricardo/tilematch/game/engine"
)

// openingSeeds is how many seeded opening boards are dealt per file
const openingSeeds = 10

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// knownKeys lists the configuration fields by their file key
func knownKeys() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(engine.Config{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" {
			keys[tag] = true
		}
	}
	return keys
}

// validateConfig loads and validates a single configuration file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	v := viper.New()
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		result.fail("Failed to parse file: %v", err)
		return result
	}

	known := knownKeys()
	var unknown []string
	for _, key := range v.AllKeys() {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		result.fail("Unknown field: %s", key)
	}

	for _, key := range []string{"name", "grid_x", "grid_y"} {
		if !v.IsSet(key) {
			result.fail("Missing required field: %s", key)
		}
	}

	v.SetDefault("match_size", engine.DefaultMatchSize)
	v.SetDefault("token_types", engine.DefaultTokenTypes)
	v.SetDefault("fall_ms_per_cell", engine.DefaultFallMillisPerCell)
	v.SetDefault("shrink_ms", engine.DefaultShrinkMillis)
	v.SetDefault("swap_ms_per_cell", engine.DefaultSwapMillisPerCell)

	var cfg engine.Config
	if err := v.Unmarshal(&cfg); err != nil {
		result.fail("Invalid field value: %v", err)
		return result
	}
	cfg.ApplyDefaults()

	if err := engine.ValidateConfig(&cfg); err != nil {
		result.fail("%v", err)
	}

	if !result.Valid {
		return result
	}

	playable := countPlayableOpenings(&cfg, openingSeeds)
	if playable == 0 {
		result.fail("None of %d opening boards has a move", openingSeeds)
		return result
	}

	result.info("Name: %s", cfg.Name)
	result.info("Board: %dx%d", cfg.GridX, cfg.GridY)
	result.info("Mode: %s, no-match policy: %s", cfg.Mode, cfg.NoMatchPolicy)
	result.info("Match size: %d, token types: %d", cfg.MatchSize, cfg.TokenTypes)
	result.info("Openings with a move: %d/%d", playable, openingSeeds)
	return result
}

// countPlayableOpenings deals boards for seeds 1..n and counts those with at
// least one move
func countPlayableOpenings(cfg *engine.Config, n int) int {
	playable := 0
	for seed := 1; seed <= n; seed++ {
		board, err := engine.NewBoard(cfg, engine.WithSeed(uint64(seed)))
		if err != nil {
			continue
		}
		if cfg.Mode == engine.ModeSwap {
			if len(board.PlayableSwaps(1)) > 0 {
				playable++
			}
		} else if board.HasPlayableGroup() {
			playable++
		}
	}
	return playable
}

// configFiles lists the files in dir the config manager would read
func configFiles(dir string) ([]string, error) {
	var files []string
	for _, ext := range config.Extensions {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// validateDir validates every config file in dir. Files sharing a config id
// are all marked invalid since only one of them can ever be loaded.
func validateDir(dir string) ([]ValidationResult, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	files, err := configFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("error finding config files: %w", err)
	}

	byID := make(map[string][]int)
	results := make([]ValidationResult, 0, len(files))
	for i, file := range files {
		results = append(results, validateConfig(file))
		id := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		byID[id] = append(byID[id], i)
	}

	for id, idx := range byID {
		if len(idx) < 2 {
			continue
		}
		names := make([]string, len(idx))
		for j, i := range idx {
			names[j] = results[i].File
		}
		for _, i := range idx {
			results[i].fail("Duplicate config id %q: %s", id, strings.Join(names, ", "))
		}
	}
	return results, nil
}

// printResults writes a report and says whether every file was valid
func printResults(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Errors {
				fmt.Fprintln(w, "  "+info)
			}
			continue
		}

		fmt.Fprintln(w, "❌ INVALID")
		allValid = false
		for _, err := range result.Errors {
			if !strings.HasPrefix(err, "✓") {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid
}

var errInvalidConfigs = errors.New("some configurations have errors")

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "validate board configuration files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "../configs",
				Usage:   "directory containing board configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			results, err := validateDir(cmd.String("config-dir"))
			if err != nil {
				return err
			}
			if !printResults(out, results) {
				return errInvalidConfigs
			}
			return nil
		},
	}
}

// main validates the configs directory and exits non-zero if any file is
// invalid.
func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errInvalidConfigs) {
			fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		}
		os.Exit(1)
	}
}
