// Command analyze deals seeded opening boards for every configuration in a
// configs directory and prints how playable they are: the group size
// histogram, the share of dead boards and the largest groups seen.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/tilematch/game/config"
	"github.com/wricardo/tilematch/game/engine"
)

// Report summarises the opening boards dealt for one configuration
type Report struct {
	ConfigID   string
	Name       string
	Mode       engine.Mode
	GridX      int
	GridY      int
	MatchSize  int
	Boards     int
	GroupSizes map[int]int
	// Dead counts boards with no move at all
	Dead          int
	TotalPlayable int
	Largest       int
	LargestSeed   uint64
}

// AveragePlayable is the mean number of moves per board. On tap boards a move
// is a group of at least MatchSize, on swap boards a swap that completes one.
func (r *Report) AveragePlayable() float64 {
	if r.Boards == 0 {
		return 0
	}
	return float64(r.TotalPlayable) / float64(r.Boards)
}

// analyzeConfig deals boards for seeds firstSeed..firstSeed+boards-1
func analyzeConfig(id string, cfg *engine.Config, boards int, firstSeed uint64) (*Report, error) {
	report := &Report{
		ConfigID:   id,
		Name:       cfg.Name,
		Mode:       cfg.Mode,
		GridX:      cfg.GridX,
		GridY:      cfg.GridY,
		MatchSize:  cfg.MatchSize,
		GroupSizes: make(map[int]int),
	}

	for i := 0; i < boards; i++ {
		seed := firstSeed + uint64(i)
		board, err := engine.NewBoard(cfg, engine.WithSeed(seed))
		if err != nil {
			return nil, fmt.Errorf("config %s seed %d: %w", id, seed, err)
		}
		report.Boards++

		for size, count := range board.GroupSizes() {
			report.GroupSizes[size] += count
		}

		var playable int
		if cfg.Mode == engine.ModeSwap {
			playable = len(board.PlayableSwaps(0))
		} else {
			playable = len(board.Groups(cfg.MatchSize))
		}
		report.TotalPlayable += playable
		if playable == 0 {
			report.Dead++
		}

		if largest := board.LargestGroups(1, 1); len(largest) == 1 && len(largest[0]) > report.Largest {
			report.Largest = len(largest[0])
			report.LargestSeed = seed
		}
	}
	return report, nil
}

// analyzeDir runs analyzeConfig for every valid configuration in dir
func analyzeDir(dir string, boards int, firstSeed uint64) ([]*Report, error) {
	manager, err := config.NewManager(dir)
	if err != nil {
		return nil, err
	}
	infos, err := manager.ListConfigs()
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(infos))
	for _, info := range infos {
		cfg, err := manager.LoadConfig(info.ConfigID)
		if err != nil {
			return nil, err
		}
		report, err := analyzeConfig(info.ConfigID, cfg, boards, firstSeed)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func printReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\n=== %s (%s) ===\n", r.ConfigID, r.Name)
	fmt.Fprintf(w, "Board: %dx%d, %s mode, match size %d\n", r.GridX, r.GridY, r.Mode, r.MatchSize)
	fmt.Fprintf(w, "Boards dealt: %d\n", r.Boards)

	moves := "playable groups"
	if r.Mode == engine.ModeSwap {
		moves = "playable swaps"
	}
	fmt.Fprintf(w, "Average %s per board: %.2f\n", moves, r.AveragePlayable())
	fmt.Fprintf(w, "Largest group: %d tokens (seed %d)\n", r.Largest, r.LargestSeed)

	sizes := make([]int, 0, len(r.GroupSizes))
	for size := range r.GroupSizes {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	fmt.Fprintln(w, "Group sizes:")
	for _, size := range sizes {
		marker := ""
		if size >= r.MatchSize {
			marker = " *"
		}
		fmt.Fprintf(w, "  %2d: %d%s\n", size, r.GroupSizes[size], marker)
	}

	if r.Dead > 0 {
		fmt.Fprintf(w, "⚠️  WARNING: %d of %d opening boards have no move\n", r.Dead, r.Boards)
	} else {
		fmt.Fprintln(w, "✅ Every opening board has at least one move")
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "report how playable seeded opening boards are for each configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory containing board configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.IntFlag{
				Name:  "boards",
				Value: 100,
				Usage: "boards to deal per configuration",
			},
			&cli.IntFlag{
				Name:  "seed",
				Value: 1,
				Usage: "first seed",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			boards := cmd.Int("boards")
			if boards <= 0 {
				return fmt.Errorf("--boards must be positive, got %d", boards)
			}
			seed := cmd.Int("seed")
			if seed < 0 {
				return fmt.Errorf("--seed must not be negative, got %d", seed)
			}

			reports, err := analyzeDir(cmd.String("config-dir"), boards, uint64(seed))
			if err != nil {
				return err
			}
			for _, r := range reports {
				printReport(out, r)
			}
			return nil
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}
