// Command autoplay plays tile boards through a running server's REST API.
// Each game asks the server for hints, lets a strategy pick one and plays it
// until no move remains or the move limit is reached, then reports the score.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/tilematch/game/engine"
	"github.com/wricardo/tilematch/game/service"
	"github.com/wricardo/tilematch/logger"
)

// hintLimit is how many moves are offered to the strategy each turn
const hintLimit = 50

// GameResult summarises one played game
type GameResult struct {
	SessionID string
	Seed      uint64
	Moves     int
	Stats     engine.Stats
	// Exhausted is true when the board ran out of moves before the limit
	Exhausted bool
}

// Player drives one session with a strategy
type Player struct {
	client   *Client
	strategy Strategy
	maxMoves int
	delay    time.Duration
}

func NewPlayer(client *Client, strategy Strategy, maxMoves int, delay time.Duration) *Player {
	return &Player{client: client, strategy: strategy, maxMoves: maxMoves, delay: delay}
}

// Play plays the client's current session from its current board
func (p *Player) Play(ctx context.Context) (*GameResult, error) {
	info, err := p.client.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	result := &GameResult{SessionID: info.ID, Seed: info.Seed}
	if info.Board != nil {
		result.Stats = info.Board.Stats
	}
	mode := engine.ModeTap
	if info.BoardConfig != nil {
		mode = info.BoardConfig.Mode
	}

	for result.Moves < p.maxMoves {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		hints, err := p.client.Hints(ctx, hintLimit)
		if err != nil {
			return result, err
		}
		move := p.strategy.Choose(hints)
		if len(move) == 0 {
			result.Exhausted = true
			break
		}

		action, err := p.play(ctx, mode, move)
		if err != nil {
			return result, err
		}
		if !action.Success {
			return result, fmt.Errorf("move %v rejected: %s", move, action.Message)
		}

		result.Moves++
		if action.Board != nil {
			result.Stats = action.Board.Stats
		}
		logger.Log.Debugw("move played",
			"session", result.SessionID,
			"move", result.Moves,
			"removed", action.Removed,
			"cascades", action.Cascades,
			"score", result.Stats.Score)

		if p.delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(p.delay):
			}
		}
	}
	return result, nil
}

func (p *Player) play(ctx context.Context, mode engine.Mode, move engine.MatchSet) (*service.ActionResult, error) {
	if mode == engine.ModeSwap {
		if len(move) < 2 {
			return nil, fmt.Errorf("swap hint needs two cells, got %d", len(move))
		}
		return p.client.Swap(ctx, move[0], move[1])
	}
	return p.client.Select(ctx, move[0])
}

func printResult(w io.Writer, game int, r *GameResult) {
	status := "move limit reached"
	if r.Exhausted {
		status = "no moves left"
	}
	fmt.Fprintf(w, "Game %d: session %s seed %d, %d moves, score %d, %d tokens removed, longest chain %d (%s)\n",
		game, r.SessionID, r.Seed, r.Moves, r.Stats.Score, r.Stats.TokensRemoved, r.Stats.LongestChain, status)
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "autoplay",
		Usage: "play tile boards against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "server URL",
				Sources: cli.EnvVars("TILEMATCH_API_URL"),
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "configuration id for new sessions (server default when empty)",
			},
			&cli.StringFlag{
				Name:  "continue",
				Usage: "keep playing an existing session by ID",
			},
			&cli.IntFlag{
				Name:  "seed",
				Value: -1,
				Usage: "seed of the first game, later games count up from it (-1 lets the server pick)",
			},
			&cli.IntFlag{
				Name:  "games",
				Value: 1,
				Usage: "games to play",
			},
			&cli.IntFlag{
				Name:  "max-moves",
				Value: 500,
				Usage: "move limit per game",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Value: "largest",
				Usage: "move choice: " + strings.Join(StrategyNames(), ", "),
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "pause between moves",
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "reset a continued session to its opening board first",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log every move",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := logger.Init(cmd.Bool("debug")); err != nil {
				return err
			}
			defer logger.Sync()

			strategy, err := NewStrategy(cmd.String("strategy"))
			if err != nil {
				return err
			}
			games := cmd.Int("games")
			if games <= 0 {
				return fmt.Errorf("--games must be positive, got %d", games)
			}
			maxMoves := cmd.Int("max-moves")
			if maxMoves <= 0 {
				return fmt.Errorf("--max-moves must be positive, got %d", maxMoves)
			}

			client := NewClient(cmd.String("url"))
			player := NewPlayer(client, strategy, maxMoves, cmd.Duration("delay"))

			if id := cmd.String("continue"); id != "" {
				client.Use(id)
				if cmd.Bool("reset") {
					if _, err := client.Reset(ctx); err != nil {
						return err
					}
				}
				logger.Log.Infow("continuing session", "session", id, "strategy", strategy.Name())
				result, err := player.Play(ctx)
				if result != nil {
					printResult(out, 1, result)
				}
				return err
			}

			best := -1
			for game := 1; game <= games; game++ {
				var seed *uint64
				if s := cmd.Int("seed"); s >= 0 {
					v := uint64(s) + uint64(game-1)
					seed = &v
				}
				info, err := client.CreateSession(ctx, cmd.String("config"), seed)
				if err != nil {
					return err
				}
				logger.Log.Infow("game started", "game", game, "session", info.ID, "seed", info.Seed, "strategy", strategy.Name())

				result, err := player.Play(ctx)
				if result != nil {
					printResult(out, game, result)
					if result.Stats.Score > best {
						best = result.Stats.Score
					}
				}
				if err != nil {
					return err
				}
			}
			if games > 1 {
				fmt.Fprintf(out, "Best score over %d games: %d\n", games, best)
			}
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "autoplay: %v\n", err)
		os.Exit(1)
	}
}
