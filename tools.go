package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/render"
	"github.com/wricardo/botloop/game/service"
	"github.com/wricardo/botloop/game/tapelang"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

func gameService(cmd *cli.Command) (service.GameService, error) {
	svc, err := initializeServices(cmd.String("level-dir"))
	if err != nil {
		return nil, err
	}
	return svc.game, nil
}

func levelArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one level id, got %d arguments", cmd.Args().Len())
	}
	return cmd.Args().First(), nil
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{
			Name:  "seed",
			Usage: "random seed (0 picks one)",
		},
		&cli.IntFlag{
			Name:  "attempts",
			Usage: "random tapes tried before giving up (0 uses the default)",
		},
		&cli.IntFlag{
			Name:  "steps",
			Usage: "steps each tape is simulated (0 uses the default)",
		},
	}
}

func solveRequest(cmd *cli.Command) service.SolveRequest {
	return service.SolveRequest{
		Seed:     cmd.Uint64("seed"),
		Attempts: cmd.Int("attempts"),
		Steps:    cmd.Int("steps"),
	}
}

func boardsCommand() *cli.Command {
	return &cli.Command{
		Name:  "boards",
		Usage: "list levels, or print one level's board",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list every known level",
				Action: listBoards,
			},
			{
				Name:      "print",
				Usage:     "draw a level",
				ArgsUsage: "<level>",
				Action:    printBoard,
			},
		},
		Action: listBoards,
	}
}

func listBoards(ctx context.Context, cmd *cli.Command) error {
	svc, err := gameService(cmd)
	if err != nil {
		return err
	}
	levels, err := svc.ListConfigs(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tCAPACITY\tSOURCE")
	for _, l := range levels {
		name := l.Name
		if l.Bonus {
			name += " (bonus)"
		}
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%s\n", l.ConfigID, name, l.Size, l.Size, l.Capacity, l.Source)
	}
	return w.Flush()
}

func printBoard(ctx context.Context, cmd *cli.Command) error {
	id, err := levelArg(cmd)
	if err != nil {
		return err
	}
	svc, err := gameService(cmd)
	if err != nil {
		return err
	}
	cfg, err := svc.LoadConfig(ctx, id)
	if err != nil {
		return err
	}
	board, err := cfg.Board()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s (%s)\n", cfg.Name, id)
	if cfg.Description != "" {
		fmt.Fprintln(stdout, cfg.Description)
	}
	fmt.Fprintln(stdout, render.Auto().Board(board))
	fmt.Fprintf(stdout, "capacity %d\n", cfg.Capacity)
	return nil
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "generate a level solvable by a random tape",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:     "capacity",
				Usage:    "tape capacity",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "odd board size (0 picks one)",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "write the level to the level directory",
			},
		}, searchFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := gameService(cmd)
			if err != nil {
				return err
			}
			level, err := svc.GenerateLevel(ctx, service.GenerateRequest{
				Capacity: cmd.Int("capacity"),
				Size:     cmd.Int("size"),
				Seed:     cmd.Uint64("seed"),
				Attempts: cmd.Int("attempts"),
				Steps:    cmd.Int("steps"),
				Save:     cmd.Bool("save"),
			})
			if err != nil {
				return err
			}
			board, err := level.Config.Board()
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "%s  radius %d  distance %.1f\n", level.ConfigID, level.Radius, level.Distance)
			fmt.Fprintln(stdout, render.Auto().Board(board))
			fmt.Fprintf(stdout, "witness: %s (clears after %d steps)\n", tapelang.Format(level.Witness), level.WitnessSteps)
			if level.Saved {
				fmt.Fprintf(stdout, "saved to %s/%s.json\n", cmd.String("level-dir"), level.ConfigID)
			}
			return nil
		},
	}
}

func solveCommand() *cli.Command {
	return &cli.Command{
		Name:      "solve",
		Usage:     "brute-force a random tape that clears a level",
		ArgsUsage: "<level>",
		Flags:     searchFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := levelArg(cmd)
			if err != nil {
				return err
			}
			svc, err := gameService(cmd)
			if err != nil {
				return err
			}
			solution, err := svc.SolveLevel(ctx, id, solveRequest(cmd))
			if err != nil {
				return err
			}
			return replay(ctx, svc, id, solution.Tape, solution.Attempts)
		},
	}
}

// replay plays tape on a scratch session and prints the cleared board.
func replay(ctx context.Context, svc service.GameService, levelID string, tape []engine.Command, attempts int) error {
	info, err := svc.CreateSession(ctx, levelID)
	if err != nil {
		return err
	}
	defer svc.DeleteSession(ctx, info.ID)

	if _, err := svc.LoadTape(ctx, info.ID, tapelang.Format(tape)); err != nil {
		return err
	}
	result, err := svc.Step(ctx, info.ID, service.MaxStepsPerCall)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "tape %s found after %d attempts\n", tapelang.Format(tape), attempts)
	fmt.Fprintln(stdout, render.Auto().State(result.GameState))
	return nil
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "difficulty estimate from repeated brute-force runs",
		ArgsUsage: "<level>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "runs",
				Value: 10,
				Usage: "number of brute-force runs",
			},
		}, searchFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := levelArg(cmd)
			if err != nil {
				return err
			}
			svc, err := gameService(cmd)
			if err != nil {
				return err
			}
			req := solveRequest(cmd)
			req.Runs = cmd.Int("runs")
			stats, err := svc.LevelStats(ctx, id, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s (%d runs): %s\n", id, stats.Runs, stats)
			return nil
		},
	}
}
