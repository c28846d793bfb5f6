package levelgen

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/wricardo/botloop/game/engine"
)

// Solver budgets. The defaults are also the hard caps.
const (
	DefaultSolveAttempts = 100000
	DefaultStatsRuns     = 10
	MaxStatsRuns         = 100
)

// SolveOptions controls the brute-force solver. Zero values select the defaults and larger
// values are capped at them.
type SolveOptions struct {
	Attempts int
	Steps    int
	Rand     *rand.Rand
}

func (o SolveOptions) withDefaults() SolveOptions {
	if o.Attempts <= 0 || o.Attempts > DefaultSolveAttempts {
		o.Attempts = DefaultSolveAttempts
	}
	if o.Steps <= 0 || o.Steps > DefaultSteps {
		o.Steps = DefaultSteps
	}
	if o.Rand == nil {
		o.Rand = NewRand(0)
	}
	return o
}

// Solution is the first random tape that cleared a board.
type Solution struct {
	Attempts int              `json:"attempts"`
	Steps    int              `json:"steps"`
	Commands int              `json:"commands"`
	Tape     []engine.Command `json:"tape"`
}

// Bruteforce samples uniformly random tapes (None included) and simulates each one until it
// clears the board or runs out of steps. Attempts and steps are counted from 1. The result is a
// coarse difficulty measure, not a shortest solution. ctx is checked once per attempt.
func Bruteforce(ctx context.Context, board *engine.Board, opts SolveOptions) (*Solution, error) {
	if _, ok := board.Goal(); !ok {
		return nil, fmt.Errorf("%w: board has no goal", engine.ErrMalformedBoard)
	}
	opts = opts.withDefaults()

	sim := engine.NewSimulation(board)
	tape := make([]engine.Command, board.Capacity())
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		randomTape(tape, opts.Rand, true)
		sim.Tape().Load(tape)
		sim.Program()
		if err := sim.Run(); err != nil {
			return nil, err
		}

		for step := 1; step <= opts.Steps; step++ {
			sim.RunCommand()
			if sim.State() == engine.Cleared {
				return &Solution{
					Attempts: attempt,
					Steps:    step,
					Commands: sim.Tape().Count(),
					Tape:     sim.Tape().Commands(),
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unsolved after %d tapes of %d steps", ErrSearchExhausted, opts.Attempts, opts.Steps)
}

// Stats aggregates several brute-force runs.
type Stats struct {
	Runs        int `json:"runs"`
	AvgAttempts int `json:"avg_attempts"`
	MinAttempts int `json:"min_attempts"`
	MaxAttempts int `json:"max_attempts"`
	MinSteps    int `json:"min_steps"`
	MaxSteps    int `json:"max_steps"`
	MinCommands int `json:"min_commands"`
	MaxCommands int `json:"max_commands"`
}

func (s Stats) String() string {
	return fmt.Sprintf("Avg Retries: %d - Retries: %d ~ %d - Steps: %d ~ %d - Commands: %d ~ %d",
		s.AvgAttempts, s.MinAttempts, s.MaxAttempts, s.MinSteps, s.MaxSteps, s.MinCommands, s.MaxCommands)
}

// BruteStats runs Bruteforce runs times (DefaultStatsRuns when runs <= 0, at most
// MaxStatsRuns) and reports the integer average attempt count and the min/max of attempts,
// steps and commands.
func BruteStats(ctx context.Context, board *engine.Board, runs int, opts SolveOptions) (*Stats, error) {
	if runs <= 0 {
		runs = DefaultStatsRuns
	}
	runs = min(runs, MaxStatsRuns)
	opts = opts.withDefaults()

	stats := &Stats{Runs: runs}
	total := 0
	for i := 0; i < runs; i++ {
		sol, err := Bruteforce(ctx, board, opts)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		total += sol.Attempts
		if i == 0 {
			stats.MinAttempts, stats.MaxAttempts = sol.Attempts, sol.Attempts
			stats.MinSteps, stats.MaxSteps = sol.Steps, sol.Steps
			stats.MinCommands, stats.MaxCommands = sol.Commands, sol.Commands
			continue
		}
		stats.MinAttempts = min(stats.MinAttempts, sol.Attempts)
		stats.MaxAttempts = max(stats.MaxAttempts, sol.Attempts)
		stats.MinSteps = min(stats.MinSteps, sol.Steps)
		stats.MaxSteps = max(stats.MaxSteps, sol.Steps)
		stats.MinCommands = min(stats.MinCommands, sol.Commands)
		stats.MaxCommands = max(stats.MaxCommands, sol.Commands)
	}
	stats.AvgAttempts = total / runs
	return stats, nil
}
