package levelgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/wricardo/botloop/game/engine"
)

// ErrSearchExhausted is returned when a bounded random search gives up.
var ErrSearchExhausted = errors.New("search exhausted")

// Search budgets. Attempts and Steps above the defaults are capped at them.
const (
	DefaultAttempts    = 10000
	DefaultSteps       = 1000
	DefaultBoards      = 3
	DefaultCarveRounds = 1000
)

// Options controls level generation. Zero values select the defaults.
type Options struct {
	// Size is the board side; 0 picks a random odd size between MinSize and MaxSize for every
	// board tried.
	Size     int
	Capacity int
	// Attempts is the number of random tapes tried per goal radius.
	Attempts int
	// Steps is how long each random tape is simulated.
	Steps int
	// Boards is how many mazes are carved before giving up.
	Boards      int
	CarveRounds int
	Rand        *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 || o.Attempts > DefaultAttempts {
		o.Attempts = DefaultAttempts
	}
	if o.Steps <= 0 || o.Steps > DefaultSteps {
		o.Steps = DefaultSteps
	}
	if o.Boards <= 0 {
		o.Boards = DefaultBoards
	}
	if o.CarveRounds <= 0 {
		o.CarveRounds = DefaultCarveRounds
	}
	if o.Rand == nil {
		o.Rand = NewRand(0)
	}
	return o
}

// NewRand returns a PCG source for seed, or a randomly seeded one when seed is 0.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Level is a generated board together with the tape that proved its goal reachable.
type Level struct {
	ID       string
	Board    *engine.Board
	Radius   int
	Distance float64
	// Attempts counts random tapes simulated during the goal search of the accepted board.
	Attempts int
	// Witness reaches the goal after WitnessSteps steps following Run.
	Witness      []engine.Command
	WitnessSteps int
}

// Generate carves a random maze, places a start and searches for a goal that some random tape
// of the requested capacity actually reaches. The goal search starts with a radius equal to the
// board size and accepts the first cell visited at least that far (straight-line) from the start
// and off both of its axes; each radius gets Options.Attempts tapes before shrinking, down to 1,
// where any cell other than the start is accepted. If even that fails a fresh maze is carved.
func Generate(ctx context.Context, opts Options) (*Level, error) {
	if opts.Capacity < engine.MinCapacity || opts.Capacity > engine.MaxCapacity {
		return nil, fmt.Errorf("capacity must be between %d and %d, got %d", engine.MinCapacity, engine.MaxCapacity, opts.Capacity)
	}
	opts = opts.withDefaults()

	var lastErr error
	for board := 1; board <= opts.Boards; board++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size := opts.Size
		if size == 0 {
			size = RandomSize(opts.Rand)
		}

		layout, err := Carve(size, opts.Rand, opts.CarveRounds)
		if err != nil {
			if !errors.Is(err, ErrSearchExhausted) {
				return nil, err
			}
			lastErr = err
			continue
		}
		layout.Capacity = opts.Capacity
		if _, err := PlaceStart(layout, opts.Rand); err != nil {
			lastErr = err
			continue
		}

		level, err := placeGoal(ctx, layout, opts)
		if err == nil {
			return level, nil
		}
		if !errors.Is(err, ErrSearchExhausted) {
			return nil, err
		}
		slog.Debug("regenerating maze", "board", board, "size", size, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("no level after %d boards: %w", opts.Boards, lastErr)
}

func placeGoal(ctx context.Context, layout *engine.Layout, opts Options) (*Level, error) {
	probe, err := layout.Probe()
	if err != nil {
		return nil, err
	}
	start := probe.Start().Position
	sim := engine.NewSimulation(probe)
	tape := make([]engine.Command, opts.Capacity)
	attempts := 0

	for radius := layout.Size; radius >= 1; radius-- {
		for try := 0; try < opts.Attempts; try++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			attempts++
			randomTape(tape, opts.Rand, false)
			sim.Tape().Load(tape)
			sim.Program()
			if err := sim.Run(); err != nil {
				return nil, err
			}

			for step := 1; step <= opts.Steps; step++ {
				sim.RunCommand()
				p := sim.Bot().Pose.Position
				offAxis := p.X != start.X && p.Y != start.Y
				dist := distance(start, p)
				if (offAxis || radius <= 1) && dist >= float64(radius) {
					layout.Set(p.X, p.Y, engine.Goal)
					board, err := layout.Board()
					if err != nil {
						return nil, err
					}
					witness := make([]engine.Command, len(tape))
					copy(witness, tape)
					return &Level{
						ID:           "gen-" + uuid.NewString()[:8],
						Board:        board,
						Radius:       radius,
						Distance:     dist,
						Attempts:     attempts,
						Witness:      witness,
						WitnessSteps: step,
					}, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: no goal after %d tapes", ErrSearchExhausted, attempts)
}

// randomTape fills tape with uniformly random commands, leaving out None unless withNone is set.
func randomTape(tape []engine.Command, rng *rand.Rand, withNone bool) {
	lo := 1
	if withNone {
		lo = 0
	}
	for i := range tape {
		tape[i] = engine.Command(lo + rng.IntN(engine.CommandCount-lo))
	}
}

func distance(a, b engine.Position) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
