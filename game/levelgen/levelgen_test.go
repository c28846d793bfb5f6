package levelgen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wricardo/botloop/game/engine"
)

func TestRandomSize(t *testing.T) {
	rng := NewRand(1)
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		size := RandomSize(rng)
		require.True(t, size >= MinSize && size <= MaxSize, "size %d out of range", size)
		require.Equal(t, 1, size%2, "size %d must be odd", size)
		seen[size] = true
	}
	require.Len(t, seen, 7, "expected every odd size from 7 to 19")
}

func TestCarve(t *testing.T) {
	t.Parallel()

	for _, size := range []int{7, 11, 19} {
		layout, err := Carve(size, NewRand(uint64(size)), DefaultCarveRounds)
		require.NoError(t, err)
		require.Equal(t, size, layout.Size)

		// The border stays closed and every odd cell is open.
		for i := 0; i < size; i++ {
			require.Equal(t, engine.Wall, layout.At(i, 0))
			require.Equal(t, engine.Wall, layout.At(i, size-1))
			require.Equal(t, engine.Wall, layout.At(0, i))
			require.Equal(t, engine.Wall, layout.At(size-1, i))
		}
		for y := 1; y < size; y += 2 {
			for x := 1; x < size; x += 2 {
				require.Equal(t, engine.Floor, layout.At(x, y), "odd cell (%d,%d) should be open", x, y)
			}
		}

		// All open cells form one region.
		start, err := PlaceStart(layout, NewRand(3))
		require.NoError(t, err)
		require.True(t, start.X >= 2 && start.X <= size-3 && start.Y >= 2 && start.Y <= size-3)
		probe, err := layout.Probe()
		require.NoError(t, err)

		open := 0
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if layout.At(x, y) != engine.Wall {
					open++
				}
			}
		}
		reachable := Reachable(probe)
		require.Equal(t, open, reachable.Size())
	}
}

func TestCarve_Deterministic(t *testing.T) {
	a, err := Carve(13, NewRand(42), DefaultCarveRounds)
	require.NoError(t, err)
	b, err := Carve(13, NewRand(42), DefaultCarveRounds)
	require.NoError(t, err)
	require.Equal(t, a.Tiles, b.Tiles)
}

func TestCarve_InvalidSize(t *testing.T) {
	for _, size := range []int{0, 5, 8, 33} {
		_, err := Carve(size, NewRand(1), DefaultCarveRounds)
		require.Error(t, err, "size %d", size)
	}
}

func TestCarve_Exhausted(t *testing.T) {
	// One round of 100 moves cannot reach every odd cell of the largest maze.
	_, err := Carve(31, NewRand(7), 1)
	require.ErrorIs(t, err, ErrSearchExhausted)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	level, err := Generate(context.Background(), Options{
		Size:     9,
		Capacity: 3,
		Attempts: 300,
		Steps:    300,
		Rand:     NewRand(2024),
	})
	require.NoError(t, err)
	require.NotNil(t, level)

	b := level.Board
	require.Equal(t, 9, b.Size())
	require.Equal(t, 3, b.Capacity())
	require.GreaterOrEqual(t, level.Radius, 1)
	require.GreaterOrEqual(t, level.Distance, float64(level.Radius))
	require.Contains(t, level.ID, "gen-")

	start := b.Start().Position
	goal, ok := b.Goal()
	require.True(t, ok)
	require.NotEqual(t, start, goal)
	if level.Radius > 1 {
		require.NotEqual(t, start.X, goal.X)
		require.NotEqual(t, start.Y, goal.Y)
	}

	// The encoded board parses back.
	again, err := engine.ParseBoard(b.Encode())
	require.NoError(t, err)
	require.Equal(t, b.Encode(), again.Encode())

	// The witness tape clears the board exactly when the search saw it reach the goal.
	require.Len(t, level.Witness, 3)
	sim := engine.NewSimulation(b)
	sim.Tape().Load(level.Witness)
	require.NoError(t, sim.Run())
	for i := 0; i < level.WitnessSteps; i++ {
		require.NotEqual(t, engine.Cleared, sim.State(), "cleared early at step %d", i)
		sim.RunCommand()
	}
	require.Equal(t, engine.Cleared, sim.State())
}

func TestGenerate_RandomSize(t *testing.T) {
	t.Parallel()

	level, err := Generate(context.Background(), Options{Capacity: 2, Attempts: 200, Steps: 200, Rand: NewRand(99)})
	require.NoError(t, err)
	size := level.Board.Size()
	require.True(t, size >= MinSize && size <= MaxSize && size%2 == 1)
}

func TestGenerate_InvalidOptions(t *testing.T) {
	_, err := Generate(context.Background(), Options{Capacity: 0})
	require.Error(t, err)
	_, err = Generate(context.Background(), Options{Capacity: 13})
	require.Error(t, err)
	_, err = Generate(context.Background(), Options{Capacity: 2, Size: 10, Rand: NewRand(1)})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrSearchExhausted))
}

func stageBoard(t *testing.T, id string) *engine.Board {
	t.Helper()
	stage, ok := engine.StageByID(id)
	require.True(t, ok, "unknown stage %s", id)
	return stage.Board()
}

func TestBruteforce(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"stage-1", "stage-2", "stage-3"} {
		board := stageBoard(t, id)
		sol, err := Bruteforce(context.Background(), board, SolveOptions{Rand: NewRand(5)})
		require.NoError(t, err, id)
		require.GreaterOrEqual(t, sol.Attempts, 1)
		require.GreaterOrEqual(t, sol.Steps, 1)
		require.LessOrEqual(t, sol.Steps, DefaultSteps)
		require.Len(t, sol.Tape, board.Capacity())

		nonEmpty := 0
		for _, c := range sol.Tape {
			if c != engine.None {
				nonEmpty++
			}
		}
		require.Equal(t, nonEmpty, sol.Commands)

		// Replaying the tape clears the board after the reported number of steps.
		sim := engine.NewSimulation(board)
		sim.Tape().Load(sol.Tape)
		require.NoError(t, sim.Run())
		for i := 0; i < sol.Steps; i++ {
			sim.RunCommand()
		}
		require.Equal(t, engine.Cleared, sim.State(), id)
	}
}

func TestBruteforce_Deterministic(t *testing.T) {
	board := stageBoard(t, "stage-2")
	a, err := Bruteforce(context.Background(), board, SolveOptions{Rand: NewRand(11)})
	require.NoError(t, err)
	b, err := Bruteforce(context.Background(), board, SolveOptions{Rand: NewRand(11)})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestBruteforce_Unsolvable(t *testing.T) {
	board, err := engine.ParseBoard("1" +
		"#####" +
		"#####" +
		"#G#U#" +
		"#####" +
		"#####")
	require.NoError(t, err)

	_, err = Bruteforce(context.Background(), board, SolveOptions{Attempts: 50, Steps: 50, Rand: NewRand(1)})
	require.ErrorIs(t, err, ErrSearchExhausted)

	_, err = BruteStats(context.Background(), board, 2, SolveOptions{Attempts: 10, Steps: 10, Rand: NewRand(1)})
	require.ErrorIs(t, err, ErrSearchExhausted)
}

func TestBruteStats(t *testing.T) {
	t.Parallel()

	stats, err := BruteStats(context.Background(), stageBoard(t, "stage-1"), 0, SolveOptions{Rand: NewRand(8)})
	require.NoError(t, err)
	require.Equal(t, DefaultStatsRuns, stats.Runs)
	require.LessOrEqual(t, stats.MinAttempts, stats.AvgAttempts)
	require.LessOrEqual(t, stats.AvgAttempts, stats.MaxAttempts)
	require.LessOrEqual(t, stats.MinSteps, stats.MaxSteps)
	// Stage 1 has one slot and only FORWARD clears it.
	require.Equal(t, 1, stats.MinCommands)
	require.Equal(t, 1, stats.MaxCommands)
	require.Equal(t, 4, stats.MinSteps)
	require.Contains(t, stats.String(), "Avg Retries:")
}

func TestPathLength(t *testing.T) {
	n, ok := PathLength(stageBoard(t, "stage-1"))
	require.True(t, ok)
	require.Equal(t, 4, n)

	n, ok = PathLength(stageBoard(t, "stage-2"))
	require.True(t, ok)
	require.Equal(t, 6, n)

	walled, err := engine.ParseBoard("1" + "#####" + "#####" + "#G#U#" + "#####" + "#####")
	require.NoError(t, err)
	_, ok = PathLength(walled)
	require.False(t, ok)
	require.Equal(t, 1, Reachable(walled).Size())
}

func TestSearchesStopOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Bruteforce(ctx, stageBoard(t, "stage-2"), SolveOptions{Rand: NewRand(1)})
	require.ErrorIs(t, err, context.Canceled)

	_, err = BruteStats(ctx, stageBoard(t, "stage-2"), 3, SolveOptions{Rand: NewRand(1)})
	require.ErrorIs(t, err, context.Canceled)

	_, err = Generate(ctx, Options{Size: 9, Capacity: 2, Rand: NewRand(1)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBruteforce_DeadlineOnUnsolvableBoard(t *testing.T) {
	board, err := engine.ParseBoard("1" +
		"#####" +
		"#####" +
		"#G#U#" +
		"#####" +
		"#####")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = Bruteforce(ctx, board, SolveOptions{Attempts: 2000000000, Steps: 2000000000, Rand: NewRand(1)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOptionsAreCapped(t *testing.T) {
	solve := SolveOptions{Attempts: 2000000000, Steps: 2000000000}.withDefaults()
	require.Equal(t, DefaultSolveAttempts, solve.Attempts)
	require.Equal(t, DefaultSteps, solve.Steps)

	gen := Options{Attempts: 2000000000, Steps: 2000000000}.withDefaults()
	require.Equal(t, DefaultAttempts, gen.Attempts)
	require.Equal(t, DefaultSteps, gen.Steps)
}

func TestBruteStats_RunsCapped(t *testing.T) {
	stats, err := BruteStats(context.Background(), stageBoard(t, "stage-1"), 1000000, SolveOptions{Rand: NewRand(3)})
	require.NoError(t, err)
	require.Equal(t, MaxStatsRuns, stats.Runs)
}
