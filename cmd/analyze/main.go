// Command analyze prints quick, human-readable heuristics about levels: the built-in stages
// and every level in a level directory. It summarizes dimensions, tape capacity, wall density,
// floor cells reachable from the start and the start-goal distances, and highlights levels
// whose goal is walled off.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/wricardo/botloop/game/config"
	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
	"github.com/wricardo/botloop/game/render"
)

// Analysis holds the heuristics of one level.
type Analysis struct {
	ID          string
	Name        string
	Size        int
	Capacity    int
	Walls       int
	Floor       int
	Reachable   int
	Manhattan   int
	Straight    float64
	PathLength  int
	GoalReached bool
}

// WallDensity is the share of wall tiles on the board.
func (a Analysis) WallDensity() float64 {
	return float64(a.Walls) / float64(a.Size*a.Size)
}

func main() {
	levelDir := flag.String("level-dir", "levels", "directory containing level files")
	draw := flag.Bool("draw", false, "draw every board")
	flag.Parse()

	manager, err := config.NewManager(*levelDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	levels, err := manager.ListConfigs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	renderer := render.Auto()
	for _, info := range levels {
		fmt.Printf("\n=== Analyzing %s ===\n", info.ConfigID)
		cfg, err := manager.LoadConfig(info.ConfigID)
		if err != nil {
			fmt.Printf("Error loading level: %v\n", err)
			continue
		}
		board, err := cfg.Board()
		if err != nil {
			fmt.Printf("Error building board: %v\n", err)
			continue
		}
		if *draw {
			fmt.Println(renderer.Board(board))
		}
		printAnalysis(os.Stdout, analyzeLevel(info.ConfigID, cfg.Name, board))
	}
}

func analyzeLevel(id, name string, board *engine.Board) Analysis {
	a := Analysis{
		ID:       id,
		Name:     name,
		Size:     board.Size(),
		Capacity: board.Capacity(),
	}

	for y := 0; y < a.Size; y++ {
		for x := 0; x < a.Size; x++ {
			if board.TileAt(x, y) == engine.Wall {
				a.Walls++
			} else {
				a.Floor++
			}
		}
	}
	a.Reachable = levelgen.Reachable(board).Size()

	start := board.Start().Position
	if goal, ok := board.Goal(); ok {
		a.Manhattan = abs(goal.X-start.X) + abs(goal.Y-start.Y)
		a.Straight = math.Hypot(float64(goal.X-start.X), float64(goal.Y-start.Y))
		a.PathLength, a.GoalReached = levelgen.PathLength(board)
	}
	return a
}

func printAnalysis(w io.Writer, a Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d\n", a.Size, a.Size)
	fmt.Fprintf(w, "Tape Capacity: %d\n", a.Capacity)
	fmt.Fprintf(w, "Wall Density: %.0f%%\n", a.WallDensity()*100)
	fmt.Fprintf(w, "Reachable Floor: %d of %d\n", a.Reachable, a.Floor)
	fmt.Fprintf(w, "Start-Goal Distance: %d manhattan, %.1f straight\n", a.Manhattan, a.Straight)

	if !a.GoalReached {
		fmt.Fprintf(w, "⚠️  CRITICAL: the goal cannot be reached from the start\n")
		return
	}
	fmt.Fprintf(w, "Shortest Path: %d moves\n", a.PathLength)
	if a.Reachable < a.Floor {
		fmt.Fprintf(w, "⚠️  WARNING: %d floor cells are walled off\n", a.Floor-a.Reachable)
	} else {
		fmt.Fprintf(w, "✅ All floor cells are reachable\n")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
