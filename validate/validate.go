// Command validate checks the level files of a level directory. For every level in every
// *.json and *.hcl file it checks:
//   - the file parses and the level config is valid (name, capacity, square layout)
//   - the board is closed: every border tile is a wall
//   - the board has a goal and the goal is reachable from the start
//   - a random tape of the level's capacity clears it within the search budget
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/botloop/game/config"
	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
	"github.com/wricardo/botloop/game/tapelang"
)

// ValidationResult captures the outcome of validating a single level.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Level  string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateFile validates every level of a .json or .hcl file.
func validateFile(path string, opts levelgen.SolveOptions) []ValidationResult {
	file := filepath.Base(path)
	if strings.HasSuffix(path, ".hcl") {
		levels, err := config.ParseHCLFile(path)
		if err != nil {
			r := ValidationResult{File: file, Valid: true}
			r.fail("Invalid HCL: %v", err)
			return []ValidationResult{r}
		}
		ids := make([]string, 0, len(levels))
		for id := range levels {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		results := make([]ValidationResult, 0, len(ids))
		for _, id := range ids {
			results = append(results, validateLevel(file, id, levels[id], opts))
		}
		return results
	}

	id := strings.TrimSuffix(file, filepath.Ext(file))
	cfg, err := engine.LoadLevelConfig(path)
	if err != nil {
		r := ValidationResult{File: file, Level: id, Valid: true}
		r.fail("Failed to load level: %v", err)
		return []ValidationResult{r}
	}
	return []ValidationResult{validateLevel(file, id, cfg, opts)}
}

// validateLevel runs the structural, reachability and solvability checks on one level.
func validateLevel(file, id string, cfg *engine.LevelConfig, opts levelgen.SolveOptions) ValidationResult {
	result := ValidationResult{File: file, Level: id, Valid: true, Errors: []string{}}

	if err := engine.ValidateLevelConfig(cfg); err != nil {
		result.fail("%v", err)
		return result
	}
	board, err := cfg.Board()
	if err != nil {
		result.fail("%v", err)
		return result
	}

	for _, p := range openBorder(board) {
		result.fail("Border tile at (%d,%d) is not a wall", p.X, p.Y)
	}
	if _, ok := board.Goal(); !ok {
		result.fail("Level has no goal (G)")
		return result
	}
	length, reachable := levelgen.PathLength(board)
	if !reachable {
		result.fail("Goal is not reachable from the start")
		return result
	}
	if !result.Valid {
		return result
	}

	solution, err := levelgen.Bruteforce(context.Background(), board, opts)
	if err != nil {
		result.fail("No random tape cleared the level: %v", err)
		return result
	}

	result.info("Name: %s", cfg.Name)
	result.info("Grid: %dx%d", board.Size(), board.Size())
	result.info("Capacity: %d", board.Capacity())
	result.info("Shortest path: %d moves", length)
	result.info("Solved by %s after %d tapes", tapelang.Format(solution.Tape), solution.Attempts)
	return result
}

// openBorder returns the border positions that are not walls.
func openBorder(board *engine.Board) []engine.Position {
	var open []engine.Position
	n := board.Size()
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if x != 0 && y != 0 && x != n-1 && y != n-1 {
				continue
			}
			if board.TileAt(x, y) != engine.Wall {
				open = append(open, engine.Position{X: x, Y: y})
			}
		}
	}
	return open
}

// main scans the level directory for *.json and *.hcl files and validates each level,
// printing a concise report and exiting with non-zero status if any are invalid.
func main() {
	levelDir := flag.String("level-dir", "levels", "directory containing level files")
	seed := flag.Uint64("seed", 1, "random seed for the solvability check")
	attempts := flag.Int("attempts", levelgen.DefaultSolveAttempts, "random tapes tried per level")
	flag.Parse()

	var files []string
	for _, pattern := range []string{"*.json", "*.hcl"} {
		matches, err := filepath.Glob(filepath.Join(*levelDir, pattern))
		if err != nil {
			fmt.Printf("Error finding level files: %v\n", err)
			os.Exit(1)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	opts := levelgen.SolveOptions{Attempts: *attempts, Rand: levelgen.NewRand(*seed)}
	allValid := true
	for _, file := range files {
		for _, result := range validateFile(file, opts) {
			fmt.Printf("\n%s %s (%s)\n", strings.Repeat("=", 20), result.Level, result.File)

			if result.Valid {
				fmt.Println("✅ VALID")
				for _, info := range result.Errors {
					fmt.Println("  " + info)
				}
			} else {
				fmt.Println("❌ INVALID")
				allValid = false
				for _, err := range result.Errors {
					if !strings.HasPrefix(err, "✓") {
						fmt.Println("  ❌ " + err)
					}
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Printf("✅ All %d level files are valid!\n", len(files))
	} else {
		fmt.Println("❌ Some levels have errors")
		os.Exit(1)
	}
}
