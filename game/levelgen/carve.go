package levelgen

import (
	"fmt"
	"math/rand/v2"

	"github.com/wricardo/botloop/game/engine"
)

// Generated board sizes.
const (
	MinSize = 7
	MaxSize = 19
)

// movesPerRound is the length of one random walk between visited-cell checks.
const movesPerRound = 100

const unvisited int8 = -1

// RandomSize picks an odd size between MinSize and MaxSize.
func RandomSize(rng *rand.Rand) int {
	return 1 + 2*(MinSize/2+rng.IntN(MaxSize/2-MinSize/2+1))
}

// Carve digs a maze into a size×size block of walls. A walker starts in an open 5x5 room at
// the center and jumps two cells at a time, opening every cell it lands on for the first time
// together with the cell in between. The first pass walks until every odd cell is open; the
// second pass is one more round over the finished maze, which opens extra passages and loops.
// maxRounds bounds the first pass.
func Carve(size int, rng *rand.Rand, maxRounds int) (*engine.Layout, error) {
	if size < MinSize || size%2 == 0 || size > engine.MaxBoardSize {
		return nil, fmt.Errorf("maze size must be odd and between %d and %d, got %d", MinSize, engine.MaxBoardSize, size)
	}
	if maxRounds < 1 {
		maxRounds = 1
	}

	marks := make([]int8, size*size)
	for i := range marks {
		marks[i] = unvisited
	}
	at := func(x, y int) *int8 { return &marks[y*size+x] }

	for pass := int8(0); pass < 2; pass++ {
		cx, cy := size/2|1, size/2|1
		for y := cy - 2; y <= cy+2; y++ {
			for x := cx - 2; x <= cx+2; x++ {
				*at(x, y) = pass
			}
		}

		for round := 1; ; round++ {
			for i := 0; i < movesPerRound; i++ {
				ox, oy := cx, cy
				switch rng.IntN(4) {
				case 0:
					if cx < size-2 {
						cx += 2
					}
				case 1:
					if cy < size-2 {
						cy += 2
					}
				case 2:
					if cx > 2 {
						cx -= 2
					}
				case 3:
					if cy > 2 {
						cy -= 2
					}
				}
				if *at(cx, cy) == pass {
					continue
				}
				*at(cx, cy) = pass
				*at((cx+ox)/2, (cy+oy)/2) = pass
			}

			if allVisited(marks, size) {
				break
			}
			if round >= maxRounds {
				return nil, fmt.Errorf("%w: maze not connected after %d rounds", ErrSearchExhausted, round)
			}
		}
	}

	l := engine.NewLayout(size, engine.MinCapacity)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if *at(x, y) != unvisited {
				l.Set(x, y, engine.Floor)
			}
		}
	}
	return l, nil
}

func allVisited(marks []int8, size int) bool {
	for y := 1; y < size; y += 2 {
		for x := 1; x < size; x += 2 {
			if marks[y*size+x] == unvisited {
				return false
			}
		}
	}
	return true
}

// PlaceStart puts the start on a random open cell at least two cells away from the border,
// facing a random direction.
func PlaceStart(l *engine.Layout, rng *rand.Rand) (engine.Pose, error) {
	var candidates []engine.Position
	for y := 2; y <= l.Size-3; y++ {
		for x := 2; x <= l.Size-3; x++ {
			if l.At(x, y) == engine.Floor {
				candidates = append(candidates, engine.Position{X: x, Y: y})
			}
		}
	}
	if len(candidates) == 0 {
		return engine.Pose{}, fmt.Errorf("%w: no open cell for the start", ErrSearchExhausted)
	}

	start := engine.Pose{Position: candidates[rng.IntN(len(candidates))], Dir: rng.IntN(4)}
	l.PlaceStart(start)
	return start, nil
}
