package levelgen

import (
	"github.com/zyedidia/generic/mapset"

	"github.com/wricardo/botloop/game/engine"
)

var neighbors = []engine.Position{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}}

// Reachable returns every open cell connected to the start by orthogonal moves.
func Reachable(board *engine.Board) mapset.Set[engine.Position] {
	reachable := mapset.New[engine.Position]()
	queue := []engine.Position{board.Start().Position}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if board.Blocked(current) || reachable.Has(current) {
			continue
		}
		reachable.Put(current)

		for _, d := range neighbors {
			n := current.Add(d)
			if !board.Blocked(n) && !reachable.Has(n) {
				queue = append(queue, n)
			}
		}
	}
	return reachable
}

// PathLength returns the length of the shortest orthogonal path from start to goal, ignoring
// orientation and tape capacity. ok is false when the goal is walled off.
func PathLength(board *engine.Board) (length int, ok bool) {
	goal, hasGoal := board.Goal()
	if !hasGoal {
		return 0, false
	}

	visited := mapset.New[engine.Position]()
	frontier := []engine.Position{board.Start().Position}
	visited.Put(frontier[0])
	for dist := 0; len(frontier) > 0; dist++ {
		var next []engine.Position
		for _, p := range frontier {
			if p == goal {
				return dist, true
			}
			for _, d := range neighbors {
				n := p.Add(d)
				if board.Blocked(n) || visited.Has(n) {
					continue
				}
				visited.Put(n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return 0, false
}
