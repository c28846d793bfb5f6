package engine

import (
	"fmt"
	"math"
	"strings"
)

// Board is an immutable square tile grid with a tape capacity, one start pose and one goal.
// Tiles are stored with row 0 as the bottom row, so TileAt(x, 0) reads the last line of the
// packed string.
type Board struct {
	size     int
	capacity int
	tiles    []Tile
	start    Pose
	goal     Position
	hasGoal  bool
}

// ParseBoard decodes the packed level encoding: one capacity character ('0' + capacity)
// followed by N*N grid characters, top row first.
func ParseBoard(packed string) (*Board, error) {
	if len(packed) < 2 {
		return nil, fmt.Errorf("%w: encoding too short (%d bytes)", ErrMalformedBoard, len(packed))
	}
	capacity := int(packed[0]) - '0'
	grid := packed[1:]
	size := int(math.Sqrt(float64(len(grid))) + 0.5)
	if size*size != len(grid) {
		return nil, fmt.Errorf("%w: %d grid characters is not a perfect square", ErrMalformedBoard, len(grid))
	}

	rows := make([]string, size)
	for i := range rows {
		rows[i] = grid[i*size : (i+1)*size]
	}
	return NewBoard(capacity, rows)
}

// MustParseBoard is ParseBoard for static boards known to be valid.
func MustParseBoard(packed string) *Board {
	b, err := ParseBoard(packed)
	if err != nil {
		panic(err)
	}
	return b
}

// NewBoard builds a board from rows listed top row first.
func NewBoard(capacity int, rows []string) (*Board, error) {
	l, err := layoutFromRows(capacity, rows)
	if err != nil {
		return nil, err
	}
	return l.Board()
}

func layoutFromRows(capacity int, rows []string) (*Layout, error) {
	size := len(rows)
	if size < MinBoardSize || size > MaxBoardSize {
		return nil, fmt.Errorf("%w: board size must be between %d and %d, got %d", ErrMalformedBoard, MinBoardSize, MaxBoardSize, size)
	}

	l := NewLayout(size, capacity)
	for i, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("%w: row %d must have %d characters, got %d", ErrMalformedBoard, i+1, size, len(row))
		}
		y := size - 1 - i
		for x := 0; x < size; x++ {
			ch := row[x]
			switch ch {
			case '#':
				l.Set(x, y, Wall)
			case ' ':
				l.Set(x, y, Floor)
			case 'G':
				l.Set(x, y, Goal)
			case 'R', 'U', 'L', 'D':
				l.PlaceStart(Pose{Position: Position{X: x, Y: y}, Dir: strings.IndexByte(startChars, ch)})
			default:
				return nil, fmt.Errorf("%w: invalid character %q at row %d, col %d", ErrMalformedBoard, ch, i+1, x+1)
			}
		}
	}
	return l, nil
}

// Size returns the side length N.
func (b *Board) Size() int { return b.size }

// Capacity returns the number of tape slots for this board.
func (b *Board) Capacity() int { return b.capacity }

// Start returns the start pose.
func (b *Board) Start() Pose { return b.start }

// Goal returns the goal position. ok is false for boards built without a goal (generator probes).
func (b *Board) Goal() (goal Position, ok bool) { return b.goal, b.hasGoal }

// IsGoal reports whether p is the goal tile.
func (b *Board) IsGoal(p Position) bool {
	return b.hasGoal && p == b.goal
}

// InBounds reports whether x,y lies on the board.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.size && y >= 0 && y < b.size
}

// TileAt returns the tile at x,y. Coordinates off the board read as Wall.
func (b *Board) TileAt(x, y int) Tile {
	if !b.InBounds(x, y) {
		return Wall
	}
	return b.tiles[y*b.size+x]
}

// Blocked reports whether a bot may not enter p.
func (b *Board) Blocked(p Position) bool {
	return !b.InBounds(p.X, p.Y) || b.tiles[p.Y*b.size+p.X] == Wall
}

// Rows returns the grid as text, top row first, using the packed level characters.
func (b *Board) Rows() []string {
	rows := make([]string, b.size)
	line := make([]byte, b.size)
	for i := range rows {
		y := b.size - 1 - i
		for x := 0; x < b.size; x++ {
			line[x] = b.charAt(x, y)
		}
		rows[i] = string(line)
	}
	return rows
}

// Encode returns the packed level encoding accepted by ParseBoard.
func (b *Board) Encode() string {
	var sb strings.Builder
	sb.Grow(1 + b.size*b.size)
	sb.WriteByte(byte('0' + b.capacity))
	for _, row := range b.Rows() {
		sb.WriteString(row)
	}
	return sb.String()
}

// String renders the board one row per line.
func (b *Board) String() string {
	return strings.Join(b.Rows(), "\n")
}

func (b *Board) charAt(x, y int) byte {
	switch b.TileAt(x, y) {
	case Wall:
		return '#'
	case Goal:
		return 'G'
	case Start:
		return startChars[Facing(b.start.Dir)]
	default:
		return ' '
	}
}

// Layout is a mutable tile grid used to assemble boards, mainly by the level generator.
// Coordinates follow the board convention (row 0 at the bottom).
type Layout struct {
	Size     int
	Capacity int
	Tiles    []Tile

	start  Pose
	starts int
	goal   Position
	goals  int
}

// NewLayout returns a size×size layout filled with walls.
func NewLayout(size, capacity int) *Layout {
	tiles := make([]Tile, size*size)
	for i := range tiles {
		tiles[i] = Wall
	}
	return &Layout{Size: size, Capacity: capacity, Tiles: tiles}
}

// InBounds reports whether x,y lies on the layout.
func (l *Layout) InBounds(x, y int) bool {
	return x >= 0 && x < l.Size && y >= 0 && y < l.Size
}

// At returns the tile at x,y, Wall when off the layout.
func (l *Layout) At(x, y int) Tile {
	if !l.InBounds(x, y) {
		return Wall
	}
	return l.Tiles[y*l.Size+x]
}

// Set writes a tile. Writing Goal records the goal position; use PlaceStart for the start.
func (l *Layout) Set(x, y int, t Tile) {
	if !l.InBounds(x, y) {
		return
	}
	i := y*l.Size + x
	switch l.Tiles[i] {
	case Start:
		l.starts--
	case Goal:
		l.goals--
	}
	l.Tiles[i] = t
	switch t {
	case Start:
		l.starts++
		l.start = Pose{Position: Position{X: x, Y: y}}
	case Goal:
		l.goals++
		l.goal = Position{X: x, Y: y}
	}
}

// PlaceStart marks the start tile and its orientation.
func (l *Layout) PlaceStart(p Pose) {
	l.Set(p.X, p.Y, Start)
	l.start = p
}

// Board validates the layout strictly (exactly one start and one goal) and freezes it.
func (l *Layout) Board() (*Board, error) {
	if l.goals != 1 {
		return nil, fmt.Errorf("%w: expected exactly one goal, found %d", ErrMalformedBoard, l.goals)
	}
	return l.freeze(true)
}

// Probe freezes a layout that has a start but no goal yet. Simulations on a probe board
// never clear, which is what the generator's open-loop goal search needs.
func (l *Layout) Probe() (*Board, error) {
	if l.goals != 0 {
		return nil, fmt.Errorf("%w: probe boards must not have a goal", ErrMalformedBoard)
	}
	return l.freeze(false)
}

func (l *Layout) freeze(withGoal bool) (*Board, error) {
	if l.Capacity < MinCapacity || l.Capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity must be between %d and %d, got %d", ErrMalformedBoard, MinCapacity, MaxCapacity, l.Capacity)
	}
	if len(l.Tiles) != l.Size*l.Size {
		return nil, fmt.Errorf("%w: %d tiles for a %dx%d grid", ErrMalformedBoard, len(l.Tiles), l.Size, l.Size)
	}
	if l.starts != 1 {
		return nil, fmt.Errorf("%w: expected exactly one start, found %d", ErrMalformedBoard, l.starts)
	}

	tiles := make([]Tile, len(l.Tiles))
	copy(tiles, l.Tiles)
	return &Board{
		size:     l.Size,
		capacity: l.Capacity,
		tiles:    tiles,
		start:    l.start,
		goal:     l.goal,
		hasGoal:  withGoal,
	}, nil
}
