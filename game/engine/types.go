package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedBoard  = errors.New("malformed board")
	ErrInvalidCommand  = errors.New("invalid command")
	ErrNotProgramming  = errors.New("bot is not in programming mode")
	ErrAlreadyCleared  = errors.New("stage already cleared")
	ErrInvalidLevel    = errors.New("invalid level")
	ErrNoLevelLoaded   = errors.New("no level loaded")
	ErrInvalidTickSize = errors.New("tick duration must be positive")
)

// Tile is the decoded classification of a board cell.
type Tile uint8

const (
	Floor Tile = iota
	Wall
	Goal
	Start
)

// Board and tape limits
const (
	MinCapacity  = 1
	MaxCapacity  = 12
	MinBoardSize = 3
	MaxBoardSize = 32
)

var tileNames = [...]string{"floor", "wall", "goal", "start"}

func (t Tile) String() string {
	if int(t) < len(tileNames) {
		return tileNames[t]
	}
	return fmt.Sprintf("tile(%d)", t)
}

// MarshalText encodes the tile by name.
func (t Tile) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Command is one slot of the tape.
type Command uint8

const (
	None Command = iota
	Forward
	Reverse
	TurnLeft
	TurnRight

	CommandCount = 5
)

var commandNames = [CommandCount]string{"none", "forward", "reverse", "turn_left", "turn_right"}

// commandLetters are the one-letter forms used by tape notation and terminal output.
var commandLetters = [CommandCount]byte{'_', 'F', 'B', 'L', 'R'}

func (c Command) String() string {
	if c < CommandCount {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", c)
}

// Letter returns the single character form of the command.
func (c Command) Letter() byte {
	if c < CommandCount {
		return commandLetters[c]
	}
	return '?'
}

// Valid reports whether c is one of the known commands.
func (c Command) Valid() bool {
	return c < CommandCount
}

// Moves reports whether the command changes position or orientation.
func (c Command) Moves() bool {
	return c != None && c.Valid()
}

// MarshalText encodes the command by name.
func (c Command) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCommand, c)
	}
	return []byte(c.String()), nil
}

// UnmarshalText accepts a command name or its letter.
func (c *Command) UnmarshalText(text []byte) error {
	cmd, err := ParseCommand(string(text))
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}

// ParseCommand decodes a command name such as "forward", "turn_left", "left" or a letter.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "wait", "noop", "_", "n", "":
		return None, nil
	case "forward", "fwd", "f", "up":
		return Forward, nil
	case "reverse", "back", "backward", "b", "down":
		return Reverse, nil
	case "turn_left", "turnleft", "left", "l":
		return TurnLeft, nil
	case "turn_right", "turnright", "right", "r":
		return TurnRight, nil
	}
	return None, fmt.Errorf("%w: %q", ErrInvalidCommand, s)
}

// BotState is the lifecycle of a bot.
type BotState uint8

const (
	Programming BotState = iota
	Running
	Cleared
)

var botStateNames = [...]string{"programming", "running", "cleared"}

func (s BotState) String() string {
	if int(s) < len(botStateNames) {
		return botStateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// MarshalText encodes the state by name.
func (s BotState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *BotState) UnmarshalText(text []byte) error {
	for i, name := range botStateNames {
		if name == string(text) {
			*s = BotState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown bot state %q", text)
}

// Position represents x,y coordinates. Row 0 is the bottom row of the board.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p shifted by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns p shifted by -d.
func (p Position) Sub(d Position) Position {
	return Position{X: p.X - d.X, Y: p.Y - d.Y}
}

// Pose is a position plus an orientation. Dir is kept unnormalized; use Facing for the
// canonical 0..3 value.
type Pose struct {
	Position
	Dir int `json:"dir"`
}

// Facing normalizes an orientation into 0..3 (0 = +x, 1 = +y, 2 = -x, 3 = -y).
func Facing(dir int) int {
	return ((dir % 4) + 4) % 4
}

// ForwardVector returns the unit step for an orientation.
func ForwardVector(dir int) Position {
	switch Facing(dir) {
	case 0:
		return Position{X: 1}
	case 1:
		return Position{Y: 1}
	case 2:
		return Position{X: -1}
	default:
		return Position{Y: -1}
	}
}

// startChars maps facing to the board character of a start tile.
const startChars = "RULD"
