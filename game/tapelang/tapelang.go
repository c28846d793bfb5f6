// Package tapelang parses the short text notation used to enter a whole tape at once, such as
// "F F L", "forward, turn_left" or "2*F R".
package tapelang

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/wricardo/botloop/game/engine"
)

// ErrTapeTooLong is returned when a tape holds more commands than fit.
var ErrTapeTooLong = errors.New("tape too long")

// Program is a parsed tape.
type Program struct {
	Items []*Item `parser:"( @@ ','? )*"`
}

// Item is one word, optionally repeated: "3*F".
type Item struct {
	Pos    lexer.Position
	Repeat *int   `parser:"( @Int '*' )?"`
	Word   string `parser:"@Ident"`
}

var parser = participle.MustBuild[Program]()

var words = map[string]engine.Command{
	"FORWARD":    engine.Forward,
	"F":          engine.Forward,
	"REVERSE":    engine.Reverse,
	"BACK":       engine.Reverse,
	"B":          engine.Reverse,
	"LEFT":       engine.TurnLeft,
	"TURN_LEFT":  engine.TurnLeft,
	"L":          engine.TurnLeft,
	"RIGHT":      engine.TurnRight,
	"TURN_RIGHT": engine.TurnRight,
	"R":          engine.TurnRight,
	"NONE":       engine.None,
	"WAIT":       engine.None,
	"_":          engine.None,
	"N":          engine.None,
}

var letters = map[rune]engine.Command{
	'F': engine.Forward,
	'B': engine.Reverse,
	'L': engine.TurnLeft,
	'R': engine.TurnRight,
	'N': engine.None,
	'_': engine.None,
}

// Parse turns tape notation into commands. The result never exceeds engine.MaxCapacity.
func Parse(input string) ([]engine.Command, error) {
	prog, err := parser.ParseString("tape", input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidCommand, err)
	}

	var cmds []engine.Command
	for _, item := range prog.Items {
		expanded, err := item.commands()
		if err != nil {
			return nil, err
		}
		repeat := 1
		if item.Repeat != nil {
			repeat = *item.Repeat
		}
		if repeat < 1 {
			return nil, fmt.Errorf("%w: %s: repeat count must be positive, got %d", engine.ErrInvalidCommand, item.Pos, repeat)
		}
		if repeat > (engine.MaxCapacity-len(cmds))/len(expanded) {
			return nil, fmt.Errorf("%w: more than %d commands", ErrTapeTooLong, engine.MaxCapacity)
		}
		for i := 0; i < repeat; i++ {
			cmds = append(cmds, expanded...)
		}
	}
	return cmds, nil
}

func (it *Item) commands() ([]engine.Command, error) {
	word := strings.ToUpper(it.Word)
	if cmd, ok := words[word]; ok {
		return []engine.Command{cmd}, nil
	}

	out := make([]engine.Command, 0, len(word))
	for _, r := range word {
		cmd, ok := letters[r]
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown word %q", engine.ErrInvalidCommand, it.Pos, it.Word)
		}
		out = append(out, cmd)
	}
	return out, nil
}

// Fit pads cmds with None up to capacity.
func Fit(cmds []engine.Command, capacity int) ([]engine.Command, error) {
	if len(cmds) > capacity {
		return nil, fmt.Errorf("%w: %d commands for %d slots", ErrTapeTooLong, len(cmds), capacity)
	}
	out := make([]engine.Command, capacity)
	copy(out, cmds)
	return out, nil
}

// ParseFit parses input and pads the result to capacity.
func ParseFit(input string, capacity int) ([]engine.Command, error) {
	cmds, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return Fit(cmds, capacity)
}

// Format renders commands as space separated letters, the inverse of Parse.
func Format(cmds []engine.Command) string {
	var sb strings.Builder
	for i, c := range cmds {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(c.Letter())
	}
	return sb.String()
}
