// Package render draws boards and game snapshots as text for the command line tools.
package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/gookit/color"
	"golang.org/x/term"

	"github.com/wricardo/botloop/game/engine"
)

// Glyphs
const (
	GlyphWall  = '#'
	GlyphFloor = '.'
	GlyphGoal  = 'G'
)

// botGlyphs are indexed by facing.
var botGlyphs = [4]byte{'>', '^', '<', 'v'}

var (
	colorWall   = color.Style{color.FgGray}
	colorFloor  = color.Style{color.FgDarkGray}
	colorGoal   = color.Style{color.FgGreen, color.OpBold}
	colorBot    = color.Style{color.FgYellow, color.OpBold}
	colorBonk   = color.Style{color.FgRed, color.OpBold}
	colorCursor = color.Style{color.FgCyan, color.OpReverse}
	colorTitle  = color.Style{color.FgMagenta, color.OpBold}
)

// Renderer turns boards into text, with ANSI colours when Color is set.
type Renderer struct {
	Color bool
}

// Auto returns a renderer that colours its output when stdout is a terminal.
func Auto() *Renderer {
	return &Renderer{Color: term.IsTerminal(int(os.Stdout.Fd()))}
}

func (r *Renderer) paint(style color.Style, s string) string {
	if !r.Color {
		return s
	}
	return style.Sprint(s)
}

// BotGlyph returns the arrow drawn for a bot facing dir.
func BotGlyph(dir int) byte {
	return botGlyphs[engine.Facing(dir)]
}

// Board draws a board with the bot on its start tile, one row per line.
func (r *Renderer) Board(b *engine.Board) string {
	return r.grid(b.Rows(), b.Start(), false)
}

// State draws a snapshot: title line, board with the bot at its committed pose, tape and status.
func (r *Renderer) State(st *engine.GameState) string {
	var sb strings.Builder
	sb.WriteString(r.paint(colorTitle, st.LevelName))
	fmt.Fprintf(&sb, " (%s, %dx%d)\n", st.LevelID, st.Size, st.Size)
	sb.WriteString(r.grid(st.Grid, st.Bot.Pose, st.Bot.Bonk))
	sb.WriteByte('\n')
	sb.WriteString(r.Tape(st.Tape, st.Cursor))
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "%s  steps=%d", st.State, st.Steps)
	if st.Bot.Bonk {
		sb.WriteString("  " + r.paint(colorBonk, "BONK"))
	}
	if st.Message != "" {
		sb.WriteString("\n" + st.Message)
	}
	return sb.String()
}

// Tape draws the command letters with the cursor slot bracketed.
func (r *Renderer) Tape(cmds []engine.Command, cursor int) string {
	parts := make([]string, len(cmds))
	for i, c := range cmds {
		letter := string(c.Letter())
		if i == cursor {
			parts[i] = r.paint(colorCursor, "["+letter+"]")
		} else {
			parts[i] = " " + letter + " "
		}
	}
	return strings.Join(parts, "")
}

// grid draws rows (top row first, packed level characters) replacing the start character with
// the bot arrow at pose.
func (r *Renderer) grid(rows []string, bot engine.Pose, bonk bool) string {
	size := len(rows)
	lines := make([]string, size)
	for i, row := range rows {
		y := size - 1 - i
		var line strings.Builder
		for x := 0; x < len(row); x++ {
			if x == bot.X && y == bot.Y {
				style := colorBot
				if bonk {
					style = colorBonk
				}
				line.WriteString(r.paint(style, string(BotGlyph(bot.Dir))))
				continue
			}
			switch row[x] {
			case '#':
				line.WriteString(r.paint(colorWall, string(GlyphWall)))
			case 'G':
				line.WriteString(r.paint(colorGoal, string(GlyphGoal)))
			default:
				line.WriteString(r.paint(colorFloor, string(GlyphFloor)))
			}
		}
		lines[i] = line.String()
	}
	return strings.Join(lines, "\n")
}
