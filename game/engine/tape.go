package engine

// Tape is a fixed-length ring of commands with a cursor. The cursor is always in [0, Len).
type Tape struct {
	commands []Command
	cursor   int
}

// NewTape returns a tape of the given capacity filled with None.
func NewTape(capacity int) *Tape {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Tape{commands: make([]Command, capacity)}
}

// Len returns the tape capacity.
func (t *Tape) Len() int { return len(t.commands) }

// Cursor returns the current slot.
func (t *Tape) Cursor() int { return t.cursor }

// At returns the command in slot i, wrapping i onto the tape.
func (t *Tape) At(i int) Command {
	return t.commands[t.wrap(i)]
}

// Current returns the command under the cursor.
func (t *Tape) Current() Command {
	return t.commands[t.cursor]
}

// Commands returns a copy of the tape contents.
func (t *Tape) Commands() []Command {
	out := make([]Command, len(t.commands))
	copy(out, t.commands)
	return out
}

// SetCommand writes cmd at the cursor and advances the cursor by one, wrapping.
func (t *Tape) SetCommand(cmd Command) {
	t.commands[t.cursor] = cmd
	t.cursor = (t.cursor + 1) % len(t.commands)
}

// Select moves the cursor to slot i, wrapping out-of-range values.
func (t *Tape) Select(i int) {
	t.cursor = t.wrap(i)
}

// Set selects slot i and writes cmd there, leaving the cursor on the following slot.
func (t *Tape) Set(i int, cmd Command) {
	t.Select(i)
	t.SetCommand(cmd)
}

// Advance moves the cursor forward one slot and returns the new position.
func (t *Tape) Advance() int {
	t.cursor = (t.cursor + 1) % len(t.commands)
	return t.cursor
}

// Load replaces the tape contents. Extra commands are dropped and missing slots become None.
// The cursor returns to slot 0.
func (t *Tape) Load(cmds []Command) {
	for i := range t.commands {
		if i < len(cmds) {
			t.commands[i] = cmds[i]
		} else {
			t.commands[i] = None
		}
	}
	t.cursor = 0
}

// Clear fills the tape with None and returns the cursor to slot 0.
func (t *Tape) Clear() {
	t.Load(nil)
}

// Count returns the number of slots holding something other than None.
func (t *Tape) Count() int {
	n := 0
	for _, c := range t.commands {
		if c != None {
			n++
		}
	}
	return n
}

func (t *Tape) wrap(i int) int {
	n := len(t.commands)
	return ((i % n) + n) % n
}
