package engine

import (
	"fmt"
	"time"
)

// maxHistory bounds the step history kept per engine.
const maxHistory = 5000

// Engine provides the main interface for game operations
type Engine interface {
	// Level
	GetConfig() *LevelConfig
	GetLevelID() string
	SetLevel(id string, config *LevelConfig) error

	// Tape editing, legal only while programming
	SetCommand(cmd Command) error
	SelectSlot(slot int) error
	SetSlot(slot int, cmd Command) error
	LoadTape(cmds []Command) error
	ClearTape() error

	// Lifecycle
	Program()
	Run() error
	Stop() bool
	Step(n int) (int, error)
	Tick(elapsed time.Duration) (bool, error)
	SetSpeedUp(on bool)

	// Observation
	GetState() *GameState
	GetStepHistory() []StepRecord
	IsCleared() bool
}

// GameState is a snapshot of an engine, suitable for JSON encoding.
type GameState struct {
	LevelID    string     `json:"level_id"`
	LevelName  string     `json:"level_name"`
	Bonus      bool       `json:"bonus,omitempty"`
	Size       int        `json:"size"`
	Capacity   int        `json:"capacity"`
	Grid       []string   `json:"grid"`
	Start      Pose       `json:"start"`
	Goal       Position   `json:"goal"`
	Bot        Bot        `json:"bot"`
	Tape       []Command  `json:"tape"`
	Cursor     int        `json:"cursor"`
	State      BotState   `json:"state"`
	Steps      int        `json:"steps"`
	SpeedUp    bool       `json:"speed_up"`
	Projection Projection `json:"projection"`
	Message    string     `json:"message"`
}

// StepRecord describes one simulation step.
type StepRecord struct {
	Step    int      `json:"step"`
	Slot    int      `json:"slot"`
	Command Command  `json:"command"`
	Pose    Pose     `json:"pose"`
	Pending Pose     `json:"pending"`
	Bonk    bool     `json:"bonk"`
	State   BotState `json:"state"`
}

// GameEngine implements the Engine interface
type GameEngine struct {
	levelID string
	config  *LevelConfig
	sim     *Simulation
	anim    *Animator
	history []StepRecord
	message string
}

// NewEngine creates a new game engine for the given level
func NewEngine(id string, config *LevelConfig) (*GameEngine, error) {
	e := &GameEngine{}
	if err := e.SetLevel(id, config); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineWithDefaults creates an engine on the first built-in stage
func NewEngineWithDefaults() *GameEngine {
	first := Stages[0]
	e, err := NewEngine(first.ID, StageConfig(first))
	if err != nil {
		panic(err)
	}
	return e
}

// GetConfig returns the current level configuration
func (e *GameEngine) GetConfig() *LevelConfig {
	return e.config
}

// GetLevelID returns the id the current level was loaded under
func (e *GameEngine) GetLevelID() string {
	return e.levelID
}

// Simulation exposes the underlying simulation.
func (e *GameEngine) Simulation() *Simulation {
	return e.sim
}

// SetLevel loads a new level, clearing the tape, the speed toggle and the history
func (e *GameEngine) SetLevel(id string, config *LevelConfig) error {
	board, err := config.Board()
	if err != nil {
		return err
	}

	if e.sim == nil {
		e.sim = NewSimulation(board)
		e.anim = NewAnimator(e.sim)
	} else {
		e.sim.SetBoard(board)
		e.anim.Reset()
		e.anim.SpeedUp = false
	}
	e.levelID = id
	e.config = config
	e.history = nil
	e.message = fmt.Sprintf("%s: fill %d tape slots, then run", config.Name, board.Capacity())
	return nil
}

func (e *GameEngine) requireProgramming() error {
	if e.sim.State() != Programming {
		return fmt.Errorf("%w: bot is %s", ErrNotProgramming, e.sim.State())
	}
	return nil
}

// SetCommand writes cmd at the cursor and moves the cursor to the next slot
func (e *GameEngine) SetCommand(cmd Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidCommand, cmd)
	}
	if err := e.requireProgramming(); err != nil {
		return err
	}
	e.sim.Tape().SetCommand(cmd)
	return nil
}

// SelectSlot moves the tape cursor
func (e *GameEngine) SelectSlot(slot int) error {
	if err := e.requireProgramming(); err != nil {
		return err
	}
	e.sim.Tape().Select(slot)
	return nil
}

// SetSlot writes cmd into a given slot
func (e *GameEngine) SetSlot(slot int, cmd Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidCommand, cmd)
	}
	if err := e.requireProgramming(); err != nil {
		return err
	}
	e.sim.Tape().Set(slot, cmd)
	return nil
}

// LoadTape replaces the whole tape. Longer input is rejected rather than truncated.
func (e *GameEngine) LoadTape(cmds []Command) error {
	if err := e.requireProgramming(); err != nil {
		return err
	}
	if len(cmds) > e.sim.Tape().Len() {
		return fmt.Errorf("%w: %d commands for %d slots", ErrInvalidCommand, len(cmds), e.sim.Tape().Len())
	}
	for _, c := range cmds {
		if !c.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidCommand, c)
		}
	}
	e.sim.Tape().Load(cmds)
	return nil
}

// ClearTape fills the tape with None
func (e *GameEngine) ClearTape() error {
	if err := e.requireProgramming(); err != nil {
		return err
	}
	e.sim.Tape().Clear()
	return nil
}

// Program puts the bot back on its start tile in programming mode
func (e *GameEngine) Program() {
	e.sim.Program()
	e.anim.Reset()
	e.message = "Programming"
}

// Run starts the tape
func (e *GameEngine) Run() error {
	if err := e.sim.Run(); err != nil {
		return err
	}
	e.anim.Reset()
	e.record()
	e.message = "Running"
	return nil
}

// Stop aborts a running bot and returns it to programming. It reports whether the bot was running.
func (e *GameEngine) Stop() bool {
	if e.sim.State() != Running {
		return false
	}
	e.Program()
	return true
}

// Step performs up to n simulation steps without waiting for the clock, starting the tape
// first if the bot is still being programmed. It stops early when the stage is cleared and
// returns the number of steps taken.
func (e *GameEngine) Step(n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("step count must be positive, got %d", n)
	}
	switch e.sim.State() {
	case Cleared:
		return 0, ErrAlreadyCleared
	case Programming:
		if err := e.Run(); err != nil {
			return 0, err
		}
	}

	taken := 0
	for taken < n && e.sim.State() == Running {
		e.sim.RunCommand()
		e.anim.Reset()
		e.record()
		taken++
	}
	return taken, nil
}

// Tick advances the clock by elapsed and reports whether a step happened
func (e *GameEngine) Tick(elapsed time.Duration) (bool, error) {
	if elapsed <= 0 {
		return false, fmt.Errorf("%w: %s", ErrInvalidTickSize, elapsed)
	}
	stepped := e.anim.Tick(elapsed)
	if stepped {
		e.record()
	}
	return stepped, nil
}

// SetSpeedUp toggles fast-forward
func (e *GameEngine) SetSpeedUp(on bool) {
	e.anim.SpeedUp = on
}

// IsCleared returns whether the bot reached the goal
func (e *GameEngine) IsCleared() bool {
	return e.sim.State() == Cleared
}

func (e *GameEngine) record() {
	bot := e.sim.Bot()
	tape := e.sim.Tape()
	entry := StepRecord{
		Step:    e.sim.Steps(),
		Slot:    tape.Cursor(),
		Command: tape.Current(),
		Pose:    bot.Pose,
		Pending: bot.Pending,
		Bonk:    bot.Bonk,
		State:   bot.State,
	}
	if bot.State == Cleared {
		e.message = fmt.Sprintf("%s cleared in %d steps!", e.config.Name, entry.Step)
	}
	if len(e.history) >= maxHistory {
		e.history = e.history[1:]
	}
	e.history = append(e.history, entry)
}

// GetStepHistory returns the recorded steps since the level was loaded
func (e *GameEngine) GetStepHistory() []StepRecord {
	out := make([]StepRecord, len(e.history))
	copy(out, e.history)
	return out
}

// GetState returns a snapshot of the engine
func (e *GameEngine) GetState() *GameState {
	board := e.sim.Board()
	goal, _ := board.Goal()
	tape := e.sim.Tape()
	return &GameState{
		LevelID:    e.levelID,
		LevelName:  e.config.Name,
		Bonus:      e.config.Bonus,
		Size:       board.Size(),
		Capacity:   board.Capacity(),
		Grid:       board.Rows(),
		Start:      board.Start(),
		Goal:       goal,
		Bot:        e.sim.Bot(),
		Tape:       tape.Commands(),
		Cursor:     tape.Cursor(),
		State:      e.sim.State(),
		Steps:      e.sim.Steps(),
		SpeedUp:    e.anim.SpeedUp,
		Projection: e.anim.Pose(),
		Message:    e.message,
	}
}
