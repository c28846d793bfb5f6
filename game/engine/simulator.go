package engine

import "fmt"

// Bot is the logical state of the robot. Pending holds the pose computed by the last step;
// it becomes the current pose at the start of the following step unless Bonk is set.
type Bot struct {
	Pose    Pose     `json:"pose"`
	Pending Pose     `json:"pending"`
	Bonk    bool     `json:"bonk"`
	State   BotState `json:"state"`
}

// Simulation owns one board, its tape and the bot running on it. It has no timing or
// presentation state; see Animator.
type Simulation struct {
	board *Board
	tape  *Tape
	bot   Bot
	steps int
}

// NewSimulation creates a simulation in the programming state with an empty tape sized
// to the board capacity.
func NewSimulation(board *Board) *Simulation {
	s := &Simulation{board: board, tape: NewTape(board.Capacity())}
	s.Program()
	return s
}

// Board returns the board being simulated.
func (s *Simulation) Board() *Board { return s.board }

// Tape returns the command tape. Writing to it directly bypasses lifecycle checks.
func (s *Simulation) Tape() *Tape { return s.tape }

// Bot returns a copy of the bot state.
func (s *Simulation) Bot() Bot { return s.bot }

// State returns the lifecycle state.
func (s *Simulation) State() BotState { return s.bot.State }

// Steps returns the number of RunCommand calls since the last Program.
func (s *Simulation) Steps() int { return s.steps }

// AtGoal reports whether the bot's committed position is the goal.
func (s *Simulation) AtGoal() bool {
	return s.board.IsGoal(s.bot.Pose.Position)
}

// Program returns the bot to the start pose and the tape cursor to slot 0, leaving the tape
// contents alone. The bot is rebuilt from scratch, so a pending Bonk is cleared and the step
// count restarts. It is legal from every state and idempotent.
func (s *Simulation) Program() {
	start := s.board.Start()
	s.bot = Bot{Pose: start, Pending: start, State: Programming}
	s.tape.Select(0)
	s.steps = 0
}

// Run starts executing the tape. The cursor is parked on the last slot and one step is taken
// immediately so that the first pending move comes from slot 0.
func (s *Simulation) Run() error {
	if s.bot.State == Cleared {
		return ErrAlreadyCleared
	}
	s.tape.Select(s.tape.Len() - 1)
	s.bot.State = Running
	s.RunCommand()
	return nil
}

// RunCommand performs one simulation step: commit the pending pose unless the previous step
// bonked, stop if the bot stands on the goal, then read the next tape slot and compute the
// following pending pose.
func (s *Simulation) RunCommand() {
	s.steps++
	if !s.bot.Bonk {
		s.bot.Pose = s.bot.Pending
	}

	if s.AtGoal() {
		s.bot.Pending = s.bot.Pose
		s.bot.Bonk = false
		if s.bot.State == Running {
			s.bot.State = Cleared
		}
		return
	}

	cmd := s.tape.At(s.tape.Advance())
	s.bot.Pending = NextPose(s.bot.Pose, cmd)
	s.bot.Bonk = s.board.Blocked(s.bot.Pending.Position)
}

// NextPose applies one command to a pose without consulting any board.
func NextPose(p Pose, cmd Command) Pose {
	fwd := ForwardVector(p.Dir)
	switch cmd {
	case Forward:
		p.Position = p.Position.Add(fwd)
	case Reverse:
		p.Position = p.Position.Sub(fwd)
	case TurnLeft:
		p.Dir++
	case TurnRight:
		p.Dir--
	}
	return p
}

// SetBoard swaps the board, replacing the tape with an empty one of the new capacity and
// returning to programming.
func (s *Simulation) SetBoard(board *Board) {
	s.board = board
	s.tape = NewTape(board.Capacity())
	s.Program()
}

func (b Bot) String() string {
	return fmt.Sprintf("%s at (%d,%d) facing %d, pending (%d,%d) facing %d, bonk=%v",
		b.State, b.Pose.X, b.Pose.Y, Facing(b.Pose.Dir), b.Pending.X, b.Pending.Y, Facing(b.Pending.Dir), b.Bonk)
}
