package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
	"github.com/wricardo/botloop/game/tapelang"
)

// MaxStepsPerCall bounds a single Step call.
const MaxStepsPerCall = 10000

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

func sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		LevelID:        sess.Engine.GetLevelID(),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState(),
		LevelConfig:    sess.Engine.GetConfig(),
	}
}

// session looks a session up and marks it accessed. Callers hold s.mu.
func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	_ = s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// loadLevel resolves a level id, listing the available ids when it is unknown.
func (s *gameServiceImpl) loadLevel(levelID string) (string, *engine.LevelConfig, error) {
	if levelID == "" {
		id, config := s.configs.GetDefault()
		return id, config, nil
	}
	config, err := s.configs.LoadConfig(levelID)
	if err != nil {
		if available, listErr := s.configs.ListConfigs(); listErr == nil && len(available) > 0 {
			ids := make([]string, 0, len(available))
			for _, info := range available {
				ids = append(ids, info.ConfigID)
			}
			return "", nil, fmt.Errorf("%w (available: %s)", err, strings.Join(ids, ", "))
		}
		return "", nil, err
	}
	return levelID, config, nil
}

// CreateSession creates a new game session on a level, the default one when levelID is empty
func (s *gameServiceImpl) CreateSession(ctx context.Context, levelID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, config, err := s.loadLevel(levelID)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create("", id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	slog.Info("session created", "session", sess.ID, "level", id)
	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session %q: %w", sessionID, err)
	}
	slog.Info("session deleted", "session", sessionID)
	return nil
}

// withEngine runs fn on the session's engine under the service lock and returns the new state.
func (s *gameServiceImpl) withEngine(sessionID string, fn func(e *engine.GameEngine) error) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess.Engine); err != nil {
		return nil, err
	}
	return sess.Engine.GetState(), nil
}

// SetCommand writes a command at the cursor and advances the cursor
func (s *gameServiceImpl) SetCommand(ctx context.Context, sessionID, command string) (*engine.GameState, error) {
	cmd, err := engine.ParseCommand(command)
	if err != nil {
		return nil, err
	}
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		if err := e.SetCommand(cmd); err != nil {
			return err
		}
		slog.Debug("command set", "session", sessionID, "cmd", cmd, "cursor", e.Simulation().Tape().Cursor())
		return nil
	})
}

// SelectSlot moves the cursor
func (s *gameServiceImpl) SelectSlot(ctx context.Context, sessionID string, slot int) (*engine.GameState, error) {
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		return e.SelectSlot(slot)
	})
}

// SetSlot writes one slot without moving the cursor
func (s *gameServiceImpl) SetSlot(ctx context.Context, sessionID string, slot int, command string) (*engine.GameState, error) {
	cmd, err := engine.ParseCommand(command)
	if err != nil {
		return nil, err
	}
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		if err := e.SetSlot(slot, cmd); err != nil {
			return err
		}
		slog.Debug("slot set", "session", sessionID, "slot", slot, "cmd", cmd)
		return nil
	})
}

// LoadTape replaces the whole tape with a program in tape notation ("F F L", "2*FL R")
func (s *gameServiceImpl) LoadTape(ctx context.Context, sessionID, program string) (*engine.GameState, error) {
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		cmds, err := tapelang.ParseFit(program, e.Simulation().Board().Capacity())
		if err != nil {
			return err
		}
		if err := e.LoadTape(cmds); err != nil {
			return err
		}
		slog.Debug("tape loaded", "session", sessionID, "tape", tapelang.Format(cmds))
		return nil
	})
}

// ClearTape fills the tape with None
func (s *gameServiceImpl) ClearTape(ctx context.Context, sessionID string) (*engine.GameState, error) {
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		return e.ClearTape()
	})
}

// Program returns the bot to its start tile in programming mode
func (s *gameServiceImpl) Program(ctx context.Context, sessionID string) (*engine.GameState, error) {
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		e.Program()
		slog.Debug("program", "session", sessionID)
		return nil
	})
}

// Run starts the tape
func (s *gameServiceImpl) Run(ctx context.Context, sessionID string) (*engine.GameState, error) {
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		if err := e.Run(); err != nil {
			return err
		}
		slog.Info("run", "session", sessionID, "tape", tapelang.Format(e.Simulation().Tape().Commands()))
		return nil
	})
}

// Stop aborts a running bot
func (s *gameServiceImpl) Stop(ctx context.Context, sessionID string) (*engine.GameState, error) {
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		if !e.Stop() {
			return fmt.Errorf("%w: bot is %s", ErrInvalidRequest, e.Simulation().State())
		}
		return nil
	})
}

// Step runs up to n steps immediately, starting the tape if needed
func (s *gameServiceImpl) Step(ctx context.Context, sessionID string, n int) (*StepResult, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: step count must be positive, got %d", ErrInvalidRequest, n)
	}
	requested := n
	if n > MaxStepsPerCall {
		n = MaxStepsPerCall
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	before := stepsBefore(sess.Engine)
	taken, err := sess.Engine.Step(n)
	if err != nil {
		return nil, err
	}
	result := s.stepResult(sessionID, sess.Engine, before, taken)
	result.Requested = requested
	return result, nil
}

// Tick advances the session's clock by elapsed
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, elapsed time.Duration) (*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	before := stepsBefore(sess.Engine)
	stepped, err := sess.Engine.Tick(elapsed)
	if err != nil {
		return nil, err
	}
	taken := 0
	if stepped {
		taken = 1
	}
	return s.stepResult(sessionID, sess.Engine, before, taken), nil
}

// stepsBefore is the step counter the next recorded step is measured against.
func stepsBefore(e *engine.GameEngine) int {
	if e.Simulation().State() == engine.Programming {
		return 0
	}
	return e.Simulation().Steps()
}

func (s *gameServiceImpl) stepResult(sessionID string, e *engine.GameEngine, before, taken int) *StepResult {
	history := e.GetStepHistory()
	first := len(history)
	for first > 0 && history[first-1].Step > before {
		first--
	}
	records := history[first:]

	result := &StepResult{
		Requested: 1,
		Executed:  taken,
		GameState: e.GetState(),
		Steps:     records,
	}
	now := time.Now()
	for _, rec := range records {
		slog.Debug("step", "session", sessionID, "slot", rec.Slot, "cmd", rec.Command,
			"from", rec.Pose, "to", rec.Pending, "bonk", rec.Bonk, "state", rec.State)
		if rec.Bonk {
			result.Bonks++
			result.Events = append(result.Events, GameEvent{
				Type:      "bonk",
				Message:   fmt.Sprintf("Bonk at step %d", rec.Step),
				Timestamp: now,
				Pose:      rec.Pose,
			})
		}
	}
	if e.IsCleared() && len(records) > 0 && records[len(records)-1].State == engine.Cleared {
		result.Cleared = true
		result.Events = append(result.Events, GameEvent{
			Type:      "cleared",
			Message:   result.GameState.Message,
			Timestamp: now,
			Pose:      result.GameState.Bot.Pose,
		})
		slog.Info("stage cleared", "session", sessionID, "level", e.GetLevelID(), "steps", result.GameState.Steps)
	}
	return result
}

// SetSpeedUp toggles fast-forward for ticks
func (s *gameServiceImpl) SetSpeedUp(ctx context.Context, sessionID string, on bool) (*engine.GameState, error) {
	return s.withEngine(sessionID, func(e *engine.GameEngine) error {
		e.SetSpeedUp(on)
		return nil
	})
}

// SetLevel loads another level into the session
func (s *gameServiceImpl) SetLevel(ctx context.Context, sessionID, levelID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.setLevel(sess, levelID)
}

func (s *gameServiceImpl) setLevel(sess *Session, levelID string) (*SessionInfo, error) {
	id, config, err := s.loadLevel(levelID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.SetLevel(id, config); err != nil {
		return nil, err
	}
	slog.Info("level loaded", "session", sess.ID, "level", id)
	return sessionInfo(sess), nil
}

// NextLevel moves the session to the stage after its current one
func (s *gameServiceImpl) NextLevel(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	current := sess.Engine.GetLevelID()
	next, ok := s.configs.Next(current)
	if !ok {
		return nil, fmt.Errorf("%w: level %s has no successor", ErrInvalidRequest, current)
	}
	return s.setLevel(sess, next)
}

// GetGameState returns the current snapshot of a session
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	return s.withEngine(sessionID, func(*engine.GameEngine) error { return nil })
}

// GetStepHistory returns paginated step history
func (s *gameServiceImpl) GetStepHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetStepHistory()
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := min(start+opts.Limit, total)

	steps := []engine.StepRecord{}
	if opts.Order == "desc" {
		// most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			steps = append(steps, history[i])
		}
	} else if start < total {
		steps = history[start:end]
	}

	return &HistoryResponse{
		Steps:       steps,
		TotalSteps:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns the available levels
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific level
func (s *gameServiceImpl) LoadConfig(ctx context.Context, levelID string) (*engine.LevelConfig, error) {
	return s.configs.LoadConfig(levelID)
}

// SaveConfig saves a level to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, levelID string, config *engine.LevelConfig) error {
	if err := engine.ValidateLevelConfig(config); err != nil {
		return err
	}
	return s.configs.SaveConfig(levelID, config)
}

// GenerateLevel carves a new level and registers it, saving it to disk when asked
func (s *gameServiceImpl) GenerateLevel(ctx context.Context, req GenerateRequest) (*GeneratedLevel, error) {
	if req.Capacity < engine.MinCapacity || req.Capacity > engine.MaxCapacity {
		return nil, fmt.Errorf("%w: capacity must be between %d and %d, got %d",
			ErrInvalidRequest, engine.MinCapacity, engine.MaxCapacity, req.Capacity)
	}
	if req.Size != 0 && (req.Size < levelgen.MinSize || req.Size > engine.MaxBoardSize || req.Size%2 == 0) {
		return nil, fmt.Errorf("%w: size must be odd and between %d and %d, got %d",
			ErrInvalidRequest, levelgen.MinSize, engine.MaxBoardSize, req.Size)
	}

	if err := checkBudget("attempts", req.Attempts, levelgen.DefaultAttempts); err != nil {
		return nil, err
	}
	if err := checkBudget("steps", req.Steps, levelgen.DefaultSteps); err != nil {
		return nil, err
	}

	start := time.Now()
	level, err := levelgen.Generate(ctx, levelgen.Options{
		Size:     req.Size,
		Capacity: req.Capacity,
		Attempts: req.Attempts,
		Steps:    req.Steps,
		Rand:     levelgen.NewRand(req.Seed),
	})
	if err != nil {
		return nil, err
	}

	config := engine.LevelConfigFromBoard("Generated "+level.ID, level.Board)
	config.Description = fmt.Sprintf("Generated %dx%d maze, goal radius %d", level.Board.Size(), level.Board.Size(), level.Radius)

	result := &GeneratedLevel{
		ConfigID:     level.ID,
		Config:       config,
		Radius:       level.Radius,
		Distance:     level.Distance,
		Witness:      level.Witness,
		WitnessSteps: level.WitnessSteps,
	}
	if req.Save {
		if err := s.configs.SaveConfig(level.ID, config); err != nil {
			return nil, err
		}
		result.Saved = true
	} else if err := s.configs.Register(level.ID, config); err != nil {
		return nil, err
	}
	slog.Info("level generated", "level", level.ID, "size", level.Board.Size(), "capacity", req.Capacity,
		"radius", level.Radius, "saved", result.Saved, "elapsed", time.Since(start))
	return result, nil
}

func (s *gameServiceImpl) board(levelID string) (*engine.Board, error) {
	config, err := s.configs.LoadConfig(levelID)
	if err != nil {
		return nil, err
	}
	return config.Board()
}

// SolveLevel brute-forces a level with random tapes
func (s *gameServiceImpl) SolveLevel(ctx context.Context, levelID string, req SolveRequest) (*levelgen.Solution, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	board, err := s.board(levelID)
	if err != nil {
		return nil, err
	}
	return levelgen.Bruteforce(ctx, board, req.options())
}

// LevelStats aggregates several brute-force runs on a level
func (s *gameServiceImpl) LevelStats(ctx context.Context, levelID string, req SolveRequest) (*levelgen.Stats, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := checkBudget("runs", req.Runs, levelgen.MaxStatsRuns); err != nil {
		return nil, err
	}
	board, err := s.board(levelID)
	if err != nil {
		return nil, err
	}
	return levelgen.BruteStats(ctx, board, req.Runs, req.options())
}
