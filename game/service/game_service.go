package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
)

// ErrInvalidRequest marks arguments rejected before they reach the engine
var ErrInvalidRequest = errors.New("invalid request")

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, levelID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Tape editing
	SetCommand(ctx context.Context, sessionID, command string) (*engine.GameState, error)
	SelectSlot(ctx context.Context, sessionID string, slot int) (*engine.GameState, error)
	SetSlot(ctx context.Context, sessionID string, slot int, command string) (*engine.GameState, error)
	LoadTape(ctx context.Context, sessionID, program string) (*engine.GameState, error)
	ClearTape(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Bot lifecycle
	Program(ctx context.Context, sessionID string) (*engine.GameState, error)
	Run(ctx context.Context, sessionID string) (*engine.GameState, error)
	Stop(ctx context.Context, sessionID string) (*engine.GameState, error)
	Step(ctx context.Context, sessionID string, n int) (*StepResult, error)
	Tick(ctx context.Context, sessionID string, elapsed time.Duration) (*StepResult, error)
	SetSpeedUp(ctx context.Context, sessionID string, on bool) (*engine.GameState, error)
	SetLevel(ctx context.Context, sessionID, levelID string) (*SessionInfo, error)
	NextLevel(ctx context.Context, sessionID string) (*SessionInfo, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetStepHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Levels
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, levelID string) (*engine.LevelConfig, error)
	SaveConfig(ctx context.Context, levelID string, config *engine.LevelConfig) error
	GenerateLevel(ctx context.Context, req GenerateRequest) (*GeneratedLevel, error)
	SolveLevel(ctx context.Context, levelID string, req SolveRequest) (*levelgen.Solution, error)
	LevelStats(ctx context.Context, levelID string, req SolveRequest) (*levelgen.Stats, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, levelID string, config *engine.LevelConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles level loading
type ConfigManager interface {
	LoadConfig(id string) (*engine.LevelConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() (id string, config *engine.LevelConfig)
	SaveConfig(id string, config *engine.LevelConfig) error
	// Register makes a level loadable for the lifetime of the process without writing it.
	Register(id string, config *engine.LevelConfig) error
	Next(id string) (string, bool)
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
