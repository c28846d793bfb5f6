package service

import (
	"fmt"
	"time"

	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string              `json:"id"`
	LevelID        string              `json:"level_id"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	GameState      *engine.GameState   `json:"game_state"`
	LevelConfig    *engine.LevelConfig `json:"level_config"`
}

// StepResult is returned by Step and Tick
type StepResult struct {
	Requested int                 `json:"requested"`
	Executed  int                 `json:"executed"`
	Bonks     int                 `json:"bonks"`
	Cleared   bool                `json:"cleared"`
	GameState *engine.GameState   `json:"game_state"`
	Steps     []engine.StepRecord `json:"steps,omitempty"`
	Events    []GameEvent         `json:"events,omitempty"`
}

// GameEvent represents something that happened to a session
type GameEvent struct {
	Type      string      `json:"type"` // "program", "run", "stop", "bonk", "cleared", "level"
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	Pose      engine.Pose `json:"pose"`
}

// HistoryOptions configures step history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated step history
type HistoryResponse struct {
	Steps       []engine.StepRecord `json:"steps"`
	TotalSteps  int                 `json:"total_steps"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalPages  int                 `json:"total_pages"`
	HasNext     bool                `json:"has_next"`
	HasPrevious bool                `json:"has_previous"`
}

// ConfigInfo describes a level that sessions can be created on
type ConfigInfo struct {
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Filename    string `json:"filename,omitempty"`
	Source      string `json:"source"` // "builtin", "json", "hcl" or "memory"
	Name        string `json:"name"`
	Description string `json:"description"`
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
	Bonus       bool   `json:"bonus,omitempty"`
}

// GenerateRequest configures level generation
type GenerateRequest struct {
	Capacity int    `json:"capacity"`
	Size     int    `json:"size,omitempty"` // 0 picks a random size
	Seed     uint64 `json:"seed,omitempty"` // 0 picks a random seed
	Attempts int    `json:"attempts,omitempty"`
	Steps    int    `json:"steps,omitempty"`
	Save     bool   `json:"save,omitempty"`
}

// GeneratedLevel is the result of GenerateLevel
type GeneratedLevel struct {
	ConfigID     string              `json:"config_id"`
	Config       *engine.LevelConfig `json:"config"`
	Radius       int                 `json:"radius"`
	Distance     float64             `json:"distance"`
	Witness      []engine.Command    `json:"witness"`
	WitnessSteps int                 `json:"witness_steps"`
	Saved        bool                `json:"saved"`
}

// SolveRequest configures the brute-force solver
type SolveRequest struct {
	Seed     uint64 `json:"seed,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Steps    int    `json:"steps,omitempty"`
	Runs     int    `json:"runs,omitempty"` // stats only
}

func (r SolveRequest) validate() error {
	if err := checkBudget("attempts", r.Attempts, levelgen.DefaultSolveAttempts); err != nil {
		return err
	}
	return checkBudget("steps", r.Steps, levelgen.DefaultSteps)
}

// checkBudget rejects search budgets above limit. Zero and below select the default.
func checkBudget(name string, value, limit int) error {
	if value > limit {
		return fmt.Errorf("%w: %s must be at most %d, got %d", ErrInvalidRequest, name, limit, value)
	}
	return nil
}

func (r SolveRequest) options() levelgen.SolveOptions {
	return levelgen.SolveOptions{
		Attempts: r.Attempts,
		Steps:    r.Steps,
		Rand:     levelgen.NewRand(r.Seed),
	}
}
