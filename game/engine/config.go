package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LevelConfig is the file representation of a level.
type LevelConfig struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Capacity    int      `json:"capacity"`
	Layout      []string `json:"layout"` // rows, top row first
	Bonus       bool     `json:"bonus,omitempty"`
}

// ValidateLevelConfig validates a level configuration for correctness
func ValidateLevelConfig(config *LevelConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidLevel)
	}
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLevel)
	}

	if config.Capacity < MinCapacity || config.Capacity > MaxCapacity {
		return fmt.Errorf("%w: capacity must be between %d and %d, got %d", ErrInvalidLevel, MinCapacity, MaxCapacity, config.Capacity)
	}

	size := len(config.Layout)
	if size < MinBoardSize || size > MaxBoardSize {
		return fmt.Errorf("%w: layout must have between %d and %d rows, got %d", ErrInvalidLevel, MinBoardSize, MaxBoardSize, size)
	}
	for i, row := range config.Layout {
		if len(row) != size {
			return fmt.Errorf("%w: row %d must have %d characters to match the row count, got %d",
				ErrInvalidLevel, i+1, size, len(row))
		}
	}

	if _, err := NewBoard(config.Capacity, config.Layout); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLevel, err)
	}
	return nil
}

// Board builds the board described by the config.
func (c *LevelConfig) Board() (*Board, error) {
	if err := ValidateLevelConfig(c); err != nil {
		return nil, err
	}
	return NewBoard(c.Capacity, c.Layout)
}

// LevelConfigFromBoard is the inverse of LevelConfig.Board.
func LevelConfigFromBoard(name string, b *Board) *LevelConfig {
	return &LevelConfig{
		Name:     name,
		Capacity: b.Capacity(),
		Layout:   b.Rows(),
	}
}

// StageConfig returns the level config of a built-in stage.
func StageConfig(s Stage) *LevelConfig {
	layout := make([]string, len(s.Rows))
	copy(layout, s.Rows)
	desc := fmt.Sprintf("Built-in stage with %d tape slots", s.Capacity)
	if s.Bonus {
		desc = fmt.Sprintf("Built-in bonus stage with %d tape slots", s.Capacity)
	}
	return &LevelConfig{
		Name:        s.Name,
		Description: desc,
		Capacity:    s.Capacity,
		Layout:      layout,
		Bonus:       s.Bonus,
	}
}

// LoadLevelConfig loads a level configuration from a JSON file
func LoadLevelConfig(filename string) (*LevelConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseLevelConfig(data)
}

// ParseLevelConfig decodes and validates JSON level data. A bare packed board string
// (capacity digit followed by the grid) is accepted too.
func ParseLevelConfig(data []byte) (*LevelConfig, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" && trimmed[0] == '"' {
		var packed string
		if err := json.Unmarshal(data, &packed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
		}
		b, err := ParseBoard(packed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidLevel, err)
		}
		return LevelConfigFromBoard("Packed level", b), nil
	}

	var config LevelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	if err := ValidateLevelConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
