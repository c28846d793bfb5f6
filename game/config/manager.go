package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/service"
)

var (
	ErrConfigNotFound = errors.New("level not found")
	ErrInvalidConfig  = errors.New("invalid level")
)

// Sources reported in service.ConfigInfo.
const (
	SourceBuiltin = "builtin"
	SourceJSON    = "json"
	SourceHCL     = "hcl"
	SourceMemory  = "memory"
)

// DefaultLevel is the level sessions start on when none is named.
const DefaultLevel = "stage-1"

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// hclFile is the shape of a *.hcl level file:
//
//	level "spiral" {
//	  name     = "Spiral"
//	  capacity = 3
//	  layout   = ["#####", "#G  #", "### #", "#R  #", "#####"]
//	}
type hclFile struct {
	Levels []hclLevel `hcl:"level,block"`
}

type hclLevel struct {
	ID          string   `hcl:"id,label"`
	Name        string   `hcl:"name"`
	Description string   `hcl:"description,optional"`
	Capacity    int      `hcl:"capacity"`
	Layout      []string `hcl:"layout"`
	Bonus       bool     `hcl:"bonus,optional"`
}

type level struct {
	config   *engine.LevelConfig
	source   string
	filename string
}

// Manager resolves level ids: built-in stages first, then files in the level directory
// (<id>.json, or level blocks in *.hcl), then levels registered in memory.
type Manager struct {
	levelDir   string
	defaultID  string
	levels     map[string]level // cache of directory levels
	registered map[string]level
	hclScanned bool
	mu         sync.RWMutex
}

// NewManager creates a manager over levelDir. The directory may be empty or missing, in which
// case only built-in and registered levels exist until a level is saved.
func NewManager(levelDir string) (*Manager, error) {
	if levelDir != "" {
		info, err := os.Stat(levelDir)
		switch {
		case err == nil && !info.IsDir():
			return nil, fmt.Errorf("level path is not a directory: %s", levelDir)
		case err != nil && !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to stat level directory: %w", err)
		case err != nil:
			slog.Debug("level directory missing, using built-in stages", "dir", levelDir)
		}
	}

	return &Manager{
		levelDir:   levelDir,
		defaultID:  DefaultLevel,
		levels:     make(map[string]level),
		registered: make(map[string]level),
	}, nil
}

// LoadConfig loads a level by id
func (m *Manager) LoadConfig(id string) (*engine.LevelConfig, error) {
	if stage, ok := engine.StageByID(id); ok {
		return engine.StageConfig(stage), nil
	}

	m.mu.RLock()
	if l, exists := m.levels[id]; exists {
		m.mu.RUnlock()
		return l.config, nil
	}
	if l, exists := m.registered[id]; exists {
		m.mu.RUnlock()
		return l.config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if l, exists := m.levels[id]; exists {
		return l.config, nil
	}

	if l, err := m.loadJSON(id); err == nil {
		m.levels[id] = l
		return l.config, nil
	} else if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	if !m.hclScanned {
		if err := m.scanHCL(); err != nil {
			return nil, err
		}
		if l, exists := m.levels[id]; exists {
			return l.config, nil
		}
	}
	if l, exists := m.registered[id]; exists {
		return l.config, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
}

// loadJSON reads <dir>/<id>.json. Callers hold the write lock.
func (m *Manager) loadJSON(id string) (level, error) {
	if m.levelDir == "" || !validID.MatchString(id) {
		return level{}, ErrConfigNotFound
	}
	filename := id + ".json"
	config, err := engine.LoadLevelConfig(filepath.Join(m.levelDir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return level{}, ErrConfigNotFound
		}
		return level{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, filename, err)
	}
	return level{config: config, source: SourceJSON, filename: filename}, nil
}

// scanHCL loads every level block of every *.hcl file into the cache. Invalid files and
// blocks are logged and skipped. Callers hold the write lock.
func (m *Manager) scanHCL() error {
	m.hclScanned = true
	if m.levelDir == "" {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(m.levelDir, "*.hcl"))
	if err != nil {
		return fmt.Errorf("failed to list hcl levels: %w", err)
	}
	for _, path := range paths {
		levels, err := ParseHCLFile(path)
		if err != nil {
			slog.Warn("skipping hcl level file", "file", path, "error", err)
			continue
		}
		for id, config := range levels {
			if _, builtin := engine.StageByID(id); builtin {
				slog.Warn("hcl level shadows a built-in stage", "file", path, "level", id)
				continue
			}
			if _, exists := m.levels[id]; exists {
				continue
			}
			m.levels[id] = level{config: config, source: SourceHCL, filename: filepath.Base(path)}
		}
	}
	return nil
}

// ParseHCLFile decodes the level blocks of an HCL file, keyed by block label.
func ParseHCLFile(path string) (map[string]*engine.LevelConfig, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, diags.Error())
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, diags.Error())
	}

	levels := make(map[string]*engine.LevelConfig, len(root.Levels))
	for _, block := range root.Levels {
		if _, dup := levels[block.ID]; dup {
			return nil, fmt.Errorf("%w: level %q defined twice", ErrInvalidConfig, block.ID)
		}
		config := &engine.LevelConfig{
			Name:        block.Name,
			Description: block.Description,
			Capacity:    block.Capacity,
			Layout:      block.Layout,
			Bonus:       block.Bonus,
		}
		if err := engine.ValidateLevelConfig(config); err != nil {
			return nil, fmt.Errorf("%w: level %q: %v", ErrInvalidConfig, block.ID, err)
		}
		levels[block.ID] = config
	}
	return levels, nil
}

// ListConfigs returns the built-in stages in play order followed by directory and registered
// levels sorted by id. Invalid files are skipped.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	configs := make([]*service.ConfigInfo, 0, len(engine.Stages))
	for _, stage := range engine.Stages {
		configs = append(configs, configInfo(stage.ID, level{config: engine.StageConfig(stage), source: SourceBuiltin}))
	}

	if m.levelDir != "" {
		entries, err := os.ReadDir(m.levelDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read level directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			id := strings.TrimSuffix(entry.Name(), ".json")
			if _, err := m.LoadConfig(id); err != nil {
				slog.Warn("skipping level file", "file", entry.Name(), "error", err)
			}
		}
	}

	m.mu.Lock()
	if !m.hclScanned {
		if err := m.scanHCL(); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	extra := make(map[string]level, len(m.levels)+len(m.registered))
	for id, l := range m.registered {
		extra[id] = l
	}
	for id, l := range m.levels {
		extra[id] = l
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(extra))
	for id := range extra {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		configs = append(configs, configInfo(id, extra[id]))
	}
	return configs, nil
}

func configInfo(id string, l level) *service.ConfigInfo {
	return &service.ConfigInfo{
		ConfigID:    id,
		Filename:    l.filename,
		Source:      l.source,
		Name:        l.config.Name,
		Description: l.config.Description,
		Size:        len(l.config.Layout),
		Capacity:    l.config.Capacity,
		Bonus:       l.config.Bonus,
	}
}

// GetDefault returns the default level id and its configuration
func (m *Manager) GetDefault() (string, *engine.LevelConfig) {
	m.mu.RLock()
	id := m.defaultID
	m.mu.RUnlock()

	config, err := m.LoadConfig(id)
	if err != nil {
		slog.Warn("default level unavailable, using first stage", "level", id, "error", err)
		return DefaultLevel, engine.StageConfig(engine.Stages[0])
	}
	return id, config
}

// SetDefault sets the default level by id
func (m *Manager) SetDefault(id string) error {
	if _, err := m.LoadConfig(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
	return nil
}

// Next returns the level that follows id. Only built-in stages have a successor.
func (m *Manager) Next(id string) (string, bool) {
	return engine.NextStageID(id)
}

// RefreshCache forgets cached directory levels so they are read from disk again
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = make(map[string]level)
	m.hclScanned = false
}

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: level id %q must be letters, digits, '-' or '_'", ErrInvalidConfig, id)
	}
	if _, builtin := engine.StageByID(id); builtin {
		return fmt.Errorf("%w: level id %q is reserved for a built-in stage", ErrInvalidConfig, id)
	}
	return nil
}

// Register makes a level loadable under id until the process exits
func (m *Manager) Register(id string, config *engine.LevelConfig) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := engine.ValidateLevelConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered[id] = level{config: config, source: SourceMemory}
	return nil
}

// SaveConfig writes a level to <dir>/<id>.json, creating the directory if needed
func (m *Manager) SaveConfig(id string, config *engine.LevelConfig) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := engine.ValidateLevelConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if m.levelDir == "" {
		return fmt.Errorf("no level directory configured")
	}
	if err := os.MkdirAll(m.levelDir, 0755); err != nil {
		return fmt.Errorf("failed to create level directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}

	filename := id + ".json"
	if err := os.WriteFile(filepath.Join(m.levelDir, filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write level file: %w", err)
	}

	m.mu.Lock()
	m.levels[id] = level{config: config, source: SourceJSON, filename: filename}
	delete(m.registered, id)
	m.mu.Unlock()

	slog.Info("level saved", "level", id, "file", filename)
	return nil
}
