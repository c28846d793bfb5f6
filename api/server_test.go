package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/wricardo/botloop/game/config"
	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
	"github.com/wricardo/botloop/game/service"
	"github.com/wricardo/botloop/game/session"
	"github.com/wricardo/botloop/game/tapelang"
	"github.com/wricardo/botloop/transport/websocket"
)

var errNotMocked = fmt.Errorf("not mocked")

// MockGameService implements service.GameService for testing
type MockGameService struct {
	// Session Management
	CreateSessionFunc func(ctx context.Context, levelID string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	// Tape editing
	SetCommandFunc func(ctx context.Context, sessionID, command string) (*engine.GameState, error)
	SelectSlotFunc func(ctx context.Context, sessionID string, slot int) (*engine.GameState, error)
	SetSlotFunc    func(ctx context.Context, sessionID string, slot int, command string) (*engine.GameState, error)
	LoadTapeFunc   func(ctx context.Context, sessionID, program string) (*engine.GameState, error)
	ClearTapeFunc  func(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Lifecycle
	ProgramFunc    func(ctx context.Context, sessionID string) (*engine.GameState, error)
	RunFunc        func(ctx context.Context, sessionID string) (*engine.GameState, error)
	StopFunc       func(ctx context.Context, sessionID string) (*engine.GameState, error)
	StepFunc       func(ctx context.Context, sessionID string, n int) (*service.StepResult, error)
	TickFunc       func(ctx context.Context, sessionID string, elapsed time.Duration) (*service.StepResult, error)
	SetSpeedUpFunc func(ctx context.Context, sessionID string, on bool) (*engine.GameState, error)
	SetLevelFunc   func(ctx context.Context, sessionID, levelID string) (*service.SessionInfo, error)
	NextLevelFunc  func(ctx context.Context, sessionID string) (*service.SessionInfo, error)

	// Game State
	GetGameStateFunc   func(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetStepHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	// Levels
	ListConfigsFunc   func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc    func(ctx context.Context, levelID string) (*engine.LevelConfig, error)
	SaveConfigFunc    func(ctx context.Context, levelID string, config *engine.LevelConfig) error
	GenerateLevelFunc func(ctx context.Context, req service.GenerateRequest) (*service.GeneratedLevel, error)
	SolveLevelFunc    func(ctx context.Context, levelID string, req service.SolveRequest) (*levelgen.Solution, error)
	LevelStatsFunc    func(ctx context.Context, levelID string, req service.SolveRequest) (*levelgen.Stats, error)
}

func (m *MockGameService) CreateSession(ctx context.Context, levelID string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, levelID)
	}
	return &service.SessionInfo{ID: "test-session", LevelID: "stage-1"}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, LevelID: "stage-1"}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockGameService) SetCommand(ctx context.Context, sessionID, command string) (*engine.GameState, error) {
	if m.SetCommandFunc != nil {
		return m.SetCommandFunc(ctx, sessionID, command)
	}
	return nil, errNotMocked
}

func (m *MockGameService) SelectSlot(ctx context.Context, sessionID string, slot int) (*engine.GameState, error) {
	if m.SelectSlotFunc != nil {
		return m.SelectSlotFunc(ctx, sessionID, slot)
	}
	return nil, errNotMocked
}

func (m *MockGameService) SetSlot(ctx context.Context, sessionID string, slot int, command string) (*engine.GameState, error) {
	if m.SetSlotFunc != nil {
		return m.SetSlotFunc(ctx, sessionID, slot, command)
	}
	return nil, errNotMocked
}

func (m *MockGameService) LoadTape(ctx context.Context, sessionID, program string) (*engine.GameState, error) {
	if m.LoadTapeFunc != nil {
		return m.LoadTapeFunc(ctx, sessionID, program)
	}
	return nil, errNotMocked
}

func (m *MockGameService) ClearTape(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.ClearTapeFunc != nil {
		return m.ClearTapeFunc(ctx, sessionID)
	}
	return nil, errNotMocked
}

func (m *MockGameService) Program(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.ProgramFunc != nil {
		return m.ProgramFunc(ctx, sessionID)
	}
	return nil, errNotMocked
}

func (m *MockGameService) Run(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, sessionID)
	}
	return nil, errNotMocked
}

func (m *MockGameService) Stop(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.StopFunc != nil {
		return m.StopFunc(ctx, sessionID)
	}
	return nil, errNotMocked
}

func (m *MockGameService) Step(ctx context.Context, sessionID string, n int) (*service.StepResult, error) {
	if m.StepFunc != nil {
		return m.StepFunc(ctx, sessionID, n)
	}
	return nil, errNotMocked
}

func (m *MockGameService) Tick(ctx context.Context, sessionID string, elapsed time.Duration) (*service.StepResult, error) {
	if m.TickFunc != nil {
		return m.TickFunc(ctx, sessionID, elapsed)
	}
	return nil, errNotMocked
}

func (m *MockGameService) SetSpeedUp(ctx context.Context, sessionID string, on bool) (*engine.GameState, error) {
	if m.SetSpeedUpFunc != nil {
		return m.SetSpeedUpFunc(ctx, sessionID, on)
	}
	return nil, errNotMocked
}

func (m *MockGameService) SetLevel(ctx context.Context, sessionID, levelID string) (*service.SessionInfo, error) {
	if m.SetLevelFunc != nil {
		return m.SetLevelFunc(ctx, sessionID, levelID)
	}
	return nil, errNotMocked
}

func (m *MockGameService) NextLevel(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.NextLevelFunc != nil {
		return m.NextLevelFunc(ctx, sessionID)
	}
	return nil, errNotMocked
}

func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, sessionID)
	}
	return engine.NewEngineWithDefaults().GetState(), nil
}

func (m *MockGameService) GetStepHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetStepHistoryFunc != nil {
		return m.GetStepHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{Steps: []engine.StepRecord{}, Page: opts.Page, PageSize: opts.Limit}, nil
}

func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, levelID string) (*engine.LevelConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, levelID)
	}
	return engine.StageConfig(engine.Stages[0]), nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, levelID string, config *engine.LevelConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, levelID, config)
	}
	return nil
}

func (m *MockGameService) GenerateLevel(ctx context.Context, req service.GenerateRequest) (*service.GeneratedLevel, error) {
	if m.GenerateLevelFunc != nil {
		return m.GenerateLevelFunc(ctx, req)
	}
	return nil, errNotMocked
}

func (m *MockGameService) SolveLevel(ctx context.Context, levelID string, req service.SolveRequest) (*levelgen.Solution, error) {
	if m.SolveLevelFunc != nil {
		return m.SolveLevelFunc(ctx, levelID, req)
	}
	return nil, errNotMocked
}

func (m *MockGameService) LevelStats(ctx context.Context, levelID string, req service.SolveRequest) (*levelgen.Stats, error) {
	if m.LevelStatsFunc != nil {
		return m.LevelStatsFunc(ctx, levelID, req)
	}
	return nil, errNotMocked
}

// Test helpers
func setupTestServer(t *testing.T, svc service.GameService) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := websocket.NewHub()
	go hub.Run(ctx)
	return NewServer(svc, hub)
}

// setupRealServer wires the server to the real service, session and level managers.
func setupRealServer(t *testing.T) *Server {
	t.Helper()
	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	return setupTestServer(t, service.NewGameService(session.NewManager(), configs))
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v (%s)", err, w.Body.String())
	}
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, makeRequest(method, path, body))
	return w
}

// Session Management Tests

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    map[string]string
		setupMock      func(*MockGameService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "Create session with default level",
			requestBody:    nil,
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ID != "test-session" {
					t.Errorf("Expected session ID test-session, got %s", resp.ID)
				}
			},
		},
		{
			name:        "Create session with specific level",
			requestBody: map[string]string{"level_id": "stage-4"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, levelID string) (*service.SessionInfo, error) {
					if levelID != "stage-4" {
						t.Errorf("Expected level stage-4, got %s", levelID)
					}
					return &service.SessionInfo{ID: "ab12", LevelID: levelID}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.LevelID != "stage-4" {
					t.Errorf("Expected level stage-4, got %s", resp.LevelID)
				}
			},
		},
		{
			name:        "Unknown level",
			requestBody: map[string]string{"level_id": "nope"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, levelID string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, levelID)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "Handle service error",
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, levelID string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("service error")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] != "service error" {
					t.Errorf("Expected error message 'service error', got %s", resp["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := do(t, server, "POST", "/api/sessions", tt.requestBody)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	mockService := &MockGameService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "old", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now},
				{ID: "new", CreatedAt: now, LastAccessedAt: now.Add(-time.Hour)},
				{ID: "mid", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now.Add(-2 * time.Hour)},
			}, nil
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		query         string
		expectedFirst string
		expectedCount int
	}{
		{"", "old", 3},
		{"?sort=created", "new", 3},
		{"?sort=created&order=asc", "old", 3},
		{"?order=asc&limit=1", "mid", 1},
		{"?limit=abc", "old", 3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(t, server, "GET", "/api/sessions"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)
			if resp.Count != tt.expectedCount || resp.Total != 3 {
				t.Errorf("Expected count %d of 3, got %d of %d", tt.expectedCount, resp.Count, resp.Total)
			}
			if resp.Sessions[0].ID != tt.expectedFirst {
				t.Errorf("Expected first session %s, got %s", tt.expectedFirst, resp.Sessions[0].ID)
			}
		})
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	mockService := &MockGameService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			if sessionID == "missing" {
				return nil, fmt.Errorf("session %q: %w", sessionID, session.ErrSessionNotFound)
			}
			return &service.SessionInfo{ID: sessionID}, nil
		},
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			if sessionID == "missing" {
				return session.ErrSessionNotFound
			}
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		method         string
		path           string
		expectedStatus int
	}{
		{"GET", "/api/sessions/ab12", http.StatusOK},
		{"GET", "/api/sessions/missing", http.StatusNotFound},
		{"DELETE", "/api/sessions/ab12", http.StatusOK},
		{"DELETE", "/api/sessions/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(t, server, tt.method, tt.path, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

// Tape and lifecycle tests

func TestTapeHandlersPassArguments(t *testing.T) {
	state := engine.NewEngineWithDefaults().GetState()
	var got []string
	record := func(parts ...interface{}) (*engine.GameState, error) {
		got = append(got, fmt.Sprint(parts...))
		return state, nil
	}
	mockService := &MockGameService{
		LoadTapeFunc: func(ctx context.Context, id, program string) (*engine.GameState, error) {
			return record("load:", id, ":", program)
		},
		SetCommandFunc: func(ctx context.Context, id, command string) (*engine.GameState, error) {
			return record("command:", id, ":", command)
		},
		SelectSlotFunc: func(ctx context.Context, id string, slot int) (*engine.GameState, error) {
			return record("cursor:", id, ":", slot)
		},
		SetSlotFunc: func(ctx context.Context, id string, slot int, command string) (*engine.GameState, error) {
			return record("slot:", id, ":", slot, ":", command)
		},
		SetSpeedUpFunc: func(ctx context.Context, id string, on bool) (*engine.GameState, error) {
			return record("speed:", id, ":", on)
		},
	}
	server := setupTestServer(t, mockService)

	requests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{"PUT", "/api/sessions/s1/tape", map[string]string{"program": "F F L"}},
		{"POST", "/api/sessions/s1/tape", map[string][]string{"commands": {"forward", "left"}}},
		{"POST", "/api/sessions/s1/command", map[string]string{"command": "right"}},
		{"POST", "/api/sessions/s1/cursor", map[string]int{"slot": 2}},
		{"PUT", "/api/sessions/s1/slots/1", map[string]string{"command": "B"}},
		{"POST", "/api/sessions/s1/speed", map[string]bool{"on": true}},
	}
	for _, r := range requests {
		if w := do(t, server, r.method, r.path, r.body); w.Code != http.StatusOK {
			t.Errorf("%s %s: expected 200, got %d (%s)", r.method, r.path, w.Code, w.Body.String())
		}
	}

	expected := []string{
		"load:s1:F F L",
		"load:s1:forward left",
		"command:s1:right",
		"cursor:s1:2",
		"slot:s1:1:B",
		"speed:s1:true",
	}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d calls, got %v", len(expected), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Call %d: expected %q, got %q", i, expected[i], got[i])
		}
	}
}

func TestStepHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		expectedCount  int
		err            error
		expectedStatus int
	}{
		{"default count", nil, 1, nil, http.StatusOK},
		{"explicit count", map[string]int{"count": 12}, 12, nil, http.StatusOK},
		{"invalid count", map[string]int{"count": 0}, 0, service.ErrInvalidRequest, http.StatusBadRequest},
		{"cleared", map[string]int{"count": 3}, 3, engine.ErrAlreadyCleared, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{
				StepFunc: func(ctx context.Context, id string, n int) (*service.StepResult, error) {
					if n != tt.expectedCount {
						t.Errorf("Expected count %d, got %d", tt.expectedCount, n)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.StepResult{Requested: n, Executed: n, GameState: engine.NewEngineWithDefaults().GetState()}, nil
				},
			}
			server := setupTestServer(t, mockService)
			w := do(t, server, "POST", "/api/sessions/s1/step", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestTickHandlerConvertsMilliseconds(t *testing.T) {
	mockService := &MockGameService{
		TickFunc: func(ctx context.Context, id string, elapsed time.Duration) (*service.StepResult, error) {
			if elapsed != 16*time.Millisecond {
				t.Errorf("Expected 16ms, got %s", elapsed)
			}
			return &service.StepResult{GameState: engine.NewEngineWithDefaults().GetState()}, nil
		},
	}
	server := setupTestServer(t, mockService)
	if w := do(t, server, "POST", "/api/sessions/s1/tick", map[string]float64{"ms": 16}); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestGetHistory(t *testing.T) {
	tests := []struct {
		query    string
		expected service.HistoryOptions
	}{
		{"", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
		{"?page=3&limit=5&order=asc", service.HistoryOptions{Page: 3, Limit: 5, Order: "asc"}},
		{"?page=-1&limit=x&order=sideways", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			mockService := &MockGameService{
				GetStepHistoryFunc: func(ctx context.Context, id string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
					if opts != tt.expected {
						t.Errorf("Expected options %+v, got %+v", tt.expected, opts)
					}
					return &service.HistoryResponse{Steps: []engine.StepRecord{}}, nil
				},
			}
			server := setupTestServer(t, mockService)
			if w := do(t, server, "GET", "/api/sessions/s1/history"+tt.query, nil); w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
		})
	}
}

// Level tests

func TestLevelHandlers(t *testing.T) {
	var saved string
	mockService := &MockGameService{
		LoadConfigFunc: func(ctx context.Context, id string) (*engine.LevelConfig, error) {
			if id != "stage-2" {
				return nil, config.ErrConfigNotFound
			}
			return engine.StageConfig(engine.Stages[1]), nil
		},
		SaveConfigFunc: func(ctx context.Context, id string, cfg *engine.LevelConfig) error {
			if cfg.Capacity != 2 || len(cfg.Layout) != 5 {
				t.Errorf("Unexpected saved level %+v", cfg)
			}
			saved = id
			return nil
		},
		SolveLevelFunc: func(ctx context.Context, id string, req service.SolveRequest) (*levelgen.Solution, error) {
			if req.Seed != 42 || req.Attempts != 10 {
				t.Errorf("Unexpected solve request %+v", req)
			}
			return nil, levelgen.ErrSearchExhausted
		},
		LevelStatsFunc: func(ctx context.Context, id string, req service.SolveRequest) (*levelgen.Stats, error) {
			return &levelgen.Stats{Runs: req.Runs, AvgAttempts: 3}, nil
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		expectedStatus int
	}{
		{"get level", "GET", "/api/levels/stage-2", nil, http.StatusOK},
		{"get level with suffix", "GET", "/api/levels/stage-2.json", nil, http.StatusOK},
		{"missing level", "GET", "/api/levels/nope", nil, http.StatusNotFound},
		{"save level", "POST", "/api/levels", map[string]interface{}{
			"id": "mine", "name": "Mine", "capacity": 2,
			"layout": []string{"#####", "#G  #", "# # #", "#  R#", "#####"},
		}, http.StatusCreated},
		{"save without id", "POST", "/api/levels", map[string]interface{}{"name": "Mine"}, http.StatusBadRequest},
		{"unsolved", "GET", "/api/levels/stage-2/solve?seed=42&attempts=10", nil, http.StatusUnprocessableEntity},
		{"bad seed", "GET", "/api/levels/stage-2/solve?seed=-1", nil, http.StatusBadRequest},
		{"stats", "GET", "/api/levels/stage-2/stats?runs=4", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, tt.method, tt.path, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d (%s)", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
	if saved != "mine" {
		t.Errorf("Expected level 'mine' to be saved, got %q", saved)
	}
}

func TestSearchBudgetsRejected(t *testing.T) {
	server := setupRealServer(t)

	paths := []string{
		"/api/levels/stage-1/solve?attempts=2000000000",
		"/api/levels/stage-1/solve?steps=2000000000",
		"/api/levels/stage-1/stats?runs=1000000",
	}
	for _, path := range paths {
		w := do(t, server, "GET", path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d (%s)", path, w.Code, w.Body.String())
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", config.ErrConfigNotFound), http.StatusNotFound},
		{engine.ErrInvalidCommand, http.StatusBadRequest},
		{tapelang.ErrTapeTooLong, http.StatusBadRequest},
		{config.ErrInvalidConfig, http.StatusBadRequest},
		{engine.ErrNotProgramming, http.StatusConflict},
		{session.ErrSessionAlreadyExists, http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.expected {
			t.Errorf("StatusFor(%v): expected %d, got %d", tt.err, tt.expected, got)
		}
	}
}

// Tests against the real service

func TestPlayStageTwo(t *testing.T) {
	server := setupRealServer(t)

	w := do(t, server, "POST", "/api/sessions", map[string]string{"level_id": "stage-2"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var info service.SessionInfo
	parseResponse(t, w, &info)
	base := "/api/sessions/" + info.ID

	if w := do(t, server, "PUT", base+"/tape", map[string]string{"program": "F F F F"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an overlong tape, got %d", w.Code)
	}
	if w := do(t, server, "PUT", base+"/tape", map[string]string{"program": "F F L"}); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 loading tape, got %d (%s)", w.Code, w.Body.String())
	}

	w = do(t, server, "POST", base+"/step", map[string]int{"count": 50})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 stepping, got %d (%s)", w.Code, w.Body.String())
	}
	var result service.StepResult
	parseResponse(t, w, &result)
	if !result.Cleared || result.Executed != 8 {
		t.Errorf("Expected clear after 8 steps, got cleared=%v executed=%d", result.Cleared, result.Executed)
	}
	if result.GameState.State != engine.Cleared {
		t.Errorf("Expected cleared state, got %s", result.GameState.State)
	}

	if w := do(t, server, "POST", base+"/command", map[string]string{"command": "F"}); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 editing a cleared tape, got %d", w.Code)
	}

	w = do(t, server, "GET", base+"/history?order=asc&limit=100", nil)
	var history service.HistoryResponse
	parseResponse(t, w, &history)
	if history.TotalSteps != 9 {
		t.Errorf("Expected 9 history records, got %d", history.TotalSteps)
	}

	w = do(t, server, "POST", base+"/next", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for next level, got %d", w.Code)
	}
	parseResponse(t, w, &info)
	if info.LevelID != "stage-3" || info.GameState.State != engine.Programming {
		t.Errorf("Expected fresh stage-3, got %s in %s", info.LevelID, info.GameState.State)
	}
}

func TestRunStop(t *testing.T) {
	server := setupRealServer(t)
	w := do(t, server, "POST", "/api/sessions", map[string]string{"level_id": "stage-2"})
	var info service.SessionInfo
	parseResponse(t, w, &info)
	base := "/api/sessions/" + info.ID

	do(t, server, "PUT", base+"/tape", map[string]string{"program": "F F L"})

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{"/stop", http.StatusBadRequest},
		{"/run", http.StatusOK},
		{"/tick", http.StatusOK},
		{"/stop", http.StatusOK},
		{"/program", http.StatusOK},
	}
	for _, tt := range tests {
		w := do(t, server, "POST", base+tt.path, map[string]float64{"ms": 16})
		if w.Code != tt.expectedStatus {
			t.Errorf("POST %s: expected %d, got %d (%s)", tt.path, tt.expectedStatus, w.Code, w.Body.String())
		}
	}
}

func TestGenerateLevel(t *testing.T) {
	server := setupRealServer(t)

	w := do(t, server, "POST", "/api/levels/generate", map[string]interface{}{
		"capacity": 2, "size": 9, "seed": 7, "attempts": 300, "steps": 200,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var level service.GeneratedLevel
	parseResponse(t, w, &level)
	if !strings.HasPrefix(level.ConfigID, "gen-") {
		t.Errorf("Expected gen- id, got %s", level.ConfigID)
	}

	if w := do(t, server, "GET", "/api/levels/"+level.ConfigID, nil); w.Code != http.StatusOK {
		t.Errorf("Expected generated level to be listed, got %d", w.Code)
	}
	if w := do(t, server, "POST", "/api/levels/generate", map[string]int{"capacity": 2, "size": 8}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an even size, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t, &MockGameService{})
	w := do(t, server, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestWebSocket(t *testing.T) {
	tests := []struct {
		name           string
		queryParams    string
		setupMock      func(*MockGameService)
		expectedStatus int
	}{
		{
			name:           "Missing session parameter",
			queryParams:    "",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "Invalid session",
			queryParams: "?session=invalid",
			setupMock: func(m *MockGameService) {
				m.GetSessionFunc = func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
					return nil, session.ErrSessionNotFound
				}
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}
			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("GET", "/ws"+tt.queryParams, nil))
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestClockAnimatesWatchedSession(t *testing.T) {
	server := setupRealServer(t)
	ts := httptest.NewServer(server)
	defer ts.Close()

	w := do(t, server, "POST", "/api/sessions", map[string]string{"level_id": "stage-2"})
	var info service.SessionInfo
	parseResponse(t, w, &info)
	base := "/api/sessions/" + info.ID
	do(t, server, "PUT", base+"/tape", map[string]string{"program": "F F L"})
	do(t, server, "POST", base+"/run", nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + info.ID
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !server.hub.Watched(info.ID) {
		if time.Now().After(deadline) {
			t.Fatal("Session never became watched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		server.tickWatched(ctx, FrameInterval)
		state, _ := server.service.GetGameState(ctx, info.ID)
		if state.State == engine.Cleared {
			if state.Steps != 9 {
				t.Errorf("Expected 9 steps, got %d", state.Steps)
			}
			return
		}
	}
	t.Fatal("Expected the clock to clear stage-2")
}
