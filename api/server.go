package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/botloop/game/config"
	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
	"github.com/wricardo/botloop/game/service"
	"github.com/wricardo/botloop/game/session"
	"github.com/wricardo/botloop/game/tapelang"
	"github.com/wricardo/botloop/transport/websocket"
)

// FrameInterval is the default clock period used to animate watched sessions.
const FrameInterval = time.Second / 60

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil, which disables /ws and broadcasts.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Tape editing
	api.HandleFunc("/sessions/{id}/tape", s.handleLoadTape).Methods("PUT", "POST")
	api.HandleFunc("/sessions/{id}/tape", s.handleClearTape).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/command", s.handleSetCommand).Methods("POST")
	api.HandleFunc("/sessions/{id}/cursor", s.handleSelectSlot).Methods("POST")
	api.HandleFunc("/sessions/{id}/slots/{slot:[0-9]+}", s.handleSetSlot).Methods("PUT")

	// Bot lifecycle
	api.HandleFunc("/sessions/{id}/program", s.handleProgram).Methods("POST")
	api.HandleFunc("/sessions/{id}/run", s.handleRun).Methods("POST")
	api.HandleFunc("/sessions/{id}/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/sessions/{id}/step", s.handleStep).Methods("POST")
	api.HandleFunc("/sessions/{id}/tick", s.handleTick).Methods("POST")
	api.HandleFunc("/sessions/{id}/speed", s.handleSpeed).Methods("POST")
	api.HandleFunc("/sessions/{id}/level", s.handleSetLevel).Methods("POST")
	api.HandleFunc("/sessions/{id}/next", s.handleNextLevel).Methods("POST")

	// Game state
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Levels (generate must be registered before {name})
	api.HandleFunc("/levels", s.handleListLevels).Methods("GET")
	api.HandleFunc("/levels", s.handleSaveLevel).Methods("POST")
	api.HandleFunc("/levels/generate", s.handleGenerateLevel).Methods("POST")
	api.HandleFunc("/levels/{name}", s.handleGetLevel).Methods("GET")
	api.HandleFunc("/levels/{name}/solve", s.handleSolveLevel).Methods("GET")
	api.HandleFunc("/levels/{name}/stats", s.handleLevelStats).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.handleWebSocket)
	}
}

// Handle mounts an extra handler, such as the MCP endpoint, on the server's router
func (s *Server) Handle(path string, h http.Handler) {
	s.router.Handle(path, h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// StatusFor maps service errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, config.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidCommand),
		errors.Is(err, engine.ErrMalformedBoard),
		errors.Is(err, engine.ErrInvalidLevel),
		errors.Is(err, engine.ErrInvalidTickSize),
		errors.Is(err, tapelang.ErrTapeTooLong),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, session.ErrInvalidSessionID),
		errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotProgramming),
		errors.Is(err, engine.ErrAlreadyCleared),
		errors.Is(err, session.ErrSessionAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	respondError(w, status, err.Error())
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", service.ErrInvalidRequest, err)
	}
	return nil
}

// broadcast pushes the new state of a session to websocket watchers
func (s *Server) broadcast(sessionID string, state *engine.GameState) {
	if s.hub != nil && state != nil {
		s.hub.BroadcastToSession(sessionID, state)
	}
}

// stateHandler adapts a state-returning service call into a handler that broadcasts.
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request, call func(id string) (*engine.GameState, error)) {
	sessionID := mux.Vars(r)["id"]
	state, err := call(sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	s.broadcast(sessionID, state)
	respondJSON(w, http.StatusOK, state)
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LevelID string `json:"level_id,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	info, err := s.service.CreateSession(r.Context(), req.LevelID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	if s.hub != nil {
		s.hub.CloseSession(sessionID)
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Tape Handlers

func (s *Server) handleLoadTape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Program  string   `json:"program"`
		Commands []string `json:"commands"`
	}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	program := req.Program
	if program == "" && len(req.Commands) > 0 {
		program = strings.Join(req.Commands, " ")
	}

	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.LoadTape(r.Context(), id, program)
	})
}

func (s *Server) handleClearTape(w http.ResponseWriter, r *http.Request) {
	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.ClearTape(r.Context(), id)
	})
}

func (s *Server) handleSetCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.SetCommand(r.Context(), id, req.Command)
	})
}

func (s *Server) handleSelectSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot int `json:"slot"`
	}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.SelectSlot(r.Context(), id, req.Slot)
	})
}

func (s *Server) handleSetSlot(w http.ResponseWriter, r *http.Request) {
	slot, _ := strconv.Atoi(mux.Vars(r)["slot"])
	var req struct {
		Command string `json:"command"`
	}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.SetSlot(r.Context(), id, slot, req.Command)
	})
}

// Lifecycle Handlers

func (s *Server) handleProgram(w http.ResponseWriter, r *http.Request) {
	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.Program(r.Context(), id)
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.Run(r.Context(), id)
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.Stop(r.Context(), id)
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On bool `json:"on"`
	}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	s.stateHandler(w, r, func(id string) (*engine.GameState, error) {
		return s.service.SetSpeedUp(r.Context(), id, req.On)
	})
}

func (s *Server) respondStep(w http.ResponseWriter, sessionID string, result *service.StepResult) {
	s.broadcast(sessionID, result.GameState)
	if result.Cleared && s.hub != nil {
		s.hub.BroadcastEvent(sessionID, "cleared", result.GameState.Message)
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	req := struct {
		Count int `json:"count"`
	}{Count: 1}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := s.service.Step(r.Context(), sessionID, req.Count)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	slog.Info("step", "session", sessionID, "requested", req.Count, "executed", result.Executed,
		"bonks", result.Bonks, "state", result.GameState.State)
	for _, rec := range result.Steps {
		slog.Debug("bot step", "session", sessionID, "slot", rec.Slot, "cmd", rec.Command,
			"from", rec.Pose.Position, "to", rec.Pending.Position, "bonk", rec.Bonk, "state", rec.State)
	}
	s.respondStep(w, sessionID, result)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req struct {
		Milliseconds float64 `json:"ms"`
	}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	elapsed := time.Duration(req.Milliseconds * float64(time.Millisecond))
	result, err := s.service.Tick(r.Context(), sessionID, elapsed)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	s.respondStep(w, sessionID, result)
}

func (s *Server) respondSession(w http.ResponseWriter, info *service.SessionInfo, err error) {
	if err != nil {
		respondServiceError(w, err)
		return
	}
	s.broadcast(info.ID, info.GameState)
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LevelID string `json:"level_id"`
	}
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	if req.LevelID == "" {
		respondError(w, http.StatusBadRequest, "level_id is required")
		return
	}
	info, err := s.service.SetLevel(r.Context(), mux.Vars(r)["id"], req.LevelID)
	s.respondSession(w, info, err)
}

func (s *Server) handleNextLevel(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.NextLevel(r.Context(), mux.Vars(r)["id"])
	s.respondSession(w, info, err)
}

// State Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetStepHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Level Handlers

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, levels)
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".json")
	level, err := s.service.LoadConfig(r.Context(), name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, level)
}

func (s *Server) handleSaveLevel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		engine.LevelConfig
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "Level id is required")
		return
	}

	if err := s.service.SaveConfig(r.Context(), req.ID, &req.LevelConfig); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Level saved successfully",
		"config_id": req.ID,
	})
}

func (s *Server) handleGenerateLevel(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := decode(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	level, err := s.service.GenerateLevel(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, level)
}

// solveRequest reads seed, attempts, steps and runs from the query string.
func solveRequest(r *http.Request) (service.SolveRequest, error) {
	var req service.SolveRequest
	query := r.URL.Query()
	for key, dst := range map[string]*int{"attempts": &req.Attempts, "steps": &req.Steps, "runs": &req.Runs} {
		if v := query.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return req, fmt.Errorf("%w: %s must be a non-negative integer", service.ErrInvalidRequest, key)
			}
			*dst = n
		}
	}
	if v := query.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: seed must be an unsigned integer", service.ErrInvalidRequest)
		}
		req.Seed = seed
	}
	return req, nil
}

func (s *Server) handleSolveLevel(w http.ResponseWriter, r *http.Request) {
	req, err := solveRequest(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	solution, err := s.service.SolveLevel(r.Context(), mux.Vars(r)["name"], req)
	if err != nil {
		if errors.Is(err, levelgen.ErrSearchExhausted) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, solution)
}

func (s *Server) handleLevelStats(w http.ResponseWriter, r *http.Request) {
	req, err := solveRequest(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	stats, err := s.service.LevelStats(r.Context(), mux.Vars(r)["name"], req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":   stats,
		"summary": stats.String(),
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session parameter required")
		return
	}

	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.hub.ServeWS(w, r, info.ID)
	s.hub.BroadcastToSession(info.ID, info.GameState)
}

// RunClock ticks every watched, running session by interval until ctx is done, so that
// websocket watchers see the bot move at animation speed.
func (s *Server) RunClock(ctx context.Context, interval time.Duration) {
	if s.hub == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickWatched(ctx, interval)
		}
	}
}

func (s *Server) tickWatched(ctx context.Context, interval time.Duration) {
	for _, id := range s.hub.WatchedSessions() {
		state, err := s.service.GetGameState(ctx, id)
		if err != nil || state.State != engine.Running {
			continue
		}
		result, err := s.service.Tick(ctx, id, interval)
		if err != nil {
			slog.Warn("clock tick failed", "session", id, "error", err)
			continue
		}
		s.hub.BroadcastToSession(id, result.GameState)
		if result.Cleared {
			s.hub.BroadcastEvent(id, "cleared", result.GameState.Message)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"elapsed", time.Since(start))
	})
}
