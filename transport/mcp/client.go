package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
	"github.com/wricardo/botloop/game/render"
	"github.com/wricardo/botloop/game/service"
	"github.com/wricardo/botloop/game/tapelang"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	renderer   *render.Renderer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		renderer: &render.Renderer{},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"BOTLOOP",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`BOTLOOP - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Program a short command tape so that the bot, looping over it forever, reaches the goal (G).

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage sessions
- game_state: board, tape and bot status
- load_tape: write the whole tape, e.g. "F F L" - requires intent explanation
- set_slot / clear_tape: edit the tape
- step: run N loop steps immediately
- control: program, run or stop the bot
- step_history: past step records
- set_level / next_level / list_levels: choose levels
- generate_level / solve_level / level_stats: level generator and brute-force solver
- game_instructions: rules and notation

NOTE: The 'intent' parameter on load_tape serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session, optionally on a specific level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level to start on (optional, defaults to stage-1)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the board, tape and bot status of a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleGameState)

	// Tape editing
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "load_tape",
		Description: "Replace the whole tape. Letters F (forward), B (reverse), L (turn left), R (turn right) and _ (none), or words such as forward, left. Repetition like 2F is allowed. Shorter programs are padded with none.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"program": map[string]interface{}{
					"type":        "string",
					"description": "Tape program, e.g. \"F F L\"",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Explain why this tape should reach the goal",
				},
			},
			Required: []string{"session_id", "program", "intent"},
		},
	}, c.handleLoadTape)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_slot",
		Description: "Write one command into a tape slot (0-based)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"slot": map[string]interface{}{
					"type":        "number",
					"description": "Slot index",
				},
				"command": map[string]interface{}{
					"type":        "string",
					"description": "Command: forward, reverse, turn_left, turn_right or none",
				},
			},
			Required: []string{"session_id", "slot", "command"},
		},
	}, c.handleSetSlot)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "clear_tape",
		Description: "Set every tape slot to none",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleClearTape)

	// Bot lifecycle
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Execute loop steps immediately, starting the bot if it is still being programmed. Stops early when the goal is reached.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"count": map[string]interface{}{
					"type":        "number",
					"description": "Number of steps (default 1)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "control",
		Description: "Change the bot lifecycle: program (back to the start, tape editable), run or stop",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"action": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"program", "run", "stop"},
					"description": "Lifecycle action",
				},
			},
			Required: []string{"session_id", "action"},
		},
	}, c.handleControl)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step_history",
		Description: "Get step records with pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"page": map[string]interface{}{
					"type":        "number",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Records per page (default 20, max 100)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Sort order (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStepHistory)

	// Levels
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_level",
		Description: "Switch a session to another level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level ID",
				},
			},
			Required: []string{"session_id", "level_id"},
		},
	}, c.handleSetLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "next_level",
		Description: "Advance a session to the next built-in stage",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleNextLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List built-in, file and generated levels",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "generate_level",
		Description: "Generate a random level that a random tape of the given capacity can clear",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"capacity": map[string]interface{}{
					"type":        "number",
					"description": "Tape capacity",
				},
				"size": map[string]interface{}{
					"type":        "number",
					"description": "Odd board size (default depends on capacity)",
				},
				"seed": map[string]interface{}{
					"type":        "number",
					"description": "Random seed (optional, 0 picks one)",
				},
				"save": map[string]interface{}{
					"type":        "boolean",
					"description": "Write the level to the level directory",
				},
			},
			Required: []string{"capacity"},
		},
	}, c.handleGenerateLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "solve_level",
		Description: "Search random tapes until one clears the level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level ID",
				},
				"seed": map[string]interface{}{
					"type":        "number",
					"description": "Random seed (optional)",
				},
			},
			Required: []string{"level_id"},
		},
	}, c.handleSolveLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "level_stats",
		Description: "Difficulty estimate from several brute-force runs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level ID",
				},
				"runs": map[string]interface{}{
					"type":        "number",
					"description": "Number of runs (default 10)",
				},
			},
			Required: []string{"level_id"},
		},
	}, c.handleLevelStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules, notation and tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func sessionPath(args map[string]interface{}, suffix string) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

func intArg(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := map[string]string{}
	if levelID, _ := args["level_id"].(string); levelID != "" {
		body["level_id"] = levelID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nLevel: %s\n", session.ID, session.LevelID)
	if session.GameState != nil {
		result += "\n" + c.formatGameState(session.GameState)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		state := ""
		if s.GameState != nil {
			state = s.GameState.State.String()
		}
		result += fmt.Sprintf("- %s (Level: %s, %s, Created: %s)\n",
			s.ID, s.LevelID, state, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(c.formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", path, nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(c.formatGameState(&state)), nil
}

// stateCall posts body to a session endpoint and renders the returned state
func (c *Client) stateCall(ctx context.Context, request mcp.CallToolRequest, method, suffix string, body interface{}) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), suffix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var state engine.GameState
	if err := c.apiCall(ctx, method, path, body, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(c.formatGameState(&state)), nil
}

func (c *Client) handleLoadTape(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	program, _ := args["program"].(string)

	// Intent parameter serves as rubber duck debugging - we don't need to process it further
	_, _ = args["intent"].(string)

	return c.stateCall(ctx, request, "PUT", "/tape", map[string]string{"program": program})
}

func (c *Client) handleSetSlot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	slot := intArg(args, "slot", -1)
	if slot < 0 {
		return mcp.NewToolResultError("slot must be a non-negative number"), nil
	}
	command, _ := args["command"].(string)
	return c.stateCall(ctx, request, "PUT", fmt.Sprintf("/slots/%d", slot), map[string]string{"command": command})
}

func (c *Client) handleClearTape(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.stateCall(ctx, request, "DELETE", "/tape", nil)
}

func (c *Client) handleControl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, _ := arguments(request)["action"].(string)
	switch action {
	case "program", "run", "stop":
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q (use program, run or stop)", action)), nil
	}
	return c.stateCall(ctx, request, "POST", "/"+action, nil)
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/step")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.StepResult
	body := map[string]int{"count": intArg(args, "count", 1)}
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(c.formatStepResult(&result)), nil
}

func (c *Client) handleStepHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/history")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := url.Values{}
	query.Set("page", fmt.Sprint(intArg(args, "page", 1)))
	query.Set("limit", fmt.Sprint(intArg(args, "limit", 20)))
	if order, _ := args["order"].(string); order != "" {
		query.Set("order", order)
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path+"?"+query.Encode(), nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleSetLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/level")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	levelID, _ := args["level_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", path, map[string]string{"level_id": levelID}, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(c.formatSessionInfo(&session)), nil
}

func (c *Client) handleNextLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/next")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(c.formatSessionInfo(&session)), nil
}

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var levels []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &levels); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Levels (%d):\n\n", len(levels))
	for _, l := range levels {
		bonus := ""
		if l.Bonus {
			bonus = ", bonus"
		}
		fmt.Fprintf(&sb, "- %s: %s (%dx%d, capacity %d, %s%s)\n",
			l.ConfigID, l.Name, l.Size, l.Size, l.Capacity, l.Source, bonus)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGenerateLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	req := service.GenerateRequest{
		Capacity: intArg(args, "capacity", 0),
		Size:     intArg(args, "size", 0),
		Seed:     uint64(intArg(args, "seed", 0)),
	}
	req.Save, _ = args["save"].(bool)

	var level service.GeneratedLevel
	if err := c.apiCall(ctx, "POST", "/api/levels/generate", req, &level); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generated level: %s\n", level.ConfigID)
	fmt.Fprintf(&sb, "Capacity: %d  Radius: %d  Distance: %d\n", level.Config.Capacity, level.Radius, level.Distance)
	if level.Saved {
		sb.WriteString("Saved to the level directory\n")
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Join(level.Config.Layout, "\n"))
	sb.WriteString("\n\nUse set_level or create_session with this id to play it.")
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleSolveLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	levelID, _ := args["level_id"].(string)
	if levelID == "" {
		return mcp.NewToolResultError("level_id is required"), nil
	}

	path := "/api/levels/" + url.PathEscape(levelID) + "/solve"
	if seed := intArg(args, "seed", 0); seed > 0 {
		path += fmt.Sprintf("?seed=%d", seed)
	}

	var solution levelgen.Solution
	if err := c.apiCall(ctx, "GET", path, nil, &solution); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Solved %s after %d tapes\nTape: %s\nSteps: %d  Commands used: %d",
		levelID, solution.Attempts, tapelang.Format(solution.Tape), solution.Steps, solution.Commands)), nil
}

func (c *Client) handleLevelStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	levelID, _ := args["level_id"].(string)
	if levelID == "" {
		return mcp.NewToolResultError("level_id is required"), nil
	}

	path := fmt.Sprintf("/api/levels/%s/stats?runs=%d", url.PathEscape(levelID), intArg(args, "runs", levelgen.DefaultStatsRuns))
	var response struct {
		Summary string `json:"summary"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", levelID, response.Summary)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `BOTLOOP - Complete Instructions

GOAL:
Reach the goal tile (G) with the bot. You never steer the bot directly: you write a tape of
commands and the bot executes it in a loop, forever, until it stands on the goal.

GRID LEGEND:
# = wall
. = floor
G = goal
> ^ < v = the bot and the direction it faces (> is +x / east, ^ is +y / north)
Rows are printed top row first; y grows upwards.

COMMANDS (tape notation):
F = forward     move one tile in the facing direction
B = reverse     move one tile backwards, keeping the facing
L = turn_left   rotate 90 degrees counter-clockwise in place
R = turn_right  rotate 90 degrees clockwise in place
_ = none        wait one step
Repetition is allowed: "2F L" is "F F L". Short programs are padded with none.

RULES:
1. Each level has a fixed tape capacity. The tape can only be edited while PROGRAMMING.
2. run starts the loop at slot 0. After the last slot the bot continues at slot 0.
3. Moving into a wall is a BONK: the bot stays where it is and the tape keeps going.
4. The stage is CLEARED the step after the bot stands on the goal.
5. program returns the bot to its start pose so the tape can be changed again.

STRATEGY:
- Count the moves one pass of the tape makes and the net rotation: a tape with one L turns
  the bot a quarter each pass, so four passes bring it back to the original heading.
- Bonks are not failures. Many levels are solved by letting walls absorb moves.
- Use step with a small count to watch a loop unfold, then step_history to review it.
- solve_level finds a (random, not shortest) tape if you are stuck.

Good luck!`

// Formatting helpers

func (c *Client) formatSessionInfo(session *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nLevel: %s\nCreated: %s\nLast accessed: %s\n",
		session.ID, session.LevelID,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339))
	if session.GameState != nil {
		result += "\n" + c.formatGameState(session.GameState)
	}
	return result
}

func (c *Client) formatGameState(state *engine.GameState) string {
	var sb strings.Builder
	sb.WriteString(c.renderer.State(state))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Bot: (%d,%d) facing %s\n", state.Bot.Pose.X, state.Bot.Pose.Y, facingName(state.Bot.Pose.Dir))
	fmt.Fprintf(&sb, "Goal: (%d,%d)\n", state.Goal.X, state.Goal.Y)
	fmt.Fprintf(&sb, "Tape: %s (capacity %d)\n", tapelang.Format(state.Tape), state.Capacity)

	switch state.State {
	case engine.Cleared:
		sb.WriteString("\n🎉 CLEARED!\n")
	case engine.Running:
		sb.WriteString("\nThe bot is running. Use step to advance it or control stop to edit the tape.\n")
	}
	return sb.String()
}

func (c *Client) formatStepResult(result *service.StepResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Executed %d of %d steps", result.Executed, result.Requested)
	if result.Bonks > 0 {
		fmt.Fprintf(&sb, " (%d bonks)", result.Bonks)
	}
	sb.WriteString("\n\n")

	steps := result.Steps
	if len(steps) > 12 {
		fmt.Fprintf(&sb, "... %d earlier steps omitted\n", len(steps)-12)
		steps = steps[len(steps)-12:]
	}
	for _, s := range steps {
		sb.WriteString(formatStepLine(s))
	}
	sb.WriteString("\n")
	if result.GameState != nil {
		sb.WriteString(c.formatGameState(result.GameState))
	}
	return sb.String()
}

func formatStepLine(s engine.StepRecord) string {
	line := fmt.Sprintf("  #%d slot %d %-10s at (%d,%d) %s", s.Step, s.Slot, s.Command,
		s.Pose.X, s.Pose.Y, facingName(s.Pose.Dir))
	if s.Bonk {
		line += " BONK"
	}
	if s.State == engine.Cleared {
		line += " CLEARED"
	}
	return line + "\n"
}

func formatHistory(history *service.HistoryResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Step history (page %d/%d, %d total)\n\n", history.Page, history.TotalPages, history.TotalSteps)
	for _, s := range history.Steps {
		sb.WriteString(formatStepLine(s))
	}
	if history.HasNext {
		fmt.Fprintf(&sb, "\nMore on page %d\n", history.Page+1)
	}
	return sb.String()
}

var facingNames = [4]string{"east", "north", "west", "south"}

func facingName(dir int) string {
	return facingNames[engine.Facing(dir)]
}
