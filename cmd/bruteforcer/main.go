// Command bruteforcer plays a level on a running BOTLOOP server by uploading random tapes
// until one clears it. Every attempt loads a tape, steps the bot through the API and returns
// it to programming when the step budget runs out.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/levelgen"
	"github.com/wricardo/botloop/game/service"
	"github.com/wricardo/botloop/game/tapelang"
	"github.com/wricardo/botloop/logging"
)

// ErrGaveUp is returned when no tape cleared the level within the attempt budget.
var ErrGaveUp = errors.New("no tape cleared the level")

// Client talks to the session API of one game session.
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + c.sessionID + suffix
}

// CreateSession starts a session on levelID; an empty id uses the server default.
func (c *Client) CreateSession(ctx context.Context, levelID string) (*engine.GameState, error) {
	var info service.SessionInfo
	body := map[string]string{"level_id": levelID}
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return info.GameState, nil
}

// Resume attaches to an existing session.
func (c *Client) Resume(ctx context.Context, sessionID string) (*engine.GameState, error) {
	c.sessionID = sessionID
	var state engine.GameState
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) LoadTape(ctx context.Context, tape []engine.Command) (*engine.GameState, error) {
	var state engine.GameState
	body := map[string]string{"program": tapelang.Format(tape)}
	if err := c.do(ctx, http.MethodPut, c.sessionPath("/tape"), body, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) Step(ctx context.Context, count int) (*service.StepResult, error) {
	var result service.StepResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/step"), map[string]int{"count": count}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Program(ctx context.Context) (*engine.GameState, error) {
	var state engine.GameState
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/program"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Options bounds a brute-force run.
type Options struct {
	Attempts int
	Steps    int
	Delay    time.Duration
	Rand     *rand.Rand
}

// Result reports the tape that cleared the level.
type Result struct {
	Attempts int
	Steps    int
	Bonks    int
	Tape     []engine.Command
	State    *engine.GameState
}

// Bruteforce uploads random tapes of the session's capacity until one clears the level.
func Bruteforce(ctx context.Context, c *Client, state *engine.GameState, opts Options) (*Result, error) {
	if state.State == engine.Cleared {
		return nil, fmt.Errorf("level %s is already cleared", state.LevelID)
	}
	if state.State != engine.Programming {
		if _, err := c.Program(ctx); err != nil {
			return nil, err
		}
	}

	tape := make([]engine.Command, state.Capacity)
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range tape {
			tape[i] = engine.Command(opts.Rand.IntN(engine.CommandCount))
		}
		if _, err := c.LoadTape(ctx, tape); err != nil {
			return nil, err
		}

		result, err := c.Step(ctx, opts.Steps)
		if err != nil {
			return nil, err
		}
		slog.Debug("attempt", "attempt", attempt, "tape", tapelang.Format(tape),
			"executed", result.Executed, "bonks", result.Bonks, "cleared", result.Cleared)

		if result.Cleared {
			return &Result{
				Attempts: attempt,
				Steps:    result.GameState.Steps,
				Bonks:    result.Bonks,
				Tape:     append([]engine.Command(nil), tape...),
				State:    result.GameState,
			}, nil
		}

		if _, err := c.Program(ctx); err != nil {
			return nil, err
		}
		if opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrGaveUp, opts.Attempts)
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Game server URL")
	levelID := flag.String("level", "", "Level to play (default: the server's default level)")
	continueSession := flag.String("continue", "", "Play an existing session by ID")
	maxAttempts := flag.Int("max-attempts", 1000, "Maximum tapes to try")
	maxSteps := flag.Int("max-steps", 200, "Steps each tape runs before it is replaced")
	seed := flag.Uint64("seed", 0, "Random seed (0 picks one)")
	verbose := flag.Bool("v", false, "Verbose output")
	delayMs := flag.Int("delay", 0, "Delay between attempts in milliseconds")
	flag.Parse()

	closeLog, err := logging.Setup(logging.Options{Debug: *verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("connecting to game server", "url", *serverURL)
	client := NewClient(*serverURL)

	var state *engine.GameState
	if *continueSession != "" {
		state, err = client.Resume(ctx, *continueSession)
	} else {
		state, err = client.CreateSession(ctx, *levelID)
	}
	if err != nil {
		slog.Error("failed to open session", "error", err)
		os.Exit(1)
	}
	slog.Info("session ready", "session", client.sessionID, "level", state.LevelID,
		"size", state.Size, "capacity", state.Capacity)

	result, err := Bruteforce(ctx, client, state, Options{
		Attempts: *maxAttempts,
		Steps:    *maxSteps,
		Delay:    time.Duration(*delayMs) * time.Millisecond,
		Rand:     levelgen.NewRand(*seed),
	})
	if err != nil {
		slog.Error("bruteforce failed", "session", client.sessionID, "error", err)
		os.Exit(1)
	}
	slog.Info("🎉 cleared", "session", client.sessionID, "tape", tapelang.Format(result.Tape),
		"attempts", result.Attempts, "steps", result.Steps, "bonks", result.Bonks)
}
