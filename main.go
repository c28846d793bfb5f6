// Command botloop runs the BOTLOOP puzzle server and its offline level tools.
//
// Commands:
//  1. "serve" (default) – HTTP server exposing the REST API, WebSocket feed and an /mcp endpoint
//  2. "stdio-mcp" – MCP stdio server; it spins up an internal HTTP API if none is available
//  3. "boards", "generate", "solve", "stats" – inspect, create and brute-force levels locally
//
// Flags control host/port, the level directory, debug logging and optional ngrok tunneling
// for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/botloop/api"
	"github.com/wricardo/botloop/game/config"
	"github.com/wricardo/botloop/game/service"
	"github.com/wricardo/botloop/game/session"
	"github.com/wricardo/botloop/logging"
	"github.com/wricardo/botloop/transport/mcp"
	"github.com/wricardo/botloop/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "BOTLOOP"
)

const (
	sessionMaxAge        = 24 * time.Hour
	sessionSweepInterval = time.Hour
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// newApp builds the command tree.
func newApp() *cli.Command {
	var closeLog func() error

	return &cli.Command{
		Name:    "botloop",
		Usage:   "program a looping bot to reach the goal",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "also write JSON logs to this file",
			},
			&cli.StringFlag{
				Name:    "level-dir",
				Value:   "levels",
				Usage:   "directory containing .json and .hcl level files",
				Sources: cli.EnvVars("LEVEL_DIR"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			closer, err := logging.Setup(logging.Options{
				Debug: cmd.Bool("debug"),
				File:  cmd.String("log-file"),
			})
			if err != nil {
				return ctx, fmt.Errorf("failed to set up logging: %w", err)
			}
			closeLog = closer
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if closeLog != nil {
				return closeLog()
			}
			return nil
		},
		Action: serveAction,
		Commands: []*cli.Command{
			serveCommand(),
			stdioCommand(),
			boardsCommand(),
			generateCommand(),
			solveCommand(),
			statsCommand(),
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Value: "localhost",
			Usage: "HTTP server host",
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "HTTP server port",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "expose the server through an ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "custom ngrok domain (optional)",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server", "http"},
		Usage:   "run the HTTP server with REST API, WebSocket and MCP endpoint",
		Flags:   serveFlags(),
		Action:  serveAction,
	}
}

func stdioCommand() *cli.Command {
	return &cli.Command{
		Name:    "stdio-mcp",
		Aliases: []string{"mcp-stdio", "mcp"},
		Usage:   "run an MCP stdio server backed by the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api",
				Value: "http://localhost:8080",
				Usage: "API server to use when it is reachable",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			services, err := initializeServices(cmd.String("level-dir"))
			if err != nil {
				return err
			}
			return runStdioMCP(ctx, services, cmd.String("api"))
		},
	}
}

// services groups what the server commands need.
type services struct {
	game     service.GameService
	sessions *session.Manager
	levels   *config.Manager
}

// initializeServices wires session/config managers and the game service.
func initializeServices(levelDir string) (*services, error) {
	levels, err := config.NewManager(levelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create level manager: %w", err)
	}
	sessions := session.NewManager()
	return &services{
		game:     service.NewGameService(sessions, levels),
		sessions: sessions,
		levels:   levels,
	}, nil
}

// mcpHandler serves single JSON-RPC messages over HTTP POST.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newHandler builds the full HTTP handler and starts the hub, clock and session sweeper.
func newHandler(ctx context.Context, svc *services, baseURL string) http.Handler {
	hub := websocket.NewHub()
	go hub.Run(ctx)
	go svc.sessions.RunCleanup(ctx, sessionSweepInterval, sessionMaxAge, hub.CloseSession)

	apiServer := api.NewServer(svc.game, hub)
	go apiServer.RunClock(ctx, api.FrameInterval)

	apiServer.Handle("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return apiServer
}

// serveAction starts the HTTP server and, when enabled, an ngrok tunnel serving the same handler.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	svc, err := initializeServices(cmd.String("level-dir"))
	if err != nil {
		return err
	}

	host := cmd.String("host")
	if host == "" {
		host = "localhost"
	}
	port := cmd.Int("port")
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := newHandler(ctx, svc, "http://"+addr)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting", "app", AppName, "version", Version, "level_dir", cmd.String("level-dir"))

	var wg sync.WaitGroup
	errc := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("HTTP server listening", "addr", addr,
			"api", "http://"+addr+"/api",
			"ws", "ws://"+addr+"/ws?session=<session_id>",
			"mcp", "http://"+addr+"/mcp")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), handler)
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-errc:
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("HTTP server shutdown error", "error", shutdownErr)
	}

	wg.Wait()
	slog.Info("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		slog.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		slog.Info("using custom ngrok domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		slog.Error("failed to start ngrok tunnel", "error", err)
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			slog.Warn("failed to close ngrok tunnel", "error", err)
		}
	}()

	url := tun.URL()
	slog.Info("ngrok tunnel established", "url", url, "api", url+"/api", "mcp", url+"/mcp")
	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		slog.Error("ngrok server error", "error", err)
	}
	slog.Info("ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses an API at externalURL when one answers;
// otherwise it starts an internal HTTP API on a random loopback port and targets that.
func runStdioMCP(ctx context.Context, svc *services, externalURL string) error {
	baseURL := externalURL

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		slog.Info("external API server found, using it for MCP", "url", externalURL)
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()
		slog.Info("no external API server found, starting internal HTTP server", "url", baseURL)

		httpServer := &http.Server{Handler: newHandler(ctx, svc, baseURL)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("internal HTTP server error", "error", err)
			}
		}()
		defer httpServer.Close()
	}

	mcpClient := mcp.NewClient(baseURL)
	slog.Info("MCP stdio server ready", "api", baseURL)
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
