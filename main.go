// Command tilematch serves match-3 tile boards.
//
// It supports two modes:
//  1. "server" (default) runs the HTTP server exposing the REST API, board
//     updates over WebSocket, Prometheus metrics and an /mcp HTTP endpoint
//  2. "stdio-mcp" runs an MCP stdio server, reusing a running API server or
//     starting an internal one
//
// Sessions are kept in JSON files by default, or in Postgres when a database
// URL is given. An ngrok tunnel can expose the server during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/tilematch/api"
	"github.com/wricardo/tilematch/game/config"
	"github.com/wricardo/tilematch/game/service"
	"github.com/wricardo/tilematch/game/session"
	"github.com/wricardo/tilematch/logger"
	"github.com/wricardo/tilematch/monitor"
	"github.com/wricardo/tilematch/transport/mcp"
	"github.com/wricardo/tilematch/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Tilematch Server"

	metricsNamespace = "tilematch"
)

// settings holds everything the flags and environment decide
type settings struct {
	host         string
	port         int
	configDir    string
	sessionsDir  string
	databaseURL  string
	debug        bool
	sessionTTL   time.Duration
	syncInterval time.Duration
	apiURL       string
	ngrok        bool
	ngrokAuth    string
	ngrokDomain  string
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

func settingsFrom(cmd *cli.Command) settings {
	return settings{
		host:         cmd.String("host"),
		port:         cmd.Int("port"),
		configDir:    cmd.String("config-dir"),
		sessionsDir:  cmd.String("sessions-dir"),
		databaseURL:  cmd.String("database-url"),
		debug:        cmd.Bool("debug"),
		sessionTTL:   cmd.Duration("session-ttl"),
		syncInterval: cmd.Duration("sync-interval"),
		apiURL:       cmd.String("api-url"),
		ngrok:        cmd.Bool("ngrok"),
		ngrokAuth:    cmd.String("ngrok-auth"),
		ngrokDomain:  cmd.String("ngrok-domain"),
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "tilematch",
		Usage:   "serve match-3 tile boards over REST, WebSocket and MCP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory containing board configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "sessions-dir",
				Value:   "sessions",
				Usage:   "directory for session files when no database is configured",
				Sources: cli.EnvVars("SESSIONS_DIR"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres DSN; sessions are stored in the database instead of files",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.DurationFlag{
				Name:  "session-ttl",
				Value: 24 * time.Hour,
				Usage: "drop sessions not accessed for this long",
			},
			&cli.DurationFlag{
				Name:  "sync-interval",
				Value: 5 * time.Second,
				Usage: "how often in-memory sessions are checked against storage",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
		},
		Action: runServerCommand,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "run the HTTP server with API, WebSocket, metrics and MCP endpoint (default)",
				Flags: []cli.Flag{
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
						Usage:   "custom ngrok domain",
						Sources: cli.EnvVars("NGROK_DOMAIN"),
					},
				},
				Action: runServerCommand,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "run an MCP stdio server backed by a running or internal API server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   "http://localhost:8080",
						Usage:   "API server to reuse when it is reachable",
						Sources: cli.EnvVars("TILEMATCH_API_URL"),
					},
				},
				Action: runStdioCommand,
			},
		},
	}
}

// main loads .env, then runs the selected command until a signal arrives
func main() {
	envErr = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand()
	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Log.Errorw("tilematch failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

// envErr holds the result of loading .env, reported once logging is set up
var envErr error

func setupLogging(s settings) error {
	if err := logger.Init(s.debug); err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Log.Warnw("error loading .env file", "error", envErr)
	}
	return nil
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	s := settingsFrom(cmd)
	if err := setupLogging(s); err != nil {
		return err
	}
	logger.Log.Infow("starting", "app", AppName, "version", Version, "mode", "server")

	app, err := initializeServices(s)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer app.close()

	return runHTTPServer(ctx, app, s)
}

func runStdioCommand(ctx context.Context, cmd *cli.Command) error {
	s := settingsFrom(cmd)
	if err := setupLogging(s); err != nil {
		return err
	}
	logger.Log.Infow("starting", "app", AppName, "version", Version, "mode", "stdio-mcp")

	return runStdioMCP(ctx, s)
}

// application is the wired set of long-lived services
type application struct {
	service     service.GameService
	sessions    *session.Manager
	persistence session.SessionPersistence
	monitor     *monitor.Monitor
	stop        context.CancelFunc
	wg          sync.WaitGroup
}

// initializeServices wires the config and session managers, persistence,
// metrics and the game service. It also starts the background routines that
// prune stale sessions and follow storage.
func initializeServices(s settings) (*application, error) {
	configManager, err := config.NewManager(s.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	var persistence session.SessionPersistence
	if s.databaseURL != "" {
		persistence, err = session.NewGormPersistence(s.databaseURL, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to connect session database: %w", err)
		}
		logger.Log.Infow("sessions stored in postgres")
	} else {
		persistence, err = session.NewFilePersistence(s.sessionsDir, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		logger.Log.Infow("sessions stored on disk", "dir", s.sessionsDir)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Log.Warnw("failed to load persisted sessions", "error", err)
	}

	m := monitor.NewMonitor(metricsNamespace)
	m.SetActiveSessions(sessionManager.Count())

	ctx, cancel := context.WithCancel(context.Background())
	app := &application{
		service:     service.NewGameService(sessionManager, configManager, service.WithMonitor(m)),
		sessions:    sessionManager,
		persistence: persistence,
		monitor:     m,
		stop:        cancel,
	}

	app.wg.Add(2)
	go func() {
		defer app.wg.Done()
		sessionCleanupRoutine(ctx, sessionManager, m, s.sessionTTL)
	}()
	go func() {
		defer app.wg.Done()
		storageSyncRoutine(ctx, sessionManager, persistence, s.syncInterval)
	}()

	return app, nil
}

// close stops the background routines and flushes every session to storage
func (a *application) close() {
	a.stop()
	a.wg.Wait()
	if err := a.sessions.SaveAllSessions(); err != nil {
		logger.Log.Warnw("failed to save sessions on shutdown", "error", err)
	}
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within ttl.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, m *monitor.Monitor, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				logger.Log.Infow("cleaned up expired sessions", "removed", removed)
				m.SetActiveSessions(manager.Count())
			}
		}
	}
}

// storageSyncRoutine drops sessions from memory once their stored copy is
// deleted, so removing a session file or row ends the session.
func storageSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, interval time.Duration) {
	if persistence == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneOrphans(manager, persistence)
		}
	}
}

func pruneOrphans(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			logger.Log.Infow("pruned session from memory, storage copy deleted", "session", sess.ID)
		}
	}
	return pruned
}

// newHandler combines the REST API, websocket and metrics with the /mcp
// endpoint, which proxies to apiBaseURL.
func newHandler(app *application, hub *websocket.Hub, apiBaseURL string) http.Handler {
	apiServer := api.NewServer(app.service, hub, api.WithMonitor(app.monitor))
	mcpClient := mcp.NewClient(apiBaseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
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

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
	return mainRouter
}

// runHTTPServer serves until ctx is cancelled. If ngrok is enabled it also
// serves through a public tunnel.
func runHTTPServer(ctx context.Context, app *application, s settings) error {
	hub := websocket.NewHub(websocket.WithMonitor(app.monitor))
	go hub.Run()
	defer hub.Close()

	addr := s.addr()
	handler := newHandler(app, hub, "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Log.Infow("HTTP server listening",
			"addr", addr,
			"api", "http://"+addr+"/api",
			"websocket", "ws://"+addr+"/ws?session=<session_id>",
			"metrics", "http://"+addr+"/metrics",
			"mcp", "http://"+addr+"/mcp")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if s.ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, handler, s)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Log.Infow("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnw("HTTP server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Log.Infow("server stopped")
	return runErr
}

// serveNgrok exposes handler through an ngrok tunnel until ctx is cancelled
func serveNgrok(ctx context.Context, handler http.Handler, s settings) {
	if s.ngrokAuth == "" {
		logger.Log.Warnw("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if s.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(s.ngrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(s.ngrokAuth))
	if err != nil {
		logger.Log.Errorw("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Log.Warnw("failed to close ngrok tunnel", "error", err)
		}
	}()

	url := tun.URL()
	logger.Log.Infow("ngrok tunnel established",
		"url", url,
		"api", url+"/api",
		"websocket", url+"/ws?session=<session_id>",
		"mcp", url+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Log.Warnw("ngrok server error", "error", err)
	}
	logger.Log.Infow("ngrok tunnel closed")
}

// apiReachable reports whether an API server answers its health check
func apiReachable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalAPI serves the API on a random loopback port and returns its
// base URL and a shutdown function.
func startInternalAPI(app *application) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}
	baseURL := "http://" + listener.Addr().String()

	hub := websocket.NewHub(websocket.WithMonitor(app.monitor))
	go hub.Run()

	httpServer := &http.Server{Handler: newHandler(app, hub, baseURL)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorw("internal HTTP server error", "error", err)
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
		hub.Close()
	}
	return baseURL, shutdown, nil
}

// runStdioMCP runs an MCP stdio server. It reuses the API at s.apiURL when it
// is reachable and otherwise starts the services and an internal API on a
// loopback port. Services are only started in the second case so two
// processes never write the same session storage.
func runStdioMCP(ctx context.Context, s settings) error {
	baseURL := s.apiURL
	if baseURL != "" && apiReachable(baseURL) {
		logger.Log.Infow("using external API server for MCP", "url", baseURL)
	} else {
		logger.Log.Infow("no external API server found, starting internal HTTP server")
		app, err := initializeServices(s)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer app.close()

		internalURL, shutdown, err := startInternalAPI(app)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = internalURL
	}

	client := mcp.NewClient(baseURL)

	errCh := make(chan error, 1)
	go func() { errCh <- client.ServeStdio() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("MCP stdio server error: %w", err)
		}
		return nil
	}
}
