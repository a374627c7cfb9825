package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/tilematch/game/session"
	"github.com/wricardo/tilematch/transport/websocket"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "Tilematch Server", AppName)
}

// captureSettings runs the command line with every action replaced by one
// that records the parsed settings.
func captureSettings(t *testing.T, args ...string) (settings, string) {
	t.Helper()

	var got settings
	var ran string
	capture := func(name string) cli.ActionFunc {
		return func(_ context.Context, cmd *cli.Command) error {
			got = settingsFrom(cmd)
			ran = name
			return nil
		}
	}

	cmd := newCommand()
	cmd.Action = capture("root")
	for _, sub := range cmd.Commands {
		sub.Action = capture(sub.Name)
	}

	require.NoError(t, cmd.Run(context.Background(), append([]string{"tilematch"}, args...)))
	return got, ran
}

func TestCommandDefaults(t *testing.T) {
	for _, env := range []string{"HOST", "PORT", "CONFIG_DIR", "SESSIONS_DIR", "DATABASE_URL", "DEBUG"} {
		t.Setenv(env, "")
	}

	s, ran := captureSettings(t)
	assert.Equal(t, "root", ran)
	assert.Equal(t, "localhost", s.host)
	assert.Equal(t, 8080, s.port)
	assert.Equal(t, "localhost:8080", s.addr())
	assert.Equal(t, "configs", s.configDir)
	assert.Equal(t, "sessions", s.sessionsDir)
	assert.Empty(t, s.databaseURL)
	assert.Equal(t, 24*time.Hour, s.sessionTTL)
	assert.Equal(t, 5*time.Second, s.syncInterval)
	assert.False(t, s.debug)
}

func TestCommandFlags(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	s, ran := captureSettings(t, "--port", "9090", "--host", "0.0.0.0", "--debug", "server", "--ngrok", "--ngrok-domain", "tiles.example.com")
	assert.Equal(t, "server", ran)
	assert.Equal(t, "0.0.0.0:9090", s.addr())
	assert.True(t, s.debug)
	assert.True(t, s.ngrok)
	assert.Equal(t, "tiles.example.com", s.ngrokDomain)
}

func TestCommandEnvironment(t *testing.T) {
	t.Setenv("CONFIG_DIR", "/etc/tilematch")
	t.Setenv("DATABASE_URL", "postgres://localhost/tiles")
	t.Setenv("NGROK_AUTH_TOKEN", "token")

	s, _ := captureSettings(t, "server")
	assert.Equal(t, "/etc/tilematch", s.configDir)
	assert.Equal(t, "postgres://localhost/tiles", s.databaseURL)
	assert.Equal(t, "token", s.ngrokAuth)
}

func TestStdioCommandAliases(t *testing.T) {
	for _, alias := range []string{"stdio-mcp", "mcp-stdio", "mcp"} {
		t.Run(alias, func(t *testing.T) {
			s, ran := captureSettings(t, alias, "--api-url", "http://127.0.0.1:9999")
			assert.Equal(t, "stdio-mcp", ran)
			assert.Equal(t, "http://127.0.0.1:9999", s.apiURL)
		})
	}
}

func testSettings(t *testing.T) settings {
	t.Helper()
	return settings{
		host:         "127.0.0.1",
		port:         0,
		configDir:    "configs",
		sessionsDir:  t.TempDir(),
		sessionTTL:   time.Hour,
		syncInterval: time.Hour,
	}
}

func TestInitializeServices(t *testing.T) {
	app, err := initializeServices(testSettings(t))
	require.NoError(t, err)
	defer app.close()

	assert.NotNil(t, app.service)
	assert.NotNil(t, app.monitor)
	assert.IsType(t, &session.FilePersistence{}, app.persistence)

	seed := uint64(3)
	info, err := app.service.CreateSession(context.Background(), "classic", &seed)
	require.NoError(t, err)
	assert.True(t, app.persistence.Exists(info.ID))
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	s := testSettings(t)
	s.configDir = "/non/existent/path"

	_, err := initializeServices(s)
	assert.Error(t, err)
}

func TestInitializeServices_BadDatabaseURL(t *testing.T) {
	s := testSettings(t)
	s.databaseURL = "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"

	_, err := initializeServices(s)
	assert.Error(t, err)
}

func TestPruneOrphans(t *testing.T) {
	app, err := initializeServices(testSettings(t))
	require.NoError(t, err)
	defer app.close()

	ctx := context.Background()
	kept, err := app.service.CreateSession(ctx, "classic", nil)
	require.NoError(t, err)
	gone, err := app.service.CreateSession(ctx, "classic", nil)
	require.NoError(t, err)

	require.NoError(t, app.persistence.Delete(gone.ID))

	assert.Equal(t, 1, pruneOrphans(app.sessions, app.persistence))
	assert.Equal(t, 1, app.sessions.Count())

	_, err = app.sessions.Get(kept.ID)
	assert.NoError(t, err)
}

func TestHandlerRoutes(t *testing.T) {
	app, err := initializeServices(testSettings(t))
	require.NoError(t, err)
	defer app.close()

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Close()

	srv := httptest.NewUnstartedServer(nil)
	srv.Config.Handler = newHandler(app, hub, "http://"+srv.Listener.Addr().String())
	srv.Start()
	defer srv.Close()

	assert.True(t, apiReachable(srv.URL))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/mcp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp, err = http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "2.0", reply["jsonrpc"])
}

func TestAPIReachable_Down(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.False(t, apiReachable(url))
}

func TestStartInternalAPI(t *testing.T) {
	app, err := initializeServices(testSettings(t))
	require.NoError(t, err)
	defer app.close()

	baseURL, shutdown, err := startInternalAPI(app)
	require.NoError(t, err)
	defer shutdown()

	assert.True(t, apiReachable(baseURL))
}
