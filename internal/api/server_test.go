package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/events"
	"github.com/rconsole-project/rconsole/internal/fleet"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Servers = nil
	if mutate != nil {
		mutate(cfg)
	}

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	s := NewServer(cfg, bus, fleet.NewManager(cfg, bus), nil)
	s.router = s.buildRouter()
	return s
}

func doRequest(s *Server, method, path, token string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestPingIsPublic(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Application.Security.AuthDisabled = false
		cfg.Application.Security.APIToken = "secret-token"
	})

	w := doRequest(s, http.MethodGet, "/api/public/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Application.Security.AuthDisabled = false
		cfg.Application.Security.APIToken = "secret-token"
	})

	t.Run("missing token", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/api/servers", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/api/servers", "not-the-token", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/api/servers", "secret-token", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthDisabledAllowsAll(t *testing.T) {
	s := newTestServer(t, nil) // default config has auth_disabled: true

	w := doRequest(s, http.MethodGet, "/api/servers", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/api/public/ping", "", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestConnectUnknownServer(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/api/servers/ghost/connect", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecuteValidation(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Servers = []config.ServerConfig{
			{Name: "mc-test", Address: "127.0.0.1:25575", Password: "pw"},
		}
	})

	t.Run("missing command", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/api/servers/mc-test/execute", "", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not connected", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/api/servers/mc-test/execute", "", `{"command":"list"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(t, nil) // nil store

	w := doRequest(s, http.MethodGet, "/api/history", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/api/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "endpoint not found")
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"well formed", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"no token", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractBearerToken(tt.header))
		})
	}
}

func TestConfigServerManagement(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.Servers = nil

	bus := events.NewEventBus()
	changed := make(chan events.Event, 4)
	bus.Subscribe(events.EventConfigChanged, "test.capture", func(ctx context.Context, event events.Event) error {
		changed <- event
		return nil
	})

	s := NewServer(cfg, bus, fleet.NewManager(cfg, bus), nil)
	s.router = s.buildRouter()

	t.Run("add server", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/api/config/servers", "",
			`{"name":"mc-new","address":"10.0.0.9:25575","rcon_password":"pw"}`)
		require.Equal(t, http.StatusOK, w.Code)

		_, ok := cfg.GetServer("mc-new")
		assert.True(t, ok)
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/api/config/servers", "",
			`{"name":"mc-new","address":"10.0.0.10:25575","rcon_password":"pw"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/api/config/servers", "", `{"name":"incomplete"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get config redacts credentials", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/api/config", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "mc-new")
		assert.Contains(t, w.Body.String(), "<redacted>")
		assert.NotContains(t, w.Body.String(), `"rcon_password":"pw"`)
	})

	t.Run("remove server", func(t *testing.T) {
		w := doRequest(s, http.MethodDelete, "/api/config/servers/mc-new", "", "")
		require.Equal(t, http.StatusOK, w.Code)

		_, ok := cfg.GetServer("mc-new")
		assert.False(t, ok)
	})

	t.Run("remove unknown server", func(t *testing.T) {
		w := doRequest(s, http.MethodDelete, "/api/config/servers/ghost", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	bus.Stop()
	assert.GreaterOrEqual(t, len(changed), 2, "add and remove must each emit a config change")
}

func TestServersListIncludesConfigured(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Servers = []config.ServerConfig{
			{Name: "mc-prod", Address: "10.0.0.5:25575", Password: "pw"},
		}
	})

	w := doRequest(s, http.MethodGet, "/api/servers", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mc-prod")
	assert.Contains(t, w.Body.String(), `"connected":false`)
}
