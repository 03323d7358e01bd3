// Package fleet manages the RCON sessions to all configured game servers.
// It owns one connection and session per named endpoint and emits lifecycle
// and command events for the history, telemetry, and API layers.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/events"
	"github.com/rconsole-project/rconsole/internal/network"
	"github.com/rconsole-project/rconsole/internal/session"
)

var (
	// ErrUnknownServer is returned for a name with no config entry.
	ErrUnknownServer = errors.New("fleet: server not configured")

	// ErrNotConnected is returned when a command is sent to a server
	// without an open session.
	ErrNotConnected = errors.New("fleet: server not connected")

	// ErrAlreadyConnected is returned by Connect when a usable session
	// already exists. Disconnect first to force a fresh handshake.
	ErrAlreadyConnected = errors.New("fleet: server already connected")
)

// endpoint pairs a live connection with its session.
type endpoint struct {
	cfg  config.ServerConfig
	conn *network.Conn
	sess *session.Session
}

// EndpointStatus is a point-in-time snapshot of one configured server.
type EndpointStatus struct {
	Name         string        `json:"name"`
	Address      string        `json:"address"`
	Connected    bool          `json:"connected"`
	State        session.State `json:"state"`
	ConnectedAt  time.Time     `json:"connected_at,omitempty"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

// Manager orchestrates RCON sessions across the configured fleet. Sessions
// are never retried in place: a failed session is discarded and the caller
// reconnects explicitly, since replaying an admin command is not safe.
type Manager struct {
	mu sync.RWMutex

	cfg      *config.Config
	eventBus *events.EventBus
	logger   zerolog.Logger

	endpoints map[string]*endpoint
}

// NewManager creates a fleet manager over the configured servers.
func NewManager(cfg *config.Config, eventBus *events.EventBus) *Manager {
	return &Manager{
		cfg:       cfg,
		eventBus:  eventBus,
		logger:    log.With().Str("component", "fleet").Logger(),
		endpoints: make(map[string]*endpoint),
	}
}

// Connect dials a configured server and performs the RCON handshake.
func (m *Manager) Connect(ctx context.Context, name string) error {
	srv, ok := m.cfg.GetServer(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}

	m.mu.Lock()
	if ep, exists := m.endpoints[name]; exists {
		if ep.sess.State() == session.StateReady {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrAlreadyConnected, name)
		}
		// Stale endpoint from an earlier failure; replace it.
		ep.sess.Close()
		delete(m.endpoints, name)
	}
	m.mu.Unlock()

	password, err := srv.ResolvePassword()
	if err != nil {
		return err
	}

	dial, read, write := timeouts(srv)
	conn, err := network.DialTimeout(srv.Address, dial, read, write)
	if err != nil {
		return err
	}

	sess := session.New(conn)
	if err := sess.Authenticate(password); err != nil {
		conn.Close()

		if errors.Is(err, session.ErrAuthRejected) {
			m.eventBus.Emit(ctx, events.Event{
				Type:   events.EventAuthRejected,
				Source: "fleet",
				Payload: events.SessionPayload{
					Server:  name,
					Address: srv.Address,
					State:   session.StateFailed.String(),
					Reason:  err.Error(),
				},
			})
		}
		return fmt.Errorf("handshake with %s failed: %w", name, err)
	}

	m.mu.Lock()
	m.endpoints[name] = &endpoint{cfg: srv, conn: conn, sess: sess}
	m.mu.Unlock()

	m.logger.Info().Str("server", name).Str("addr", srv.Address).Msg("session established")

	m.eventBus.Emit(ctx, events.Event{
		Type:   events.EventSessionOpened,
		Source: "fleet",
		Payload: events.SessionPayload{
			Server:  name,
			Address: srv.Address,
			State:   sess.State().String(),
		},
	})

	return nil
}

// Execute runs a command on a connected server and returns the reassembled
// response. The exchange is recorded on the event bus whether it succeeds
// or not. A session that fails mid-exchange is discarded.
func (m *Manager) Execute(ctx context.Context, name, command string) (string, error) {
	m.mu.RLock()
	ep, ok := m.endpoints[name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotConnected, name)
	}

	start := time.Now()
	response, err := ep.sess.Execute(command)
	elapsed := time.Since(start)

	payload := events.CommandPayload{
		Server:   name,
		Command:  command,
		Response: response,
		OK:       err == nil,
		Duration: elapsed,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	m.eventBus.Emit(ctx, events.Event{
		Type:    events.EventCommandExecuted,
		Source:  "fleet",
		Payload: payload,
	})

	if err != nil {
		// A busy or invalid-state error leaves the session alone;
		// anything else means the session is now failed and useless.
		if ep.sess.State() == session.StateFailed {
			m.drop(ctx, name, ep, err)
		}
		return "", err
	}

	m.logger.Debug().
		Str("server", name).
		Str("command", command).
		Dur("elapsed", elapsed).
		Int("response_len", len(response)).
		Msg("command executed")

	return response, nil
}

// Disconnect closes the session to a server.
func (m *Manager) Disconnect(ctx context.Context, name string) error {
	m.mu.Lock()
	ep, ok := m.endpoints[name]
	if ok {
		delete(m.endpoints, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, name)
	}

	ep.sess.Close()
	m.logger.Info().Str("server", name).Msg("session closed")

	m.eventBus.Emit(ctx, events.Event{
		Type:   events.EventSessionClosed,
		Source: "fleet",
		Payload: events.SessionPayload{
			Server:  name,
			Address: ep.cfg.Address,
			State:   session.StateFailed.String(),
		},
	})
	return nil
}

// drop removes a failed endpoint and closes its transport.
func (m *Manager) drop(ctx context.Context, name string, ep *endpoint, cause error) {
	m.mu.Lock()
	if m.endpoints[name] == ep {
		delete(m.endpoints, name)
	}
	m.mu.Unlock()

	ep.sess.Close()
	m.logger.Warn().Err(cause).Str("server", name).Msg("session failed, discarding")

	m.eventBus.Emit(ctx, events.Event{
		Type:   events.EventSessionFailed,
		Source: "fleet",
		Payload: events.SessionPayload{
			Server:  name,
			Address: ep.cfg.Address,
			State:   session.StateFailed.String(),
			Reason:  cause.Error(),
		},
	})
}

// Connected reports whether a usable session to the server exists.
func (m *Manager) Connected(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.endpoints[name]
	return ok && ep.sess.State() == session.StateReady
}

// ConnectedNames returns the names of all servers with a live session.
func (m *Manager) ConnectedNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.endpoints))
	for name, ep := range m.endpoints {
		if ep.sess.State() == session.StateReady {
			names = append(names, name)
		}
	}
	return names
}

// Statuses returns a snapshot of every configured server, connected or not.
func (m *Manager) Statuses() []EndpointStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	servers := m.cfg.GetServers()
	statuses := make([]EndpointStatus, 0, len(servers))
	for _, srv := range servers {
		st := EndpointStatus{
			Name:    srv.Name,
			Address: srv.Address,
		}
		if ep, ok := m.endpoints[srv.Name]; ok {
			st.Connected = ep.sess.State() == session.StateReady
			st.State = ep.sess.State()
			st.ConnectedAt = ep.conn.ConnectedAt()
			st.LastActivity = ep.conn.LastActivity()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// CloseAll closes every open session, typically at shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	endpoints := m.endpoints
	m.endpoints = make(map[string]*endpoint)
	m.mu.Unlock()

	for name, ep := range endpoints {
		ep.sess.Close()
		m.logger.Debug().Str("server", name).Msg("session closed")
	}

	if len(endpoints) > 0 {
		m.logger.Info().Int("count", len(endpoints)).Msg("all sessions closed")
	}
}

// timeouts maps per-server overrides onto the transport defaults.
func timeouts(srv config.ServerConfig) (dial, read, write time.Duration) {
	dial = network.DefaultDialTimeout
	read = network.DefaultReadTimeout
	write = network.DefaultWriteTimeout

	if srv.DialTimeoutSec > 0 {
		dial = time.Duration(srv.DialTimeoutSec) * time.Second
	}
	if srv.ReadTimeoutSec > 0 {
		read = time.Duration(srv.ReadTimeoutSec) * time.Second
	}
	if srv.WriteTimeoutSec > 0 {
		write = time.Duration(srv.WriteTimeoutSec) * time.Second
	}
	return dial, read, write
}
