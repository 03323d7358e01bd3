// Package monitor runs the periodic keepalive loop: a no-op command against
// every connected server, emitted as status events together with host
// resource readings. It doubles as liveness detection: a server that stops
// answering fails its session and shows up as unreachable.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/events"
	"github.com/rconsole-project/rconsole/internal/fleet"
	"github.com/rconsole-project/rconsole/internal/util"
)

// Monitor polls connected servers on a fixed interval.
type Monitor struct {
	cfg      *config.Config
	eventBus *events.EventBus
	manager  *fleet.Manager
	logger   zerolog.Logger
}

// NewMonitor creates a keepalive monitor over the fleet.
func NewMonitor(cfg *config.Config, eventBus *events.EventBus, manager *fleet.Manager) *Monitor {
	return &Monitor{
		cfg:      cfg,
		eventBus: eventBus,
		manager:  manager,
		logger:   log.With().Str("component", "monitor").Logger(),
	}
}

// Start runs the polling loop until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	monCfg := m.cfg.GetApplication().Monitor
	if !monCfg.Enabled {
		m.logger.Info().Msg("monitor disabled")
		<-ctx.Done()
		return nil
	}

	interval := time.Duration(monCfg.IntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	m.logger.Info().
		Dur("interval", interval).
		Str("command", monCfg.KeepAliveCommand).
		Msg("monitor started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor stopped")
			return nil
		case <-ticker.C:
			m.poll(ctx, monCfg.KeepAliveCommand)
		}
	}
}

// poll runs the keepalive command against every connected server.
func (m *Monitor) poll(ctx context.Context, command string) {
	names := m.manager.ConnectedNames()
	if len(names) == 0 {
		return
	}

	cpuPct, memPct := util.HostUsage()

	for _, name := range names {
		response, err := m.manager.Execute(ctx, name, command)

		payload := events.ServerStatusPayload{
			Server:        name,
			Reachable:     err == nil,
			Players:       response,
			HostCPUUsage:  cpuPct,
			HostMemoryPct: memPct,
		}

		if err != nil {
			m.logger.Warn().Err(err).Str("server", name).Msg("keepalive failed")
			payload.Players = ""
		} else {
			m.logger.Trace().Str("server", name).Msg("keepalive ok")
		}

		m.eventBus.Emit(ctx, events.Event{
			Type:    events.EventServerStatus,
			Source:  "monitor",
			Payload: payload,
		})
	}
}
