// rconsole - RCON Fleet Console
//
// rconsole manages RCON sessions to a fleet of Minecraft and Source-engine
// game servers: an interactive console, a REST API for remote management,
// a SQLite audit log of every command, and MQTT telemetry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rconsole-project/rconsole/internal/api"
	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/console"
	"github.com/rconsole-project/rconsole/internal/events"
	"github.com/rconsole-project/rconsole/internal/fleet"
	"github.com/rconsole-project/rconsole/internal/history"
	"github.com/rconsole-project/rconsole/internal/monitor"
	"github.com/rconsole-project/rconsole/internal/telemetry"
	"github.com/rconsole-project/rconsole/internal/util"
)

const (
	AppName    = "rconsole"
	AppVersion = "1.0.0"
	Banner     = `
                                        _
  _ __ ___ ___  _ __  ___  ___ | | ___
 | '__/ __/ _ \| '_ \/ __|/ _ \| |/ _ \
 | | | (_| (_) | | | \__ \ (_) | |  __/
 |_|  \___\___/|_| |_|___/\___/|_|\___|  v%s
 RCON Fleet Console
`
)

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Initialize logger with defaults first (reconfigured after config load)
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting rconsole")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	app := cfg.GetApplication()
	logCfg := util.LogConfig{
		Level:      app.Logging.Level,
		Directory:  app.Logging.Directory,
		MaxBackups: app.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core components
	eventBus := events.NewEventBus()
	manager := fleet.NewManager(cfg, eventBus)

	// Command audit log
	var store *history.Store
	if app.History.Enabled {
		store, err = history.Open(app.History.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open history database")
		}
		defer store.Close()
		store.SubscribeEvents(eventBus)
	}

	// Shutdown on console quit or OS signal
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(ctx context.Context, event events.Event) error {
		cancel()
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	// REST API
	apiServer := api.NewServer(cfg, eventBus, manager, store)
	g.Go(func() error {
		return apiServer.Start(gctx)
	})

	// Keepalive monitor
	mon := monitor.NewMonitor(cfg, eventBus, manager)
	g.Go(func() error {
		return mon.Start(gctx)
	})

	// MQTT telemetry
	if app.MQTT.Enabled {
		mqttHandler, err := telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		} else {
			g.Go(func() error {
				return mqttHandler.Start(gctx)
			})
		}
	}

	// Interactive console (blocks main until quit/EOF)
	con := console.NewConsole(cfg, eventBus, manager, store)
	con.Start(gctx)
	cancel()

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("component exited with error")
	}

	manager.CloseAll(context.Background())
	eventBus.Stop()
	log.Info().Msg("rconsole stopped")
}
