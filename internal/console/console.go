// Package console implements the interactive command-line interface for
// rconsole: connecting to servers, running commands, and inspecting the
// audit history.
package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/events"
	"github.com/rconsole-project/rconsole/internal/fleet"
	"github.com/rconsole-project/rconsole/internal/history"
	"github.com/rconsole-project/rconsole/internal/util"
)

// Console provides the interactive command loop.
type Console struct {
	cfg      *config.Config
	eventBus *events.EventBus
	manager  *fleet.Manager
	store    *history.Store
}

// NewConsole creates a new console handler. The history store may be nil
// when the audit log is disabled.
func NewConsole(cfg *config.Config, eventBus *events.EventBus, manager *fleet.Manager, store *history.Store) *Console {
	return &Console{
		cfg:      cfg,
		eventBus: eventBus,
		manager:  manager,
		store:    store,
	}
}

// Start begins the interactive loop. It returns when the input stream ends
// or the context is cancelled.
func (c *Console) Start(ctx context.Context) {
	fmt.Println("\nrconsole ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("rconsole> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "quit" || cmd == "exit" || cmd == "q" {
			fmt.Println("Shutting down rconsole...")
			c.eventBus.Emit(ctx, events.Event{
				Type:   events.EventShutdown,
				Source: "console",
			})
			return
		}

		if err := c.execute(ctx, cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// execute processes a single console command.
func (c *Console) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "servers", "s":
		c.printServers()
	case "connect":
		return c.cmdConnect(ctx, args)
	case "disconnect":
		return c.cmdDisconnect(ctx, args)
	case "exec", "e":
		return c.cmdExec(ctx, args)
	case "history":
		return c.cmdHistory(args)
	case "sysinfo":
		c.printSysInfo()
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *Console) printHelp() {
	fmt.Println("\n╔════════════════════════════════════════════════════════════╗")
	fmt.Println("║                     rconsole commands                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════════╣")
	fmt.Println("║  servers              List configured servers and state   ║")
	fmt.Println("║  connect <name>       Open an RCON session                ║")
	fmt.Println("║  disconnect <name>    Close the RCON session              ║")
	fmt.Println("║  exec <name> <cmd>    Run a command on a server           ║")
	fmt.Println("║  history [name] [n]   Show recent commands                ║")
	fmt.Println("║  sysinfo              Show host system information        ║")
	fmt.Println("║  quit                 Shutdown rconsole                   ║")
	fmt.Println("║  help                 Show this help message              ║")
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printServers displays the fleet in a formatted table.
func (c *Console) printServers() {
	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Name", "Address", "State", "Connected At", "Last Activity"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, st := range c.manager.Statuses() {
		state := "disconnected"
		connectedAt := "-"
		lastActivity := "-"

		if st.Connected || !st.ConnectedAt.IsZero() {
			state = st.State.String()
			connectedAt = st.ConnectedAt.Format(time.RFC3339)
			lastActivity = st.LastActivity.Format(time.RFC3339)
		}

		tw.Append([]string{st.Name, st.Address, state, connectedAt, lastActivity})
	}

	tw.Render()
	fmt.Println()
}

func (c *Console) cmdConnect(ctx context.Context, args []string) error {
	name, err := serverArg(args)
	if err != nil {
		return err
	}

	if err := c.manager.Connect(ctx, name); err != nil {
		return err
	}
	fmt.Printf("Connected to %s\n", name)
	return nil
}

func (c *Console) cmdDisconnect(ctx context.Context, args []string) error {
	name, err := serverArg(args)
	if err != nil {
		return err
	}

	if err := c.manager.Disconnect(ctx, name); err != nil {
		return err
	}
	fmt.Printf("Disconnected from %s\n", name)
	return nil
}

func (c *Console) cmdExec(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: exec <name> <command>")
	}

	name := args[0]
	command := strings.Join(args[1:], " ")

	response, err := c.manager.Execute(ctx, name, command)
	if err != nil {
		return err
	}

	if response == "" {
		fmt.Println("(empty response)")
	} else {
		fmt.Println(response)
	}
	return nil
}

func (c *Console) cmdHistory(args []string) error {
	if c.store == nil {
		return fmt.Errorf("history is disabled")
	}

	server := ""
	limit := 20
	if len(args) > 0 {
		server = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid limit: %s", args[1])
		}
		limit = n
	}

	entries, err := c.store.Recent(server, limit)
	if err != nil {
		return err
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Time", "Server", "Command", "OK", "Duration"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, e := range entries {
		tw.Append([]string{
			e.ExecutedAt.Format("15:04:05"),
			e.Server,
			e.Command,
			fmt.Sprintf("%v", e.OK),
			e.Duration.String(),
		})
	}

	tw.Render()
	fmt.Println()
	return nil
}

// printSysInfo prints host details and current utilization.
func (c *Console) printSysInfo() {
	info := util.GetSystemInfo()
	cpuPct, memPct := util.HostUsage()

	fmt.Printf("\n  Hostname:     %s\n", info.Hostname)
	fmt.Printf("  OS:           %s (%s/%s)\n", info.OS, info.Platform, info.Architecture)
	fmt.Printf("  CPU:          %s (%d cores)\n", info.CPUModel, info.CPUCores)
	fmt.Printf("  Memory:       %d MB\n", info.TotalMemory)
	fmt.Printf("  CPU Usage:    %.1f%%\n", cpuPct)
	fmt.Printf("  Memory Usage: %.1f%%\n", memPct)
	fmt.Println()
}

func serverArg(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("server name required")
	}
	return args[0], nil
}
