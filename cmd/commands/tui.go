package commands

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/chatwidget/clients/tui"
	"github.com/dohr-michael/chatwidget/internal/chat"
	"github.com/dohr-michael/chatwidget/internal/config"
)

// NewTUICommand returns the tui subcommand.
func NewTUICommand() *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the interactive chat TUI",
		Flags:  endpointFlags(),
		Action: runTUI,
	}
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The screen belongs to bubbletea, logs go to a file.
	logFile, err := openLogFile(cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	setupLogging(cmd, cfg, logFile)

	bridge := tui.NewBridge(256)
	ctrl, err := newController(cfg, bridge)
	if err != nil {
		return err
	}

	reloader := config.NewReloader(configPath, config.DotenvPath(), cfg)
	reload := func() (*chat.Controller, string, error) {
		if _, err := reloader.Reload(); err != nil {
			return nil, "", err
		}
		next := reloader.Current()
		applyOverrides(cmd, next)
		c, err := newController(next, bridge)
		if err != nil {
			return nil, "", err
		}
		return c, next.Endpoint.URL, nil
	}

	model := tui.NewMainModel(tui.Options{
		Controller: ctrl,
		Bridge:     bridge,
		Agent:      cfg.Client.Agent,
		Endpoint:   cfg.Endpoint.URL,
		Reload:     reload,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	slog.Info("tui exited", "session", ctrl.ID())
	return nil
}
