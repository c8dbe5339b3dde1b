package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/chatwidget/internal/chat"
	"github.com/dohr-michael/chatwidget/internal/config"
	"github.com/dohr-michael/chatwidget/internal/protocol"
	"github.com/dohr-michael/chatwidget/internal/transport"
)

// endpointFlags are shared by the client commands.
func endpointFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "Chat endpoint URL (overrides config)",
		},
		&cli.StringFlag{
			Name:  "protocol",
			Usage: "Request shape and framing: jsonl or prefixed (overrides config)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Bound on a whole exchange, 0 for none (overrides config)",
		},
		&cli.BoolFlag{
			Name:  "agent",
			Usage: "Send messages in agent mode",
		},
	}
}

// setupLogging installs the default slog handler writing to w.
func setupLogging(cmd *cli.Command, cfg *config.Config, w io.Writer) {
	level := config.ParseLevel(cfg.Log.Level)
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// openLogFile opens the TUI log file, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// loadConfig reads the config file and applies the client flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	applyOverrides(cmd, cfg)
	return cfg, nil
}

func applyOverrides(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("protocol") {
		setProtocol(cfg, cmd.String("protocol"))
	}
	if cmd.IsSet("endpoint") {
		cfg.Endpoint.URL = cmd.String("endpoint")
	}
	if cmd.IsSet("timeout") {
		cfg.Endpoint.Timeout = config.Duration(cmd.Duration("timeout"))
	}
	if cmd.IsSet("agent") {
		cfg.Client.Agent = cmd.Bool("agent")
	}
}

// setProtocol switches the protocol. The URL follows only while it still
// points at the dev server default for the previous protocol.
func setProtocol(cfg *config.Config, name string) {
	defaultURL := config.DefaultEndpointURL(cfg.Endpoint.Protocol, cfg.Server.Port)
	cfg.Endpoint.Protocol = name
	if cfg.Endpoint.URL == "" || cfg.Endpoint.URL == defaultURL {
		cfg.Endpoint.URL = config.DefaultEndpointURL(name, cfg.Server.Port)
	}
}

// newController wires protocol, transport and display from cfg.
func newController(cfg *config.Config, display chat.Display) (*chat.Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := protocol.ByName(cfg.Endpoint.Protocol, protocol.Options{
		ContentPath: cfg.Endpoint.ContentPath,
		Prefix:      cfg.Endpoint.Prefix,
	})
	if err != nil {
		return nil, err
	}
	client := transport.NewClient(transport.Options{
		Timeout: cfg.Endpoint.Timeout.Duration(),
		Headers: cfg.Endpoint.Headers,
	})
	ctrl := chat.NewController(chat.Config{
		Endpoint:     cfg.Endpoint.URL,
		Protocol:     p,
		Transport:    client,
		Display:      display,
		ChunkSize:    cfg.Client.ChunkSize,
		MaxImageSize: cfg.Client.MaxImageSize,
	})
	slog.Debug("controller ready",
		"session", ctrl.ID(),
		"endpoint", cfg.Endpoint.URL,
		"protocol", p.Name(),
	)
	return ctrl, nil
}
