package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/chatwidget/internal/config"
	"github.com/dohr-michael/chatwidget/internal/devserver"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start a local echo server speaking both protocols",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Pause between streamed chunks",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return err
	}
	setupLogging(cmd, cfg, os.Stderr)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("delay") {
		cfg.Server.ChunkDelay = config.Duration(cmd.Duration("delay"))
	}

	server := devserver.NewServer(devserver.Options{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		ChunkSize:  cfg.Server.ChunkSize,
		ChunkDelay: cfg.Server.ChunkDelay.Duration(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
