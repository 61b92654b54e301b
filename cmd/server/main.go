package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	if err := newRootCmd(run).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the roomchat command. Flags set explicitly on the
// command line win over the environment and the env file.
func newRootCmd(serve func(context.Context, *server.Config) error) *cobra.Command {
	var (
		envFile  string
		port     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:          "roomchat",
		Short:        "Real-time chat rooms with presence over WebSocket",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil {
				slog.Warn("no env file loaded, using environment variables", "file", envFile)
			}

			cfg, err := server.LoadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Flags().StringVar(&port, "port", ":8080", "listen address, overrides SERVER_PORT")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error; overrides LOG_LEVEL")
	return cmd
}

func run(ctx context.Context, cfg *server.Config) error {
	server.SetConfig(cfg)
	active := server.CurrentConfig()

	logger := server.NewLogger(active.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	hub := server.NewHub(logger, presence.WithTimestampLayout(active.TimestampLayout))
	server.StartHub(hub)

	httpServer := server.CreateServer(active.Port, server.SetupRoutes(hub))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = hub.Shutdown(active.ShutdownTimeout)
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownErr := server.ShutdownServer(httpServer, active.ShutdownTimeout)
	return errors.Join(shutdownErr, hub.Shutdown(active.ShutdownTimeout))
}
