// Package main is the entry point for the bugfixer CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olegiv/go-logger"
	"github.com/spf13/cobra"

	"github.com/olegiv/bugfixer-ai-go/internal/api"
	"github.com/olegiv/bugfixer-ai-go/internal/config"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// shutdownTimeout bounds the graceful drain after a signal.
const shutdownTimeout = 15 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bugfixer",
		Short: "Build failure fix suggester",
		Long: `bugfixer suggests corrections for failed Spring Boot builds.

The serve command runs the HTTP API, which asks the tool server for the
filtered Jenkins errors and the commit diff and relays the resulting report
to the completion model. The toolserver command runs the MCP tool server and
the fix command analyzes saved build output once.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(toolServerCmd())
	cmd.AddCommand(fixCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// commonFlags are the overrides shared by both servers.
type commonFlags struct {
	host     string
	port     int
	logLevel string
}

func (f *commonFlags) register(cmd *cobra.Command, defaultPort int) {
	cmd.Flags().StringVar(&f.host, "host", "", "Host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&f.port, "port", 0, fmt.Sprintf("Port to listen on (default: %d)", defaultPort))
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// newLogger creates the rotating file logger. console is false for the stdio
// transport, where stdout carries the protocol.
func newLogger(cfg *config.Config, filename string, console bool) *logging.SecureLogger {
	baseLog := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		LogDir:     cfg.LogDir,
		Filename:   filename,
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    console,
	})
	return logging.NewSecure(baseLog)
}

func closeLogger(log *logging.SecureLogger) {
	if err := log.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
	}
}

// serveUntilSignal runs server until SIGINT or SIGTERM, then drains it.
func serveUntilSignal(server *api.Server, log *logging.SecureLogger) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutdown requested")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errChan
}
