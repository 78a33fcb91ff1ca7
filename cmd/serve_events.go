package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conneroisu/buildlens/internal/audit"
	"github.com/conneroisu/buildlens/internal/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveEventsCmd = &cobra.Command{
	Use:   "serve-events",
	Short: "Watch and stream build events over WebSocket",
	Long: `Watch and rebuild like "buildlens watch", and stream every lifecycle event
and asset audit as JSON to WebSocket clients connected at /events.

Message types: compileStart, compileFinish, compileFailed, fileInvalidated,
assetAudit.

Examples:
  buildlens serve-events                      # Listen on stream.addr
  buildlens serve-events --addr :7331         # Listen on all interfaces
  websocat ws://localhost:7331/events         # Follow the stream`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindBuildFlags(cmd, args); err != nil {
			return err
		}
		return viper.BindPFlag("stream.addr", cmd.Flags().Lookup("addr"))
	},
	RunE: runServeEvents,
}

func init() {
	rootCmd.AddCommand(serveEventsCmd)
	addBuildFlags(serveEventsCmd)
	serveEventsCmd.Flags().String("addr", "", "Address to listen on")
}

func runServeEvents(cmd *cobra.Command, args []string) error {
	var streamer *stream.Streamer
	s, err := newSession(cmd, audit.WithSummaryHandler(func(summary audit.Summary) {
		streamer.PublishSummary(summary)
	}))
	if err != nil {
		return err
	}

	streamer = stream.New(stream.Options{OriginPatterns: s.cfg.Stream.AllowedOrigins}, s.logger)
	streamer.Attach(s.pipeline)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/events", streamer)

	listener, err := net.Listen("tcp", s.cfg.Stream.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Stream.Addr, err)
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()
	s.logger.Info(ctx, "streaming build events", "url", "ws://"+listener.Addr().String()+"/events")

	watchErr := s.watch(ctx, cmd)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = streamer.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, err, "event server shutdown")
	}

	if err := <-serveErr; err != nil {
		return fmt.Errorf("event server failed: %w", err)
	}
	return watchErr
}
