package main

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

	"github.com/FAU-CDI/harvester/internal/config"
	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/viewer"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a harvest pass and serve the resulting documents",
	Long: `Serve starts a server for the viewer, runs a single harvest pass into the configured sink and keeps serving until interrupted.

The sink must support reading documents back, i.e. be one of 'memory', 'leveldb', 'sqlite', 'mysql', 'postgres' or 'nats'.
While the pass is running, the viewer reports its progress.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		keys := map[string]string{"addr": config.KeyAddr}
		for name, key := range harvestKeys {
			keys[name] = key
		}
		return bind(cmd.Flags(), keys)
	},
	RunE: runServe,
}

func init() {
	harvestFlags(serveCmd)
	serveCmd.Flags().String("addr", "", "address to serve the viewer on")
	rootCmd.AddCommand(serveCmd)
}

var errNoStore = errors.New("sink does not support reading documents")

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sink, err := exporter.Open(cmd.Context(), cfg.SinkOptions())
	if err != nil {
		return fmt.Errorf("failed to open sink: %w", err)
	}
	store, ok := sink.(exporter.Store)
	if !ok {
		return errors.Join(fmt.Errorf("%w: %q", errNoStore, cfg.Sink), sink.Close())
	}

	handler := &viewer.Viewer{Store: store, Stats: st}
	defer func() {
		if err := handler.Close(); err != nil {
			st.LogError("close store", err)
		}
	}()

	// start listening, so that the progress can be seen during loading
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	st.Log("listen", "addr", listener.Addr().String())

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(listener)
	}()

	if _, err := harvestOnce(cmd, cfg, sink); err != nil {
		return errors.Join(err, server.Close())
	}
	st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-served:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	st.Log("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
