package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FAU-CDI/harvester/internal/config"
	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/harvest"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single harvest pass",
	Long: `Run acquires all configured sources, flattens them into documents and submits these to the configured sink.

An interrupt stops the pass before the next source. Failures of individual sources or documents are logged, but do not fail the pass.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bind(cmd.Flags(), harvestKeys)
	},
	RunE: runHarvest,
}

func init() {
	harvestFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runHarvest(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sink, err := exporter.Open(cmd.Context(), cfg.SinkOptions())
	if err != nil {
		return fmt.Errorf("failed to open sink: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close sink: %w", cerr))
		}
	}()

	report, err := harvestOnce(cmd, cfg, sink)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.Summary)
	return nil
}

// harvestOnce runs a single pass into sink.
// An interrupt or termination signal stops the pass before the next source.
func harvestOnce(cmd *cobra.Command, cfg config.Config, sink exporter.Sink) (harvest.Report, error) {
	harvester, err := cfg.Harvester(cmd.Context(), sink, st)
	if err != nil {
		return harvest.Report{}, err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case sig := <-signals:
			st.Log("stop requested", "signal", sig.String())
			harvester.Stop()
		case <-done:
		}
	}()

	return harvester.Run(cmd.Context()), nil
}
