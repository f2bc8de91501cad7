// Command harvester harvests rdf data into json documents.
package main

import (
	"os"

	"github.com/FAU-CDI/harvester/internal/config"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

// v holds the configuration of all commands
var v = config.New()

// st receives all logging output
var st *stats.Stats

var (
	configFile   string
	verbose      bool
	debugProfile string
	debugServer  string
)

var stopProfile func()

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Harvest rdf data into json documents",
	Long: `harvester acquires rdf data from a SPARQL endpoint and from dumps,
flattens every subject into a single json document and submits these documents to a sink.

Configuration is read from harvester.yaml in the current directory or in ~/.config/harvester,
from environment variables prefixed with HARVESTER_ and from flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		st = stats.NewStats(os.Stderr, verbose)

		if err := config.ReadFile(v, configFile); err != nil {
			return err
		}
		if used := v.ConfigFileUsed(); used != "" {
			st.Log("using config file", "path", used)
		}

		if debugProfile != "" {
			stopProfile = profile.Start(profile.ProfilePath(debugProfile), profile.Quiet).Stop
		}
		if debugServer != "" {
			go listenDebug(st, debugServer)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProfile != nil {
			stopProfile()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: ./harvester.yaml or ~/.config/harvester/harvester.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&debugProfile, "debug-profile", "", "write out a debugging profile to the given path")
	flags.StringVar(&debugServer, "debug-listen", "", "start a profiling server on the given address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
