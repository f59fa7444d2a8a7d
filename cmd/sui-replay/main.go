// Command sui-replay is the thin CLI wiring layer over the replay
// pipeline: resolve flags/environment into config, build transport
// adapters and caches, and dispatch to a subcommand. It is deliberately
// not a workflow orchestrator — every non-trivial decision lives in the
// pkg/ libraries this command only wires together.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/log"
	"github.com/sui-sandbox/replay/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sui-replay",
	Short: "Replay historical Sui transactions and strict-compare against canonical effects",
	Long: `sui-replay re-derives a historical transaction's execution effects from
archived state and compares them byte-for-byte against the canonical
on-chain record.

It never produces new canonical effects, accepts new transactions, or
acts as a node — it only re-derives what already happened.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Optional YAML file seeding defaults for the flags below (explicit flags always win)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("env-prefix", config.DefaultPrefix, "Environment variable prefix for <PREFIX>_HOME / transport tuning")
	rootCmd.PersistentFlags().String("archival-endpoint", "", "Archival checkpoint-blob store endpoint")
	rootCmd.PersistentFlags().String("rpc-endpoint", "", "Low-level object/transaction RPC endpoint")
	rootCmd.PersistentFlags().String("graphql-endpoint", "", "Graph-query RPC endpoint (packages, dynamic fields)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "If set, serve /metrics and /health on this address in the background")

	cobra.OnInitialize(loadConfigFile, initLogging, maybeStartMetricsServer)

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(labCmd)
	rootCmd.AddCommand(benchCmd)
}

// loadConfigFile seeds flag defaults from --config, when set, before any
// other OnInitialize hook reads those flags. A flag the user passed
// explicitly on the command line is left untouched.
func loadConfigFile() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if path == "" {
		return
	}
	fc, err := config.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	set := func(name, value string) {
		if value == "" {
			return
		}
		if f := rootCmd.PersistentFlags().Lookup(name); f != nil && !f.Changed {
			_ = f.Value.Set(value)
		}
	}
	set("env-prefix", fc.EnvPrefix)
	set("archival-endpoint", fc.ArchivalEndpoint)
	set("rpc-endpoint", fc.RPCEndpoint)
	set("graphql-endpoint", fc.GraphQLEndpoint)
	set("metrics-addr", fc.MetricsAddr)
	set("log-level", fc.LogLevel)
	if fc.LogJSON {
		set("log-json", "true")
	}
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// maybeStartMetricsServer starts the ambient /metrics, /health, /ready,
// and /live endpoints in the background when --metrics-addr is set.
func maybeStartMetricsServer() {
	addr, _ := rootCmd.PersistentFlags().GetString("metrics-addr")
	if addr == "" {
		return
	}

	metrics.SetVersion(Version)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Logger.Error().Err(err).Str("addr", addr).Msg("metrics server exited")
		}
	}()
	log.Logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
}
