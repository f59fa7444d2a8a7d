package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sui-sandbox/replay/pkg/bench"
	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/objectcache"
	"github.com/sui-sandbox/replay/pkg/packagecache"
	"github.com/sui-sandbox/replay/pkg/replay"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time repeated replays of the same transaction, warm vs. cold",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().String("tx-bundle", "", "Transaction bundle JSON, same schema as 'replay tx --tx-file' (required)")
	benchCmd.Flags().Int("iterations", 10, "Number of replay iterations")
	benchCmd.Flags().Bool("cold", false, "Build a fresh engine/cache every iteration instead of reusing one")
	_ = benchCmd.MarkFlagRequired("tx-bundle")
}

func runBench(cmd *cobra.Command, args []string) error {
	txBundleFile, _ := cmd.Flags().GetString("tx-bundle")
	iterations, _ := cmd.Flags().GetInt("iterations")
	cold, _ := cmd.Flags().GetBool("cold")

	data, err := os.ReadFile(txBundleFile)
	if err != nil {
		return fmt.Errorf("sui-replay: read %s: %w", txBundleFile, err)
	}
	var bundle txBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("sui-replay: parse %s: %w", txBundleFile, err)
	}
	tx := bundle.Transaction

	factory := func() *replay.Engine {
		cache, err := objectcache.New(objectcache.Config{})
		if err != nil {
			panic(fmt.Errorf("sui-replay: build object cache: %w", err))
		}
		for i := range bundle.InputObjects {
			_ = cache.Insert(&bundle.InputObjects[i])
		}
		packages := packagecache.New()
		loader := packagecache.NewLoader(packages, emptyPackageSource{})
		return replay.NewEngine(emptyObjectSource{}, emptyDynFieldSource{}, cache, packages, loader, mirrorHarnessFactory(tx), replay.NewDenyList(), config.DefaultReplayOptions())
	}

	report, err := bench.Run(cmd.Context(), factory, tx, iterations, !cold)
	if err != nil {
		return err
	}
	return printJSON(report)
}
