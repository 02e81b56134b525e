package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/seeder"
	"github.com/maia-os/covalue-core/internal/telemetry"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bootstrap a spark's account, groups, schemas and data",
	Long: `Reads a seed request (schemas, configs, data) from a JSON file and
runs the Seeder's bootstrap pipeline against the configured store, creating
the account's groups, meta-schema, schemas and data. Each invocation starts
from a fresh node and Seeder, so it creates a new account graph rather than
reusing one already in the store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		var req seeder.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("parse seed file: %w", err)
		}
		if req.SparkName == "" {
			req.SparkName = cfg.SystemSpark
		}

		store, err := runtime.Open(ctx, runtime.Config{Driver: cfg.StoreDriver, DSN: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		node := runtime.NewNode(cfg.NodeID, store, cfg.SystemSpark)

		s := seeder.New(node, covalue.NewMapContent(), "")
		if seederMetrics, merr := telemetry.NewSeederMetrics(); merr == nil {
			s.SetMetrics(seederMetrics)
		}
		result, err := s.Seed(ctx, req)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "seed.json", "path to a JSON seed request (spark name, schemas, configs, data)")
}
