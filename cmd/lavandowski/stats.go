package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/warehouse"
)

func newStatsCmd(c *cli) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show analysis statistics from the analysis log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > 30 {
				return fmt.Errorf("days must be between 1 and 30, got %d", days)
			}
			ctx := cmd.Context()
			wh, catalog, err := newWarehouse(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer wh.Close()

			st, err := warehouse.Stats(ctx, wh, catalog, days, time.Now())
			if err != nil {
				return err
			}
			printStats(st)
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days to summarize (1-30)")
	return cmd
}

func newSchemaCmd(c *cli) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or create the local warehouse replica tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !apply {
				fmt.Println(strings.Join(warehouse.AllSchemas(), "\n"))
				return nil
			}
			return applySchema(cmd.Context(), c.cfg.Warehouse)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Create the tables on the configured sqlite or postgres warehouse")
	return cmd
}

func applySchema(ctx context.Context, cfg domain.WarehouseConfig) error {
	if cfg.Driver == "bigquery" {
		return fmt.Errorf("schema --apply supports sqlite and postgres, not %s", cfg.Driver)
	}
	cfg.InitSchema = true
	wh, err := warehouse.NewSQL(cfg)
	if err != nil {
		return err
	}
	defer wh.Close()
	if err := wh.Ping(ctx); err != nil {
		return err
	}
	pterm.Success.Printfln("Schema applied to %s warehouse", cfg.Driver)
	return nil
}
