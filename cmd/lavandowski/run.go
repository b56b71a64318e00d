package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/export"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		days    int
		userID  int64
		dryRun  bool
		dir     string
		formats []string
		bucket  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze the flagged users of the lookback window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if cmd.Flags().Changed("dir") {
				cfg.Export.Dir = dir
			}
			if cmd.Flags().Changed("format") {
				cfg.Export.Formats = formats
			}
			if cmd.Flags().Changed("gcs-bucket") {
				cfg.Export.GCSBucket = bucket
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			obs := &consoleObserver{}
			summary, err := a.orchestrator.Run(ctx, domain.RunRequest{
				Days:   days,
				UserID: userID,
				DryRun: dryRun,
			}, obs)
			obs.stop()
			if err != nil {
				pterm.Error.Printfln("Run failed: %v", err)
				return err
			}
			printSummary(summary)

			if summary.Total == 0 {
				pterm.Info.Println("No flagged users, nothing to export")
				return nil
			}
			return exportRun(context.WithoutCancel(ctx), cfg.Export, obs.record(summary), c)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Lookback window in days (default from alerts.lookback_days)")
	cmd.Flags().Int64VarP(&userID, "user-id", "u", 0, "Analyze a single user instead of the flagged batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Skip case submission")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to save the report files")
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "Report formats: csv, json, pdf")
	cmd.Flags().StringVar(&bucket, "gcs-bucket", "", "Upload the reports to this Cloud Storage bucket")
	return cmd
}

// exportRun writes the run reports and optionally uploads them.
func exportRun(ctx context.Context, cfg domain.ExportConfig, run *domain.RunRecord, c *cli) error {
	paths, err := export.SaveAll(cfg.Dir, run, cfg.Formats, time.Now())
	for _, p := range paths {
		pterm.Success.Printfln("Report saved: %s", p)
	}
	if err != nil {
		return err
	}
	if cfg.GCSBucket == "" {
		return nil
	}

	up, err := export.NewUploader(ctx, cfg.GCSBucket, cfg.GCSPrefix, c.cfg.Warehouse.CredentialsFile)
	if err != nil {
		return err
	}
	defer up.Close()

	for _, p := range paths {
		uri, err := up.Upload(ctx, p)
		if err != nil {
			c.logger.Error("failed to upload report", "path", p, "error", err)
			pterm.Warning.Printfln("Upload failed for %s: %v", p, err)
			continue
		}
		pterm.Success.Printfln("Report uploaded: %s", uri)
	}
	return nil
}
