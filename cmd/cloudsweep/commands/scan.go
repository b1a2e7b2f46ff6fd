package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evo-uds/cloudsweep/pkg/engine"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the account for idle and unattached resources",
	Long: `Enumerates resources across the configured regions, fetches their
utilization metrics, and reports the ones that look like waste.

Example:
  cloudsweep scan --account 123456789012 --regions us-east-1,eu-west-1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Scan.AccountID == "" {
			return fmt.Errorf("--account is required")
		}
		if len(cfg.Scan.Regions) == 0 {
			return fmt.Errorf("--regions is required")
		}

		ctx := cmd.Context()
		eng, err := engine.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		report, err := eng.RunScan(ctx)
		if err != nil && !errors.Is(err, engine.ErrPartialResult) {
			return err
		}

		out := scanOutput{
			Success:           err == nil,
			WasteCount:        report.Summary.WasteCount,
			TotalMonthlyWaste: report.Summary.TotalMonthlyWaste,
			TotalYearlyWaste:  report.Summary.TotalYearlyWaste,
			RegionsScanned:    report.Summary.RegionsScanned,
			DurationSeconds:   report.Summary.DurationSeconds,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(out); encErr != nil {
			return encErr
		}

		if err != nil {
			// Partial result under strict mode.
			os.Exit(1)
		}
		return nil
	},
}

type scanOutput struct {
	Success           bool     `json:"success"`
	WasteCount        int      `json:"waste_count"`
	TotalMonthlyWaste float64  `json:"total_monthly_waste"`
	TotalYearlyWaste  float64  `json:"total_yearly_waste"`
	RegionsScanned    []string `json:"regions_scanned"`
	DurationSeconds   float64  `json:"scan_duration_seconds"`
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
