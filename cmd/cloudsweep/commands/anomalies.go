package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evo-uds/cloudsweep/pkg/engine"
	"github.com/evo-uds/cloudsweep/pkg/engine/anomaly"
)

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Detect cost anomalies against the account baseline",
	Long: `Pulls daily spend for the lookback window, builds a per-service
baseline, and flags days whose cost deviates from it.

Example:
  cloudsweep anomalies --account 123456789012`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Scan.AccountID == "" {
			return fmt.Errorf("--account is required")
		}

		ctx := cmd.Context()
		eng, err := engine.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		res, err := eng.RunAnomalies(ctx)
		if err != nil {
			return err
		}

		out := anomalyOutput{AnomaliesCount: len(res.Anomalies)}
		if res.Insufficient {
			out.Message = res.Message
		} else {
			out.CriticalCount = res.Summary.BySeverity[anomaly.SeverityCritical]
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

type anomalyOutput struct {
	AnomaliesCount int    `json:"anomalies_count"`
	CriticalCount  int    `json:"critical_count"`
	Message        string `json:"message,omitempty"`
}

func init() {
	rootCmd.AddCommand(anomaliesCmd)
}
