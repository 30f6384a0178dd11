package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/deal"
)

var timeseriesFlags struct {
	dealID int64
	file   string
}

var timeseriesCmd = &cobra.Command{
	Use:   "timeseries",
	Short: "Store extracted monthly census and financials for a deal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		raw, err := readInput(cmd, timeseriesFlags.file)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "sync")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := deal.NewService(st).StoreTimeSeries(ctx, timeseriesFlags.dealID, raw)
		if err != nil {
			return err
		}
		zap.L().Info("time series stored",
			zap.Int64("deal_id", timeseriesFlags.dealID),
			zap.Int64("census_rows", res.CensusRows),
			zap.Int64("financial_rows", res.FinancialRows),
			zap.Int("skipped_rows", res.SkippedRows),
		)
		return printJSON(cmd, res)
	},
}

func init() {
	timeseriesCmd.Flags().Int64Var(&timeseriesFlags.dealID, "deal", 0, "deal ID (required)")
	timeseriesCmd.Flags().StringVar(&timeseriesFlags.file, "file", "-", "extraction payload JSON file, or - for stdin")
	_ = timeseriesCmd.MarkFlagRequired("deal")
	rootCmd.AddCommand(timeseriesCmd)
}
