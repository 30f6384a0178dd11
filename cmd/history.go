package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/snf-deals/internal/reconcile"
)

var historyFlags struct {
	dealID int64
	limit  int
	offset int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List a deal's extraction history, most recent first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "sync")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		page, err := newRecorder(st).List(ctx, historyFlags.dealID, reconcile.Page{
			Limit:  historyFlags.limit,
			Offset: historyFlags.offset,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, page)
	},
}

func init() {
	historyCmd.Flags().Int64Var(&historyFlags.dealID, "deal", 0, "deal ID (required)")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "page size (max 100)")
	historyCmd.Flags().IntVar(&historyFlags.offset, "offset", 0, "rows to skip")
	_ = historyCmd.MarkFlagRequired("deal")
	rootCmd.AddCommand(historyCmd)
}
