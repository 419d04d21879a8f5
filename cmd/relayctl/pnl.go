package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"signal-relay-go/internal/pnl"
	"signal-relay-go/internal/store"

	"github.com/spf13/cobra"
)

func newPnLCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Show realized profit per instrument",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := a.store()
			if err != nil {
				return err
			}
			defer closeFn()

			name = strings.TrimSpace(name)
			records, err := st.Query(cmd.Context(), store.Filter{Name: name})
			if err != nil {
				return fmt.Errorf("query transactions: %w", err)
			}
			report := pnl.Compute(records, name)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFIRST BUY\tTOTAL BUY\tTOTAL SELL\tPROFIT\tPROFIT %")
			for _, n := range report.Names() {
				r := report.Instruments[n]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s%%\n",
					n, r.FirstBuy.StringFixed(2), r.TotalBuy.StringFixed(2), r.TotalSell.StringFixed(2),
					r.Profit.StringFixed(2), r.Percentage.StringFixed(2))
			}
			fmt.Fprintf(tw, "TOTAL\t\t\t\t%s\t%s%%\n", report.TotalProfit.StringFixed(2), report.TotalPercentage.StringFixed(2))
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "only this instrument")
	return cmd
}
