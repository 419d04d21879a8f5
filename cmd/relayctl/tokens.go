package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newTokensCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage per-instrument USDT allocations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List allocations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, closeFn, err := a.store()
				if err != nil {
					return err
				}
				defer closeFn()

				allocations, err := st.ListAllocations(cmd.Context())
				if err != nil {
					return fmt.Errorf("list allocations: %w", err)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tUSDT\tUPDATED")
				for _, al := range allocations {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", al.Name, al.UsdtAmount.String(), al.UpdatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "set <name> <usdt-amount>",
			Short: "Create or replace an allocation",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := strings.TrimSpace(args[0])
				amount, err := decimal.NewFromString(args[1])
				if err != nil || amount.IsNegative() {
					return fmt.Errorf("bad usdt amount %q", args[1])
				}

				st, closeFn, err := a.store()
				if err != nil {
					return err
				}
				defer closeFn()

				created, err := st.UpsertAllocation(cmd.Context(), name, amount)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "Token added: %s = %s USDT\n", name, amount)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Token updated: %s = %s USDT\n", name, amount)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete an allocation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, closeFn, err := a.store()
				if err != nil {
					return err
				}
				defer closeFn()

				name := strings.TrimSpace(args[0])
				if err := st.DeleteAllocation(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token deleted: %s\n", name)
				return nil
			},
		},
	)
	return cmd
}
