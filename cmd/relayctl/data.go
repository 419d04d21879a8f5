package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"signal-relay-go/internal/store"

	"github.com/spf13/cobra"
)

func newDataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Purge or seed the transaction journal",
	}

	var name string
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete journal rows for one instrument, or all of them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := a.store()
			if err != nil {
				return err
			}
			defer closeFn()

			name = strings.TrimSpace(name)
			if err := st.DeleteTransactions(cmd.Context(), name); err != nil {
				return err
			}
			if store.IsPurgeAll(name) {
				fmt.Fprintln(cmd.OutOrStdout(), "All data deleted successfully")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Data for %s deleted successfully\n", name)
			}
			return nil
		},
	}
	purge.Flags().StringVarP(&name, "name", "n", "all", "instrument to purge, or all")

	var seed int64
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert synthetic test transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := a.store()
			if err != nil {
				return err
			}
			defer closeFn()

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			n, err := st.SeedTestData(cmd.Context(), time.Now().UTC(), rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test data populated successfully (%d rows)\n", n)
			return nil
		},
	}
	seedCmd.Flags().Int64Var(&seed, "seed", 0, "random seed for the time offsets (default: current time)")

	cmd.AddCommand(purge, seedCmd)
	return cmd
}
