package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	ordersx "github.com/tanpawarit/chative-commerce/agent/orders"
)

var migrateDrop bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the order tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if migrateDrop {
			if err := ordersx.Drop(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Dropped order tables")
		}
		if err := ordersx.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Order tables ready")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDrop, "drop", false, "drop existing order tables first")
	rootCmd.AddCommand(migrateCmd)
}
