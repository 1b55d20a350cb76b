package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase every user, credential and the admin code",
	Long: `Erase the credential database in the configured storage. The node
must not be running against the same storage.

Examples:
  doorlock-node reset --config /etc/doorlock.yaml --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to reset without --yes")
		}
		n, closeStore, err := openNode(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := n.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database reset.")
		return nil
	},
}
