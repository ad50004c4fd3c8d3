package calories

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, path, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		sqldb, err := openDB(path)
		if err != nil {
			return err
		}
		defer sqldb.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized calories database at %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
