package calories

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/shibakov/calroies-info-ms/internal/service"
)

var backupOut string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent snapshot of the database",
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

		out := backupOut
		if out == "" {
			out = filepath.Join(filepath.Dir(path), "backups", fmt.Sprintf("calories-%s.db", time.Now().Format("20060102-150405")))
		}
		info, err := service.CreateBackup(cmd.Context(), sqldb, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created backup: %s\n", info.Path)
		fmt.Fprintf(cmd.OutOrStdout(), "Checksum: %s\n", info.Checksum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringVar(&backupOut, "out", "", "Backup file path (default <db dir>/backups/calories-<timestamp>.db)")
}
