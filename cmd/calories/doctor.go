package calories

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shibakov/calroies-info-ms/internal/service"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run data integrity checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(sqldb *sql.DB) error {
			ctx := cmd.Context()
			report, err := service.RunDoctor(ctx, sqldb, doctorFix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Orphan log rows: %d\n", report.OrphanLogRows)
			fmt.Fprintf(out, "Unnormalized names: %d\n", report.UnnormalizedNames)
			fmt.Fprintf(out, "Invalid timestamps: %d\n", report.InvalidTimestamps)
			if doctorFix {
				fmt.Fprintf(out, "Fixed names: %d\n", report.FixedNames)
				if report.UnfixableNameClash > 0 {
					fmt.Fprintf(out, "Names left unfixed (would clash): %d\n", report.UnfixableNameClash)
				}
				report, err = service.RunDoctor(ctx, sqldb, false)
				if err != nil {
					return err
				}
			}
			if !report.Healthy() {
				return fmt.Errorf("doctor found integrity issues")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Renormalize product names where safe")
}
