package calories

import (
	"github.com/spf13/cobra"

	"github.com/shibakov/calroies-info-ms/internal/app"
)

var (
	statsDate string
	statsJSON bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daily totals against targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			stats, err := a.Journal.DailyStats(cmd.Context(), statsDate)
			if err != nil {
				return err
			}
			if statsJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsDate, "date", "", "Day to report (YYYY-MM-DD, default today)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}
