package calories

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shibakov/calroies-info-ms/internal/app"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search local dictionary, food databases and the estimator",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withApp(cmd, func(a *app.App) error {
			res, err := a.Searcher.Search(cmd.Context(), query, searchLimit)
			if err != nil {
				return err
			}
			if searchJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if res.Status != "ok" {
				fmt.Fprintf(cmd.OutOrStdout(), "No results for %q\n", res.Query)
			}
			for _, r := range res.Results {
				brand := ""
				if r.Brand != "" {
					brand = " (" + r.Brand + ")"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s%s: %.1f kcal | P %.1fg | F %.1fg | C %.1fg [%s]\n",
					r.ID, r.Product, brand, r.Kcal100, r.Protein100, r.Fat100, r.Carbs100, r.Source)
			}
			if len(res.Degraded) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Degraded sources: %s\n", strings.Join(res.Degraded, ", "))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum results (default from SEARCH_LIMIT_DEFAULT)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
}
