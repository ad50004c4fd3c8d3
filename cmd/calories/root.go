package calories

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "calories",
	Short: "calories resolves foods to macros and tracks daily intake",
	Long: "calories looks foods up in a local dictionary, USDA FoodData Central and an AI estimator, " +
		"logs what you eat and reports daily totals against your targets. It also serves the same operations over HTTP.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides DB_PATH)")
}
