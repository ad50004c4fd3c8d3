package calories

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shibakov/calroies-info-ms/internal/app"
	"github.com/shibakov/calroies-info-ms/internal/service"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage daily macro targets",
}

var (
	targetsKcal    float64
	targetsProtein float64
	targetsFat     float64
	targetsCarbs   float64
	targetsDate    string
	targetsHistory bool
	targetsJSON    bool
)

var targetsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set targets effective from a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range []string{"kcal", "protein", "fat", "carbs"} {
			if !cmd.Flags().Changed(name) {
				return fmt.Errorf("--%s is required", name)
			}
		}
		return withApp(cmd, func(a *app.App) error {
			t, err := a.Targets.Set(cmd.Context(), service.SetTargetsInput{
				Kcal:          targetsKcal,
				ProteinG:      targetsProtein,
				FatG:          targetsFat,
				CarbsG:        targetsCarbs,
				EffectiveDate: targetsDate,
			})
			if err != nil {
				return err
			}
			if targetsJSON {
				return printJSON(cmd.OutOrStdout(), t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Targets from %s: %.0f kcal | P %.1fg | F %.1fg | C %.1fg\n",
				t.EffectiveDate, t.Kcal, t.ProteinG, t.FatG, t.CarbsG)
			return nil
		})
	},
}

var targetsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show targets in effect for a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if targetsHistory {
				hist, err := a.Targets.History(ctx)
				if err != nil {
					return err
				}
				if targetsJSON {
					return printJSON(out, hist)
				}
				for _, t := range hist {
					fmt.Fprintf(out, "%s: %.0f kcal | P %.1fg | F %.1fg | C %.1fg\n", t.EffectiveDate, t.Kcal, t.ProteinG, t.FatG, t.CarbsG)
				}
				return nil
			}
			stored, err := a.Targets.Current(ctx, targetsDate)
			if err != nil {
				return err
			}
			effective, err := a.Targets.For(ctx, targetsDate)
			if err != nil {
				return err
			}
			if targetsJSON {
				return printJSON(out, map[string]any{"stored": stored, "targets": effective})
			}
			switch {
			case stored != nil:
				fmt.Fprintf(out, "Stored targets from %s\n", stored.EffectiveDate)
			case effective != nil:
				fmt.Fprintln(out, "Using configured default targets")
			default:
				fmt.Fprintln(out, "No targets set")
				return nil
			}
			fmt.Fprintf(out, "%.0f kcal | P %.1fg | F %.1fg | C %.1fg\n", effective.Kcal, effective.Protein, effective.Fat, effective.Carbs)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.AddCommand(targetsSetCmd, targetsShowCmd)

	targetsSetCmd.Flags().Float64Var(&targetsKcal, "kcal", 0, "Daily calories")
	targetsSetCmd.Flags().Float64Var(&targetsProtein, "protein", 0, "Daily protein grams")
	targetsSetCmd.Flags().Float64Var(&targetsFat, "fat", 0, "Daily fat grams")
	targetsSetCmd.Flags().Float64Var(&targetsCarbs, "carbs", 0, "Daily carbohydrate grams")
	targetsShowCmd.Flags().BoolVar(&targetsHistory, "history", false, "List every stored target change")
	for _, c := range []*cobra.Command{targetsSetCmd, targetsShowCmd} {
		c.Flags().StringVar(&targetsDate, "date", "", "Effective date (YYYY-MM-DD, default today)")
		c.Flags().BoolVar(&targetsJSON, "json", false, "Output as JSON")
	}
}
