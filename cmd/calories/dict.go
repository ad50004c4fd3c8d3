package calories

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shibakov/calroies-info-ms/internal/app"
	"github.com/shibakov/calroies-info-ms/internal/model"
	"github.com/shibakov/calroies-info-ms/internal/service"
)

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Manage the food dictionary",
}

var (
	dictKcal    float64
	dictProtein float64
	dictFat     float64
	dictCarbs   float64
	dictSource  string
	dictRefresh bool
	dictLimit   int
	dictJSON    bool
)

func requireMacroFlags(cmd *cobra.Command) error {
	for _, name := range []string{"kcal", "protein", "fat", "carbs"} {
		if !cmd.Flags().Changed(name) {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}

func dictMacros() model.Macros {
	return model.Macros{Kcal: dictKcal, Protein: dictProtein, Fat: dictFat, Carbs: dictCarbs}
}

func outputEntry(cmd *cobra.Command, e model.DictionaryEntry) error {
	if dictJSON {
		return printJSON(cmd.OutOrStdout(), e)
	}
	printEntry(cmd.OutOrStdout(), e)
	return nil
}

var dictAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a dictionary entry with macros per 100g",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireMacroFlags(cmd); err != nil {
			return err
		}
		policy := service.ConflictKeep
		if dictRefresh {
			policy = service.ConflictRefresh
		}
		return withApp(cmd, func(a *app.App) error {
			e, err := a.Dictionary.Upsert(cmd.Context(), service.UpsertEntryInput{
				Product: strings.Join(args, " "),
				Source:  model.EntrySource(dictSource),
				Macros:  dictMacros(),
			}, policy)
			if err != nil {
				return err
			}
			return outputEntry(cmd, e)
		})
	},
}

var dictResolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Find an entry by name, estimating and creating it when missing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			e, err := a.Dictionary.ResolveOrCreate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return outputEntry(cmd, e)
		})
	},
}

var dictUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace the macros of an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("id", args[0])
		if err != nil {
			return err
		}
		if err := requireMacroFlags(cmd); err != nil {
			return err
		}
		return withApp(cmd, func(a *app.App) error {
			e, err := a.Dictionary.UpdateEntry(cmd.Context(), id, dictMacros())
			if err != nil {
				return err
			}
			return outputEntry(cmd, e)
		})
	},
}

var dictShowCmd = &cobra.Command{
	Use:   "show [id|name]",
	Short: "Show one entry, or list entries by usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				entries, err := a.Dictionary.List(ctx, dictLimit)
				if err != nil {
					return err
				}
				if dictJSON {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				for _, e := range entries {
					printEntry(cmd.OutOrStdout(), e)
				}
				return nil
			}
			key := strings.Join(args, " ")
			if id, err := strconv.ParseInt(key, 10, 64); err == nil {
				e, err := a.Dictionary.Get(ctx, id)
				if err != nil {
					return err
				}
				return outputEntry(cmd, e)
			}
			e, err := a.Dictionary.Lookup(ctx, key)
			if err != nil {
				return err
			}
			if e == nil {
				return fmt.Errorf("no dictionary entry named %q", key)
			}
			return outputEntry(cmd, *e)
		})
	},
}

func init() {
	rootCmd.AddCommand(dictCmd)
	dictCmd.AddCommand(dictAddCmd, dictResolveCmd, dictUpdateCmd, dictShowCmd)

	for _, c := range []*cobra.Command{dictAddCmd, dictUpdateCmd} {
		c.Flags().Float64Var(&dictKcal, "kcal", 0, "Calories per 100g")
		c.Flags().Float64Var(&dictProtein, "protein", 0, "Protein grams per 100g")
		c.Flags().Float64Var(&dictFat, "fat", 0, "Fat grams per 100g")
		c.Flags().Float64Var(&dictCarbs, "carbs", 0, "Carbohydrate grams per 100g")
	}
	dictAddCmd.Flags().StringVar(&dictSource, "source", string(model.EntrySourceManual), "Entry source: manual|external|ai-estimated")
	dictAddCmd.Flags().BoolVar(&dictRefresh, "refresh", false, "Overwrite macros when the name already exists")
	dictShowCmd.Flags().IntVar(&dictLimit, "limit", 50, "Maximum entries when listing")
	for _, c := range []*cobra.Command{dictAddCmd, dictResolveCmd, dictUpdateCmd, dictShowCmd} {
		c.Flags().BoolVar(&dictJSON, "json", false, "Output as JSON")
	}
}
