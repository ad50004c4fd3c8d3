package calories

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shibakov/calroies-info-ms/internal/app"
	"github.com/shibakov/calroies-info-ms/internal/service"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log eaten food",
}

var (
	logProductID int64
	logProduct   string
	logGrams     float64
	logMeal      string
	logAt        string
	logFile      string
	logJSON      bool
)

type logFileItem struct {
	ProductID  int64      `json:"product_id"`
	Product    string     `json:"product"`
	Grams      float64    `json:"grams"`
	MealType   string     `json:"meal_type"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func readLogFile(path string) ([]service.LogItemInput, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	var raw []logFileItem
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse log file: %w", err)
	}
	items := make([]service.LogItemInput, 0, len(raw))
	for _, r := range raw {
		it := service.LogItemInput{
			ProductID:     r.ProductID,
			Product:       r.Product,
			QuantityGrams: r.Grams,
			MealType:      r.MealType,
		}
		if r.OccurredAt != nil {
			it.OccurredAt = *r.OccurredAt
		}
		items = append(items, it)
	}
	return items, nil
}

func logItemFromFlags(cmd *cobra.Command, args []string) (service.LogItemInput, error) {
	it := service.LogItemInput{
		ProductID:     logProductID,
		Product:       strings.TrimSpace(logProduct),
		QuantityGrams: logGrams,
		MealType:      logMeal,
	}
	if it.Product == "" && len(args) > 0 {
		it.Product = strings.Join(args, " ")
	}
	if it.ProductID == 0 && it.Product == "" {
		return it, fmt.Errorf("either --id or a product name is required")
	}
	if !cmd.Flags().Changed("grams") {
		return it, fmt.Errorf("--grams is required")
	}
	if logAt != "" {
		at, err := time.Parse(time.RFC3339, logAt)
		if err != nil {
			return it, fmt.Errorf("invalid --at %q: expected RFC3339", logAt)
		}
		it.OccurredAt = at
	}
	return it, nil
}

var logAddCmd = &cobra.Command{
	Use:   "add [product]",
	Short: "Log one item, or a JSON batch with --file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var items []service.LogItemInput
		if logFile != "" {
			var err error
			if items, err = readLogFile(logFile); err != nil {
				return err
			}
		} else {
			it, err := logItemFromFlags(cmd, args)
			if err != nil {
				return err
			}
			items = []service.LogItemInput{it}
		}
		return withApp(cmd, func(a *app.App) error {
			stats, err := a.Journal.AddEntries(cmd.Context(), items)
			if err != nil {
				return err
			}
			if logJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %d item(s)\n", len(items))
			printStats(cmd.OutOrStdout(), stats)
			return nil
		})
	},
}

var logUpdateCmd = &cobra.Command{
	Use:   "update <log-id>",
	Short: "Change the quantity of a logged item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("log id", args[0])
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("grams") {
			return fmt.Errorf("--grams is required")
		}
		return withApp(cmd, func(a *app.App) error {
			stats, err := a.Journal.UpdateQuantity(cmd.Context(), id, logGrams)
			if err != nil {
				return err
			}
			if logJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated log item %d\n", id)
			printStats(cmd.OutOrStdout(), stats)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logAddCmd, logUpdateCmd)

	logAddCmd.Flags().Int64Var(&logProductID, "id", 0, "Dictionary entry id")
	logAddCmd.Flags().StringVar(&logProduct, "product", "", "Product name (estimated and added when unknown)")
	logAddCmd.Flags().StringVar(&logMeal, "meal", "", "Meal type label")
	logAddCmd.Flags().StringVar(&logAt, "at", "", "Time eaten (RFC3339, default now)")
	logAddCmd.Flags().StringVar(&logFile, "file", "", "JSON array of items to log in one transaction")
	for _, c := range []*cobra.Command{logAddCmd, logUpdateCmd} {
		c.Flags().Float64Var(&logGrams, "grams", 0, "Quantity in grams")
		c.Flags().BoolVar(&logJSON, "json", false, "Output daily stats as JSON")
	}
}
