package calories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shibakov/calroies-info-ms/internal/app"
	"github.com/shibakov/calroies-info-ms/internal/config"
	"github.com/shibakov/calroies-info-ms/internal/db"
	"github.com/shibakov/calroies-info-ms/internal/model"
)

func openDB(path string) (*sql.DB, error) {
	if err := app.EnsureDBDir(path); err != nil {
		return nil, err
	}
	sqldb, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return sqldb, nil
}

func loadConfig(ctx context.Context) (config.Config, string, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return config.Config{}, "", err
	}
	path, err := app.ResolveDBPath(dbPath, cfg.DBPath)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, path, nil
}

func withDB(cmd *cobra.Command, run func(*sql.DB) error) error {
	_, path, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	sqldb, err := openDB(path)
	if err != nil {
		return err
	}
	defer sqldb.Close()
	return run(sqldb)
}

func withApp(cmd *cobra.Command, run func(*app.App) error) error {
	cfg, path, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	sqldb, err := openDB(path)
	if err != nil {
		return err
	}
	defer sqldb.Close()

	a, err := app.New(cfg, sqldb, app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel))
	if err != nil {
		return err
	}
	return run(a)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json output: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}

func parseInt64Arg(name, value string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0", name)
	}
	return v, nil
}

func printEntry(w io.Writer, e model.DictionaryEntry) {
	fmt.Fprintf(w, "#%d %s [%s]\n", e.ID, e.Product, e.Source)
	fmt.Fprintf(w, "  per 100g: %.1f kcal | P %.1fg | F %.1fg | C %.1fg\n", e.Kcal100, e.Protein100, e.Fat100, e.Carbs100)
	if e.LastUsedAt != nil {
		fmt.Fprintf(w, "  used %d time(s), last %s\n", e.UsageCount, e.LastUsedAt.Format("2006-01-02 15:04"))
	}
}

func printStats(w io.Writer, s model.DailyStats) {
	fmt.Fprintf(w, "Date: %s\n", s.Date)
	for _, it := range s.Items {
		fmt.Fprintf(w, "  #%d %s %s %.0fg: %.1f kcal | P %.1fg | F %.1fg | C %.1fg\n",
			it.ID, it.OccurredAt.Format("15:04"), it.Product, it.QuantityGrams, it.Kcal, it.Protein, it.Fat, it.Carbs)
	}
	fmt.Fprintf(w, "Total: %.1f kcal | P %.1fg | F %.1fg | C %.1fg\n", s.Totals.Kcal, s.Totals.Protein, s.Totals.Fat, s.Totals.Carbs)
	if s.Targets == nil {
		fmt.Fprintln(w, "Targets: not set")
		return
	}
	fmt.Fprintf(w, "Targets: %.0f kcal | P %.1fg | F %.1fg | C %.1fg\n", s.Targets.Kcal, s.Targets.Protein, s.Targets.Fat, s.Targets.Carbs)
	fmt.Fprintf(w, "Remaining: %.1f kcal | P %.1fg | F %.1fg | C %.1fg\n", s.Remaining.Kcal, s.Remaining.Protein, s.Remaining.Fat, s.Remaining.Carbs)
}
