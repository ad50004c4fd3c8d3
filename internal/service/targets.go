package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shibakov/calroies-info-ms/internal/model"
)

// TargetDefaults are the configured targets used when no stored targets apply.
// A nil field is unconfigured.
type TargetDefaults struct {
	Kcal    *float64
	Protein *float64
	Fat     *float64
	Carbs   *float64
}

type SetTargetsInput struct {
	Kcal          float64
	ProteinG      float64
	FatG          float64
	CarbsG        float64
	EffectiveDate string
}

type Targets struct {
	DB       *sql.DB
	Defaults TargetDefaults
	Location *time.Location
	Now      func() time.Time
}

func (t *Targets) today() string {
	loc := t.Location
	if loc == nil {
		loc = time.UTC
	}
	return clock(t.Now).In(loc).Format(dateLayout)
}

func (t *Targets) Set(ctx context.Context, in SetTargetsInput) (model.DailyTargets, error) {
	if err := validateMacros(model.Macros{Kcal: in.Kcal, Protein: in.ProteinG, Fat: in.FatG, Carbs: in.CarbsG}); err != nil {
		return model.DailyTargets{}, err
	}
	in.EffectiveDate = strings.TrimSpace(in.EffectiveDate)
	if in.EffectiveDate == "" {
		in.EffectiveDate = t.today()
	}
	if _, err := time.Parse(dateLayout, in.EffectiveDate); err != nil {
		return model.DailyTargets{}, validationErrorf("invalid effective date %q (expected YYYY-MM-DD)", in.EffectiveDate)
	}

	_, err := t.DB.ExecContext(ctx, `
INSERT INTO daily_targets(kcal, protein_g, fat_g, carbs_g, effective_date, created_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(effective_date) DO UPDATE SET
  kcal=excluded.kcal,
  protein_g=excluded.protein_g,
  fat_g=excluded.fat_g,
  carbs_g=excluded.carbs_g
`, in.Kcal, in.ProteinG, in.FatG, in.CarbsG, in.EffectiveDate, formatTimestamp(clock(t.Now)))
	if err != nil {
		return model.DailyTargets{}, storageError("set daily targets", err)
	}
	current, err := t.Current(ctx, in.EffectiveDate)
	if err != nil {
		return model.DailyTargets{}, err
	}
	return *current, nil
}

func scanTargets(row interface{ Scan(...any) error }) (model.DailyTargets, error) {
	var (
		dt      model.DailyTargets
		created string
	)
	if err := row.Scan(&dt.ID, &dt.Kcal, &dt.ProteinG, &dt.FatG, &dt.CarbsG, &dt.EffectiveDate, &created); err != nil {
		return model.DailyTargets{}, err
	}
	var err error
	if dt.CreatedAt, err = parseTimestamp(created); err != nil {
		return model.DailyTargets{}, err
	}
	return dt, nil
}

// Current returns the stored targets in effect on date, or nil.
func (t *Targets) Current(ctx context.Context, date string) (*model.DailyTargets, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = t.today()
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, validationErrorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	dt, err := scanTargets(t.DB.QueryRowContext(ctx, `
SELECT id, kcal, protein_g, fat_g, carbs_g, effective_date, created_at
FROM daily_targets
WHERE effective_date <= ?
ORDER BY effective_date DESC
LIMIT 1
`, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("current daily targets for "+date, err)
	}
	return &dt, nil
}

func (t *Targets) History(ctx context.Context) ([]model.DailyTargets, error) {
	rows, err := t.DB.QueryContext(ctx, `
SELECT id, kcal, protein_g, fat_g, carbs_g, effective_date, created_at
FROM daily_targets
ORDER BY effective_date DESC
`)
	if err != nil {
		return nil, storageError("list daily targets", err)
	}
	defer rows.Close()

	out := make([]model.DailyTargets, 0)
	for rows.Next() {
		dt, err := scanTargets(rows)
		if err != nil {
			return nil, storageError("scan daily targets", err)
		}
		out = append(out, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate daily targets", err)
	}
	return out, nil
}

// For resolves the targets that apply on date. It returns nil unless all
// four targets are configured.
func (t *Targets) For(ctx context.Context, date string) (*model.Macros, error) {
	current, err := t.Current(ctx, date)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return &model.Macros{Kcal: current.Kcal, Protein: current.ProteinG, Fat: current.FatG, Carbs: current.CarbsG}, nil
	}
	d := t.Defaults
	if d.Kcal == nil || d.Protein == nil || d.Fat == nil || d.Carbs == nil {
		return nil, nil
	}
	return &model.Macros{Kcal: *d.Kcal, Protein: *d.Protein, Fat: *d.Fat, Carbs: *d.Carbs}, nil
}

// Remaining is max(target-total, 0) per macro, or nil without targets.
func Remaining(targets *model.Macros, totals model.Macros) *model.Macros {
	if targets == nil {
		return nil
	}
	left := func(target, total float64) float64 {
		if v := target - total; v > 0 {
			return round2(v)
		}
		return 0
	}
	return &model.Macros{
		Kcal:    left(targets.Kcal, totals.Kcal),
		Protein: left(targets.Protein, totals.Protein),
		Fat:     left(targets.Fat, totals.Fat),
		Carbs:   left(targets.Carbs, totals.Carbs),
	}
}
