package service

import (
	"context"
	"strings"
	"time"

	"github.com/shibakov/calroies-info-ms/internal/model"
)

// statsDay parses "" (today), YYYY-MM-DD or RFC3339 into the calendar day in loc.
func statsDay(date string, loc *time.Location, now time.Time) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc), nil
	}
	if d, err := time.ParseInLocation(dateLayout, date, loc); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, date); err == nil {
		n := ts.In(loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, validationErrorf("invalid date %q (expected YYYY-MM-DD)", date)
}

// DailyStats lists the entries logged on date with their macro contribution
// and the totals against the day's targets.
func (j *Journal) DailyStats(ctx context.Context, date string) (model.DailyStats, error) {
	loc := j.location()
	day, err := statsDay(date, loc, clock(j.Now))
	if err != nil {
		return model.DailyStats{}, err
	}
	start := day
	end := day.AddDate(0, 0, 1)

	rows, err := j.DB.QueryContext(ctx, `
SELECT l.id, l.product_id, d.product, l.meal_type, l.quantity_g, l.occurred_at,
       d.kcal_100, d.protein_100, d.fat_100, d.carbs_100
FROM food_log l
JOIN food_dict d ON d.id = l.product_id
WHERE l.occurred_at >= ? AND l.occurred_at < ?
ORDER BY l.occurred_at ASC, l.id ASC
`, formatTimestamp(start), formatTimestamp(end))
	if err != nil {
		return model.DailyStats{}, storageError("query daily stats", err)
	}
	defer rows.Close()

	stats := model.DailyStats{Date: day.Format(dateLayout), Items: make([]model.StatsItem, 0)}
	var totals model.Macros
	for rows.Next() {
		var (
			it       model.StatsItem
			occurred string
			per100   model.Macros
		)
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Product, &it.MealType, &it.QuantityGrams, &occurred,
			&per100.Kcal, &per100.Protein, &per100.Fat, &per100.Carbs); err != nil {
			return model.DailyStats{}, storageError("scan daily stats", err)
		}
		if it.OccurredAt, err = parseTimestamp(occurred); err != nil {
			return model.DailyStats{}, storageError("scan daily stats", err)
		}
		it.Kcal = contribution(it.QuantityGrams, per100.Kcal)
		it.Protein = contribution(it.QuantityGrams, per100.Protein)
		it.Fat = contribution(it.QuantityGrams, per100.Fat)
		it.Carbs = contribution(it.QuantityGrams, per100.Carbs)
		totals.Kcal += it.Kcal
		totals.Protein += it.Protein
		totals.Fat += it.Fat
		totals.Carbs += it.Carbs
		stats.Items = append(stats.Items, it)
	}
	if err := rows.Err(); err != nil {
		return model.DailyStats{}, storageError("iterate daily stats", err)
	}
	stats.Totals = model.Macros{
		Kcal:    round2(totals.Kcal),
		Protein: round2(totals.Protein),
		Fat:     round2(totals.Fat),
		Carbs:   round2(totals.Carbs),
	}

	if j.Targets != nil {
		targets, err := j.Targets.For(ctx, stats.Date)
		if err != nil {
			return model.DailyStats{}, err
		}
		stats.Targets = targets
		stats.Remaining = Remaining(targets, stats.Totals)
	}
	return stats, nil
}

func contribution(grams, per100 float64) float64 {
	return round2(grams * per100 / 100)
}
