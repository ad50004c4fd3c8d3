package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shibakov/calroies-info-ms/internal/model"
)

const (
	defaultMealType    = "unspecified"
	estimateConcurrent = 4
)

// LogItemInput names a food either by dictionary id or by free-text name.
// ProductID wins when both are set.
type LogItemInput struct {
	ProductID     int64
	Product       string
	QuantityGrams float64
	MealType      string
	OccurredAt    time.Time
}

// Journal records consumption and reports daily totals.
type Journal struct {
	DB         *sql.DB
	Dictionary *Dictionary
	Targets    *Targets
	Location   *time.Location
	Logger     *slog.Logger
	Now        func() time.Time
}

func (j *Journal) location() *time.Location {
	if j.Location != nil {
		return j.Location
	}
	return time.UTC
}

func (j *Journal) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func validateQuantity(grams float64) error {
	if !isFinite(grams) || grams <= 0 {
		return validationErrorf("quantity must be a finite number > 0")
	}
	return nil
}

func validateLogItems(items []LogItemInput) error {
	if len(items) == 0 {
		return validationErrorf("items must not be empty")
	}
	for i, it := range items {
		if err := validateQuantity(it.QuantityGrams); err != nil {
			return validationErrorf("item %d: quantity must be a finite number > 0", i)
		}
		if it.ProductID < 0 {
			return validationErrorf("item %d: product_id must be > 0", i)
		}
		if it.ProductID == 0 && normalizeName(it.Product) == "" {
			return validationErrorf("item %d: product or product_id is required", i)
		}
	}
	return nil
}

// AddEntries logs a batch atomically: either every item is written or none.
// Unknown names are estimated before the transaction opens.
func (j *Journal) AddEntries(ctx context.Context, items []LogItemInput) (model.DailyStats, error) {
	if err := validateLogItems(items); err != nil {
		return model.DailyStats{}, err
	}

	if err := j.checkProductIDs(ctx, items); err != nil {
		return model.DailyStats{}, err
	}
	estimated, err := j.estimateUnknown(ctx, items)
	if err != nil {
		return model.DailyStats{}, err
	}

	now := clock(j.Now)
	ts := formatTimestamp(now)
	err = withTx(ctx, j.DB, func(tx *sql.Tx) error {
		for i, it := range items {
			productID, err := j.resolveInTx(ctx, tx, it, estimated, now)
			if err != nil {
				return err
			}
			occurred := it.OccurredAt
			if occurred.IsZero() {
				occurred = now
			}
			meal := strings.TrimSpace(it.MealType)
			if meal == "" {
				meal = defaultMealType
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO food_log(product_id, meal_type, quantity_g, occurred_at, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?)
`, productID, meal, it.QuantityGrams, formatTimestamp(occurred), ts, ts); err != nil {
				return storageError("insert log entry", err)
			}
			if _, err := tx.ExecContext(ctx, `
UPDATE food_dict SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?
`, ts, productID); err != nil {
				return storageError("bump dictionary usage", err)
			}
			j.logger().Debug("log entry added", "item", i, "product_id", productID, "quantity_g", it.QuantityGrams)
		}
		return nil
	})
	if err != nil {
		return model.DailyStats{}, err
	}
	return j.DailyStats(ctx, "")
}

// checkProductIDs fails with not_found when any referenced id is missing.
// resolveInTx repeats the check for rows deleted in between.
func (j *Journal) checkProductIDs(ctx context.Context, items []LogItemInput) error {
	ids := make([]int64, 0, len(items))
	seen := map[int64]bool{}
	for _, it := range items {
		if it.ProductID > 0 && !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := j.DB.QueryContext(ctx, `SELECT id FROM food_dict WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return storageError("check dictionary ids", err)
	}
	defer rows.Close()
	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return storageError("scan dictionary id", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return storageError("iterate dictionary ids", err)
	}
	for _, id := range ids {
		if !found[id] {
			return notFoundErrorf("dictionary entry %d not found", id)
		}
	}
	return nil
}

// estimateUnknown estimates macros once per distinct name missing from the
// dictionary. Any failure aborts the whole batch.
func (j *Journal) estimateUnknown(ctx context.Context, items []LogItemInput) (map[string]pendingEntry, error) {
	pending := map[string]pendingEntry{}
	for _, it := range items {
		if it.ProductID > 0 {
			continue
		}
		norm := normalizeName(it.Product)
		if _, ok := pending[norm]; ok {
			continue
		}
		existing, err := entryByNorm(ctx, j.DB, norm)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}
		pending[norm] = pendingEntry{product: strings.TrimSpace(it.Product)}
	}
	if len(pending) == 0 {
		return pending, nil
	}
	if j.Dictionary == nil {
		return nil, upstreamError("macro estimator is not configured", nil)
	}

	names := make([]string, 0, len(pending))
	for norm := range pending {
		names = append(names, norm)
	}
	var mu sync.Mutex
	out := make(map[string]pendingEntry, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(estimateConcurrent)
	for _, norm := range names {
		norm, p := norm, pending[norm]
		g.Go(func() error {
			m, err := j.Dictionary.estimate(gctx, p.product)
			if err != nil {
				return err
			}
			mu.Lock()
			out[norm] = pendingEntry{product: p.product, macros: m}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type pendingEntry struct {
	product string
	macros  model.Macros
}

func (j *Journal) resolveInTx(ctx context.Context, tx *sql.Tx, it LogItemInput, estimated map[string]pendingEntry, now time.Time) (int64, error) {
	if it.ProductID > 0 {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM food_dict WHERE id = ?`, it.ProductID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, notFoundErrorf("dictionary entry %d not found", it.ProductID)
		}
		if err != nil {
			return 0, storageError("lookup dictionary entry", err)
		}
		return id, nil
	}

	norm := normalizeName(it.Product)
	if p, ok := estimated[norm]; ok {
		e, err := insertEntryIfAbsent(ctx, tx, p.product, model.EntrySourceAIEstimated, p.macros, now)
		if err != nil {
			return 0, err
		}
		return e.ID, nil
	}
	e, err := entryByNorm(ctx, tx, norm)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, storageError("resolve dictionary entry", errors.New("entry for "+norm+" disappeared"))
	}
	return e.ID, nil
}

// UpdateQuantity changes the grams of a log entry and returns the stats of
// the day the entry was originally logged on.
func (j *Journal) UpdateQuantity(ctx context.Context, logID int64, grams float64) (model.DailyStats, error) {
	if logID <= 0 {
		return model.DailyStats{}, validationErrorf("id must be > 0")
	}
	if err := validateQuantity(grams); err != nil {
		return model.DailyStats{}, err
	}

	var occurred time.Time
	err := withTx(ctx, j.DB, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT occurred_at FROM food_log WHERE id = ?`, logID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundErrorf("log entry %d not found", logID)
		}
		if err != nil {
			return storageError("lookup log entry", err)
		}
		if occurred, err = parseTimestamp(raw); err != nil {
			return storageError("lookup log entry", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE food_log SET quantity_g = ?, updated_at = ? WHERE id = ?`,
			grams, formatTimestamp(clock(j.Now)), logID); err != nil {
			return storageError("update log entry", err)
		}
		return nil
	})
	if err != nil {
		return model.DailyStats{}, err
	}
	return j.DailyStats(ctx, occurred.In(j.location()).Format(dateLayout))
}
