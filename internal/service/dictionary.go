package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shibakov/calroies-info-ms/internal/model"
)

type ConflictPolicy int

const (
	// ConflictKeep leaves an existing entry untouched.
	ConflictKeep ConflictPolicy = iota
	// ConflictRefresh overwrites the macros of an existing entry.
	ConflictRefresh
)

type UpsertEntryInput struct {
	Product string
	Source  model.EntrySource
	Macros  model.Macros
}

// Dictionary owns the food_dict table: at most one entry per normalized name.
type Dictionary struct {
	DB        *sql.DB
	Estimator MacroEstimator
	Logger    *slog.Logger
	Now       func() time.Time
}

const entryColumns = `id, product, product_norm, source, kcal_100, protein_100, fat_100, carbs_100, usage_count, last_used_at, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (model.DictionaryEntry, error) {
	var (
		e                model.DictionaryEntry
		source           string
		lastUsed         sql.NullString
		created, updated string
	)
	if err := row.Scan(&e.ID, &e.Product, &e.ProductNorm, &source, &e.Kcal100, &e.Protein100, &e.Fat100, &e.Carbs100, &e.UsageCount, &lastUsed, &created, &updated); err != nil {
		return model.DictionaryEntry{}, err
	}
	e.Source = model.EntrySource(source)
	var err error
	if e.LastUsedAt, err = parseNullTimestamp(lastUsed); err != nil {
		return model.DictionaryEntry{}, err
	}
	if e.CreatedAt, err = parseTimestamp(created); err != nil {
		return model.DictionaryEntry{}, err
	}
	if e.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return model.DictionaryEntry{}, err
	}
	return e, nil
}

func entryByNorm(ctx context.Context, q dbtx, norm string) (*model.DictionaryEntry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM food_dict WHERE product_norm = ?`, norm))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("lookup dictionary entry", err)
	}
	return &e, nil
}

func entryByID(ctx context.Context, q dbtx, id int64) (model.DictionaryEntry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM food_dict WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DictionaryEntry{}, notFoundErrorf("dictionary entry %d not found", id)
	}
	if err != nil {
		return model.DictionaryEntry{}, storageError("get dictionary entry", err)
	}
	return e, nil
}

// insertEntryIfAbsent inserts unless the normalized name already exists and
// returns whichever row holds the name afterwards.
func insertEntryIfAbsent(ctx context.Context, q dbtx, product string, source model.EntrySource, m model.Macros, now time.Time) (model.DictionaryEntry, error) {
	norm := normalizeName(product)
	ts := formatTimestamp(now)
	if _, err := q.ExecContext(ctx, `
INSERT INTO food_dict(product, product_norm, source, kcal_100, protein_100, fat_100, carbs_100, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(product_norm) DO NOTHING
`, strings.TrimSpace(product), norm, string(source), m.Kcal, m.Protein, m.Fat, m.Carbs, ts, ts); err != nil {
		return model.DictionaryEntry{}, storageError("insert dictionary entry", err)
	}
	e, err := entryByNorm(ctx, q, norm)
	if err != nil {
		return model.DictionaryEntry{}, err
	}
	if e == nil {
		return model.DictionaryEntry{}, storageError("insert dictionary entry", errors.New("entry missing after insert"))
	}
	return *e, nil
}

func (d *Dictionary) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Lookup returns the entry for name, or nil when there is none.
func (d *Dictionary) Lookup(ctx context.Context, name string) (*model.DictionaryEntry, error) {
	norm := normalizeName(name)
	if norm == "" {
		return nil, validationErrorf("product name is required")
	}
	return entryByNorm(ctx, d.DB, norm)
}

func (d *Dictionary) Get(ctx context.Context, id int64) (model.DictionaryEntry, error) {
	if id <= 0 {
		return model.DictionaryEntry{}, validationErrorf("id must be > 0")
	}
	return entryByID(ctx, d.DB, id)
}

// estimate asks the estimator for macros. Every failure is fatal to the caller.
func (d *Dictionary) estimate(ctx context.Context, product string) (model.Macros, error) {
	if d.Estimator == nil {
		return model.Macros{}, upstreamError("macro estimator is not configured", nil)
	}
	m, err := d.Estimator.EstimateMacros(ctx, product)
	if err != nil {
		d.logger().Error("macro estimation failed", "product", product, "error", err.Error())
		return model.Macros{}, upstreamError("macro estimation failed", err)
	}
	if err := validateMacros(m); err != nil {
		return model.Macros{}, upstreamError("macro estimation returned invalid values", err)
	}
	return m, nil
}

// ResolveOrCreate returns the entry for product, creating it from estimated
// macros when absent. An existing entry is returned as is.
func (d *Dictionary) ResolveOrCreate(ctx context.Context, product string) (model.DictionaryEntry, error) {
	product = strings.TrimSpace(product)
	existing, err := d.Lookup(ctx, product)
	if err != nil {
		return model.DictionaryEntry{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	m, err := d.estimate(ctx, product)
	if err != nil {
		return model.DictionaryEntry{}, err
	}
	e, err := insertEntryIfAbsent(ctx, d.DB, product, model.EntrySourceAIEstimated, m, clock(d.Now))
	if err != nil {
		return model.DictionaryEntry{}, err
	}
	d.logger().Info("dictionary entry resolved", "id", e.ID, "product", e.Product, "source", string(e.Source))
	return e, nil
}

func (d *Dictionary) Upsert(ctx context.Context, in UpsertEntryInput, policy ConflictPolicy) (model.DictionaryEntry, error) {
	in.Product = strings.TrimSpace(in.Product)
	if in.Product == "" {
		return model.DictionaryEntry{}, validationErrorf("product name is required")
	}
	if in.Source == "" {
		in.Source = model.EntrySourceManual
	}
	if !in.Source.Valid() {
		return model.DictionaryEntry{}, validationErrorf("invalid source %q", in.Source)
	}
	if err := validateMacros(in.Macros); err != nil {
		return model.DictionaryEntry{}, err
	}

	now := clock(d.Now)
	if policy == ConflictKeep {
		return insertEntryIfAbsent(ctx, d.DB, in.Product, in.Source, in.Macros, now)
	}

	ts := formatTimestamp(now)
	norm := normalizeName(in.Product)
	if _, err := d.DB.ExecContext(ctx, `
INSERT INTO food_dict(product, product_norm, source, kcal_100, protein_100, fat_100, carbs_100, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(product_norm) DO UPDATE SET
  kcal_100=excluded.kcal_100,
  protein_100=excluded.protein_100,
  fat_100=excluded.fat_100,
  carbs_100=excluded.carbs_100,
  updated_at=excluded.updated_at
`, in.Product, norm, string(in.Source), in.Macros.Kcal, in.Macros.Protein, in.Macros.Fat, in.Macros.Carbs, ts, ts); err != nil {
		return model.DictionaryEntry{}, storageError("upsert dictionary entry", err)
	}
	e, err := entryByNorm(ctx, d.DB, norm)
	if err != nil {
		return model.DictionaryEntry{}, err
	}
	if e == nil {
		return model.DictionaryEntry{}, storageError("upsert dictionary entry", errors.New("entry missing after upsert"))
	}
	return *e, nil
}

// UpdateEntry replaces the macros of an existing entry. Usage stats are kept.
func (d *Dictionary) UpdateEntry(ctx context.Context, id int64, m model.Macros) (model.DictionaryEntry, error) {
	if id <= 0 {
		return model.DictionaryEntry{}, validationErrorf("id must be > 0")
	}
	if err := validateMacros(m); err != nil {
		return model.DictionaryEntry{}, err
	}
	res, err := d.DB.ExecContext(ctx, `
UPDATE food_dict
SET kcal_100 = ?, protein_100 = ?, fat_100 = ?, carbs_100 = ?, updated_at = ?
WHERE id = ?
`, m.Kcal, m.Protein, m.Fat, m.Carbs, formatTimestamp(clock(d.Now)), id)
	if err != nil {
		return model.DictionaryEntry{}, storageError("update dictionary entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.DictionaryEntry{}, storageError("update dictionary entry rows affected", err)
	}
	if affected == 0 {
		return model.DictionaryEntry{}, notFoundErrorf("dictionary entry %d not found", id)
	}
	return entryByID(ctx, d.DB, id)
}

// List returns entries ordered the way local search ranks them.
func (d *Dictionary) List(ctx context.Context, limit int) ([]model.DictionaryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
SELECT `+entryColumns+`
FROM food_dict
ORDER BY usage_count DESC, last_used_at IS NULL, last_used_at DESC, product_norm ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, storageError("list dictionary entries", err)
	}
	defer rows.Close()
	out := make([]model.DictionaryEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageError("scan dictionary entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate dictionary entries", err)
	}
	return out, nil
}
