package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shibakov/calroies-info-ms/internal/db"
	"github.com/shibakov/calroies-info-ms/internal/model"
	"github.com/shibakov/calroies-info-ms/internal/service"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func nowFunc() time.Time { return fixedNow }

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calories.db")
	sqldb, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	return sqldb
}

type fakeEstimator struct {
	mu     sync.Mutex
	macros map[string]model.Macros
	err    error
	calls  int
}

func (f *fakeEstimator) EstimateMacros(_ context.Context, product string) (model.Macros, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return model.Macros{}, f.err
	}
	if m, ok := f.macros[strings.ToLower(strings.TrimSpace(product))]; ok {
		return m, nil
	}
	return model.Macros{Kcal: 100, Protein: 10, Fat: 5, Carbs: 10}, nil
}

func (f *fakeEstimator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSource struct {
	name    model.Source
	label   string
	records []model.FoodRecord
	err     error

	mu        sync.Mutex
	calls     int
	lastQuery string
}

func (f *fakeSource) Name() model.Source { return f.name }

func (f *fakeSource) Label() string {
	if f.label != "" {
		return f.label
	}
	return string(f.name)
}

func (f *fakeSource) Search(_ context.Context, query string, _ int) service.SourceResult {
	f.mu.Lock()
	f.calls++
	f.lastQuery = query
	f.mu.Unlock()
	if f.err != nil {
		return service.SourceResult{Err: f.err}
	}
	out := make([]model.FoodRecord, len(f.records))
	copy(out, f.records)
	return service.SourceResult{Records: out}
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranslator struct {
	words map[string]string
	err   error
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if out, ok := f.words[text]; ok {
		return out, nil
	}
	return text, nil
}

func newDictionary(sqldb *sql.DB, est service.MacroEstimator) *service.Dictionary {
	return &service.Dictionary{DB: sqldb, Estimator: est, Now: nowFunc}
}

func newJournal(sqldb *sql.DB, est service.MacroEstimator, defaults service.TargetDefaults) *service.Journal {
	return &service.Journal{
		DB:         sqldb,
		Dictionary: newDictionary(sqldb, est),
		Targets:    &service.Targets{DB: sqldb, Defaults: defaults, Now: nowFunc},
		Now:        nowFunc,
	}
}

func mustUpsert(t *testing.T, d *service.Dictionary, product string, m model.Macros) model.DictionaryEntry {
	t.Helper()
	e, err := d.Upsert(context.Background(), service.UpsertEntryInput{Product: product, Macros: m}, service.ConflictKeep)
	if err != nil {
		t.Fatalf("upsert %q: %v", product, err)
	}
	return e
}

func countRows(t *testing.T, sqldb *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := sqldb.QueryRow(`SELECT COUNT(1) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func ptr(v float64) *float64 { return &v }
