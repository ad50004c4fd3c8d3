package app

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"

	"github.com/shibakov/calroies-info-ms/internal/config"
	"github.com/shibakov/calroies-info-ms/internal/db"
)

func TestNewWiresServicesFromConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"USDA_API_KEY":       "k",
		"OFF_ENABLED":        "true",
		"SEARCH_AI_FALLBACK": "true",
		"TRANSLATE_ENABLED":  "false",
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	sqldb, err := db.Open(filepath.Join(t.TempDir(), "calories.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()

	a, err := New(cfg, sqldb, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if len(a.Searcher.External) != 2 {
		t.Fatalf("expected usda and openfoodfacts sources, got %d", len(a.Searcher.External))
	}
	if a.Searcher.AI == nil || a.Searcher.Translator != nil {
		t.Fatalf("expected estimator tier and no translator")
	}
	if a.Journal.Dictionary != a.Dictionary || a.Journal.Targets != a.Targets {
		t.Fatalf("expected journal to share dictionary and targets")
	}
	up := a.Upstreams()
	if !up.USDA || !up.OpenFoodFacts || up.Estimator || up.Translator || !up.AIFallback {
		t.Fatalf("unexpected upstream summary %+v", up)
	}
}

func TestNewLoggerWritesJSONAtLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "req_id", "abc")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "shown" || line["req_id"] != "abc" || line["level"] != "WARN" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestResolveDBPathPrefersFlag(t *testing.T) {
	t.Parallel()

	got, err := ResolveDBPath(" /tmp/flag.db ", "/tmp/env.db")
	if err != nil || got != "/tmp/flag.db" {
		t.Fatalf("expected flag path, got %q %v", got, err)
	}
	got, err = ResolveDBPath("", "/tmp/env.db")
	if err != nil || got != "/tmp/env.db" {
		t.Fatalf("expected env path, got %q %v", got, err)
	}
}
