package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sethvargo/go-envconfig"

	"github.com/shibakov/calroies-info-ms/internal/app"
	"github.com/shibakov/calroies-info-ms/internal/config"
	"github.com/shibakov/calroies-info-ms/internal/db"
	"github.com/shibakov/calroies-info-ms/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEstimator struct {
	macros model.Macros
	err    error
}

func (s stubEstimator) EstimateMacros(context.Context, string) (model.Macros, error) {
	return s.macros, s.err
}

func newTestServer(t *testing.T, env map[string]string, est stubEstimator) (http.Handler, *app.App) {
	t.Helper()
	cfg, err := config.LoadWith(context.Background(), envconfig.MapLookuper(env))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	sqldb, err := db.Open(filepath.Join(t.TempDir(), "calories.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	a, err := app.New(cfg, sqldb, app.NewLogger(io.Discard, "error"))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	a.Dictionary.Estimator = est
	a.Searcher.External = nil
	a.Searcher.Translator = nil
	return NewRouter(a), a
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, map[string]string{"USDA_API_KEY": "k"}, stubEstimator{})

	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Status    string        `json:"status"`
		Upstreams app.Upstreams `json:"upstreams"`
	}
	decode(t, w, &body)
	if body.Status != "ok" || !body.Upstreams.USDA || body.Upstreams.Estimator {
		t.Fatalf("unexpected health body %+v", body)
	}
	if w.Header().Get("Cache-Control") == "" || w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected no-cache and request id headers, got %v", w.Header())
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, nil, stubEstimator{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, nil, stubEstimator{})

	req := httptest.NewRequest(http.MethodOptions, "/api/log/add_list", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected permissive CORS, got %v", w.Header())
	}
}

func TestSearchLocalHitAndValidation(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, nil, stubEstimator{})

	w := do(t, h, http.MethodGet, "/api/search?query=%20", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/api/search?query=apple&limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/api/auto-add", `{"product":"Apple","kcal_100":52,"protein_100":0.3,"fat_100":0.2,"carbs_100":14}`)
	if w.Code != http.StatusOK {
		t.Fatalf("auto-add: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/search?query=APP", "")
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %s", w.Code, w.Body.String())
	}
	var res struct {
		Status  string             `json:"status"`
		Source  string             `json:"source"`
		Results []model.FoodRecord `json:"results"`
	}
	decode(t, w, &res)
	if res.Status != "ok" || res.Source != "local" || len(res.Results) != 1 || res.Results[0].Product != "Apple" {
		t.Fatalf("unexpected search response %+v", res)
	}

	w = do(t, h, http.MethodGet, "/api/search?query=durian", "")
	decode(t, w, &res)
	if w.Code != http.StatusOK || res.Status != "not_found" {
		t.Fatalf("expected not_found, got %d %+v", w.Code, res)
	}
}

func TestDictionaryEndpoints(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, map[string]string{"OPENAI_API_KEY": "test"}, stubEstimator{macros: model.Macros{Kcal: 89, Protein: 1.1, Fat: 0.3, Carbs: 23}})

	w := do(t, h, http.MethodPost, "/api/auto-add", `{"product":"Rice","kcal_100":130}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing macros, got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/api/dict/create_via_gpt", `{"product":"Banana"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create via estimator: %d %s", w.Code, w.Body.String())
	}
	var entry model.DictionaryEntry
	decode(t, w, &entry)
	if entry.ID <= 0 || entry.Source != model.EntrySourceAIEstimated || entry.Kcal100 != 89 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	w = do(t, h, http.MethodPost, "/api/dict/update", `{"product_id":`+itoa(entry.ID)+`,"kcal_100":90,"protein_100":1,"fat_100":0.3,"carbs_100":22}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update entry: %d %s", w.Code, w.Body.String())
	}
	decode(t, w, &entry)
	if entry.Kcal100 != 90 {
		t.Fatalf("expected updated kcal, got %+v", entry)
	}

	w = do(t, h, http.MethodPost, "/api/dict/update", `{"product_id":9999,"kcal_100":1,"protein_100":1,"fat_100":1,"carbs_100":1}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateViaEstimatorNotConfigured(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, nil, stubEstimator{})

	w := do(t, h, http.MethodPost, "/api/dict/create_via_gpt", `{"product":"Banana"}`)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}

func TestAddListAndStats(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, map[string]string{
		"OPENAI_API_KEY":       "test",
		"DAILY_KCAL_TARGET":    "2000",
		"DAILY_PROTEIN_TARGET": "100",
		"DAILY_FAT_TARGET":     "70",
		"DAILY_CARBS_TARGET":   "250",
	}, stubEstimator{macros: model.Macros{Kcal: 89, Protein: 1.1, Fat: 0.3, Carbs: 23}})

	w := do(t, h, http.MethodPost, "/api/log/add_list", `[{"product":"Banana","weight":120,"meal_type":"snack"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("add list: %d %s", w.Code, w.Body.String())
	}
	var stats model.DailyStats
	decode(t, w, &stats)
	if stats.Totals.Kcal != 106.8 {
		t.Fatalf("expected 106.8 kcal, got %+v", stats.Totals)
	}
	if stats.Remaining == nil || stats.Remaining.Kcal != 1893.2 {
		t.Fatalf("expected 1893.2 kcal left, got %+v", stats.Remaining)
	}

	w = do(t, h, http.MethodPost, "/api/log/update_item", `{"id":`+itoa(stats.Items[0].ID)+`,"weight":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update item: %d %s", w.Code, w.Body.String())
	}
	decode(t, w, &stats)
	if stats.Totals.Kcal != 89 {
		t.Fatalf("expected 89 kcal after update, got %+v", stats.Totals)
	}

	w = do(t, h, http.MethodGet, "/api/stats/daily?date="+stats.Date, "")
	if w.Code != http.StatusOK {
		t.Fatalf("daily stats: %d %s", w.Code, w.Body.String())
	}

	for name, tc := range map[string]struct {
		method, path, body string
		status             int
	}{
		"unknown field":    {http.MethodPost, "/api/log/add_list", `[{"product":"Banana","weight":1,"colour":"yellow"}]`, http.StatusBadRequest},
		"empty list":       {http.MethodPost, "/api/log/add_list", `[]`, http.StatusBadRequest},
		"zero weight":      {http.MethodPost, "/api/log/add_list", `[{"product":"Banana","weight":0}]`, http.StatusBadRequest},
		"missing log item": {http.MethodPost, "/api/log/update_item", `{"id":9999,"weight":10}`, http.StatusNotFound},
		"invalid date":     {http.MethodGet, "/api/stats/daily?date=2026-02-30x", "", http.StatusBadRequest},
	} {
		w := do(t, h, tc.method, tc.path, tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d: %s", name, tc.status, w.Code, w.Body.String())
		}
	}
}

func TestAddListEstimatorFailure(t *testing.T) {
	t.Parallel()
	h, a := newTestServer(t, map[string]string{"OPENAI_API_KEY": "test"}, stubEstimator{err: errors.New("status 503")})

	w := do(t, h, http.MethodPost, "/api/log/add_list", `[{"product":"Mystery","quantity_g":50}]`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "status 503") {
		t.Fatalf("internal cause leaked to client: %s", w.Body.String())
	}
	var n int
	if err := a.DB.QueryRow(`SELECT COUNT(1) FROM food_log`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("expected no log rows, got %d (%v)", n, err)
	}
}

func TestTargetsEndpoints(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, nil, stubEstimator{})

	w := do(t, h, http.MethodPost, "/api/targets", `{"kcal":1800,"protein_g":120,"fat_g":60,"carbs_g":200,"effective_date":"2026-01-01"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set targets: %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/targets?date=2026-02-01", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get targets: %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Targets *model.Macros `json:"targets"`
	}
	decode(t, w, &body)
	if body.Targets == nil || body.Targets.Kcal != 1800 {
		t.Fatalf("unexpected targets %+v", body)
	}
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
