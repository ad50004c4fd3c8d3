package usda

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchFoodsMapsNutrientIDs(t *testing.T) {
	t.Parallel()

	var gotQuery, gotKey, gotPageSize string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fdc/v1/foods/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("query")
		gotKey = r.URL.Query().Get("api_key")
		gotPageSize = r.URL.Query().Get("pageSize")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "foods": [
    {
      "fdcId": 1750340,
      "description": "Apples, fuji, with skin, raw",
      "dataType": "Foundation",
      "foodNutrients": [
        {"nutrientId": 1003, "nutrientName": "Protein", "unitName": "G", "value": 0.15},
        {"nutrientId": 1004, "nutrientName": "Total lipid (fat)", "unitName": "G", "value": 0.16},
        {"nutrientId": 1005, "nutrientName": "Carbohydrate, by difference", "unitName": "G", "value": 15.7},
        {"nutrientId": 1008, "nutrientName": "Energy", "unitName": "KCAL", "value": 63}
      ]
    },
    {
      "fdcId": 2,
      "description": "Apple juice",
      "brandOwner": "Juicy Co",
      "foodNutrients": [
        {"nutrientId": 1003, "value": 0.1}
      ]
    }
  ]
}`))
	}))
	defer ts.Close()

	c := &Client{APIKey: "demo", BaseURL: ts.URL, HTTPClient: ts.Client()}
	foods, err := c.SearchFoods(context.Background(), "apple", 5)
	if err != nil {
		t.Fatalf("search foods: %v", err)
	}
	if gotQuery != "apple" || gotKey != "demo" || gotPageSize != "5" {
		t.Fatalf("unexpected request params query=%q key=%q pageSize=%q", gotQuery, gotKey, gotPageSize)
	}
	if len(foods) != 2 {
		t.Fatalf("expected 2 foods, got %d", len(foods))
	}
	first := foods[0]
	if first.FDCID != 1750340 || first.Calories != 63 || first.ProteinG != 0.15 || first.FatG != 0.16 || first.CarbsG != 15.7 {
		t.Fatalf("unexpected first food: %+v", first)
	}
	second := foods[1]
	if second.Brand != "Juicy Co" || second.Calories != 0 || second.FatG != 0 || second.CarbsG != 0 {
		t.Fatalf("missing nutrients should default to zero: %+v", second)
	}
}

func TestSearchFoodsFallsBackToNutrientNames(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"foods":[{"fdcId":7,"description":"Oats","foodNutrients":[
  {"nutrientName":"Energy","unitName":"kJ","value":1600},
  {"nutrientName":"Energy","unitName":"KCAL","value":389},
  {"nutrientName":"Protein","value":16.9}
]}]}`))
	}))
	defer ts.Close()

	c := &Client{APIKey: "demo", BaseURL: ts.URL, HTTPClient: ts.Client()}
	foods, err := c.SearchFoods(context.Background(), "oats", 1)
	if err != nil {
		t.Fatalf("search foods: %v", err)
	}
	if len(foods) != 1 || foods[0].Calories != 389 || foods[0].ProteinG != 16.9 {
		t.Fatalf("unexpected foods: %+v", foods)
	}
}

func TestSearchFoodsRequiresAPIKey(t *testing.T) {
	t.Parallel()

	c := &Client{}
	_, err := c.SearchFoods(context.Background(), "apple", 5)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSearchFoodsReportsBadStatus(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := &Client{APIKey: "demo", BaseURL: ts.URL, HTTPClient: ts.Client()}
	if _, err := c.SearchFoods(context.Background(), "apple", 5); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestSearchFoodsHonorsTimeout(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := &Client{APIKey: "demo", BaseURL: ts.URL, HTTPClient: ts.Client()}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := c.SearchFoods(ctx, "apple", 5); err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("request was not bounded by the context deadline")
	}
}
