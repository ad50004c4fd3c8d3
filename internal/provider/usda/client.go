package usda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.nal.usda.gov"

// FoodData Central nutrient ids.
const (
	nutrientEnergyKcal       = 1008
	nutrientEnergyAtwaterGen = 2047
	nutrientEnergyAtwaterSp  = 2048
	nutrientProtein          = 1003
	nutrientFat              = 1004
	nutrientCarbs            = 1005
)

// ErrMissingAPIKey is returned before any request is made.
var ErrMissingAPIKey = errors.New("missing USDA API key")

// Food is a search hit normalized to values per 100g.
type Food struct {
	FDCID       int64   `json:"fdc_id"`
	Description string  `json:"description"`
	Brand       string  `json:"brand"`
	DataType    string  `json:"data_type"`
	Calories    float64 `json:"calories"`
	ProteinG    float64 `json:"protein_g"`
	FatG        float64 `json:"fat_g"`
	CarbsG      float64 `json:"carbs_g"`
}

type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) SearchFoods(ctx context.Context, query string, pageSize int) ([]Food, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 12 * time.Second}
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	params := url.Values{}
	params.Set("api_key", c.APIKey)
	params.Set("query", strings.TrimSpace(query))
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	u := fmt.Sprintf("%s/fdc/v1/foods/search?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create USDA request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute USDA request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read USDA response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("USDA request failed with status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode USDA response: %w", err)
	}

	out := make([]Food, 0, len(parsed.Foods))
	for _, f := range parsed.Foods {
		out = append(out, toFood(f))
	}
	return out, nil
}

func toFood(f usdaFood) Food {
	out := Food{
		FDCID:       f.FDCID,
		Description: strings.TrimSpace(f.Description),
		Brand:       strings.TrimSpace(f.BrandOwner),
		DataType:    strings.TrimSpace(f.DataType),
	}
	var energyFallback float64
	for _, n := range f.FoodNutrients {
		switch n.NutrientID {
		case nutrientEnergyKcal:
			out.Calories = n.Value
			continue
		case nutrientEnergyAtwaterGen, nutrientEnergyAtwaterSp:
			if energyFallback == 0 {
				energyFallback = n.Value
			}
			continue
		case nutrientProtein:
			out.ProteinG = n.Value
			continue
		case nutrientFat:
			out.FatG = n.Value
			continue
		case nutrientCarbs:
			out.CarbsG = n.Value
			continue
		}
		if n.NutrientID != 0 {
			continue
		}
		// Older payloads only carry nutrient names.
		switch strings.ToLower(strings.TrimSpace(n.NutrientName)) {
		case "energy":
			if strings.EqualFold(strings.TrimSpace(n.UnitName), "kcal") {
				out.Calories = n.Value
			}
		case "protein":
			out.ProteinG = n.Value
		case "total lipid (fat)":
			out.FatG = n.Value
		case "carbohydrate, by difference":
			out.CarbsG = n.Value
		}
	}
	if out.Calories == 0 {
		out.Calories = energyFallback
	}
	out.Calories = nonNegative(out.Calories)
	out.ProteinG = nonNegative(out.ProteinG)
	out.FatG = nonNegative(out.FatG)
	out.CarbsG = nonNegative(out.CarbsG)
	return out
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

type searchResponse struct {
	Foods []usdaFood `json:"foods"`
}

type usdaFood struct {
	FDCID         int64          `json:"fdcId"`
	Description   string         `json:"description"`
	BrandOwner    string         `json:"brandOwner"`
	DataType      string         `json:"dataType"`
	FoodNutrients []usdaNutrient `json:"foodNutrients"`
}

type usdaNutrient struct {
	NutrientID   int     `json:"nutrientId"`
	NutrientName string  `json:"nutrientName"`
	UnitName     string  `json:"unitName"`
	Value        float64 `json:"value"`
}
