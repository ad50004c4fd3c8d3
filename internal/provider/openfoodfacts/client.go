package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://world.openfoodfacts.org"
	defaultUserAgent = "calories-info/1.0 (+https://github.com/shibakov/calroies-info-ms)"
)

// FoodLookup holds nutriments per 100g of product.
type FoodLookup struct {
	Code        string
	Description string
	Brand       string
	Calories    float64
	ProteinG    float64
	CarbsG      float64
	FatG        float64
}

type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

func (c *Client) SearchFoods(ctx context.Context, query string, limit int) ([]FoodLookup, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 12 * time.Second}
	}
	if limit <= 0 {
		limit = 10
	}
	u := fmt.Sprintf("%s/cgi/search.pl?search_terms=%s&search_simple=1&action=process&json=1&page_size=%d",
		base,
		url.QueryEscape(strings.TrimSpace(query)),
		limit,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create openfoodfacts search request: %w", err)
	}
	userAgent := strings.TrimSpace(c.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute openfoodfacts search request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openfoodfacts search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openfoodfacts search request failed with status %d", resp.StatusCode)
	}
	var parsed offSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode openfoodfacts search response: %w", err)
	}

	out := make([]FoodLookup, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		name := strings.TrimSpace(p.ProductName)
		if name == "" {
			continue
		}
		code := strings.TrimSpace(p.Code)
		if code == "" {
			code = strings.TrimSpace(p.ID)
		}
		out = append(out, FoodLookup{
			Code:        code,
			Description: name,
			Brand:       firstBrand(p.Brands),
			Calories:    per100g(p.Nutriments, "energy-kcal"),
			ProteinG:    per100g(p.Nutriments, "proteins"),
			CarbsG:      per100g(p.Nutriments, "carbohydrates"),
			FatG:        per100g(p.Nutriments, "fat"),
		})
	}
	return out, nil
}

// firstBrand keeps the primary brand from a comma separated list.
func firstBrand(brands string) string {
	brands = strings.TrimSpace(brands)
	if i := strings.Index(brands, ","); i >= 0 {
		brands = brands[:i]
	}
	return strings.TrimSpace(brands)
}

func per100g(n map[string]any, base string) float64 {
	v, ok := parseFloatAny(n[base+"_100g"])
	if !ok || v < 0 {
		return 0
	}
	return v
}

func parseFloatAny(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

type offProduct struct {
	ID          string         `json:"_id"`
	Code        string         `json:"code"`
	ProductName string         `json:"product_name"`
	Brands      string         `json:"brands"`
	Nutriments  map[string]any `json:"nutriments"`
}

type offSearchResponse struct {
	Products []offProduct `json:"products"`
}
